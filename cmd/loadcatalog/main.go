package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/scholarport/backend/internal/db"
	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

// catalogEntry mirrors one record of the university dataset file.
type catalogEntry struct {
	UniversityName    string   `json:"university_name"`
	Country           string   `json:"country"`
	City              string   `json:"city"`
	Tuition           string   `json:"tuition"`
	IELTS             *float64 `json:"ielts"`
	TOEFL             *int     `json:"toefl"`
	Ranking           string   `json:"ranking"`
	Programs          []string `json:"programs"`
	Notes             string   `json:"notes"`
	Affordability     string   `json:"affordability"`
	Region            string   `json:"region"`
	NameVariations    []string `json:"name_variations"`
	ProgramCategories []string `json:"program_categories"`
	SearchableText    string   `json:"searchable_text"`
}

func main() {
	filePath := flag.String("file", "data.json", "path to the university dataset JSON file")
	flag.Parse()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbService, err := db.New(log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}

	universityRepo := repos.NewUniversityRepo(dbService.DB(), log)

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal("Failed to read dataset file", "file", *filePath, "error", err)
	}

	var entries []catalogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Fatal("Failed to parse dataset file", "file", *filePath, "error", err)
	}

	ctx := context.Background()
	loaded := 0
	skipped := 0
	for _, entry := range entries {
		name := strings.TrimSpace(entry.UniversityName)
		if name == "" {
			skipped++
			continue
		}

		u := &types.University{
			UniversityName:   name,
			Country:          strings.TrimSpace(entry.Country),
			City:             strings.TrimSpace(entry.City),
			Tuition:          strings.TrimSpace(entry.Tuition),
			IELTSRequirement: entry.IELTS,
			TOEFLRequirement: entry.TOEFL,
			Ranking:          strings.TrimSpace(entry.Ranking),
			Notes:            entry.Notes,
			Affordability:    entry.Affordability,
			Region:           entry.Region,
			SearchableText:   entry.SearchableText,
		}
		u.Programs = mustJSON(entry.Programs)
		u.NameVariations = mustJSON(entry.NameVariations)
		u.ProgramCategories = mustJSON(entry.ProgramCategories)

		if err := universityRepo.UpsertByName(ctx, nil, u); err != nil {
			log.Error("Failed to upsert university", "university_name", name, "error", err)
			skipped++
			continue
		}
		loaded++
	}

	total, err := universityRepo.Count(ctx, nil)
	if err != nil {
		log.Warn("Failed to count catalog", "error", err)
	}
	log.Info("Catalog load finished", "loaded", loaded, "skipped", skipped, "catalog_total", total)
}

func mustJSON(list []string) []byte {
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return []byte("[]")
	}
	return raw
}
