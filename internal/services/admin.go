package services

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/scholarport/backend/internal/pkg/ctxutil"
	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

type ProfileStats struct {
	TotalProfiles        int64                 `json:"total_profiles"`
	AverageBudget        float64               `json:"average_budget"`
	TopCountries         []repos.CountryCount  `json:"top_countries"`
	TestTypeDistribution []repos.TestTypeCount `json:"test_type_distribution"`
	RecentProfiles       int64                 `json:"recent_profiles"`
}

// ExportRow is one flattened profile for the admin export.
type ExportRow struct {
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	EducationLevel   string  `json:"education_level"`
	BudgetAmount     int     `json:"budget_amount"`
	BudgetCurrency   string  `json:"budget_currency"`
	TestType         string  `json:"test_type"`
	TestScore        float64 `json:"test_score"`
	PreferredCountry string  `json:"preferred_country"`
	University1      string  `json:"university_1"`
	University2      string  `json:"university_2"`
	University3      string  `json:"university_3"`
	CreatedAt        string  `json:"created_at"`
}

type AdminService interface {
	ListProfiles(ctx context.Context, limit, offset int) ([]*types.StudentProfile, int64, error)
	Stats(ctx context.Context) (*ProfileStats, error)
	ExportRows(ctx context.Context) ([]ExportRow, error)
}

type adminService struct {
	log         *logger.Logger
	profileRepo repos.StudentProfileRepo
}

func NewAdminService(log *logger.Logger, profileRepo repos.StudentProfileRepo) AdminService {
	return &adminService{
		log:         log.With("service", "AdminService"),
		profileRepo: profileRepo,
	}
}

func (as *adminService) ListProfiles(ctx context.Context, limit, offset int) ([]*types.StudentProfile, int64, error) {
	ctx = ctxutil.Default(ctx)
	profiles, err := as.profileRepo.List(ctx, nil, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := as.profileRepo.Count(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

func (as *adminService) Stats(ctx context.Context) (*ProfileStats, error) {
	ctx = ctxutil.Default(ctx)

	total, err := as.profileRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &ProfileStats{
			TopCountries:         []repos.CountryCount{},
			TestTypeDistribution: []repos.TestTypeCount{},
		}, nil
	}

	avg, err := as.profileRepo.AverageBudget(ctx, nil)
	if err != nil {
		return nil, err
	}
	topCountries, err := as.profileRepo.TopCountries(ctx, nil, 5)
	if err != nil {
		return nil, err
	}
	distribution, err := as.profileRepo.TestTypeDistribution(ctx, nil)
	if err != nil {
		return nil, err
	}
	recent, err := as.profileRepo.CountCreatedSince(ctx, nil, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	return &ProfileStats{
		TotalProfiles:        total,
		AverageBudget:        math.Round(avg*100) / 100,
		TopCountries:         topCountries,
		TestTypeDistribution: distribution,
		RecentProfiles:       recent,
	}, nil
}

func (as *adminService) ExportRows(ctx context.Context) ([]ExportRow, error) {
	ctx = ctxutil.Default(ctx)

	profiles, err := as.profileRepo.List(ctx, nil, 200, 0)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, 0, len(profiles))
	for _, p := range profiles {
		row := ExportRow{
			Name:             p.Name,
			Email:            p.Email,
			Phone:            p.Phone,
			EducationLevel:   p.EducationLevel,
			BudgetAmount:     p.BudgetAmount,
			BudgetCurrency:   p.BudgetCurrency,
			TestType:         p.TestType,
			TestScore:        p.TestScore,
			PreferredCountry: p.PreferredCountry,
			CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
		}
		var recs []types.UniversityMatch
		if len(p.RecommendedUniversities) > 0 {
			_ = json.Unmarshal(p.RecommendedUniversities, &recs)
		}
		if len(recs) > 0 {
			row.University1 = recs[0].Name
		}
		if len(recs) > 1 {
			row.University2 = recs[1].Name
		}
		if len(recs) > 2 {
			row.University3 = recs[2].Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}
