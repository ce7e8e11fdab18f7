package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

// UniversitySelector picks up to three programs for a completed
// conversation: hard filters, weighted scoring, then a diversity pass
// across budget tiers.
type UniversitySelector interface {
	Select(ctx context.Context, conv *types.ConversationSession) ([]types.UniversityMatch, error)
}

type universitySelector struct {
	log            *logger.Logger
	universityRepo repos.UniversityRepo
}

func NewUniversitySelector(log *logger.Logger, universityRepo repos.UniversityRepo) UniversitySelector {
	return &universitySelector{
		log:            log.With("service", "UniversitySelector"),
		universityRepo: universityRepo,
	}
}

const (
	budgetHeadroom = 1.25
	ieltsTolerance = 0.5
	toeflTolerance = 5.0
)

// Preferences is the parsed view of a conversation used for matching.
type Preferences struct {
	Name      string
	Education string
	Test      TestScore
	Budget    Budget
	Country   string
}

// ExtractPreferences re-parses the stored answers, preferring the
// normalized value and falling back to the raw one.
func ExtractPreferences(conv *types.ConversationSession) Preferences {
	return Preferences{
		Name:      firstNonEmpty(conv.ProcessedName, conv.RawFor(1)),
		Education: firstNonEmpty(conv.ProcessedEducation, conv.RawFor(2)),
		Test:      ParseTestScore(firstNonEmpty(conv.ProcessedTestScore, conv.RawFor(3))),
		Budget:    ParseBudget(firstNonEmpty(conv.ProcessedBudget, conv.RawFor(4))),
		Country:   ParseCountry(firstNonEmpty(conv.ProcessedCountry, conv.RawFor(5))),
	}
}

type scoredUniversity struct {
	university   *types.University
	score        float64
	tuitionUSD   float64
	tuitionKnown bool
}

func (us *universitySelector) Select(ctx context.Context, conv *types.ConversationSession) ([]types.UniversityMatch, error) {
	prefs := ExtractPreferences(conv)
	budgetUSD := ToUSD(float64(prefs.Budget.Amount), prefs.Budget.Currency)

	catalog, err := us.universityRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load university catalog: %w", err)
	}

	survivors := us.filterCatalog(catalog, prefs, budgetUSD)
	us.log.Debug("Catalog filtered", "catalog_size", len(catalog), "survivors", len(survivors))

	for i := range survivors {
		survivors[i].score = us.scoreUniversity(&survivors[i], prefs, budgetUSD)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].university.UniversityName < survivors[j].university.UniversityName
	})

	picked := diverseTop3(survivors, budgetUSD)

	matches := make([]types.UniversityMatch, 0, len(picked))
	for _, s := range picked {
		matches = append(matches, us.toMatch(s, prefs, budgetUSD))
	}
	return matches, nil
}

func (us *universitySelector) filterCatalog(catalog []*types.University, prefs Preferences, budgetUSD float64) []scoredUniversity {
	var survivors []scoredUniversity
	for _, u := range catalog {
		if !CountryMatches(prefs.Country, u.Country) {
			continue
		}

		tuition := ParseTuition(u.Tuition)
		tuitionUSD := 0.0
		if tuition.Parsed {
			tuitionUSD = ToUSD(tuition.Amount, tuition.Currency)
			if budgetUSD > 0 && tuitionUSD > budgetUSD*budgetHeadroom {
				continue
			}
		}

		if !meetsTestRequirement(u, prefs.Test) {
			continue
		}

		survivors = append(survivors, scoredUniversity{
			university:   u,
			tuitionUSD:   tuitionUSD,
			tuitionKnown: tuition.Parsed,
		})
	}
	return survivors
}

// meetsTestRequirement checks the threshold for the student's test
// type with the tolerance applied. No declared threshold passes.
func meetsTestRequirement(u *types.University, test TestScore) bool {
	switch test.Type {
	case types.TestTypeIELTS:
		if u.IELTSRequirement == nil {
			return true
		}
		return test.Score >= *u.IELTSRequirement-ieltsTolerance
	case types.TestTypeTOEFL:
		if u.TOEFLRequirement == nil {
			return true
		}
		return test.Score >= float64(*u.TOEFLRequirement)-toeflTolerance
	default:
		return true
	}
}

const (
	weightBudget        = 0.30
	weightTest          = 0.25
	weightRanking       = 0.20
	weightProgram       = 0.15
	weightAffordability = 0.10
)

func (us *universitySelector) scoreUniversity(s *scoredUniversity, prefs Preferences, budgetUSD float64) float64 {
	return weightBudget*budgetScore(s, budgetUSD) +
		weightTest*testFitScore(s.university, prefs.Test) +
		weightRanking*rankingScore(s.university.Ranking) +
		weightProgram*programScore(s.university, prefs.Education) +
		weightAffordability*affordabilityScore(s.university.Affordability)
}

func budgetScore(s *scoredUniversity, budgetUSD float64) float64 {
	if !s.tuitionKnown || budgetUSD <= 0 {
		return 0.5
	}
	ratio := s.tuitionUSD / budgetUSD
	switch {
	case ratio <= 0.8:
		return 1.0
	case ratio <= 1.0:
		return 0.8
	case ratio <= 1.2:
		return 0.5
	default:
		return 0.1
	}
}

func testFitScore(u *types.University, test TestScore) float64 {
	var threshold float64
	var tolerance float64
	switch test.Type {
	case types.TestTypeIELTS:
		if u.IELTSRequirement == nil {
			return 0.8
		}
		threshold = *u.IELTSRequirement
		tolerance = ieltsTolerance
	case types.TestTypeTOEFL:
		if u.TOEFLRequirement == nil {
			return 0.8
		}
		threshold = float64(*u.TOEFLRequirement)
		tolerance = toeflTolerance
	default:
		return 0.8
	}
	switch {
	case test.Score >= threshold:
		return 1.0
	case test.Score >= threshold-tolerance:
		return 0.7
	default:
		return 0.2
	}
}

var leadingRank = regexp.MustCompile(`\d+`)

// rankingScore reads numeric ranks; range strings like "51-100" score
// by their lower bound.
func rankingScore(ranking string) float64 {
	m := leadingRank.FindString(ranking)
	if m == "" {
		return 0.6
	}
	rank, err := strconv.Atoi(m)
	if err != nil {
		return 0.6
	}
	switch {
	case rank <= 10:
		return 0.95
	case rank <= 50:
		return 0.85
	case rank <= 100:
		return 0.75
	default:
		return 0.6
	}
}

func programScore(u *types.University, education string) float64 {
	lower := strings.ToLower(education)
	programs := strings.ToLower(strings.Join(programList(u.Programs), " "))

	best := 0.5
	for _, category := range programCategoryOrder {
		keywords := programCategories[category]
		studentInterested := strings.Contains(lower, category) || containsAny(lower, keywords)
		if !studentInterested {
			continue
		}
		if containsAny(programs, keywords) {
			return 0.9
		}
		if strings.Contains(programs, category) && best < 0.7 {
			best = 0.7
		}
	}
	return best
}

func affordabilityScore(tag string) float64 {
	lower := strings.ToLower(tag)
	switch {
	case strings.Contains(lower, "very affordable"):
		return 1.0
	case strings.Contains(lower, "very expensive"):
		return 0.2
	case strings.Contains(lower, "affordable"), strings.Contains(lower, "moderate"):
		return 0.8
	case strings.Contains(lower, "expensive"):
		return 0.4
	default:
		return 0.6
	}
}

// diverseTop3 buckets survivors by tuition-to-budget ratio and takes
// the best of each tier before filling the rest by overall score.
// Survivors arrive sorted by score.
func diverseTop3(survivors []scoredUniversity, budgetUSD float64) []scoredUniversity {
	if len(survivors) <= 3 {
		return survivors
	}

	const (
		bucketHigh = iota
		bucketMid
		bucketBudget
	)

	bucketOf := func(s scoredUniversity) int {
		if !s.tuitionKnown || budgetUSD <= 0 {
			return bucketMid
		}
		ratio := s.tuitionUSD / budgetUSD
		switch {
		case ratio >= 0.9:
			return bucketHigh
		case ratio >= 0.6:
			return bucketMid
		default:
			return bucketBudget
		}
	}

	picked := make([]scoredUniversity, 0, 3)
	taken := make(map[string]bool, 3)

	for _, bucket := range []int{bucketHigh, bucketMid, bucketBudget} {
		if len(picked) == 3 {
			break
		}
		for _, s := range survivors {
			if bucketOf(s) == bucket && !taken[s.university.UniversityName] {
				picked = append(picked, s)
				taken[s.university.UniversityName] = true
				break
			}
		}
	}

	for _, s := range survivors {
		if len(picked) == 3 {
			break
		}
		if !taken[s.university.UniversityName] {
			picked = append(picked, s)
			taken[s.university.UniversityName] = true
		}
	}

	return picked
}

func (us *universitySelector) toMatch(s scoredUniversity, prefs Preferences, budgetUSD float64) types.UniversityMatch {
	u := s.university
	programs := programList(u.Programs)
	if len(programs) > 3 {
		programs = programs[:3]
	}
	return types.UniversityMatch{
		Name:             u.UniversityName,
		Country:          u.Country,
		City:             u.City,
		Tuition:          u.Tuition,
		Programs:         programs,
		IELTSRequirement: u.IELTSRequirement,
		TOEFLRequirement: u.TOEFLRequirement,
		Ranking:          u.Ranking,
		Notes:            u.Notes,
		Affordability:    u.Affordability,
		Region:           u.Region,
		WhySelected:      selectionReason(s, prefs, budgetUSD),
	}
}

// selectionReason builds the short human-readable justification, at
// most two reasons joined by "; ".
func selectionReason(s scoredUniversity, prefs Preferences, budgetUSD float64) string {
	var reasons []string

	if s.tuitionKnown && budgetUSD > 0 {
		ratio := s.tuitionUSD / budgetUSD
		switch {
		case ratio <= 0.8:
			reasons = append(reasons, "Fits comfortably within your budget")
		case ratio <= 1.0:
			reasons = append(reasons, "Matches your budget")
		}
	}

	if testFitScore(s.university, prefs.Test) >= 1.0 &&
		(s.university.IELTSRequirement != nil || s.university.TOEFLRequirement != nil) {
		reasons = append(reasons, fmt.Sprintf("Your %s score meets the requirement", prefs.Test.Type))
	}

	if len(reasons) < 2 && programScore(s.university, prefs.Education) >= 0.9 {
		reasons = append(reasons, "Strong programs in your field of study")
	}

	if len(reasons) < 2 {
		if rankingScore(s.university.Ranking) >= 0.85 {
			reasons = append(reasons, "Highly ranked university")
		}
	}

	if len(reasons) == 0 {
		return "Excellent match for your profile"
	}
	if len(reasons) > 2 {
		reasons = reasons[:2]
	}
	return strings.Join(reasons, "; ")
}

func programList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var programs []string
	if err := json.Unmarshal(raw, &programs); err != nil {
		return nil
	}
	return programs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
