package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarport/backend/internal/types"
)

// Shared parsing for budget, test score, country and education text.
// The normalizer fallback, the university selector and the profile
// creator all read conversation fields through these functions so they
// cannot drift apart.

const (
	DefaultBudgetAmount   = 25000
	DefaultBudgetCurrency = types.CurrencyUSD
	DefaultTestType       = types.TestTypeIELTS
	DefaultTestScore      = 6.0
	DefaultCountry        = "USA"
)

// Static conversion table. Rates are intentionally fixed: matching uses
// coarse budget bands, not live FX.
var usdRates = map[string]float64{
	types.CurrencyUSD: 1.0,
	types.CurrencyGBP: 1.27,
	types.CurrencyEUR: 1.08,
	types.CurrencyCAD: 0.74,
	types.CurrencyAUD: 0.65,
	types.CurrencySGD: 0.74,
	types.CurrencyCHF: 1.09,
}

func ToUSD(amount float64, currency string) float64 {
	rate, ok := usdRates[strings.ToUpper(currency)]
	if !ok {
		rate = 1.0
	}
	return amount * rate
}

type Budget struct {
	Amount   int
	Currency string
}

var numberRun = regexp.MustCompile(`\d+(?:[,.]\d{3})*(?:\.\d+)?`)

// ParseBudget extracts the first numeric run and infers the currency
// from a symbol or keyword. Unparseable input falls back to the
// defaults (25000 USD).
func ParseBudget(text string) Budget {
	budget := Budget{Amount: DefaultBudgetAmount, Currency: DefaultBudgetCurrency}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return budget
	}

	match := numberRun.FindString(raw)
	if match != "" {
		cleaned := strings.ReplaceAll(match, ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f > 0 {
			amount := int(f)
			// "20k" style shorthand
			lower := strings.ToLower(raw)
			idx := strings.Index(lower, strings.ToLower(match))
			rest := ""
			if idx >= 0 {
				rest = lower[idx+len(match):]
			}
			trimmedRest := strings.TrimSpace(rest)
			if strings.HasPrefix(trimmedRest, "k") && amount < 1000 {
				amount *= 1000
			} else if containsAny(lower, []string{"thousand"}) && amount < 1000 {
				amount *= 1000
			} else if containsAny(lower, []string{"lakh"}) && amount < 1000 {
				amount *= 100000
			}
			budget.Amount = amount
		}
	}

	budget.Currency = inferCurrency(raw)
	return budget
}

func inferCurrency(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "£"), containsAny(lower, []string{"gbp", "pound", "sterling"}):
		return types.CurrencyGBP
	case strings.Contains(text, "€"), containsAny(lower, []string{"eur", "euro"}):
		return types.CurrencyEUR
	case containsAny(lower, []string{"cad", "canadian dollar"}):
		return types.CurrencyCAD
	case containsAny(lower, []string{"aud", "australian dollar"}):
		return types.CurrencyAUD
	case containsAny(lower, []string{"sgd", "singapore dollar"}):
		return types.CurrencySGD
	case containsAny(lower, []string{"chf", "franc"}):
		return types.CurrencyCHF
	case strings.Contains(text, "$"), containsAny(lower, []string{"usd", "dollar", "buck"}):
		return types.CurrencyUSD
	default:
		return types.CurrencyUSD
	}
}

type TestScore struct {
	Type  string
	Score float64
}

var (
	ieltsScoreExpr = regexp.MustCompile(`(?i)ielts\D*(\d+(?:\.\d+)?)`)
	toeflScoreExpr = regexp.MustCompile(`(?i)toefl\D*(\d+)`)
	bareScoreExpr  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseTestScore maps free text to a typed score. Bare numbers are
// IELTS when they fit the 0..9 band and TOEFL otherwise. "No test"
// phrases and garbage both fall back to IELTS 6.0.
func ParseTestScore(text string) TestScore {
	result := TestScore{Type: DefaultTestType, Score: DefaultTestScore}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return result
	}

	if m := ieltsScoreExpr.FindStringSubmatch(raw); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f >= 0 && f <= 9 {
			return TestScore{Type: types.TestTypeIELTS, Score: f}
		}
	}
	if m := toeflScoreExpr.FindStringSubmatch(raw); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f >= 0 && f <= 120 {
			return TestScore{Type: types.TestTypeTOEFL, Score: f}
		}
	}
	if m := bareScoreExpr.FindString(raw); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			if f >= 0 && f <= 9 {
				return TestScore{Type: types.TestTypeIELTS, Score: f}
			}
			if f >= 30 && f <= 120 {
				return TestScore{Type: types.TestTypeTOEFL, Score: f}
			}
		}
	}
	return result
}

// Canonical country synonym table, checked in order so the more
// specific names win.
var countrySynonyms = []struct {
	canonical string
	keywords  []string
}{
	{"USA", []string{"usa", "u.s.a", "u.s.", "united states", "america", "states"}},
	{"UK", []string{"uk", "u.k", "united kingdom", "britain", "england", "scotland", "wales"}},
	{"Canada", []string{"canada", "canadian"}},
	{"Australia", []string{"australia", "aussie"}},
	{"Germany", []string{"germany", "german"}},
	{"Singapore", []string{"singapore"}},
	{"Switzerland", []string{"switzerland", "swiss"}},
	{"Ireland", []string{"ireland", "irish"}},
	{"Netherlands", []string{"netherlands", "holland", "dutch"}},
	{"New Zealand", []string{"new zealand", "kiwi"}},
}

// ParseCountry resolves free text to a canonical country name.
// Unmatched input passes through title-cased.
func ParseCountry(text string) string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return DefaultCountry
	}
	lower := strings.ToLower(raw)
	for _, kw := range []string{"flexible", "open", "any", "anywhere", "no preference"} {
		if containsWord(lower, kw) {
			return DefaultCountry
		}
	}
	for _, entry := range countrySynonyms {
		for _, kw := range entry.keywords {
			if containsWord(lower, kw) {
				return entry.canonical
			}
		}
	}
	return titleCase(raw)
}

// countryAliases maps each canonical name to the spellings catalog
// records may use.
var countryAliases = map[string][]string{
	"USA":         {"usa", "united states", "us", "america", "united states of america"},
	"UK":          {"uk", "united kingdom", "britain", "england", "great britain"},
	"Canada":      {"canada"},
	"Australia":   {"australia"},
	"Germany":     {"germany"},
	"Singapore":   {"singapore"},
	"Switzerland": {"switzerland"},
	"Ireland":     {"ireland"},
	"Netherlands": {"netherlands", "holland"},
	"New Zealand": {"new zealand"},
}

// CountryMatches reports whether a catalog country field matches the
// student's preferred country, accepting known spelling variations.
func CountryMatches(preferred, catalogCountry string) bool {
	p := strings.ToLower(strings.TrimSpace(preferred))
	c := strings.ToLower(strings.TrimSpace(catalogCountry))
	if p == "" || c == "" {
		return false
	}
	if p == c {
		return true
	}
	for canonical, aliases := range countryAliases {
		canonLower := strings.ToLower(canonical)
		pMatch := p == canonLower
		cMatch := c == canonLower
		for _, a := range aliases {
			if p == a {
				pMatch = true
			}
			if c == a {
				cMatch = true
			}
		}
		if pMatch && cMatch {
			return true
		}
	}
	return false
}

type Tuition struct {
	Amount   float64
	Currency string
	Parsed   bool
}

var tuitionExpr = regexp.MustCompile(`(\d+(?:,\d+)*)\s*([A-Z]{3})`)

// ParseTuition reads catalog tuition strings like "18000 GBP".
// Parsed=false means the record should fail open in filters.
func ParseTuition(text string) Tuition {
	m := tuitionExpr.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Tuition{}
	}
	cleaned := strings.ReplaceAll(m[1], ",", "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount <= 0 {
		return Tuition{}
	}
	return Tuition{Amount: amount, Currency: strings.ToUpper(m[2]), Parsed: true}
}

// EducationLevel buckets free education text into a coarse level label.
func EducationLevel(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(lower, []string{"phd", "doctorate", "doctoral"}):
		return "PhD"
	case containsAny(lower, []string{"master", "msc", "mba", "graduate", "postgraduate", "ms "}):
		return "Master's"
	case containsAny(lower, []string{"bachelor", "undergraduate", "bsc", "ba ", "b.tech", "btech"}):
		return "Bachelor's"
	case containsAny(lower, []string{"diploma", "college", "high school", "secondary"}):
		return "High School"
	default:
		return strings.TrimSpace(text)
	}
}

// programCategories maps a study area to the program keywords that
// count as a match for it. programCategoryOrder fixes the evaluation
// order so scoring stays deterministic.
var programCategoryOrder = []string{"business", "engineering", "science", "arts", "medicine"}

var programCategories = map[string][]string{
	"business":    {"business", "management", "finance", "accounting", "economics", "marketing", "mba", "commerce"},
	"engineering": {"engineering", "computer", "software", "mechanical", "electrical", "civil", "technology", "data"},
	"science":     {"science", "physics", "chemistry", "biology", "mathematics", "research"},
	"arts":        {"arts", "design", "music", "literature", "history", "philosophy", "media", "humanities"},
	"medicine":    {"medicine", "medical", "nursing", "health", "pharmacy", "dentistry"},
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// containsWord matches a keyword on word boundaries. Keywords with
// spaces or punctuation fall back to substring matching.
func containsWord(text, keyword string) bool {
	if strings.ContainsFunc(keyword, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		return strings.Contains(text, keyword)
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	for _, f := range fields {
		if f == keyword {
			return true
		}
	}
	return false
}

func titleCase(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
