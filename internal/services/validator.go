package services

import (
	"regexp"
	"strconv"
	"strings"
)

// Rejection is the re-prompt payload returned when an answer fails the
// acceptance rule for its step. The step never advances on rejection.
type Rejection struct {
	Message string
	Step    int
}

var (
	ieltsLabeled  = regexp.MustCompile(`(?i)ielts\D*(\d+(?:\.\d+)?)`)
	toeflLabeled  = regexp.MustCompile(`(?i)toefl\D*(\d+)`)
	decimalNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
	anyNumber     = regexp.MustCompile(`\d`)
	emailExpr     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneCharRun  = regexp.MustCompile(`[\d\s()+\-]{7,}`)
)

var educationKeywords = []string{
	"school", "college", "university", "bachelor", "master", "phd", "doctorate",
	"degree", "diploma", "undergraduate", "graduate", "postgraduate", "mba",
	"bsc", "msc", "engineering", "science", "business", "arts", "medicine",
	"computer", "level", "grade", "studying", "studied",
}

var noTestPhrases = []string{
	"no test", "not taken", "haven't taken", "havent taken", "not yet",
	"no ielts", "no toefl", "planning to take", "will take", "didn't take",
}

var currencyWords = []string{
	"$", "£", "€", "usd", "gbp", "eur", "cad", "aud", "sgd", "chf",
	"dollar", "pound", "euro", "franc", "buck",
}

var budgetMagnitudeWords = []string{"thousand", "lakh", "k"}

var countryKeywords = []string{
	"usa", "us", "america", "united states", "uk", "united kingdom", "britain",
	"england", "scotland", "canada", "australia", "germany", "singapore",
	"switzerland", "ireland", "netherlands", "holland", "new zealand",
	"france", "japan", "europe", "asia", "flexible", "open", "any", "anywhere",
}

var skipKeywords = []string{"skip", "no", "later", "n/a", "na", "none", "prefer not"}

// ValidateStep gates raw input before any state mutation. Returns nil
// on accept. Pure: no side effects on either path.
func ValidateStep(step int, text string) *Rejection {
	trimmed := strings.TrimSpace(text)

	switch step {
	case 1:
		if len(trimmed) < 2 {
			return &Rejection{
				Message: "I didn't catch your name. Could you tell me your full name?",
				Step:    step,
			}
		}
	case 2:
		lower := strings.ToLower(trimmed)
		if !containsAny(lower, educationKeywords) && len(trimmed) < 3 {
			return &Rejection{
				Message: "Could you tell me a bit more about your education? For example, \"Bachelor's in Computer Science\".",
				Step:    step,
			}
		}
	case 3:
		return validateTestScore(trimmed)
	case 4:
		lower := strings.ToLower(trimmed)
		if !anyNumber.MatchString(trimmed) &&
			!containsAny(lower, currencyWords) &&
			!containsAnyWord(lower, budgetMagnitudeWords) {
			return &Rejection{
				Message: "Could you share your yearly budget as an amount? For example, \"$25,000\" or \"20000 USD\".",
				Step:    step,
			}
		}
	case 5:
		lower := strings.ToLower(trimmed)
		if !containsAny(lower, countryKeywords) && len(trimmed) < 3 {
			return &Rejection{
				Message: "Which country would you like to study in? You can also say \"flexible\" if you're open.",
				Step:    step,
			}
		}
	case 6:
		lower := strings.ToLower(trimmed)
		if !emailExpr.MatchString(trimmed) && !containsAnyWord(lower, skipKeywords) {
			return &Rejection{
				Message: "That doesn't look like an email address. Please share a valid email, or say \"skip\".",
				Step:    step,
			}
		}
	case 7:
		lower := strings.ToLower(trimmed)
		if !phoneCharRun.MatchString(trimmed) && !containsAnyWord(lower, skipKeywords) {
			return &Rejection{
				Message: "That doesn't look like a phone number. Please share one with country code, or say \"skip\".",
				Step:    step,
			}
		}
	}
	return nil
}

func validateTestScore(trimmed string) *Rejection {
	lower := strings.ToLower(trimmed)

	if containsAny(lower, noTestPhrases) {
		return nil
	}

	if m := ieltsLabeled.FindStringSubmatch(trimmed); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err != nil || score < 0 || score > 9 {
			return &Rejection{
				Message: "IELTS scores range from 0 to 9. Could you double-check your score?",
				Step:    3,
			}
		}
		return nil
	}

	if m := toeflLabeled.FindStringSubmatch(trimmed); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err != nil || score < 0 || score > 120 {
			return &Rejection{
				Message: "TOEFL scores range from 0 to 120. Could you double-check your score?",
				Step:    3,
			}
		}
		return nil
	}

	if m := decimalNumber.FindString(trimmed); m != "" {
		score, err := strconv.ParseFloat(m, 64)
		if err == nil {
			if score >= 0 && score <= 9 {
				return nil
			}
			if score >= 30 && score <= 120 {
				return nil
			}
		}
		return &Rejection{
			Message: "I couldn't place that score. IELTS runs 0-9 and TOEFL 30-120, which did you take?",
			Step:    3,
		}
	}

	return &Rejection{
		Message: "Please share your English test score, like \"IELTS 6.5\" or \"TOEFL 90\", or say \"no test yet\".",
		Step:    3,
	}
}

func containsAnyWord(text string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(text, kw) {
			return true
		}
	}
	return false
}
