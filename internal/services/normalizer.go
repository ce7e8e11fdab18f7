package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scholarport/backend/internal/clients/openai"
	"github.com/scholarport/backend/internal/pkg/ctxutil"
	"github.com/scholarport/backend/internal/pkg/logger"
)

// Normalizer maps validated raw text to a canonical value per step.
// It never fails: provider trouble degrades to the deterministic
// fallback rules, and in the worst case to trimmed pass-through.
type Normalizer interface {
	Normalize(ctx context.Context, step int, text string) string
}

type normalizer struct {
	log      *logger.Logger
	aiClient openai.Client
	timeout  time.Duration
}

const maxProcessedLen = 200

// NewNormalizer builds a normalizer. A nil client is allowed and means
// fallback-only operation.
func NewNormalizer(log *logger.Logger, aiClient openai.Client) Normalizer {
	return &normalizer{
		log:      log.With("service", "Normalizer"),
		aiClient: aiClient,
		timeout:  15 * time.Second,
	}
}

var normalizePrompts = map[int]string{
	1: `Extract the person's name from the text. Return only the name, nothing else.
Examples:
"My name is John Smith" -> "John Smith"
"I'm Sarah" -> "Sarah"
"call me mike" -> "Mike"
Text: %q`,
	2: `Canonicalize the education level described in the text. Return a short phrase like "Bachelor's in Computer Science" or "Master's in Business".
Examples:
"i finished my bachelors in cs" -> "Bachelor's in Computer Science"
"doing an MBA right now" -> "MBA"
Text: %q`,
	3: `Canonicalize the English test score in the text to "<TYPE> <score>" where TYPE is IELTS or TOEFL.
Examples:
"i got 6.5 in ielts" -> "IELTS 6.5"
"toefl 95" -> "TOEFL 95"
"6.5" -> "IELTS 6.5"
Text: %q`,
	4: `Canonicalize the budget in the text to "<symbol><amount> <CCY>" with thousands separators.
Examples:
"my budget is 20000 dollars" -> "$20,000 USD"
"15k pounds" -> "£15,000 GBP"
Text: %q`,
	5: `Canonicalize the country preference in the text to a standard short country name (USA, UK, Canada, Australia, Germany, ...).
Examples:
"the states" -> "USA"
"i want to go to britain" -> "UK"
Text: %q`,
}

func (n *normalizer) Normalize(ctx context.Context, step int, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return trimmed
	}

	if n.aiClient != nil {
		if prompt, ok := normalizePrompts[step]; ok {
			callCtx, cancel := context.WithTimeout(ctxutil.Default(ctx), n.timeout)
			out, err := n.aiClient.GenerateText(callCtx,
				"You normalize one student answer at a time. Respond with the canonical value only, no quotes, no commentary.",
				fmt.Sprintf(prompt, trimmed),
			)
			cancel()
			if err == nil {
				out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
				if out != "" && len(out) < maxProcessedLen {
					return out
				}
				n.log.Debug("Provider normalization unreasonable, falling back", "step", step, "length", len(out))
			} else {
				n.log.Warn("Provider normalization failed, falling back", "step", step, "error", err)
			}
		}
	}

	return fallbackNormalize(step, trimmed)
}

var possessivePrefixes = []string{
	"my name is ", "my name's ", "i am ", "i'm ", "im ", "call me ",
	"this is ", "it's ", "its ", "name is ", "name: ",
}

// fallbackNormalize applies the deterministic rules. Steps without a
// rule pass through trimmed.
func fallbackNormalize(step int, trimmed string) string {
	switch step {
	case 1:
		lower := strings.ToLower(trimmed)
		for _, prefix := range possessivePrefixes {
			if strings.HasPrefix(lower, prefix) {
				return titleCase(strings.TrimSpace(trimmed[len(prefix):]))
			}
		}
		return titleCase(trimmed)
	case 4:
		budget := ParseBudget(trimmed)
		return fmt.Sprintf("%s%s %s", currencySymbol(budget.Currency), groupThousands(budget.Amount), budget.Currency)
	case 5:
		return ParseCountry(trimmed)
	default:
		return trimmed
	}
}

func currencySymbol(currency string) string {
	switch currency {
	case "GBP":
		return "£"
	case "EUR":
		return "€"
	default:
		return "$"
	}
}

func groupThousands(amount int) string {
	digits := fmt.Sprintf("%d", amount)
	if len(digits) <= 3 {
		return digits
	}
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)
	return strings.Join(parts, ",")
}
