package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scholarport/backend/internal/pkg/logger"
)

type stubAIClient struct {
	response string
	err      error
	calls    int
}

func (s *stubAIClient) GenerateText(_ context.Context, _ string, _ string) (string, error) {
	s.calls++
	return s.response, s.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

func TestNormalizeFallbackRules(t *testing.T) {
	n := NewNormalizer(testLogger(t), nil)

	cases := []struct {
		name  string
		step  int
		input string
		want  string
	}{
		{
			name:  "name_strips_possessive",
			step:  1,
			input: "My name is alice johnson",
			want:  "Alice Johnson",
		},
		{
			name:  "name_call_me",
			step:  1,
			input: "call me mike",
			want:  "Mike",
		},
		{
			name:  "budget_canonical_form",
			step:  4,
			input: "My budget is 20000 dollars",
			want:  "$20,000 USD",
		},
		{
			name:  "budget_pounds",
			step:  4,
			input: "15000 pounds",
			want:  "£15,000 GBP",
		},
		{
			name:  "country_synonym",
			step:  5,
			input: "the states",
			want:  "USA",
		},
		{
			name:  "education_passthrough",
			step:  2,
			input: "  Bachelor's in CS  ",
			want:  "Bachelor's in CS",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := n.Normalize(context.Background(), tc.step, tc.input); got != tc.want {
				t.Fatalf("Normalize(step=%d, %q)=%q, want %q", tc.step, tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeFallbackDeterministic(t *testing.T) {
	n := NewNormalizer(testLogger(t), nil)
	first := n.Normalize(context.Background(), 4, "My budget is 20000 dollars")
	for i := 0; i < 20; i++ {
		if got := n.Normalize(context.Background(), 4, "My budget is 20000 dollars"); got != first {
			t.Fatalf("Normalize returned %q on iteration %d, want %q", got, i, first)
		}
	}
}

func TestNormalizeUsesProvider(t *testing.T) {
	stub := &stubAIClient{response: `"Alice Johnson"`}
	n := NewNormalizer(testLogger(t), stub)

	got := n.Normalize(context.Background(), 1, "my name is alice johnson")
	if got != "Alice Johnson" {
		t.Fatalf("Normalize=%q, want provider output Alice Johnson", got)
	}
	if stub.calls != 1 {
		t.Fatalf("provider called %d times, want 1", stub.calls)
	}
}

func TestNormalizeProviderErrorFallsBack(t *testing.T) {
	stub := &stubAIClient{err: errors.New("provider down")}
	n := NewNormalizer(testLogger(t), stub)

	got := n.Normalize(context.Background(), 4, "My budget is 20000 dollars")
	if got != "$20,000 USD" {
		t.Fatalf("Normalize=%q, want fallback $20,000 USD", got)
	}
}

func TestNormalizeProviderUnreasonableOutputFallsBack(t *testing.T) {
	stub := &stubAIClient{response: strings.Repeat("x", 300)}
	n := NewNormalizer(testLogger(t), stub)

	got := n.Normalize(context.Background(), 5, "canada")
	if got != "Canada" {
		t.Fatalf("Normalize=%q, want fallback Canada", got)
	}
}

func TestNormalizeStepsWithoutPromptSkipProvider(t *testing.T) {
	stub := &stubAIClient{response: "should not be used"}
	n := NewNormalizer(testLogger(t), stub)

	got := n.Normalize(context.Background(), 6, "alice@example.com")
	if got != "alice@example.com" {
		t.Fatalf("Normalize=%q, want pass-through", got)
	}
	if stub.calls != 0 {
		t.Fatalf("provider called %d times for step without prompt, want 0", stub.calls)
	}
}
