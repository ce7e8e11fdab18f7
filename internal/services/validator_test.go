package services

import (
	"strings"
	"testing"
)

func TestValidateStepName(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		reject bool
	}{
		{name: "full_name", input: "Alice Johnson", reject: false},
		{name: "short_name_ok", input: "Al", reject: false},
		{name: "single_char", input: "A", reject: true},
		{name: "whitespace_only", input: "   ", reject: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateStep(1, tc.input)
			if (got != nil) != tc.reject {
				t.Fatalf("ValidateStep(1, %q)=%v, want reject=%v", tc.input, got, tc.reject)
			}
		})
	}
}

func TestValidateStepTestScore(t *testing.T) {
	cases := []struct {
		name        string
		input       string
		reject      bool
		wantMessage string
	}{
		{
			name:   "labeled_ielts_ok",
			input:  "IELTS 6.5",
			reject: false,
		},
		{
			name:        "ielts_out_of_range",
			input:       "IELTS 11",
			reject:      true,
			wantMessage: "0 to 9",
		},
		{
			name:        "toefl_out_of_range",
			input:       "TOEFL 150",
			reject:      true,
			wantMessage: "0 to 120",
		},
		{
			name:   "toefl_ok",
			input:  "TOEFL 90",
			reject: false,
		},
		{
			name:   "bare_ielts_band",
			input:  "6.5",
			reject: false,
		},
		{
			name:   "bare_toefl_band",
			input:  "95",
			reject: false,
		},
		{
			name:   "bare_number_in_sentence",
			input:  "I got 7 overall",
			reject: false,
		},
		{
			name:   "bare_number_in_gap",
			input:  "15",
			reject: true,
		},
		{
			name:   "no_test_phrase",
			input:  "I haven't taken any test yet",
			reject: false,
		},
		{
			name:   "no_digits_rejected",
			input:  "I love music",
			reject: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateStep(3, tc.input)
			if (got != nil) != tc.reject {
				t.Fatalf("ValidateStep(3, %q)=%v, want reject=%v", tc.input, got, tc.reject)
			}
			if got != nil {
				if got.Step != 3 {
					t.Fatalf("rejection step=%d, want 3", got.Step)
				}
				if tc.wantMessage != "" && !strings.Contains(got.Message, tc.wantMessage) {
					t.Fatalf("rejection message %q does not mention %q", got.Message, tc.wantMessage)
				}
			}
		})
	}
}

func TestValidateStepBudget(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		reject bool
	}{
		{name: "numeric", input: "25000", reject: false},
		{name: "currency_word", input: "a few thousand dollars", reject: false},
		{name: "magnitude_word", input: "twenty thousand", reject: false},
		{name: "no_signal", input: "not sure", reject: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateStep(4, tc.input)
			if (got != nil) != tc.reject {
				t.Fatalf("ValidateStep(4, %q)=%v, want reject=%v", tc.input, got, tc.reject)
			}
		})
	}
}

func TestValidateStepEmailAndPhone(t *testing.T) {
	cases := []struct {
		name   string
		step   int
		input  string
		reject bool
	}{
		{name: "valid_email", step: 6, input: "alice@example.com", reject: false},
		{name: "skip_email", step: 6, input: "skip", reject: false},
		{name: "bad_email", step: 6, input: "not-an-email", reject: true},
		{name: "valid_phone", step: 7, input: "+1 555 123 4567", reject: false},
		{name: "skip_phone", step: 7, input: "no", reject: false},
		{name: "short_phone", step: 7, input: "123", reject: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateStep(tc.step, tc.input)
			if (got != nil) != tc.reject {
				t.Fatalf("ValidateStep(%d, %q)=%v, want reject=%v", tc.step, tc.input, got, tc.reject)
			}
		})
	}
}
