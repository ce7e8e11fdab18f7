package utils

import "testing"

func TestGetEnv(t *testing.T) {
	if got := GetEnv("SCHOLARPORT_TEST_MISSING", "fallback", nil); got != "fallback" {
		t.Fatalf("GetEnv on unset var=%q, want fallback", got)
	}
	t.Setenv("SCHOLARPORT_TEST_STR", "value")
	if got := GetEnv("SCHOLARPORT_TEST_STR", "fallback", nil); got != "value" {
		t.Fatalf("GetEnv=%q, want value", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	cases := []struct {
		name string
		set  bool
		val  string
		want int
	}{
		{name: "unset_uses_default", want: 30},
		{name: "plain_int", set: true, val: "15", want: 15},
		{name: "padded_int", set: true, val: " 42 ", want: 42},
		{name: "garbage_uses_default", set: true, val: "soon", want: 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.set {
				t.Setenv("SCHOLARPORT_TEST_INT", tc.val)
			}
			if got := GetEnvAsInt("SCHOLARPORT_TEST_INT", 30, nil); got != tc.want {
				t.Fatalf("GetEnvAsInt(%q)=%d, want %d", tc.val, got, tc.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	cases := []struct {
		name string
		set  bool
		val  string
		want bool
	}{
		{name: "unset_uses_default", want: false},
		{name: "one_is_true", set: true, val: "1", want: true},
		{name: "yes_is_true", set: true, val: "YES", want: true},
		{name: "on_is_true", set: true, val: "on", want: true},
		{name: "off_is_false", set: true, val: "off", want: false},
		{name: "garbage_uses_default", set: true, val: "maybe", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.set {
				t.Setenv("SCHOLARPORT_TEST_BOOL", tc.val)
			}
			if got := GetEnvAsBool("SCHOLARPORT_TEST_BOOL", false, nil); got != tc.want {
				t.Fatalf("GetEnvAsBool(%q)=%v, want %v", tc.val, got, tc.want)
			}
		})
	}
}
