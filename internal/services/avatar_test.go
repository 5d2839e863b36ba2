package services

import (
	"testing"
	"unicode/utf8"
)

func TestComputeInitials(t *testing.T) {
	cases := []struct {
		first string
		last  string
		want  string
	}{
		{"Margaret", "Hale", "MH"},
		{"margaret", "hale", "MH"},
		{"Éva", "Ørsted", "ÉØ"},
		{"  Anna ", "", "A"},
		{"", "Żuk", "Ż"},
		{"", "", "?"},
		{"  ", "  ", "?"},
	}
	for _, tc := range cases {
		got := computeInitials(tc.first, tc.last)
		if got != tc.want {
			t.Fatalf("computeInitials(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("computeInitials(%q, %q) produced invalid UTF-8 %q", tc.first, tc.last, got)
		}
	}
}
