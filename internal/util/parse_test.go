package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		input string
	}{
		{name: "iso", input: "2025-04-15"},
		{name: "slash dmy", input: "15/04/2025"},
		{name: "dash dmy", input: "15-04-2025"},
		{name: "slash ymd", input: "2025/04/15"},
		{name: "dot dmy", input: "15.04.2025"},
		{name: "padded", input: "  2025-04-15 "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.input)
			if !ok {
				t.Fatalf("parse failed")
			}
			if !got.Equal(want) {
				t.Fatalf("got %v want %v", got, want)
			}
		})
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-a-date", "31/31/2025", "2025-13-40"} {
		if _, ok := ParseDate(input); ok {
			t.Fatalf("expected failure for %q", input)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "1180.00", want: "1180"},
		{name: "thousands comma", input: "1,18,000.50", want: "118000.5"},
		{name: "rupee symbol", input: "₹1180", want: "1180"},
		{name: "rs prefix", input: "Rs. 212.40", want: "212.4"},
		{name: "rounding", input: "99.999", want: "100"},
		{name: "space separated", input: "1 234.00", want: "1234"},
		{name: "nbsp separated", input: "1 234.00", want: "1234"},
		{name: "parenthesised negative", input: "(500)", want: "-500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseAmount(tc.input)
			if !ok {
				t.Fatalf("parse failed")
			}
			if got.String() != tc.want {
				t.Fatalf("got %s want %s", got.String(), tc.want)
			}
		})
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "N/A", "12..3"} {
		if _, ok := ParseAmount(input); ok {
			t.Fatalf("expected failure for %q", input)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 3 {
		t.Fatalf("got %d want 3", got)
	}
	if got := DaysBetween(b, a); got != 3 {
		t.Fatalf("order should not matter, got %d", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Fatalf("same day, got %d", got)
	}
}
