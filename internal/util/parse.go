package util

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Accepted invoice date layouts, tried in order. GSTR2B exports use
// DD-MM-YYYY; books software mostly emits ISO or DD/MM/YYYY.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"02 Jan 2006",
	"2006-01-02T15:04:05Z07:00",
}

// ParseDate parses a calendar date in any accepted layout.
// The zero time and false are returned when nothing matches.
func ParseDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

var amountReplacer = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", "INR", "", "inr", "", " ", "", " ", "")

// ParseAmount parses a currency value into a two-digit fixed-point decimal.
// Currency markers and thousands separators are stripped first.
// Unparseable input returns zero and false so callers can flag the record.
func ParseAmount(input string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(amountReplacer.Replace(input))
	if s == "" {
		return decimal.Zero, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), true
}

// DaysBetween returns the absolute whole-day gap between two dates.
func DaysBetween(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
