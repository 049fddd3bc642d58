package util

import (
	"regexp"
	"strings"
)

var (
	reGSTIN       = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reNonKeyChars = regexp.MustCompile(`[^A-Z0-9]`)
	reLeadZeros   = regexp.MustCompile(`^0+`)
)

// NormalizeGSTIN uppercases and strips all whitespace. It does not reject:
// layout validation is a separate concern (see ValidGSTIN).
func NormalizeGSTIN(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	return reSpaces.ReplaceAllString(s, "")
}

// ValidGSTIN reports whether the value matches the 15-character statutory layout.
func ValidGSTIN(gstin string) bool {
	return reGSTIN.MatchString(gstin)
}

// NormalizeInvoiceNumber builds the comparison key for an invoice number:
// uppercase, punctuation and whitespace removed, leading zeros stripped.
// The original value is kept on the record for display.
func NormalizeInvoiceNumber(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = reNonKeyChars.ReplaceAllString(s, "")
	s = reLeadZeros.ReplaceAllString(s, "")
	return s
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// Levenshtein returns the edit distance between two strings, by rune.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// StringSimilarity maps edit distance into [0,1]: 1 for identical strings,
// decreasing with distance relative to the longer string.
func StringSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}

func minInt(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
