// Package textnorm folds Spanish catalog text for accent- and case-insensitive matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips combining marks and collapses whitespace.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Contains reports whether needle occurs in haystack after normalizing both.
// An empty needle never matches.
func Contains(haystack, needle string) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Normalize(haystack), n)
}

// ContainsAny reports whether the normalized text contains any of the phrases.
// The phrases must already be normalized.
func ContainsAny(normalized string, phrases ...string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}
