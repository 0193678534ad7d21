// Package textnorm holds the text folding shared by keyword matching and
// reference family detection.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips combining marks, so "Vidéo" folds to "video".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Normalize folds s, turns every rune that is not a letter, digit, underscore
// or whitespace into a space, and collapses whitespace runs.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Tokens returns the whitespace-separated tokens of Normalize(s).
func Tokens(s string) []string {
	folded := Fold(s)
	mapped := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Fields(mapped)
}

// Clean collapses whitespace and trims.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
