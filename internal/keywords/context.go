package keywords

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/david/proposaland/internal/textnorm"
)

// Context returns a snippet around every case-insensitive occurrence of
// keyword in text, keeping width bytes on each side.
func Context(text, keyword string, width int) []string {
	if text == "" || strings.TrimSpace(keyword) == "" {
		return nil
	}
	if width < 0 {
		width = DefaultContextWidth
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword))
	var out []string
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, strings.TrimSpace(span(text, loc[0]-width, loc[1]+width)))
	}
	return out
}

func span(text string, lo, hi int) string {
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	if hi > len(text) {
		hi = len(text)
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return text[lo:hi]
}

// Density returns, per primary keyword present, its exact occurrence count
// divided by the number of words in text.
func (e *Engine) Density(text string) map[string]float64 {
	tokens := textnorm.Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	out := make(map[string]float64)
	for _, r := range e.rules {
		count := 0
		n := len(r.tokens)
		for i := 0; i+n <= len(tokens); i++ {
			if containsRun(tokens[i:i+n], r.tokens) {
				count++
			}
		}
		if count > 0 {
			out[r.keyword] = float64(count) / float64(len(tokens))
		}
	}
	return out
}
