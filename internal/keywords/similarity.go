package keywords

import "github.com/pmezard/go-difflib/difflib"

// SimilarityThreshold is the minimum ratio for a fuzzy keyword match.
const SimilarityThreshold = 0.88

// Similarity is the character-level matching-subsequence ratio of a and b:
// 2*M/T where M is the number of matched characters and T the total length.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	m := difflib.NewMatcher(chars(a), chars(b))
	return m.Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
