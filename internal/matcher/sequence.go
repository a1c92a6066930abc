package matcher

import (
	"github.com/pmezard/go-difflib/difflib"
)

// NewSequence returns the character-alignment backend.
func NewSequence(norm *Normalizer) Matcher {
	return newTextMatcher(BackendSequence, norm, sequenceRatio)
}

// sequenceRatio is difflib's 2*M/T ratio over the runes of a and b.
func sequenceRatio(a, b string) float64 {
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
