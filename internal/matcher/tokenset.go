package matcher

import (
	"math"
	"slices"
	"strings"
	"unicode"
)

// NewTokenSet returns the order-independent token-set backend.
func NewTokenSet(norm *Normalizer) Matcher {
	return newTextMatcher(BackendTokenSet, norm, func(a, b string) float64 {
		return float64(tokenSetRatio(a, b)) / 100
	})
}

// tokenSetRatio scores two strings in [0,100] by comparing their shared
// tokens against each side's remainder, taking the best of three ratios.
func tokenSetRatio(a, b string) int {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var intersection, onlyA, onlyB []string
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection = append(intersection, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range tokensB {
		if _, ok := tokensA[token]; !ok {
			onlyB = append(onlyB, token)
		}
	}

	sorted := func(tokens []string) string {
		slices.Sort(tokens)
		return strings.Join(tokens, " ")
	}

	sect := sorted(intersection)
	combinedA := strings.TrimSpace(sect + " " + sorted(onlyA))
	combinedB := strings.TrimSpace(sect + " " + sorted(onlyB))

	return max(
		percentRatio(sect, combinedA),
		percentRatio(sect, combinedB),
		percentRatio(combinedA, combinedB),
	)
}

// tokenSet splits on anything that is not a letter or digit.
func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// percentRatio is the sequence ratio scaled to an integer percentage, with
// empty inputs scoring 0.
func percentRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return int(math.RoundToEven(100 * sequenceRatio(a, b)))
}
