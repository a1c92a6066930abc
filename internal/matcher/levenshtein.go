package matcher

// NewLevenshtein returns the normalized edit-distance backend.
func NewLevenshtein(norm *Normalizer) Matcher {
	return newTextMatcher(BackendLevenshtein, norm, levenshteinSimilarity)
}

// levenshteinSimilarity is 1 - distance/max(len). Two empty strings score 0.
func levenshteinSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes the edit distance with the two-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range a {
		curr[0] = i + 1
		for j, cb := range b {
			cost := 1
			if ca == cb {
				cost = 0
			}
			curr[j+1] = min(
				prev[j+1]+1, // deletion
				curr[j]+1,   // insertion
				prev[j]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
