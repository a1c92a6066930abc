package matcher

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStopword is removed from names before matching. It is the article
// marker that vendors append to product names.
const DefaultStopword = "арт"

var alphabets = map[string]*unicode.RangeTable{
	"cyrillic": unicode.Cyrillic,
	"latin":    unicode.Latin,
	"greek":    unicode.Greek,
}

// Normalizer is the preprocessing pipeline shared by queries and leaf names.
type Normalizer struct {
	stopword string
	tables   []*unicode.RangeTable
}

// NewNormalizer keeps letters from the named alphabets. An empty list means
// Cyrillic only.
func NewNormalizer(names []string, stopword string) (*Normalizer, error) {
	if len(names) == 0 {
		names = []string{"cyrillic"}
	}

	n := &Normalizer{stopword: stopword}
	for _, name := range names {
		table, ok := alphabets[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown alphabet %q", name)
		}
		n.tables = append(n.tables, table)
	}
	return n, nil
}

// DefaultNormalizer keeps Cyrillic letters and removes DefaultStopword.
func DefaultNormalizer() *Normalizer {
	return &Normalizer{
		stopword: DefaultStopword,
		tables:   []*unicode.RangeTable{unicode.Cyrillic},
	}
}

// Normalize strips characters outside the alphabet, removes the stopword,
// collapses whitespace, trims and lowercases.
func (n *Normalizer) Normalize(text string) string {
	kept := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || (unicode.IsLetter(r) && unicode.In(r, n.tables...)) {
			return r
		}
		return -1
	}, text)

	if n.stopword != "" {
		kept = strings.ReplaceAll(kept, n.stopword, "")
	}

	// cases.Caser is stateful; build one per call.
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(kept), " "))
}
