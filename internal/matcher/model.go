package matcher

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Model is a fitted TF-IDF vocabulary. Terms outside the vocabulary are
// ignored at query time.
type Model struct {
	FittedAt  time.Time          `json:"fitted_at"`
	IDF       map[string]float64 `json:"idf"`
	Documents int                `json:"documents"`
}

// vector is an L2-normalized sparse term vector.
type vector map[string]float64

// Fit builds a model over corpus. Exact duplicate source texts are counted
// once; texts that differ only after normalization (case, punctuation) stay
// separate documents. Documents that normalize to nothing are dropped. IDF
// uses the smoothed form ln((1+n)/(1+df)) + 1.
func Fit(corpus []string, norm *Normalizer) *Model {
	seen := make(map[string]struct{}, len(corpus))
	df := make(map[string]int)
	documents := 0

	for _, raw := range corpus {
		raw = strings.TrimSpace(raw)
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}

		doc := norm.Normalize(raw)
		if doc == "" {
			continue
		}
		documents++

		terms := make(map[string]struct{})
		for _, term := range tokenize(doc) {
			terms[term] = struct{}{}
		}
		for term := range terms {
			df[term]++
		}
	}

	n := float64(documents)
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}

	return &Model{
		IDF:       idf,
		Documents: documents,
		FittedAt:  time.Now().UTC(),
	}
}

// LoadModel reads a model saved with Save.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if len(m.IDF) == 0 {
		return nil, fmt.Errorf("model %s has an empty vocabulary", path)
	}
	return &m, nil
}

// Save writes the model as JSON, creating parent directories.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// VocabularySize returns the number of known terms.
func (m *Model) VocabularySize() int {
	if m == nil {
		return 0
	}
	return len(m.IDF)
}

// vectorize turns already-normalized text into a unit vector. Text with no
// known terms yields an empty vector.
func (m *Model) vectorize(text string) vector {
	counts := make(map[string]float64)
	for _, term := range tokenize(text) {
		if _, ok := m.IDF[term]; ok {
			counts[term]++
		}
	}

	var norm float64
	for term, tf := range counts {
		w := tf * m.IDF[term]
		counts[term] = w
		norm += w * w
	}
	if norm == 0 {
		return vector{}
	}

	norm = math.Sqrt(norm)
	for term := range counts {
		counts[term] /= norm
	}
	return vector(counts)
}

// cosine returns the dot product of two unit vectors.
func cosine(a, b vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}

// tokenize returns runs of two or more word characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	terms := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}
