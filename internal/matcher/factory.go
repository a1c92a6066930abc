package matcher

import (
	"fmt"
	"log/slog"
	"strings"
)

// Backend names accepted by New.
const (
	BackendSequence    = "sequence"
	BackendLevenshtein = "levenshtein"
	BackendTokenSet    = "tokenset"
	BackendTFIDF       = "tfidf"
)

// Config selects and configures a backend.
type Config struct {
	// Model is used by the tfidf backend when set; otherwise ModelPath is loaded.
	Model     *Model
	Backend   string
	ModelPath string
	Stopword  string
	Alphabets []string
}

// New creates the configured backend. An unknown backend is an error; a
// missing or unreadable tfidf model is not, the backend degrades to
// returning no candidates.
func New(cfg Config) (Matcher, error) {
	norm, err := NewNormalizer(cfg.Alphabets, cfg.Stopword)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSequence, "sequencematcher":
		return NewSequence(norm), nil
	case BackendLevenshtein:
		return NewLevenshtein(norm), nil
	case BackendTokenSet, "fuzzy":
		return NewTokenSet(norm), nil
	case BackendTFIDF:
		m := cfg.Model
		if m == nil && cfg.ModelPath != "" {
			m, err = LoadModel(cfg.ModelPath)
			if err != nil {
				slog.Warn("Vector model could not be loaded, tfidf backend will return no candidates",
					"path", cfg.ModelPath,
					"error", err)
				m = nil
			}
		}
		return NewVector(norm, m), nil
	default:
		return nil, fmt.Errorf("unsupported matching backend: %s", cfg.Backend)
	}
}
