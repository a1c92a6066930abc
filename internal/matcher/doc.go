// Package matcher ranks taxonomy leaves against a free-text offer name.
//
// Four interchangeable backends implement Matcher:
//
//   - sequence: difflib character-alignment ratio
//   - levenshtein: 1 - distance/max(len)
//   - tokenset: order-independent token-set ratio
//   - tfidf: cosine similarity under a pre-fit TF-IDF model
//
// A backend is chosen once with New. Every backend normalizes the query and
// the leaf names with the same Normalizer, scores each leaf once per query,
// and returns at most model.MaxCandidates results ordered by non-increasing
// similarity, ties kept in taxonomy order.
package matcher
