package taxonomy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

var (
	// ErrMultipleRoots is returned for a list holding more than one root.
	ErrMultipleRoots = errors.New("taxonomy has multiple roots")
	// ErrEmptyTaxonomy is returned when there is no root at all.
	ErrEmptyTaxonomy = errors.New("taxonomy is empty")
)

// nodeKeys are the fields that mark an object as a tree node rather than an
// API envelope.
var nodeKeys = []string{"type_name", "type_id", "category_name", "description_category_id", "children"}

// Load reads and parses a taxonomy file.
func Load(path string) (model.CategoryNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CategoryNode{}, fmt.Errorf("failed to read taxonomy %s: %w", path, err)
	}
	root, err := Parse(data)
	if err != nil {
		return model.CategoryNode{}, fmt.Errorf("failed to parse taxonomy %s: %w", path, err)
	}
	return root, nil
}

// Parse decodes a taxonomy document into its single root node.
func Parse(data []byte) (model.CategoryNode, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return model.CategoryNode{}, ErrEmptyTaxonomy
	}

	switch trimmed[0] {
	case '[':
		return parseList(trimmed)
	case '{':
		return parseObject(trimmed)
	default:
		return model.CategoryNode{}, fmt.Errorf("unexpected taxonomy document: must be a JSON object or list")
	}
}

func parseList(data []byte) (model.CategoryNode, error) {
	var roots []model.CategoryNode
	if err := json.Unmarshal(data, &roots); err != nil {
		return model.CategoryNode{}, fmt.Errorf("invalid taxonomy list: %w", err)
	}
	switch len(roots) {
	case 0:
		return model.CategoryNode{}, ErrEmptyTaxonomy
	case 1:
		return roots[0], nil
	default:
		return model.CategoryNode{}, fmt.Errorf("%w: got %d", ErrMultipleRoots, len(roots))
	}
}

func parseObject(data []byte) (model.CategoryNode, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return model.CategoryNode{}, fmt.Errorf("invalid taxonomy object: %w", err)
	}

	result, isEnvelope := fields["result"]
	for _, key := range nodeKeys {
		if _, ok := fields[key]; ok {
			isEnvelope = false
			break
		}
	}

	if !isEnvelope {
		var root model.CategoryNode
		if err := json.Unmarshal(data, &root); err != nil {
			return model.CategoryNode{}, fmt.Errorf("invalid taxonomy root: %w", err)
		}
		return root, nil
	}

	// The API envelope wraps the top-level categories; they become the
	// children of an unnamed root.
	result = bytes.TrimSpace(result)
	if len(result) > 0 && result[0] == '[' {
		var children []model.CategoryNode
		if err := json.Unmarshal(result, &children); err != nil {
			return model.CategoryNode{}, fmt.Errorf("invalid taxonomy result: %w", err)
		}
		if len(children) == 0 {
			return model.CategoryNode{}, ErrEmptyTaxonomy
		}
		return model.CategoryNode{Children: children}, nil
	}
	return parseObject(result)
}
