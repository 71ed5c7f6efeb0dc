package prompts

import (
	"encoding/json"
	"slices"

	"github.com/hodie-labs/ingest/internal/parsers"
)

// Category is a canonical health data category a prompt override targets.
type Category string

// Categories returns the categories a prompt may target.
func Categories() []Category {
	names := parsers.Categories()
	out := make([]Category, len(names))
	for i, n := range names {
		out[i] = Category(n)
	}
	return out
}

// UnmarshalJSON validates that the decoded string is a known category.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCategory validates s as a canonical category name.
// Returns ErrInvalidCategory if the value is not recognized.
func ParseCategory(s string) (Category, error) {
	if !slices.Contains(parsers.Categories(), s) {
		return "", ErrInvalidCategory
	}
	return Category(s), nil
}
