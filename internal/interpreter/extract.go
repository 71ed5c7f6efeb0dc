package interpreter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hodie-labs/ingest/pkg/formatting"
)

// score accepts a confidence written as a number or a numeric string.
// A decimal literal no greater than 1 (0.75, 1.0) is a proportion; integers
// and values carrying a % sign are already percentages.
type score float64

func (s *score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}

	text := string(data)
	percent := false
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if trimmed, ok := strings.CutSuffix(text, "%"); ok {
			text, percent = trimmed, true
		}
	}
	text = strings.TrimSpace(text)

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("confidence %s is not a number", data)
	}
	if !percent && f > 0 && f <= 1 && strings.ContainsAny(text, ".eE") {
		f *= 100
	}
	*s = score(f)
	return nil
}

func (s score) percent() int {
	return int(math.Max(0, math.Min(100, math.Round(float64(s)))))
}

type wireMapping struct {
	Collection          string         `json:"target_collection"`
	Fields              map[string]any `json:"field_mappings"`
	Confidence          score          `json:"confidence"`
	ClarifyingQuestions []string       `json:"clarifying_questions"`
	Recommendations     []string       `json:"recommendations"`
}

type envelope struct {
	wireMapping
	Mappings []wireMapping `json:"mappings"`
}

// Extract recovers mapping results from raw collaborator output. The
// output may be bare JSON, fenced JSON, or JSON embedded in prose, and may
// hold a single mapping, a {"mappings": [...]} object, or a bare array.
// Every mapping must name a known collection.
func Extract(raw string) ([]MappingResult, error) {
	var wire []wireMapping

	if env, err := formatting.Parse[envelope](raw); err == nil {
		if len(env.Mappings) > 0 {
			wire = env.Mappings
		} else if env.Collection != "" {
			wire = []wireMapping{env.wireMapping}
		}
	} else if list, err := formatting.Parse[[]wireMapping](raw); err == nil {
		wire = list
	} else {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(wire) == 0 {
		return nil, fmt.Errorf("%w: no mappings", ErrMalformed)
	}

	out := make([]MappingResult, 0, len(wire))
	for i, w := range wire {
		m, err := w.result()
		if err != nil {
			return nil, fmt.Errorf("%w: mapping %d: %w", ErrMalformed, i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (w wireMapping) result() (MappingResult, error) {
	collection := strings.ToLower(strings.TrimSpace(w.Collection))
	if collection == "" {
		return MappingResult{}, fmt.Errorf("target_collection is empty")
	}
	if !IsCollection(collection) {
		return MappingResult{}, fmt.Errorf("unknown collection %q", w.Collection)
	}

	fields := make(map[string]string, len(w.Fields))
	for src, dst := range w.Fields {
		if name, ok := dst.(string); ok && src != "" && name != "" {
			fields[src] = name
		}
	}

	return MappingResult{
		Collection:          collection,
		Fields:              fields,
		Confidence:          w.Confidence.percent(),
		ClarifyingQuestions: nonEmpty(w.ClarifyingQuestions),
		Recommendations:     nonEmpty(w.Recommendations),
		Source:              SourceInferred,
	}, nil
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
