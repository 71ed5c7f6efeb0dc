package parsers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// passThroughCap bounds the confidence of objects no known shape explains.
const passThroughCap = 30

// Structured parses JSON or YAML documents. Known wearable and lab export
// layouts are extracted field by field; anything else is passed through.
type Structured struct {
	MaxRows int
}

func (Structured) Format() Format { return FormatStructured }

func (p Structured) Parse(ctx context.Context, data []byte, category string) Record {
	cat := LookupCategory(category)
	rec := Record{Format: FormatStructured, Category: cat.Name}

	doc, err := decodeDocument(decodeText(data))
	if err != nil {
		rec.diagnose(SeverityError, 0, "malformed document: "+err.Error())
		return rec
	}

	if m, ok := bestShape(ctx, doc, cat.Name); ok {
		p.fromShape(&rec, cat, m)
		return rec
	}

	p.passThrough(&rec, cat, doc)
	return rec
}

func (p Structured) fromShape(rec *Record, cat *Category, m shapeMatch) {
	if cat.Name == CategoryGeneral {
		rec.Category = m.shape.category
	}
	rec.Meta = map[string]any{"shape": m.shape.name}

	valid := 0
	for _, row := range m.rows {
		if p.MaxRows > 0 && len(rec.Rows) == p.MaxRows {
			rec.diagnose(SeverityWarning, 0, fmt.Sprintf("row limit %d reached; remaining entries ignored", p.MaxRows))
			break
		}
		rec.Rows = append(rec.Rows, row)
		if missing := missingFields(row, m.shape.required); len(missing) > 0 {
			rec.diagnose(SeverityWarning, len(rec.Rows),
				"missing required field(s): "+strings.Join(missing, ", "), missing...)
			continue
		}
		valid++
	}
	rec.Confidence = Confidence(valid, len(rec.Rows))
}

func (p Structured) passThrough(rec *Record, cat *Category, doc any) {
	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
		if nested, ok := singleList(v); ok {
			items = nested
		}
	default:
		rec.diagnose(SeverityWarning, 0, "document holds no objects")
		return
	}

	valid := 0
	for _, item := range items {
		if p.MaxRows > 0 && len(rec.Rows) == p.MaxRows {
			rec.diagnose(SeverityWarning, 0, fmt.Sprintf("row limit %d reached; remaining entries ignored", p.MaxRows))
			break
		}

		row := objectRow(cat, item)
		if len(row) == 0 {
			continue
		}
		rec.Rows = append(rec.Rows, row)
		if missing := missingFields(row, cat.RequiredFor(row.Keys())); len(missing) > 0 {
			rec.diagnose(SeverityWarning, len(rec.Rows),
				"missing required field(s): "+strings.Join(missing, ", "), missing...)
			continue
		}
		valid++
	}

	if len(rec.Rows) == 0 {
		rec.diagnose(SeverityWarning, 0, "document holds no objects")
		return
	}
	rec.diagnose(SeverityInfo, 0, fmt.Sprintf(
		"no known export shape matched; content passed through with confidence capped at %d", passThroughCap))
	rec.Confidence = min(Confidence(valid, len(rec.Rows)), passThroughCap)
}

// objectRow keys an object's fields through the category's synonyms.
// Keys are sorted because decoded objects carry no order.
func objectRow(cat *Category, item any) Row {
	obj, ok := item.(map[string]any)
	if !ok {
		if item == nil {
			return nil
		}
		return Row{{Key: "value", Value: item}}
	}

	names := slices.Sorted(maps.Keys(obj))
	keys := cat.KeyHeaders(names)
	row := make(Row, 0, len(names))
	for i, name := range names {
		if obj[name] == nil {
			continue
		}
		row = append(row, Field{Key: keys[i], Value: obj[name]})
	}
	return row
}

// singleList returns the list when obj wraps exactly one array of objects,
// as in {"data": [...]}.
func singleList(obj map[string]any) ([]any, bool) {
	var found []any
	for _, v := range obj {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		if _, isObj := list[0].(map[string]any); !isObj {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = list
	}
	return found, found != nil
}

func decodeDocument(text []byte) (any, error) {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	var jsonErr error
	if trimmed[0] == '{' || trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var doc any
		if jsonErr = dec.Decode(&doc); jsonErr == nil {
			return doc, nil
		}
	}

	var doc any
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		if jsonErr != nil {
			return nil, jsonErr
		}
		return nil, err
	}
	return normalizeYAML(doc), nil
}

// normalizeYAML converts map[any]any nodes into map[string]any so the
// document can be walked by JSONPath and encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeYAML(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = normalizeYAML(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = normalizeYAML(child)
		}
		return t
	default:
		return v
	}
}
