// Package records stores the categorized rows an upload produces, routed
// to target collections by the upload's mapping results.
package records

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/internal/interpreter"
	"github.com/hodie-labs/ingest/internal/parsers"
)

// HealthRecord is one normalized row in a target collection.
type HealthRecord struct {
	ID         uuid.UUID       `json:"id"`
	UploadID   uuid.UUID       `json:"upload_id"`
	TenantID   string          `json:"tenant_id"`
	Collection string          `json:"collection"`
	Category   string          `json:"category"`
	RowIndex   int             `json:"row_index"`
	Fields     json.RawMessage `json:"fields"`
	Confidence int             `json:"confidence"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Source identifies the upload the rows came from.
type Source struct {
	UploadID uuid.UUID
	TenantID string
	Category string
	At       time.Time
}

// Project routes each parsed row through the mappings. With one mapping
// every row lands in its collection. With several, a row lands in every
// collection whose field assignment names one of its keys, and rows no
// mapping names land in the most confident one. Keys a mapping does not
// name keep their source name.
func Project(src Source, rows []parsers.Row, mappings []interpreter.MappingResult) ([]HealthRecord, error) {
	if len(mappings) == 0 {
		return nil, nil
	}

	primary := 0
	for i, m := range mappings {
		if m.Confidence > mappings[primary].Confidence {
			primary = i
		}
	}

	out := make([]HealthRecord, 0, len(rows))
	for i, row := range rows {
		targets := matching(row, mappings)
		if len(targets) == 0 {
			targets = []int{primary}
		}

		for _, t := range targets {
			m := mappings[t]
			fields, err := json.Marshal(rename(row, m.Fields))
			if err != nil {
				return nil, err
			}
			out = append(out, HealthRecord{
				ID:         uuid.New(),
				UploadID:   src.UploadID,
				TenantID:   src.TenantID,
				Collection: m.Collection,
				Category:   src.Category,
				RowIndex:   i,
				Fields:     fields,
				Confidence: m.Confidence,
				CreatedAt:  src.At.UTC(),
			})
		}
	}
	return out, nil
}

func matching(row parsers.Row, mappings []interpreter.MappingResult) []int {
	if len(mappings) == 1 {
		return []int{0}
	}
	var idx []int
	for i, m := range mappings {
		for _, f := range row {
			if _, ok := m.Fields[f.Key]; ok {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

func rename(row parsers.Row, fields map[string]string) parsers.Row {
	out := make(parsers.Row, 0, len(row))
	for _, f := range row {
		key := f.Key
		if target, ok := fields[key]; ok && target != "" {
			key = target
		}
		out.Set(key, f.Value)
	}
	return out
}
