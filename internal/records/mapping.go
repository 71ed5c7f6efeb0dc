package records

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/hodie-labs/ingest/pkg/query"
	"github.com/hodie-labs/ingest/pkg/repository"
)

var projection = query.
	NewProjectionMap("health_records", "h").
	Project("id", "ID").
	Project("upload_id", "UploadID").
	Project("tenant_id", "TenantID").
	Project("collection", "Collection").
	Project("category", "Category").
	Project("row_index", "RowIndex").
	Project("fields", "Fields").
	Project("confidence", "Confidence").
	Project("created_at", "CreatedAt")

var defaultSort = []query.SortField{
	{Field: "Collection"},
	{Field: "RowIndex"},
}

// Filters narrows an upload's records. Collection uses exact matching;
// MinConfidence keeps records scored at or above it.
type Filters struct {
	Collection    *string `json:"collection,omitempty"`
	MinConfidence *int    `json:"min_confidence,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Collection", f.Collection).
		WhereCompare("Confidence", query.GreaterEqual, f.MinConfidence)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if c := values.Get("collection"); c != "" {
		f.Collection = &c
	}
	if v, err := strconv.Atoi(values.Get("min_confidence")); err == nil {
		f.MinConfidence = &v
	}
	return f
}

func scanRecord(s repository.Scanner) (HealthRecord, error) {
	var (
		h      HealthRecord
		fields []byte
	)
	err := s.Scan(
		&h.ID,
		&h.UploadID,
		&h.TenantID,
		&h.Collection,
		&h.Category,
		&h.RowIndex,
		&fields,
		&h.Confidence,
		&h.CreatedAt,
	)
	h.Fields = json.RawMessage(fields)
	h.CreatedAt = h.CreatedAt.UTC()
	return h, err
}
