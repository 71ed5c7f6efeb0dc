package uploads

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/hodie-labs/ingest/pkg/query"
	"github.com/hodie-labs/ingest/pkg/repository"
)

var projection = query.
	NewProjectionMap("uploads", "u").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("file_name", "FileName").
	Project("content_digest", "ContentDigest").
	Project("byte_size", "ByteSize").
	Project("content_type", "ContentType").
	Project("format", "Format").
	Project("category", "Category").
	Project("storage_key", "StorageKey").
	Project("status", "Status").
	Project("record_count", "RecordCount").
	Project("confidence", "Confidence").
	Project("diagnostics", "Diagnostics").
	Project("mappings", "Mappings").
	Project("error_message", "ErrorMessage").
	Project("received_at", "ReceivedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "ReceivedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for upload queries.
// Nil fields are ignored. TenantID, Status, Category, Format, and
// ContentDigest use exact matching. FileName uses case-insensitive
// contains matching.
type Filters struct {
	TenantID      *string `json:"tenant_id,omitempty"`
	Status        *string `json:"status,omitempty"`
	Category      *string `json:"category,omitempty"`
	Format        *string `json:"format,omitempty"`
	FileName      *string `json:"file_name,omitempty"`
	ContentDigest *string `json:"content_digest,omitempty"`

	// ReceivedAfter is inclusive and ReceivedBefore exclusive.
	ReceivedAfter  *time.Time `json:"received_after,omitempty"`
	ReceivedBefore *time.Time `json:"received_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("TenantID", f.TenantID).
		WhereEquals("Status", f.Status).
		WhereEquals("Category", f.Category).
		WhereEquals("Format", f.Format).
		WhereContains("FileName", f.FileName).
		WhereEquals("ContentDigest", f.ContentDigest).
		WhereCompare("ReceivedAt", query.GreaterEqual, utc(f.ReceivedAfter)).
		WhereCompare("ReceivedAt", query.Less, utc(f.ReceivedBefore))
}

// utc normalizes a bound to the zone timestamps are written in.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("tenant_id"); v != "" {
		f.TenantID = &v
	}
	if v := values.Get("status"); v != "" {
		f.Status = &v
	}
	if v := values.Get("category"); v != "" {
		f.Category = &v
	}
	if v := values.Get("format"); v != "" {
		f.Format = &v
	}
	if v := values.Get("file_name"); v != "" {
		f.FileName = &v
	}
	if v := values.Get("content_digest"); v != "" {
		f.ContentDigest = &v
	}
	if v, err := time.Parse(time.RFC3339, values.Get("received_after")); err == nil {
		f.ReceivedAfter = &v
	}
	if v, err := time.Parse(time.RFC3339, values.Get("received_before")); err == nil {
		f.ReceivedBefore = &v
	}

	return f
}

func scanUpload(s repository.Scanner) (Upload, error) {
	var (
		u           Upload
		diagnostics []byte
		mappings    []byte
	)
	err := s.Scan(
		&u.ID,
		&u.TenantID,
		&u.FileName,
		&u.ContentDigest,
		&u.ByteSize,
		&u.ContentType,
		&u.Format,
		&u.Category,
		&u.StorageKey,
		&u.Status,
		&u.RecordCount,
		&u.Confidence,
		&diagnostics,
		&mappings,
		&u.ErrorMessage,
		&u.ReceivedAt,
		&u.UpdatedAt,
	)
	u.Diagnostics = json.RawMessage(diagnostics)
	u.Mappings = json.RawMessage(mappings)
	u.ReceivedAt = u.ReceivedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, err
}
