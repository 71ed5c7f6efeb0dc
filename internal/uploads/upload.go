// Package uploads tracks every admitted upload attempt from reservation to
// its final completed or failed state, and owns the raw file blob.
package uploads

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an upload.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Upload is the durable record of one upload attempt.
type Upload struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"tenant_id"`
	FileName      string          `json:"file_name"`
	ContentDigest string          `json:"content_digest"`
	ByteSize      int64           `json:"byte_size"`
	ContentType   string          `json:"content_type"`
	Format        string          `json:"format"`
	Category      string          `json:"category"`
	StorageKey    string          `json:"storage_key"`
	Status        Status          `json:"status"`
	RecordCount   int             `json:"record_count"`
	Confidence    int             `json:"confidence"`
	Diagnostics   json.RawMessage `json:"diagnostics"`
	Mappings      json.RawMessage `json:"mappings"`
	ErrorMessage  *string         `json:"error_message"`
	ReceivedAt    time.Time       `json:"received_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateCommand registers a new upload in the processing state.
type CreateCommand struct {
	ID            uuid.UUID
	TenantID      string
	FileName      string
	ContentDigest string
	ByteSize      int64
	ContentType   string
	Category      string
	StorageKey    string
	ReceivedAt    time.Time
}

// Completion is what a successful pipeline run records on the upload.
// Diagnostics and Mappings are marshaled to JSON as given.
type Completion struct {
	Format      string
	RecordCount int
	Confidence  int
	Diagnostics any
	Mappings    any
}

// Failure is what a failed pipeline run records on the upload.
type Failure struct {
	Format      string
	Confidence  int
	Diagnostics any
	Reason      string
}
