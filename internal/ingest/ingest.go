// Package ingest drives an upload through admission, duplicate detection,
// parsing, mapping, and persistence.
//
// Stages run strictly in order and a rejection ends the submission before
// any later stage does work. Once a submission holds quota or a duplicate
// reservation, every failure path either records the attempt as failed or
// gives those resources back.
package ingest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/internal/interpreter"
	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/internal/quota"
)

// Pipeline stages, in order. StageStoring runs beside parsing and mapping.
const (
	StageAdmitting     = "admitting"
	StageHashing       = "hashing"
	StageDeduplicating = "deduplicating"
	StageRegistering   = "registering"
	StageStoring       = "storing"
	StageParsing       = "parsing"
	StageMapping       = "mapping"
	StagePersisting    = "persisting"
)

// Command is one upload submission.
type Command struct {
	TenantID    string
	FileName    string
	Category    string
	ContentType string
	Data        []byte
}

func (c *Command) normalize() error {
	c.TenantID = strings.TrimSpace(c.TenantID)
	c.FileName = strings.TrimSpace(c.FileName)

	if c.TenantID == "" {
		return &invalidError{"tenant id required"}
	}
	if c.FileName == "" {
		return &invalidError{"file name required"}
	}
	if len(c.Data) == 0 {
		return &invalidError{"file is empty"}
	}
	c.Category = parsers.LookupCategory(c.Category).Name
	if c.ContentType == "" {
		c.ContentType = "application/octet-stream"
	}
	return nil
}

type invalidError struct{ msg string }

func (e *invalidError) Error() string { return "invalid upload: " + e.msg }

func (e *invalidError) Unwrap() error { return ErrInvalidCommand }

// QuotaStatus reports the tenant's window after admission.
type QuotaStatus struct {
	Count     int `json:"count"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Accepted is the outcome of a successful submission.
type Accepted struct {
	UploadID    uuid.UUID                   `json:"upload_id"`
	TenantID    string                      `json:"tenant_id"`
	FileName    string                      `json:"file_name"`
	Category    string                      `json:"category"`
	Format      parsers.Format              `json:"format"`
	Digest      string                      `json:"content_digest"`
	ByteSize    int64                       `json:"byte_size"`
	RecordCount int                         `json:"record_count"`
	Confidence  int                         `json:"confidence"`
	Mappings    []interpreter.MappingResult `json:"mappings"`
	Diagnostics []parsers.Diagnostic        `json:"diagnostics"`
	Quota       QuotaStatus                 `json:"quota"`
	ReceivedAt  time.Time                   `json:"received_at"`
}

func quotaStatus(a quota.Admission) QuotaStatus {
	return QuotaStatus{Count: a.Count, Limit: a.Limit, Remaining: a.Remaining()}
}
