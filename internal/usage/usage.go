// Package usage delivers upload usage events to the billing collaborator.
//
// Delivery is fire-and-forget. Publishing never blocks the upload that
// produced the event and a failed delivery is logged, not returned.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event records that one upload completed.
type Event struct {
	TenantID    string    `json:"tenant_id"`
	UploadID    uuid.UUID `json:"upload_id"`
	Category    string    `json:"category"`
	ByteSize    int64     `json:"byte_size"`
	RecordCount int       `json:"record_count"`
	At          time.Time `json:"at"`
}

// Emitter delivers events to a sink.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}
