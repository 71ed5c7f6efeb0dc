package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/repository"
)

// System defines the public contract for categorized record operations.
type System interface {
	Handler() *Handler

	// Insert writes records on the caller's transaction.
	Insert(ctx context.Context, tx repository.Preparer, recs []HealthRecord) error

	ListByUpload(
		ctx context.Context,
		uploadID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[HealthRecord], error)

	// Collections counts an upload's records per target collection.
	Collections(ctx context.Context, uploadID uuid.UUID) (map[string]int, error)
}
