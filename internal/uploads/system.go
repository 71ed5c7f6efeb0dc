package uploads

import (
	"context"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/repository"
)

// System defines the public contract for upload domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Upload], error)

	Find(ctx context.Context, id uuid.UUID) (*Upload, error)
	Create(ctx context.Context, cmd CreateCommand) (*Upload, error)

	// Complete moves a processing upload to completed. It runs on the
	// caller's transaction so categorized rows and the status change
	// commit together.
	Complete(ctx context.Context, tx repository.Executor, id uuid.UUID, c Completion) error

	// Fail moves a processing upload to failed. An upload that already
	// left processing is not changed and ErrNotProcessing is returned.
	Fail(ctx context.Context, id uuid.UUID, f Failure) error

	// Delete removes the upload, its categorized rows, its duplicate
	// reservation, and its raw blob.
	Delete(ctx context.Context, id uuid.UUID) error
}
