package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/pagination"
)

// System stores instruction overrides and resolves the instructions the
// remote interpreter sends for a category. At most one prompt per category
// is active at a time.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error)
	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetActive toggles the override. Activating a prompt deactivates the
	// one currently active for its category in the same transaction.
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Prompt, error)

	// Instructions falls back to DefaultInstructions when no override is active.
	Instructions(ctx context.Context, category string) (string, error)
}
