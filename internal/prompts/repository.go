package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/query"
	"github.com/hodie-labs/ingest/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description", "Instructions")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	prompts, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(prompts, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO prompts(id, name, category, instructions, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, $6)`

	id := uuid.New()
	args := []any{id, cmd.Name, cmd.Category, cmd.Instructions, cmd.Description, time.Now().UTC()}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return writeAndFind(ctx, tx, id, q, args...)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt created", "id", p.ID, "name", p.Name, "category", p.Category)
	return &p, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	q := `
		UPDATE prompts
		SET name = $1, category = $2, instructions = $3, description = $4, updated_at = $5
		WHERE id = $6`

	args := []any{cmd.Name, cmd.Category, cmd.Instructions, cmd.Description, time.Now().UTC(), id}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return writeAndFind(ctx, tx, id, q, args...)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt updated", "id", p.ID, "name", p.Name)
	return &p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM prompts WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

func (r *repo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		now := time.Now().UTC()
		if active {
			if err := clearActive(ctx, tx, id, now); err != nil {
				return Prompt{}, err
			}
		}
		return writeAndFind(ctx, tx, id,
			"UPDATE prompts SET active = $1, updated_at = $2 WHERE id = $3",
			active, now, id,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt active state changed",
		"id", p.ID,
		"category", p.Category,
		"active", p.Active,
	)
	return &p, nil
}

func (r *repo) Instructions(ctx context.Context, category string) (string, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return "", err
	}

	var text string
	err = r.db.QueryRowContext(ctx,
		"SELECT instructions FROM prompts WHERE category = $1 AND active = true",
		c,
	).Scan(&text)

	if errors.Is(err, sql.ErrNoRows) {
		return DefaultInstructions(category), nil
	}
	if err != nil {
		return "", fmt.Errorf("query active prompt: %w", err)
	}
	return text, nil
}

// writeAndFind runs a single-row write and reads the row back through the
// projection, so both drivers return column types from the table schema.
func writeAndFind(ctx context.Context, tx *sql.Tx, id uuid.UUID, q string, args ...any) (Prompt, error) {
	if err := repository.ExecExpectOne(ctx, tx, q, args...); err != nil {
		return Prompt{}, err
	}
	findQ, findArgs := query.NewBuilder(projection).BuildSingle("ID", id)
	return repository.QueryOne(ctx, tx, findQ, findArgs, scanPrompt)
}

// clearActive deactivates whichever prompt is active for the category of id.
// A missing id surfaces as sql.ErrNoRows.
func clearActive(ctx context.Context, tx *sql.Tx, id uuid.UUID, now time.Time) error {
	var category Category
	err := tx.QueryRowContext(ctx, "SELECT category FROM prompts WHERE id = $1", id).Scan(&category)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE prompts SET active = false, updated_at = $1 WHERE category = $2 AND active = true AND id <> $3",
		now, category, id,
	); err != nil {
		return fmt.Errorf("deactivate current: %w", err)
	}
	return nil
}
