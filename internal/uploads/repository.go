package uploads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/query"
	"github.com/hodie-labs/ingest/pkg/repository"
	"github.com/hodie-labs/ingest/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an upload repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "uploads"),
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
) (*pagination.PageResult[Upload], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "FileName", "Category", "Format")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanUpload)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Upload, error) {
	u, err := find(ctx, r.db, id)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &u, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Upload, error) {
	q := `
		INSERT INTO uploads(id, tenant_id, file_name, content_digest, byte_size, content_type,
			category, storage_key, status, received_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	args := []any{
		cmd.ID,
		cmd.TenantID,
		cmd.FileName,
		cmd.ContentDigest,
		cmd.ByteSize,
		cmd.ContentType,
		cmd.Category,
		cmd.StorageKey,
		StatusProcessing,
		cmd.ReceivedAt.UTC(),
	}

	u, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Upload, error) {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return Upload{}, err
		}
		return find(ctx, tx, cmd.ID)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("upload created", "id", u.ID, "tenant_id", u.TenantID, "file_name", u.FileName)
	return &u, nil
}

func (r *repo) Complete(ctx context.Context, tx repository.Executor, id uuid.UUID, c Completion) error {
	diagnostics, err := marshalJSON(c.Diagnostics, "[]")
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	mappings, err := marshalJSON(c.Mappings, "[]")
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}

	q := `
		UPDATE uploads
		SET status = $1, format = $2, record_count = $3, confidence = $4,
			diagnostics = $5, mappings = $6, error_message = NULL, updated_at = $7
		WHERE id = $8 AND status = $9`

	err = repository.ExecExpectOne(ctx, tx, q,
		StatusCompleted, c.Format, c.RecordCount, c.Confidence,
		diagnostics, mappings, time.Now().UTC(),
		id, StatusProcessing,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("complete upload %s: %w", id, ErrNotProcessing)
	}
	if err != nil {
		return fmt.Errorf("complete upload %s: %w", id, err)
	}
	return nil
}

func (r *repo) Fail(ctx context.Context, id uuid.UUID, f Failure) error {
	diagnostics, err := marshalJSON(f.Diagnostics, "[]")
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}

	q := `
		UPDATE uploads
		SET status = $1, format = $2, confidence = $3, diagnostics = $4,
			error_message = $5, updated_at = $6
		WHERE id = $7 AND status = $8`

	err = repository.ExecExpectOne(ctx, r.db, q,
		StatusFailed, f.Format, f.Confidence, diagnostics,
		f.Reason, time.Now().UTC(),
		id, StatusProcessing,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("fail upload %s: %w", id, ErrNotProcessing)
	}
	if err != nil {
		return fmt.Errorf("fail upload %s: %w", id, err)
	}

	r.logger.Info("upload failed", "id", id, "reason", f.Reason)
	return nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	u, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Upload, error) {
		u, err := find(ctx, tx, id)
		if err != nil {
			return Upload{}, err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM upload_digests WHERE tenant_id = $1 AND content_digest = $2 AND upload_id = $3",
			u.TenantID, u.ContentDigest, u.ID,
		); err != nil {
			return Upload{}, fmt.Errorf("release digest: %w", err)
		}

		if err := repository.ExecExpectOne(ctx, tx, "DELETE FROM uploads WHERE id = $1", id); err != nil {
			return Upload{}, err
		}
		return u, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if r.storage != nil {
		if delErr := r.storage.Delete(ctx, u.StorageKey); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			r.logger.Warn(
				"blob delete failed after DB delete",
				"key", u.StorageKey,
				"error", delErr,
			)
		}
	}

	r.logger.Info("upload deleted", "id", id, "tenant_id", u.TenantID)
	return nil
}

func find(ctx context.Context, q repository.Querier, id uuid.UUID) (Upload, error) {
	stmt, args := query.NewBuilder(projection).BuildSingle("ID", id)
	return repository.QueryOne(ctx, q, stmt, args, scanUpload)
}

func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
