package records

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

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

// New creates a record repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "records"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

const insertSQL = `
	INSERT INTO health_records(id, upload_id, tenant_id, collection, category, row_index, fields, confidence, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *repo) Insert(ctx context.Context, tx repository.Preparer, recs []HealthRecord) error {
	argSets := make([][]any, len(recs))
	for i, h := range recs {
		argSets[i] = []any{
			h.ID, h.UploadID, h.TenantID, h.Collection, h.Category,
			h.RowIndex, string(h.Fields), h.Confidence, h.CreatedAt.UTC(),
		}
	}

	if i, err := repository.ExecEach(ctx, tx, insertSQL, argSets); err != nil {
		if i < len(recs) {
			return fmt.Errorf("insert record %d: %w", recs[i].RowIndex, repository.MapError(err, ErrNotFound, ErrDuplicate))
		}
		return fmt.Errorf("insert records: %w", err)
	}
	return nil
}

func (r *repo) ListByUpload(
	ctx context.Context,
	uploadID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[HealthRecord], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereEquals("UploadID", uploadID)

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

type collectionCount struct {
	collection string
	count      int
}

func (r *repo) Collections(ctx context.Context, uploadID uuid.UUID) (map[string]int, error) {
	counts, err := repository.QueryMany(ctx, r.db,
		"SELECT collection, COUNT(*) FROM health_records WHERE upload_id = $1 GROUP BY collection",
		[]any{uploadID},
		func(s repository.Scanner) (collectionCount, error) {
			var c collectionCount
			err := s.Scan(&c.collection, &c.count)
			return c, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("count collections: %w", err)
	}

	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.collection] = c.count
	}
	return out, nil
}
