// Package dedup records which content each tenant has already uploaded.
//
// A reservation is a row keyed by (tenant_id, content_digest). Inserting it is
// a single conditional statement, so of any number of concurrent callers with
// the same key exactly one observes Reserved.
package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/digest"
	"github.com/hodie-labs/ingest/pkg/repository"
)

// reserveAttempts bounds retries when a conflicting reservation vanishes
// between the insert and the lookup.
const reserveAttempts = 3

// Reservation is the outcome of Reserve. When Reserved is false the
// Original fields identify the upload that already holds the content.
type Reservation struct {
	Reserved           bool      `json:"reserved"`
	OriginalUploadID   uuid.UUID `json:"original_upload_id,omitempty"`
	OriginalReceivedAt time.Time `json:"original_received_at,omitzero"`
}

// Index is the per-tenant content index.
type Index interface {
	// Reserve claims digest for uploadID unless the tenant already holds it.
	Reserve(ctx context.Context, tenantID string, d digest.Digest, uploadID uuid.UUID, at time.Time) (Reservation, error)
	// Release removes the reservation when it still belongs to uploadID.
	Release(ctx context.Context, tenantID string, d digest.Digest, uploadID uuid.UUID) error
	// Lookup returns the upload currently holding digest, or ErrNotFound.
	Lookup(ctx context.Context, tenantID string, d digest.Digest) (Reservation, error)
}

type index struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an Index over the upload_digests table.
func New(db *sql.DB, logger *slog.Logger) Index {
	return &index{
		db:     db,
		logger: logger.With("system", "dedup"),
	}
}

const reserveSQL = `
	INSERT INTO upload_digests (tenant_id, content_digest, upload_id, received_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (tenant_id, content_digest) DO NOTHING
	RETURNING upload_id`

func (x *index) Reserve(ctx context.Context, tenantID string, d digest.Digest, uploadID uuid.UUID, at time.Time) (Reservation, error) {
	if err := validate(tenantID, d); err != nil {
		return Reservation{}, err
	}

	for range reserveAttempts {
		var claimed string
		err := x.db.QueryRowContext(ctx, reserveSQL, tenantID, d.String(), uploadID.String(), at.UTC()).Scan(&claimed)
		switch {
		case err == nil:
			x.logger.InfoContext(ctx, "content reserved",
				"tenant_id", tenantID, "digest", d.Short(), "upload_id", uploadID)
			return Reservation{Reserved: true}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return Reservation{}, fmt.Errorf("reserve digest: %w", err)
		}

		existing, err := x.Lookup(ctx, tenantID, d)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Reservation{}, err
		}

		x.logger.InfoContext(ctx, "duplicate content",
			"tenant_id", tenantID, "digest", d.Short(), "original_upload_id", existing.OriginalUploadID)
		return existing, nil
	}

	return Reservation{}, fmt.Errorf("reserve digest: %w", ErrContended)
}

func (x *index) Release(ctx context.Context, tenantID string, d digest.Digest, uploadID uuid.UUID) error {
	if err := validate(tenantID, d); err != nil {
		return err
	}

	_, err := x.db.ExecContext(ctx, `
		DELETE FROM upload_digests
		WHERE tenant_id = $1 AND content_digest = $2 AND upload_id = $3`,
		tenantID, d.String(), uploadID.String(),
	)
	if err != nil {
		return fmt.Errorf("release digest: %w", err)
	}

	x.logger.InfoContext(ctx, "reservation released",
		"tenant_id", tenantID, "digest", d.Short(), "upload_id", uploadID)
	return nil
}

func (x *index) Lookup(ctx context.Context, tenantID string, d digest.Digest) (Reservation, error) {
	if err := validate(tenantID, d); err != nil {
		return Reservation{}, err
	}

	r, err := repository.QueryOne(ctx, x.db, `
		SELECT upload_id, received_at FROM upload_digests
		WHERE tenant_id = $1 AND content_digest = $2`,
		[]any{tenantID, d.String()},
		scanReservation,
	)
	if err != nil {
		return Reservation{}, repository.MapError(err, ErrNotFound, nil)
	}
	return r, nil
}

func scanReservation(s repository.Scanner) (Reservation, error) {
	var (
		id string
		r  Reservation
	)
	if err := s.Scan(&id, &r.OriginalReceivedAt); err != nil {
		return r, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return r, fmt.Errorf("parse upload id: %w", err)
	}
	r.OriginalUploadID = parsed
	r.OriginalReceivedAt = r.OriginalReceivedAt.UTC()
	return r, nil
}

func validate(tenantID string, d digest.Digest) error {
	if strings.TrimSpace(tenantID) == "" {
		return ErrInvalidTenant
	}
	if d == "" {
		return ErrInvalidDigest
	}
	return nil
}
