package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hodie-labs/ingest/pkg/repository"
)

// Ledger tracks upload counts per tenant per day.
type Ledger interface {
	Handler() *Handler

	// TryAdmit atomically increments the tenant's count for the day of now
	// when it is below the limit. A rejected admission is not an error.
	TryAdmit(ctx context.Context, tenantID string, now time.Time) (Admission, error)
	// Release undoes a granted admission. It is compensation for work that
	// never produced a record and is not a user-facing operation.
	Release(ctx context.Context, a Admission) error
	// Usage reports the window for the day of now without changing it.
	Usage(ctx context.Context, tenantID string, now time.Time) (Window, error)
	// Limit returns the configured daily limit.
	Limit() int
	// Location returns the time zone that bounds each day.
	Location() *time.Location
}

type ledger struct {
	db       *sql.DB
	limit    int
	location *time.Location
	logger   *slog.Logger
}

// New creates a Ledger over the quota_windows table.
func New(db *sql.DB, limit int, location *time.Location, logger *slog.Logger) Ledger {
	if location == nil {
		location = time.UTC
	}
	return &ledger{
		db:       db,
		limit:    limit,
		location: location,
		logger:   logger.With("system", "quota"),
	}
}

func (l *ledger) Handler() *Handler {
	return NewHandler(l, l.logger)
}

func (l *ledger) Limit() int {
	return l.limit
}

func (l *ledger) Location() *time.Location {
	return l.location
}

const admitSQL = `
	INSERT INTO quota_windows (tenant_id, day_key, upload_count, upload_limit, updated_at)
	VALUES ($1, $2, 1, $3, $4)
	ON CONFLICT (tenant_id, day_key) DO UPDATE
	SET upload_count = quota_windows.upload_count + 1,
		upload_limit = excluded.upload_limit,
		updated_at = excluded.updated_at
	WHERE quota_windows.upload_count < excluded.upload_limit
	RETURNING upload_count`

func (l *ledger) TryAdmit(ctx context.Context, tenantID string, now time.Time) (Admission, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Admission{}, ErrInvalidTenant
	}

	a := Admission{
		TenantID: tenantID,
		Day:      DayKey(now, l.location),
		Limit:    l.limit,
	}

	err := l.db.QueryRowContext(ctx, admitSQL, a.TenantID, a.Day, l.limit, now.UTC()).Scan(&a.Count)
	switch {
	case err == nil:
		a.Admitted = true
		l.logger.InfoContext(ctx, "upload admitted",
			"tenant_id", a.TenantID, "day", a.Day, "count", a.Count, "limit", a.Limit)
		return a, nil
	case errors.Is(err, sql.ErrNoRows):
		// the guarded update matched nothing: the window is full
	default:
		return Admission{}, fmt.Errorf("admit upload: %w", err)
	}

	count, err := l.count(ctx, a.TenantID, a.Day)
	if err != nil {
		return Admission{}, err
	}
	a.Count = min(count, l.limit)

	l.logger.InfoContext(ctx, "upload rejected by quota",
		"tenant_id", a.TenantID, "day", a.Day, "count", a.Count, "limit", a.Limit)
	return a, nil
}

func (l *ledger) Release(ctx context.Context, a Admission) error {
	if !a.Admitted {
		return ErrNotAdmitted
	}

	_, err := l.db.ExecContext(ctx, `
		UPDATE quota_windows
		SET upload_count = upload_count - 1
		WHERE tenant_id = $1 AND day_key = $2 AND upload_count > 0`,
		a.TenantID, a.Day,
	)
	if err != nil {
		return fmt.Errorf("release admission: %w", err)
	}

	l.logger.InfoContext(ctx, "admission released", "tenant_id", a.TenantID, "day", a.Day)
	return nil
}

func (l *ledger) Usage(ctx context.Context, tenantID string, now time.Time) (Window, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Window{}, ErrInvalidTenant
	}

	day := DayKey(now, l.location)
	count, err := l.count(ctx, tenantID, day)
	if err != nil {
		return Window{}, err
	}
	count = min(count, l.limit)

	return Window{
		TenantID:  tenantID,
		Day:       day,
		Count:     count,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
		ResetsAt:  NextReset(now, l.location),
	}, nil
}

func (l *ledger) count(ctx context.Context, tenantID, day string) (int, error) {
	count, err := repository.QueryOne(ctx, l.db,
		"SELECT upload_count FROM quota_windows WHERE tenant_id = $1 AND day_key = $2",
		[]any{tenantID, day},
		func(s repository.Scanner) (int, error) {
			var n int
			err := s.Scan(&n)
			return n, err
		},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota window: %w", err)
	}
	return count, nil
}
