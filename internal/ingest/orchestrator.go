package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hodie-labs/ingest/internal/dedup"
	"github.com/hodie-labs/ingest/internal/interpreter"
	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/internal/quota"
	"github.com/hodie-labs/ingest/internal/records"
	"github.com/hodie-labs/ingest/internal/uploads"
	"github.com/hodie-labs/ingest/internal/usage"
	"github.com/hodie-labs/ingest/pkg/digest"
	"github.com/hodie-labs/ingest/pkg/repository"
	"github.com/hodie-labs/ingest/pkg/storage"
)

// Mapper produces mapping results for a parsed record. It must always
// return at least one result.
type Mapper interface {
	Interpret(ctx context.Context, req interpreter.Request) []interpreter.MappingResult
}

// Publisher accepts usage events without blocking.
type Publisher interface {
	Publish(e usage.Event)
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	DB          *sql.DB
	Quota       quota.Ledger
	Dedup       dedup.Index
	Uploads     uploads.System
	Records     records.System
	Storage     storage.System
	Parsers     *parsers.Registry
	Interpreter Mapper
	Usage       Publisher
	Metrics     *Metrics
	Logger      *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs upload submissions.
type Orchestrator struct {
	db          *sql.DB
	quota       quota.Ledger
	dedup       dedup.Index
	uploads     uploads.System
	records     records.System
	storage     storage.System
	parsers     *parsers.Registry
	interpreter Mapper
	usage       Publisher
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Orchestrator. A nil Metrics gets unregistered collectors.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		db:          deps.DB,
		quota:       deps.Quota,
		dedup:       deps.Dedup,
		uploads:     deps.Uploads,
		records:     deps.Records,
		storage:     deps.Storage,
		parsers:     deps.Parsers,
		interpreter: deps.Interpreter,
		usage:       deps.Usage,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("system", "ingest"),
		now:         deps.Now,
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Handler returns the HTTP handler for submissions.
func (o *Orchestrator) Handler(maxUploadSize int64) *Handler {
	return NewHandler(o, o.logger, maxUploadSize)
}

// submission tracks what one Submit call holds so failure paths release
// exactly that.
type submission struct {
	cmd       Command
	id        uuid.UUID
	at        time.Time
	digest    digest.Digest
	key       string
	admission quota.Admission
	reserved  bool
	created   bool
	stored    bool
}

// Submit runs cmd through the pipeline. A nil error means the upload
// completed and its records are committed. Rejections are returned as
// the typed errors in this package.
func (o *Orchestrator) Submit(ctx context.Context, cmd Command) (*Accepted, error) {
	if err := cmd.normalize(); err != nil {
		o.metrics.outcome(OutcomeInvalid)
		return nil, err
	}

	s := &submission{
		cmd: cmd,
		id:  uuid.New(),
		at:  o.now().UTC(),
	}
	s.key = storage.Key(cmd.TenantID, s.id.String(), cmd.FileName)

	acc, err := o.run(ctx, s)
	switch {
	case err == nil:
		o.metrics.outcome(OutcomeAccepted)
	case errors.Is(err, ErrQuotaExceeded):
		o.metrics.outcome(OutcomeQuotaExceeded)
	case errors.Is(err, ErrDuplicateContent):
		o.metrics.outcome(OutcomeDuplicate)
	case errors.Is(err, ErrUnsupportedFormat):
		o.metrics.outcome(OutcomeUnsupported)
	case errors.Is(err, ErrParseFailed):
		o.metrics.outcome(OutcomeParseFailed)
	default:
		o.metrics.outcome(OutcomeFailed)
	}
	return acc, err
}

func (o *Orchestrator) run(ctx context.Context, s *submission) (*Accepted, error) {
	start := time.Now()
	adm, err := o.quota.TryAdmit(ctx, s.cmd.TenantID, s.at)
	o.metrics.stage(StageAdmitting, start)
	if err != nil {
		return nil, &PersistenceError{Stage: StageAdmitting, Err: err}
	}
	if !adm.Admitted {
		return nil, &QuotaExceededError{
			TenantID:  adm.TenantID,
			Count:     adm.Count,
			Limit:     adm.Limit,
			Remaining: adm.Remaining(),
			ResetsAt:  quota.NextReset(s.at, o.quota.Location()),
		}
	}
	s.admission = adm

	start = time.Now()
	s.digest = digest.Sum(s.cmd.Data)
	o.metrics.stage(StageHashing, start)

	start = time.Now()
	res, err := o.dedup.Reserve(ctx, s.cmd.TenantID, s.digest, s.id, s.at)
	o.metrics.stage(StageDeduplicating, start)
	if err != nil {
		return nil, o.compensate(ctx, s, StageDeduplicating, err)
	}
	if !res.Reserved {
		o.releaseQuota(ctx, s)
		return nil, &DuplicateContentError{
			OriginalUploadID:   res.OriginalUploadID,
			OriginalReceivedAt: res.OriginalReceivedAt,
		}
	}
	s.reserved = true

	if err := ctx.Err(); err != nil {
		return nil, o.compensate(ctx, s, StageDeduplicating, err)
	}

	start = time.Now()
	_, err = o.uploads.Create(ctx, uploads.CreateCommand{
		ID:            s.id,
		TenantID:      s.cmd.TenantID,
		FileName:      s.cmd.FileName,
		ContentDigest: s.digest.String(),
		ByteSize:      int64(len(s.cmd.Data)),
		ContentType:   s.cmd.ContentType,
		Category:      s.cmd.Category,
		StorageKey:    s.key,
		ReceivedAt:    s.at,
	})
	o.metrics.stage(StageRegistering, start)
	if err != nil {
		return nil, o.compensate(ctx, s, StageRegistering, err)
	}
	s.created = true

	rec, mappings, parseErr, err := o.process(ctx, s)
	if err != nil {
		return nil, o.compensate(ctx, s, StageStoring, err)
	}
	if parseErr != nil {
		return nil, o.reject(ctx, s, rec, parseErr)
	}
	if len(rec.Rows) == 0 {
		return nil, o.reject(ctx, s, rec, &ParseFailedError{
			UploadID:    s.id,
			Format:      rec.Format,
			Diagnostics: rec.Diagnostics,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, o.compensate(ctx, s, StageMapping, err)
	}

	start = time.Now()
	written, err := o.persist(ctx, s, rec, mappings)
	o.metrics.stage(StagePersisting, start)
	if err != nil {
		return nil, o.compensate(ctx, s, StagePersisting, err)
	}
	o.metrics.written(written)

	count := len(rec.Rows)

	o.logger.Info("upload completed",
		"upload_id", s.id,
		"tenant_id", s.cmd.TenantID,
		"format", rec.Format,
		"record_count", count,
		"records_written", written,
		"confidence", rec.Confidence,
		"mappings", len(mappings),
	)

	if o.usage != nil {
		o.usage.Publish(usage.Event{
			TenantID:    s.cmd.TenantID,
			UploadID:    s.id,
			Category:    s.cmd.Category,
			ByteSize:    int64(len(s.cmd.Data)),
			RecordCount: count,
			At:          s.at,
		})
	}

	return &Accepted{
		UploadID:    s.id,
		TenantID:    s.cmd.TenantID,
		FileName:    s.cmd.FileName,
		Category:    s.cmd.Category,
		Format:      rec.Format,
		Digest:      s.digest.String(),
		ByteSize:    int64(len(s.cmd.Data)),
		RecordCount: count,
		Confidence:  rec.Confidence,
		Mappings:    mappings,
		Diagnostics: rec.Diagnostics,
		Quota:       quotaStatus(s.admission),
		ReceivedAt:  s.at,
	}, nil
}

// process stores the raw blob while parsing and mapping run. A format no
// parser handles is returned as parseErr; err is a storage failure.
func (o *Orchestrator) process(ctx context.Context, s *submission) (
	rec parsers.Record,
	mappings []interpreter.MappingResult,
	parseErr error,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
	start := time.Now()
		defer o.metrics.stage(StageStoring, start)

		if err := o.storage.Upload(gctx, s.key, bytes.NewReader(s.cmd.Data), s.cmd.ContentType); err != nil {
			return err
		}
		s.stored = true
		return nil
	})

	g.Go(func() error {
	start := time.Now()
		r, perr := o.parsers.Parse(gctx, s.cmd.FileName, s.cmd.Data, s.cmd.Category)
		o.metrics.stage(StageParsing, start)
		if perr != nil {
			parseErr = &UnsupportedFormatError{
				UploadID:  s.id,
				FileName:  s.cmd.FileName,
				Extension: strings.ToLower(filepath.Ext(s.cmd.FileName)),
				Err:       perr,
			}
			return nil
		}
		rec = r
		if len(rec.Rows) == 0 {
			return nil
		}

		start = time.Now()
		mappings = o.interpreter.Interpret(gctx, interpreter.Request{
			TenantID: s.cmd.TenantID,
			FileName: s.cmd.FileName,
			Category: s.cmd.Category,
			Record:   rec,
		})
		o.metrics.stage(StageMapping, start)
		return nil
	})

	err = g.Wait()
	return rec, mappings, parseErr, err
}

// persist commits the categorized records and the completed status together
// and returns how many records were written. A row routed to several
// collections is written once per collection but counted once on the upload.
func (o *Orchestrator) persist(
	ctx context.Context,
	s *submission,
	rec parsers.Record,
	mappings []interpreter.MappingResult,
) (int, error) {
	recs, err := records.Project(records.Source{
		UploadID: s.id,
		TenantID: s.cmd.TenantID,
		Category: s.cmd.Category,
		At:       s.at,
	}, rec.Rows, mappings)
	if err != nil {
		return 0, fmt.Errorf("project records: %w", err)
	}

	_, err = repository.WithTx(ctx, o.db, func(tx *sql.Tx) (struct{}, error) {
		if err := o.records.Insert(ctx, tx, recs); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, o.uploads.Complete(ctx, tx, s.id, uploads.Completion{
			Format:      rec.Format.String(),
			RecordCount: len(rec.Rows),
			Confidence:  rec.Confidence,
			Diagnostics: rec.Diagnostics,
			Mappings:    mappings,
		})
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// reject records a terminal parse outcome. The attempt keeps its quota
// because a failed upload record now exists for it; the reservation is
// released so the same content may be submitted again.
func (o *Orchestrator) reject(ctx context.Context, s *submission, rec parsers.Record, cause error) error {
	ctx = context.WithoutCancel(ctx)

	if err := o.uploads.Fail(ctx, s.id, uploads.Failure{
		Format:      rec.Format.String(),
		Confidence:  rec.Confidence,
		Diagnostics: rec.Diagnostics,
		Reason:      cause.Error(),
	}); err != nil {
		o.logger.Warn("mark upload failed", "upload_id", s.id, "error", err)
	}
	o.releaseReservation(ctx, s)

	o.logger.Info("upload rejected",
		"upload_id", s.id,
		"tenant_id", s.cmd.TenantID,
		"format", rec.Format,
		"error", cause,
	)
	return cause
}

// compensate undoes everything s holds after a failure past admission.
// It runs detached from ctx so a canceled caller still releases quota.
func (o *Orchestrator) compensate(ctx context.Context, s *submission, stage string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	if s.created {
		err := o.uploads.Fail(ctx, s.id, uploads.Failure{Reason: fmt.Sprintf("%s: %v", stage, cause)})
		if err != nil && !errors.Is(err, uploads.ErrNotProcessing) {
			o.logger.Warn("compensation: mark upload failed", "upload_id", s.id, "error", err)
		}
	}
	o.releaseReservation(ctx, s)
	o.releaseQuota(ctx, s)
	if s.stored {
		if err := o.storage.Delete(ctx, s.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("compensation: delete blob", "key", s.key, "error", err)
		}
	}

	o.logger.Warn("upload failed",
		"upload_id", s.id,
		"tenant_id", s.cmd.TenantID,
		"stage", stage,
		"error", cause,
	)
	return &PersistenceError{Stage: stage, Err: cause}
}

func (o *Orchestrator) releaseReservation(ctx context.Context, s *submission) {
	if !s.reserved {
		return
	}
	if err := o.dedup.Release(ctx, s.cmd.TenantID, s.digest, s.id); err != nil {
		o.logger.Warn("release reservation", "upload_id", s.id, "error", err)
		return
	}
	s.reserved = false
}

func (o *Orchestrator) releaseQuota(ctx context.Context, s *submission) {
	if !s.admission.Admitted {
		return
	}
	if err := o.quota.Release(context.WithoutCancel(ctx), s.admission); err != nil {
		o.logger.Warn("release quota", "tenant_id", s.cmd.TenantID, "error", err)
		return
	}
	s.admission.Admitted = false
}

