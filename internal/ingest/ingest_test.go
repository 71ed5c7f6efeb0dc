package ingest_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodie-labs/ingest/internal/dedup"
	"github.com/hodie-labs/ingest/internal/ingest"
	"github.com/hodie-labs/ingest/internal/interpreter"
	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/internal/quota"
	"github.com/hodie-labs/ingest/internal/records"
	"github.com/hodie-labs/ingest/internal/testdb"
	"github.com/hodie-labs/ingest/internal/uploads"
	"github.com/hodie-labs/ingest/internal/usage"
	"github.com/hodie-labs/ingest/pkg/digest"
	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/repository"
	"github.com/hodie-labs/ingest/pkg/storage"
)

var at = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const labCSV = "test,value,unit\nglucose,95,mg/dL\nldl,110,mg/dL\nhdl,55,mg/dL\n"

type publisher struct {
	mu     sync.Mutex
	events []usage.Event
}

func (p *publisher) Publish(e usage.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *publisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type env struct {
	db      *sql.DB
	quota   quota.Ledger
	dedup   dedup.Index
	uploads uploads.System
	records records.System
	store   storage.System
	usage   *publisher
	orch    *ingest.Orchestrator
}

type option func(*ingest.Deps)

func setup(t *testing.T, opts ...option) *env {
	t.Helper()

	db := testdb.Open(t)
	logger := testdb.Logger()
	page := pagination.Config{DefaultPageSize: 50, MaxPageSize: 100}

	store, err := storage.New(&storage.Config{Provider: storage.ProviderLocal, Root: t.TempDir()}, logger)
	require.NoError(t, err)

	e := &env{
		db:      db,
		quota:   quota.New(db, 3, time.UTC, logger),
		dedup:   dedup.New(db, logger),
		uploads: uploads.New(db, store, logger, page),
		records: records.New(db, logger, page),
		store:   store,
		usage:   &publisher{},
	}

	deps := ingest.Deps{
		DB:          db,
		Quota:       e.quota,
		Dedup:       e.dedup,
		Uploads:     e.uploads,
		Records:     e.records,
		Storage:     store,
		Parsers:     parsers.NewRegistry(parsers.Options{}),
		Interpreter: interpreter.New(interpreter.Options{Logger: logger}),
		Usage:       e.usage,
		Logger:      logger,
		Now:         func() time.Time { return at },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.orch = ingest.New(deps)
	return e
}

func (e *env) used(t *testing.T, tenant string) int {
	t.Helper()
	w, err := e.quota.Usage(context.Background(), tenant, at)
	require.NoError(t, err)
	return w.Count
}

func submit(e *env, tenant, name, category, content string) (*ingest.Accepted, error) {
	return e.orch.Submit(context.Background(), ingest.Command{
		TenantID: tenant,
		FileName: name,
		Category: category,
		Data:     []byte(content),
	})
}

func TestSubmitAccepted(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	acc, err := submit(e, "T1", "labs.csv", "lab", labCSV)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, acc.UploadID)
	assert.Equal(t, parsers.FormatTabular, acc.Format)
	assert.Equal(t, 3, acc.RecordCount)
	assert.Equal(t, 100, acc.Confidence)
	require.Len(t, acc.Mappings, 1)
	assert.Equal(t, interpreter.CollectionLabResults, acc.Mappings[0].Collection)
	assert.Equal(t, ingest.QuotaStatus{Count: 1, Limit: 3, Remaining: 2}, acc.Quota)
	assert.Equal(t, digest.Sum([]byte(labCSV)).String(), acc.Digest)

	u, err := e.uploads.Find(ctx, acc.UploadID)
	require.NoError(t, err)
	assert.Equal(t, uploads.StatusCompleted, u.Status)
	assert.Equal(t, 3, u.RecordCount)
	assert.Equal(t, "tabular", u.Format)

	page, err := e.records.ListByUpload(ctx, acc.UploadID, pagination.PageRequest{Page: 1, PageSize: 10}, records.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	exists, err := e.store.Exists(ctx, u.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)

	require.Equal(t, 1, e.usage.count())
	ev := e.usage.events[0]
	assert.Equal(t, "T1", ev.TenantID)
	assert.Equal(t, acc.UploadID, ev.UploadID)
	assert.Equal(t, 3, ev.RecordCount)
	assert.Equal(t, int64(len(labCSV)), ev.ByteSize)
}

func fiveHundredBytes() string {
	base := labCSV
	return base + "#" + strings.Repeat("x", 500-len(base)-2) + "\n"
}

func TestSubmitDuplicate(t *testing.T) {
	e := setup(t)
	content := fiveHundredBytes()
	require.Len(t, content, 500)

	first, err := submit(e, "T1", "labs.csv", "lab", content)
	require.NoError(t, err)

	_, err = submit(e, "T1", "labs-copy.csv", "lab", content)
	require.ErrorIs(t, err, ingest.ErrDuplicateContent)

	var dup *ingest.DuplicateContentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.UploadID, dup.OriginalUploadID)
	assert.True(t, first.ReceivedAt.Equal(dup.OriginalReceivedAt))

	assert.Equal(t, 1, e.used(t, "T1"), "duplicates do not consume quota")
	assert.Equal(t, 1, e.usage.count())
}

func TestSubmitDuplicateIsPerTenant(t *testing.T) {
	e := setup(t)

	_, err := submit(e, "T1", "labs.csv", "lab", labCSV)
	require.NoError(t, err)
	_, err = submit(e, "T2", "labs.csv", "lab", labCSV)
	require.NoError(t, err)
}

func TestSubmitQuota(t *testing.T) {
	e := setup(t)

	for i := range 3 {
		acc, err := submit(e, "T1", fmt.Sprintf("labs-%d.csv", i), "lab", fmt.Sprintf("%sglucose,%d,mg/dL\n", labCSV, 90+i))
		require.NoError(t, err)
		assert.Equal(t, i+1, acc.Quota.Count)
	}

	_, err := submit(e, "T1", "labs-4.csv", "lab", labCSV+"a1c,5.4,%\n")
	require.ErrorIs(t, err, ingest.ErrQuotaExceeded)

	var qe *ingest.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 3, qe.Count)
	assert.Equal(t, 3, qe.Limit)
	assert.Equal(t, 0, qe.Remaining)
	assert.True(t, qe.ResetsAt.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))

	page, err := e.uploads.List(context.Background(), pagination.PageRequest{Page: 1, PageSize: 10}, uploads.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total, "rejected admissions create no upload")
}

func TestSubmitConcurrentQuota(t *testing.T) {
	e := setup(t)
	const n = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := range n {
		wg.Go(func() {
			_, err := submit(e, "T1", fmt.Sprintf("labs-%d.csv", i), "lab", fmt.Sprintf("%sglucose,%d,mg/dL\n", labCSV, 100+i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ingest.ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, n-3, rejected)
	assert.Equal(t, 3, e.used(t, "T1"))
}

func TestSubmitUnsupportedFormat(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := submit(e, "T1", "scan.exe", "lab", "MZ\x90\x00")
	require.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
	assert.Equal(t, 415, ingest.MapHTTPStatus(err))

	var ue *ingest.UnsupportedFormatError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ".exe", ue.Extension)

	u, err := e.uploads.Find(ctx, ue.UploadID)
	require.NoError(t, err)
	assert.Equal(t, uploads.StatusFailed, u.Status)
	require.NotNil(t, u.ErrorMessage)

	assert.Equal(t, 1, e.used(t, "T1"), "a failed attempt keeps its quota")

	_, err = e.dedup.Lookup(ctx, "T1", digest.Sum([]byte("MZ\x90\x00")))
	assert.ErrorIs(t, err, dedup.ErrNotFound)
}

func TestSubmitParseFailed(t *testing.T) {
	e := setup(t)

	_, err := submit(e, "T1", "labs.csv", "lab", "test,value,unit\n")
	require.ErrorIs(t, err, ingest.ErrParseFailed)

	var pe *ingest.ParseFailedError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parsers.FormatTabular, pe.Format)

	u, err := e.uploads.Find(context.Background(), pe.UploadID)
	require.NoError(t, err)
	assert.Equal(t, uploads.StatusFailed, u.Status)
	assert.Equal(t, 0, e.usage.count())
}

func TestSubmitPartialFile(t *testing.T) {
	e := setup(t)

	acc, err := submit(e, "T1", "labs.csv", "lab", "test,value,unit\nglucose,95,mg/dL\nldl,,mg/dL\nhdl,55,mg/dL\n")
	require.NoError(t, err)
	assert.Equal(t, 3, acc.RecordCount, "rows with missing fields are kept")
	assert.Equal(t, 67, acc.Confidence)
	assert.NotEmpty(t, acc.Diagnostics)
}

func TestSubmitInvalid(t *testing.T) {
	e := setup(t)

	_, err := submit(e, " ", "labs.csv", "lab", labCSV)
	assert.ErrorIs(t, err, ingest.ErrInvalidCommand)

	_, err = submit(e, "T1", "labs.csv", "lab", "")
	assert.ErrorIs(t, err, ingest.ErrInvalidCommand)

	assert.Equal(t, 0, e.used(t, "T1"))
}

type failingRecords struct {
	records.System
}

func (failingRecords) Insert(context.Context, repository.Preparer, []records.HealthRecord) error {
	return errors.New("disk full")
}

func TestSubmitPersistenceFailureCompensates(t *testing.T) {
	var store storage.System
	e := setup(t, func(d *ingest.Deps) {
		d.Records = failingRecords{d.Records}
		store = d.Storage
	})
	ctx := context.Background()

	_, err := submit(e, "T1", "labs.csv", "lab", labCSV)
	require.ErrorIs(t, err, ingest.ErrPersistence)
	assert.Equal(t, 500, ingest.MapHTTPStatus(err))

	var pe *ingest.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ingest.StagePersisting, pe.Stage)

	assert.Equal(t, 0, e.used(t, "T1"), "quota released")

	_, err = e.dedup.Lookup(ctx, "T1", digest.Sum([]byte(labCSV)))
	assert.ErrorIs(t, err, dedup.ErrNotFound, "reservation released")

	page, err := e.uploads.List(ctx, pagination.PageRequest{Page: 1, PageSize: 10}, uploads.Filters{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	u := page.Data[0]
	assert.Equal(t, uploads.StatusFailed, u.Status)

	exists, err := store.Exists(ctx, u.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists, "blob deleted")
	assert.Equal(t, 0, e.usage.count())
}

type cancelingMapper struct {
	cancel context.CancelFunc
}

func (m cancelingMapper) Interpret(_ context.Context, req interpreter.Request) []interpreter.MappingResult {
	m.cancel()
	return []interpreter.MappingResult{interpreter.Baseline(req.Record, req.Category)}
}

func TestSubmitCanceledCompensates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := setup(t, func(d *ingest.Deps) {
		d.Interpreter = cancelingMapper{cancel: cancel}
	})

	_, err := e.orch.Submit(ctx, ingest.Command{
		TenantID: "T1",
		FileName: "labs.csv",
		Category: "lab",
		Data:     []byte(labCSV),
	})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, ingest.ErrPersistence)

	assert.Equal(t, 0, e.used(t, "T1"), "no phantom quota")

	_, err = e.dedup.Lookup(context.Background(), "T1", digest.Sum([]byte(labCSV)))
	assert.ErrorIs(t, err, dedup.ErrNotFound)
}

func TestSubmitUnknownCategoryIsGeneral(t *testing.T) {
	e := setup(t)

	acc, err := submit(e, "T1", "notes.csv", "something-else", "a,b\n1,2\n")
	require.NoError(t, err)
	assert.Equal(t, parsers.CategoryGeneral, acc.Category)
	require.Len(t, acc.Mappings, 1)
	assert.Equal(t, interpreter.CollectionUnclassified, acc.Mappings[0].Collection)
}

type splittingMapper struct{}

// Interpret assigns the first column to lab results and the second to vital
// signs, so every row lands in both collections.
func (splittingMapper) Interpret(_ context.Context, req interpreter.Request) []interpreter.MappingResult {
	row := req.Record.Rows[0]
	return []interpreter.MappingResult{
		{Collection: interpreter.CollectionLabResults, Fields: map[string]string{row[0].Key: row[0].Key}, Confidence: 80},
		{Collection: interpreter.CollectionVitalSigns, Fields: map[string]string{row[1].Key: row[1].Key}, Confidence: 70},
	}
}

func TestSubmitCountsRowsAcrossCollections(t *testing.T) {
	e := setup(t, func(d *ingest.Deps) {
		d.Interpreter = splittingMapper{}
	})
	ctx := context.Background()

	acc, err := submit(e, "T1", "labs.csv", "lab", labCSV)
	require.NoError(t, err)
	require.Len(t, acc.Mappings, 2)
	assert.Equal(t, 3, acc.RecordCount)

	u, err := e.uploads.Find(ctx, acc.UploadID)
	require.NoError(t, err)
	assert.Equal(t, 3, u.RecordCount)

	page, err := e.records.ListByUpload(ctx, acc.UploadID, pagination.PageRequest{Page: 1, PageSize: 10}, records.Filters{})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)

	require.Equal(t, 1, e.usage.count())
	assert.Equal(t, 3, e.usage.events[0].RecordCount)
}
