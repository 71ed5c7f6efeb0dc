package api

import (
	"golang.org/x/time/rate"

	"github.com/hodie-labs/ingest/internal/dedup"
	"github.com/hodie-labs/ingest/internal/ingest"
	"github.com/hodie-labs/ingest/internal/interpreter"
	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/internal/prompts"
	"github.com/hodie-labs/ingest/internal/quota"
	"github.com/hodie-labs/ingest/internal/records"
	"github.com/hodie-labs/ingest/internal/uploads"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Uploads     uploads.System
	Records     records.System
	Prompts     prompts.System
	Quota       quota.Ledger
	Dedup       dedup.Index
	Interpreter *interpreter.Interpreter
	Ingest      *ingest.Orchestrator
	Metrics     *ingest.Metrics
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	uploadsSystem := uploads.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	recordsSystem := records.New(db, runtime.Logger, runtime.Pagination)
	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)
	ledger := quota.New(db, runtime.Ingest.DailyLimit, runtime.Ingest.Location(), runtime.Logger)
	index := dedup.New(db, runtime.Logger)
	metrics := ingest.NewMetrics(runtime.Metrics)

	mapper := newInterpreter(runtime, promptsSystem, metrics)

	orchestrator := ingest.New(ingest.Deps{
		DB:          db,
		Quota:       ledger,
		Dedup:       index,
		Uploads:     uploadsSystem,
		Records:     recordsSystem,
		Storage:     runtime.Storage,
		Parsers:     newParsers(runtime),
		Interpreter: mapper,
		Usage:       runtime.Usage,
		Metrics:     metrics,
		Logger:      runtime.Logger,
	})

	return &Domain{
		Uploads:     uploadsSystem,
		Records:     recordsSystem,
		Prompts:     promptsSystem,
		Quota:       ledger,
		Dedup:       index,
		Interpreter: mapper,
		Ingest:      orchestrator,
		Metrics:     metrics,
	}
}

func newParsers(runtime *Runtime) *parsers.Registry {
	opts := parsers.Options{MaxRows: runtime.Ingest.MaxRows}

	if cmd := runtime.Ingest.ReportTextCommand; cmd != "" {
		extractor, err := parsers.NewCommandExtractor(cmd)
		if err != nil {
			runtime.Logger.Warn("report text extractor disabled", "error", err)
		} else {
			opts.Extractor = extractor
		}
	}

	return parsers.NewRegistry(opts)
}

func newInterpreter(runtime *Runtime, instructions interpreter.InstructionSource, metrics *ingest.Metrics) *interpreter.Interpreter {
	opts := interpreter.Options{
		Instructions: instructions,
		Timeout:      runtime.Ingest.InterpretTimeoutDuration(),
		PreviewRows:  runtime.Ingest.PreviewRows,
		Logger:       runtime.Logger,
		OnFallback:   metrics.InterpreterFallback,
	}

	cfg := runtime.Interpreter
	if cfg.Enabled {
		opts.Inferrer = interpreter.NewChatClient(interpreter.ClientConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.TimeoutDuration(),
			MaxRetries: cfg.MaxRetries,
		}, runtime.Logger)
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}

	return interpreter.New(opts)
}
