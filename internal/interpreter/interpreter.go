// Package interpreter maps a parsed record onto target collections.
//
// A deterministic baseline routes each category to a fixed collection.
// An optional remote collaborator may propose better mappings, but it runs
// under a hard deadline and every failure mode falls back to the baseline,
// so Interpret always returns at least one mapping.
package interpreter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hodie-labs/ingest/internal/parsers"
)

// Mapping sources.
const (
	SourceBaseline = "baseline"
	SourceInferred = "inferred"
)

// MappingResult assigns a record's fields to a target collection. Fields
// maps each source field key to the field name in the collection.
type MappingResult struct {
	Collection          string            `json:"target_collection"`
	Fields              map[string]string `json:"field_mappings"`
	Confidence          int               `json:"confidence"`
	ClarifyingQuestions []string          `json:"clarifying_questions"`
	Recommendations     []string          `json:"recommendations"`
	Source              string            `json:"source"`
}

// Request carries what the interpreter needs to map one upload.
type Request struct {
	TenantID string
	FileName string
	Category string
	Record   parsers.Record
}

// Prompt is the message pair sent to a remote collaborator.
type Prompt struct {
	System string
	User   string
}

// Inferrer produces a raw mapping suggestion for a prompt. Implementations
// should honor ctx, but Interpret does not depend on it.
type Inferrer interface {
	Suggest(ctx context.Context, p Prompt) (string, error)
}

// InstructionSource resolves the system instructions for a category.
type InstructionSource interface {
	Instructions(ctx context.Context, category string) (string, error)
}

// Options configures an Interpreter. Only Logger is required; with no
// Inferrer every request gets the baseline.
type Options struct {
	Inferrer     Inferrer
	Instructions InstructionSource
	Limiter      *rate.Limiter
	Timeout      time.Duration
	PreviewRows  int
	Logger       *slog.Logger
	// OnFallback observes every request that had an Inferrer but ended on
	// the baseline.
	OnFallback func(reason string)
}

// Interpreter produces mapping results for parsed records.
type Interpreter struct {
	inferrer     Inferrer
	instructions InstructionSource
	limiter      *rate.Limiter
	timeout      time.Duration
	previewRows  int
	logger       *slog.Logger
	onFallback   func(string)
}

const (
	defaultTimeout     = 10 * time.Second
	defaultPreviewRows = 20
)

// New creates an Interpreter from opts.
func New(opts Options) *Interpreter {
	in := &Interpreter{
		inferrer:     opts.Inferrer,
		instructions: opts.Instructions,
		limiter:      opts.Limiter,
		timeout:      opts.Timeout,
		previewRows:  opts.PreviewRows,
		logger:       opts.Logger.With("system", "interpreter"),
		onFallback:   opts.OnFallback,
	}
	if in.timeout <= 0 {
		in.timeout = defaultTimeout
	}
	if in.previewRows <= 0 {
		in.previewRows = defaultPreviewRows
	}
	return in
}

// Enabled reports whether a remote collaborator is configured.
func (in *Interpreter) Enabled() bool {
	return in.inferrer != nil
}

// Interpret returns one or more mappings for req. It never fails: when the
// collaborator is absent, rate limited, slow, or returns something
// unusable, the baseline mapping is returned instead. Interpret returns no
// later than the configured timeout after it is called.
func (in *Interpreter) Interpret(ctx context.Context, req Request) []MappingResult {
	base := Baseline(req.Record, req.Category)
	if in.inferrer == nil {
		return []MappingResult{base}
	}

	if in.limiter != nil && !in.limiter.Allow() {
		in.fallback(req, "rate_limited", ErrRateLimited)
		return []MappingResult{base}
	}

	raw, err := in.suggest(ctx, req)
	if err != nil {
		in.fallback(req, reason(err), err)
		return []MappingResult{base}
	}

	inferred, err := Extract(raw)
	if err != nil {
		in.fallback(req, "malformed", err)
		return []MappingResult{base}
	}

	if best(inferred) <= base.Confidence {
		in.logger.Info("kept baseline mapping",
			"tenant_id", req.TenantID,
			"collection", base.Collection,
			"baseline_confidence", base.Confidence,
			"inferred_confidence", best(inferred),
		)
		return []MappingResult{merge(base, inferred)}
	}

	in.logger.Info("using inferred mapping",
		"tenant_id", req.TenantID,
		"mappings", len(inferred),
		"confidence", best(inferred),
	)
	return inferred
}

type suggestion struct {
	raw string
	err error
}

// suggest runs the collaborator under the hard deadline. The result
// channel is buffered so a collaborator that ignores cancellation can
// still finish and exit after Interpret has moved on.
func (in *Interpreter) suggest(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	prompt := in.compose(ctx, req)

	done := make(chan suggestion, 1)
	go func() {
		raw, err := in.inferrer.Suggest(ctx, prompt)
		done <- suggestion{raw: raw, err: err}
	}()

	select {
	case s := <-done:
		if s.err != nil {
			return "", &UnavailableError{Err: s.err}
		}
		return s.raw, nil
	case <-ctx.Done():
		return "", &UnavailableError{Err: ctx.Err()}
	}
}

func (in *Interpreter) fallback(req Request, why string, err error) {
	in.logger.Warn("interpreter fallback to baseline",
		"tenant_id", req.TenantID,
		"reason", why,
		"error", err,
	)
	if in.onFallback != nil {
		in.onFallback(why)
	}
}

func best(ms []MappingResult) int {
	top := 0
	for _, m := range ms {
		top = max(top, m.Confidence)
	}
	return top
}

// merge folds the collaborator's questions and recommendations into the
// baseline without changing its routing.
func merge(base MappingResult, inferred []MappingResult) MappingResult {
	for _, m := range inferred {
		base.ClarifyingQuestions = appendUnique(base.ClarifyingQuestions, m.ClarifyingQuestions...)
		base.Recommendations = appendUnique(base.Recommendations, m.Recommendations...)
	}
	return base
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}
