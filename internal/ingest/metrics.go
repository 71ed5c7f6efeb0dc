package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded on ingest_uploads_total.
const (
	OutcomeAccepted      = "accepted"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeDuplicate     = "duplicate"
	OutcomeUnsupported   = "unsupported_format"
	OutcomeParseFailed   = "parse_failed"
	OutcomeFailed        = "failed"
	OutcomeInvalid       = "invalid"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	uploads   *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	records   prometheus.Counter
}

// NewMetrics creates the pipeline collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "uploads_total",
			Help:      "Upload submissions by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.001, .005, .025, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"stage"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "interpreter_fallbacks_total",
			Help:      "Mapping requests that fell back to the baseline, by reason.",
		}, []string{"reason"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "records_written_total",
			Help:      "Categorized records committed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.uploads, m.stages, m.fallbacks, m.records)
	}
	return m
}

// InterpreterFallback counts one baseline fallback. It matches the
// interpreter's OnFallback hook.
func (m *Metrics) InterpreterFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) outcome(o string) {
	m.uploads.WithLabelValues(o).Inc()
}

func (m *Metrics) stage(name string, start time.Time) {
	m.stages.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (m *Metrics) written(n int) {
	m.records.Add(float64(n))
}
