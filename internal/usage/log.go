package usage

import (
	"context"
	"log/slog"
)

// LogEmitter writes each event as a structured log line.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates an emitter that logs events at Info.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.With("sink", "log")}
}

func (l *LogEmitter) Emit(ctx context.Context, e Event) error {
	l.logger.InfoContext(ctx, "usage event",
		"tenant_id", e.TenantID,
		"upload_id", e.UploadID,
		"category", e.Category,
		"byte_size", e.ByteSize,
		"record_count", e.RecordCount,
		"at", e.At,
	)
	return nil
}

func (l *LogEmitter) Close() error { return nil }
