// Package audit provides the audit loggers the pipeline requires on its
// fail-closed, shadow and remote-provider paths.
package audit

import (
	"context"
	"log/slog"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// SlogLogger writes audit entries to a structured logger. Failures log at
// Warn, everything else at Info.
type SlogLogger struct {
	logger *slog.Logger
}

var _ port.AuditLogger = (*SlogLogger)(nil)

// NewSlogLogger creates a SlogLogger.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With(slog.String("component", "audit"))}
}

// Log implements port.AuditLogger.
func (l *SlogLogger) Log(e model.AuditEntry) {
	attrs := []slog.Attr{
		slog.String("audit_id", e.ID.String()),
		slog.String("kind", e.Kind),
		slog.Time("occurred_at", e.OccurredAt),
	}
	if e.Step != "" {
		attrs = append(attrs, slog.String("step", e.Step))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	if len(e.Fields) > 0 {
		fields := make([]any, 0, len(e.Fields))
		for k, v := range e.Fields {
			fields = append(fields, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("fields", fields...))
	}

	level := slog.LevelInfo
	if e.Error != "" || e.Kind == model.AuditKindRollbackTriggered {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// Fanout forwards every entry to each logger in order.
type Fanout []port.AuditLogger

// Log implements port.AuditLogger.
func (f Fanout) Log(e model.AuditEntry) {
	for _, l := range f {
		if l != nil {
			l.Log(e)
		}
	}
}
