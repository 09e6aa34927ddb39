package logging

import (
	"context"
	"log/slog"

	"splintarr/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldHistoryID is the standardized structured logging key for search history run identifiers.
	FieldHistoryID = "history_id"
	// FieldInstanceID is the standardized structured logging key for arr instance identifiers.
	FieldInstanceID = "instance_id"
	// FieldRequestID is the standardized structured logging key for per-reconciliation correlation identifiers.
	FieldRequestID = "request_id"
	// FieldEventType names the class of event a warning or error describes.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries services.Kind for classified failures.
	FieldErrorKind = "error_kind"
	// FieldImpact describes what an operator loses when a warning fires.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.HistoryIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldHistoryID, id))
	}
	if id, ok := services.InstanceIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldInstanceID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
