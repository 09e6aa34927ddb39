package services

import "context"

type contextKey string

const (
	historyIDKey  contextKey = "history_id"
	instanceIDKey contextKey = "instance_id"
	requestIDKey  contextKey = "request_id"
)

// WithHistoryID annotates context with the search history identifier.
func WithHistoryID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, historyIDKey, id)
}

// HistoryIDFromContext extracts the search history identifier if present.
func HistoryIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, historyIDKey)
}

// WithInstanceID annotates context with the remote instance identifier.
func WithInstanceID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, instanceIDKey, id)
}

// InstanceIDFromContext extracts the remote instance identifier if present.
func InstanceIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, instanceIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	v := ctx.Value(key)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
