package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	maxValueBytes   = 1024
	truncatedSuffix = " [truncated]"
	redactKeepChars = 4
	redactMaxStars  = 8
)

var sensitiveKeys = []string{
	"password", "passwd", "pwd", "secret", "token",
	"api_key", "apikey", "auth", "authorization", "key", "pepper",
}

// redactHandler masks credential-shaped values and caps oversized strings
// before they reach any sink.
type redactHandler struct {
	next slog.Handler
}

func newRedactHandler(next slog.Handler) slog.Handler {
	return &redactHandler{next: next}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, truncate(record.Message), record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(sanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clean[i] = sanitizeAttr(attr)
	}
	return &redactHandler{next: h.next.WithAttrs(clean)}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name)}
}

func sanitizeAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, member := range members {
			clean[i] = sanitizeAttr(member)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(clean...)}
	}
	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, maskSecret(attrString(attr.Value)))
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		if s := attr.Value.String(); len(s) > maxValueBytes {
			return slog.String(attr.Key, truncate(s))
		}
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			if msg := err.Error(); len(msg) > maxValueBytes {
				return slog.String(attr.Key, truncate(msg))
			}
		}
	}
	return attr
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	for _, candidate := range sensitiveKeys {
		if lower == candidate || strings.HasSuffix(lower, "_"+candidate) {
			return true
		}
	}
	return false
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= redactKeepChars {
		return strings.Repeat("*", len(runes))
	}
	stars := len(runes) - redactKeepChars
	if stars > redactMaxStars {
		stars = redactMaxStars
	}
	return string(runes[:redactKeepChars]) + strings.Repeat("*", stars)
}

func truncate(s string) string {
	if len(s) <= maxValueBytes {
		return s
	}
	cut := maxValueBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedSuffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
