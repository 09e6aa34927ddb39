package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const dedupMaxKeys = 512

// dedupHandler drops repeated error records that arrive faster than the
// configured threshold within the window. The record that reaches the
// threshold is annotated so the gap in the log is explained.
type dedupHandler struct {
	next  slog.Handler
	state *dedupState
}

type dedupState struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	now       func() time.Time
	seen      map[string][]time.Time
}

func newDedupHandler(next slog.Handler, window time.Duration, threshold int) slog.Handler {
	return &dedupHandler{
		next: next,
		state: &dedupState{
			window:    window,
			threshold: threshold,
			now:       time.Now,
			seen:      make(map[string][]time.Time),
		},
	}
}

func (h *dedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *dedupHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < slog.LevelError {
		return h.next.Handle(ctx, record)
	}
	count := h.state.observe(record.Message)
	switch {
	case count < h.state.threshold:
		return h.next.Handle(ctx, record)
	case count == h.state.threshold:
		annotated := slog.NewRecord(record.Time, record.Level,
			fmt.Sprintf("%s (suppressing further duplicates for %s)", record.Message, h.state.window), record.PC)
		record.Attrs(func(attr slog.Attr) bool {
			annotated.AddAttrs(attr)
			return true
		})
		return h.next.Handle(ctx, annotated)
	default:
		return nil
	}
}

func (h *dedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dedupHandler{next: h.next.WithAttrs(attrs), state: h.state}
}

func (h *dedupHandler) WithGroup(name string) slog.Handler {
	return &dedupHandler{next: h.next.WithGroup(name), state: h.state}
}

// observe records a hit for key and returns how many hits fall inside the
// current window, including this one.
func (s *dedupState) observe(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)
	hits := s.seen[key]
	kept := hits[:0]
	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	if len(kept) > s.threshold+1 {
		kept = kept[len(kept)-(s.threshold+1):]
	}
	if _, ok := s.seen[key]; !ok && len(s.seen) >= dedupMaxKeys {
		s.evict(cutoff)
	}
	s.seen[key] = kept
	return len(kept)
}

func (s *dedupState) evict(cutoff time.Time) {
	var oldestKey string
	var oldest time.Time
	for key, hits := range s.seen {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(s.seen, key)
			continue
		}
		last := hits[len(hits)-1]
		if oldestKey == "" || last.Before(oldest) {
			oldestKey, oldest = key, last
		}
	}
	if len(s.seen) >= dedupMaxKeys && oldestKey != "" {
		delete(s.seen, oldestKey)
	}
}
