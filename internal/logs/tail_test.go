package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splintarr/internal/logs"
)

const sampleLog = `{"ts":"2026-01-01T00:00:00Z","level":"info","msg":"feedback check started","history_id":7}
{"ts":"2026-01-01T00:00:01Z","level":"warn","msg":"feedback command check failed","history_id":7}
{"ts":"2026-01-01T00:00:02Z","level":"info","msg":"feedback check started","history_id":8}
panic: something odd
{"ts":"2026-01-01T00:00:03Z","level":"error","msg":"feedback check aborted: instance unavailable","history_id":8}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splintarr.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}

	result, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil || len(result.Lines) != 3 || result.Lines[0] != "a" {
		t.Fatalf("short file: %#v, %v", result.Lines, err)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "nope.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil || len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v, %v", result, err)
	}
}

func TestTailFilters(t *testing.T) {
	path := writeLog(t, sampleLog)

	tests := []struct {
		name   string
		filter logs.Filter
		want   []string
	}{
		{name: "history", filter: logs.ForHistory(8), want: []string{"check started", "aborted"}},
		{name: "level", filter: logs.MinLevel("warn"), want: []string{"command check failed", "panic:", "aborted"}},
		{name: "combined", filter: logs.All(logs.ForHistory(7), logs.MinLevel("warn")), want: []string{"command check failed"}},
		{name: "none", filter: logs.All(nil, logs.MinLevel("bogus")), want: []string{"", "", "", "", ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Filter: tc.filter})
			if err != nil {
				t.Fatalf("Tail: %v", err)
			}
			if len(result.Lines) != len(tc.want) {
				t.Fatalf("expected %d lines, got %#v", len(tc.want), result.Lines)
			}
			for i, want := range tc.want {
				if !strings.Contains(result.Lines[i], want) {
					t.Fatalf("line %d: %q does not contain %q", i, result.Lines[i], want)
				}
			}
		})
	}
}

func TestTailResumesFromOffset(t *testing.T) {
	path := writeLog(t, "one\n")
	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	appendLine(t, path, "two")

	next, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("Tail from offset: %v", err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "two" {
		t.Fatalf("unexpected lines %#v", next.Lines)
	}

	// A shrunken file means rotation; reading restarts at zero.
	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatalf("rewrite log: %v", err)
	}
	rotated, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: next.Offset})
	if err != nil || len(rotated.Lines) != 1 || rotated.Lines[0] != "fresh" {
		t.Fatalf("after rotation: %#v, %v", rotated.Lines, err)
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", res.Lines)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	appendLine(t, path, "later")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}
