package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"splintarr/internal/config"
	"splintarr/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyGrabConfirmed(context.Background(), notifications.GrabEvent{Title: "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, out *captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		out.title = r.Header.Get("Title")
		out.tags = r.Header.Get("Tags")
		out.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		out.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "grab confirmed",
			send: func(s notifications.Service) error {
				return s.NotifyGrabConfirmed(context.Background(), notifications.GrabEvent{
					ContentType: "series",
					ExternalID:  42,
					Title:       "Breaking Bad",
					Item:        "Breaking Bad S01E01",
					Grabs:       3,
				})
			},
			expectTitle:   "Splintarr - Grab Confirmed",
			expectMessage: "📥 Grab confirmed: Breaking Bad\nSearched: Breaking Bad S01E01\nConfirmed grabs: 3",
			expectTags:    "splintarr,grab,series",
		},
		{
			name: "grab without title falls back to item",
			send: func(s notifications.Service) error {
				return s.NotifyGrabConfirmed(context.Background(), notifications.GrabEvent{
					ContentType: "movie",
					ExternalID:  7,
					Item:        "Alien (1979)",
					Grabs:       1,
				})
			},
			expectTitle:   "Splintarr - Grab Confirmed",
			expectMessage: "📥 Grab confirmed: Alien (1979)",
			expectTags:    "splintarr,grab,movie",
		},
		{
			name: "feedback summary",
			send: func(s notifications.Service) error {
				return s.NotifyFeedbackSummary(context.Background(), "Missing episodes", 5, 2)
			},
			expectTitle:   "Splintarr - Feedback Checked",
			expectMessage: "Missing episodes: 2 of 5 searches resulted in a grab",
			expectTags:    "splintarr,feedback,completed",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("connection refused"), "feedback check")
			},
			expectTitle:    "Splintarr - Error",
			expectMessage:  "❌ Error with feedback check: connection refused",
			expectTags:     "splintarr,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := newCaptureServer(t, &got)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Grabs = true

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesDisabledEvents(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Grabs = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyGrabConfirmed(context.Background(), notifications.GrabEvent{Title: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.NotifyFeedbackSummary(context.Background(), "run", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no requests, got %d", calls.Load())
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
