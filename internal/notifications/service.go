package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"splintarr/internal/config"
)

const userAgent = "Splintarr-Go/0.1.0"

// GrabEvent describes one confirmed acquisition.
type GrabEvent struct {
	InstanceID  int64
	HistoryID   int64
	ContentType string
	ExternalID  int64
	Title       string
	Item        string
	Grabs       int
}

// Service defines the notification surface.
type Service interface {
	NotifyGrabConfirmed(ctx context.Context, event GrabEvent) error
	NotifyFeedbackSummary(ctx context.Context, runName string, checked, grabs int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		grabs:    cfg.Notifications.Grabs,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	grabs    bool
}

func (n *ntfyService) NotifyGrabConfirmed(ctx context.Context, event GrabEvent) error {
	if !n.grabs {
		return nil
	}
	title := strings.TrimSpace(event.Title)
	if title == "" {
		title = strings.TrimSpace(event.Item)
	}
	if title == "" {
		title = fmt.Sprintf("%s #%d", event.ContentType, event.ExternalID)
	}
	message := fmt.Sprintf("📥 Grab confirmed: %s", title)
	if item := strings.TrimSpace(event.Item); item != "" && item != title {
		message = fmt.Sprintf("%s\nSearched: %s", message, item)
	}
	if event.Grabs > 1 {
		message = fmt.Sprintf("%s\nConfirmed grabs: %d", message, event.Grabs)
	}
	tags := []string{"splintarr", "grab"}
	if ct := strings.TrimSpace(event.ContentType); ct != "" {
		tags = append(tags, ct)
	}
	return n.send(ctx, payload{
		title:   "Splintarr - Grab Confirmed",
		message: message,
		tags:    tags,
	})
}

func (n *ntfyService) NotifyFeedbackSummary(ctx context.Context, runName string, checked, grabs int) error {
	if checked == 0 {
		return nil
	}
	runName = strings.TrimSpace(runName)
	if runName == "" {
		runName = "search run"
	}
	return n.send(ctx, payload{
		title:   "Splintarr - Feedback Checked",
		message: fmt.Sprintf("%s: %d of %d searches resulted in a grab", runName, grabs, checked),
		tags:    []string{"splintarr", "feedback", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "Splintarr - Error",
		message:  builder.String(),
		tags:     []string{"splintarr", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Splintarr - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"splintarr", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyGrabConfirmed(context.Context, GrabEvent) error          { return nil }
func (noopService) NotifyFeedbackSummary(context.Context, string, int, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
