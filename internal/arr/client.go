package arr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"splintarr/internal/logging"
)

const (
	DefaultRateLimit   = 5
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoff     = 500 * time.Millisecond
	MaxBackoff         = 30 * time.Second
	maxErrorBodyBytes  = 4096
	apiKeyHeader       = "X-Api-Key"
	defaultUserAgent   = "Splintarr/dev"
	systemStatusPath   = "/api/v3/system/status"
	commandPathPattern = "/api/v3/command/%d"
)

// Config describes one arr instance connection.
type Config struct {
	BaseURL            string
	APIKey             string
	VerifySSL          bool
	RateLimitPerSecond int
	Timeout            time.Duration
	MaxRetries         int
	// InitialBackoff is the first retry delay; it doubles per attempt up to
	// MaxBackoff.
	InitialBackoff time.Duration
	UserAgent      string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

type client struct {
	baseURL    *url.URL
	apiKey     string
	userAgent  string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	closed     atomic.Bool
}

func newClient(cfg Config) (*client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("arr: base url is required")
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("arr: parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("arr: unsupported url scheme %q", baseURL.Scheme)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("arr: api key is required")
	}

	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = DefaultRateLimit
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !cfg.VerifySSL {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // per-instance opt-out for self-signed certs
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	return &client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		userAgent:  userAgent,
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logging.NewComponentLogger(cfg.Logger, "arr"),
	}, nil
}

func (c *client) close() {
	if c.closed.Swap(true) {
		return
	}
	c.http.CloseIdleConnections()
}

// getJSON issues a rate-limited GET with retries and decodes the body into
// out. A nil out discards the body.
func (c *client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("arr: decode %s: %w", path, err)
	}
	return nil
}

func (c *client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	attempt := 0
	for {
		body, retryAfter, err := c.once(ctx, path, query)
		if err == nil {
			return body, nil
		}
		if !IsRetriable(err) || attempt >= c.maxRetries || ctx.Err() != nil {
			return nil, err
		}
		attempt++
		backoff := c.backoff * time.Duration(1<<uint(attempt-1))
		if retryAfter > backoff {
			backoff = retryAfter
		}
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
		c.logger.Warn("arr request failed, retrying",
			logging.String("path", path),
			logging.Duration("backoff", backoff),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.maxRetries),
			logging.Error(err),
			logging.String(logging.FieldEventType, "arr_request_retry"),
			logging.String(logging.FieldErrorHint, "check arr instance load and network connectivity"),
		)
		if err := SleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func (c *client) once(ctx context.Context, path string, query url.Values) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, fmt.Errorf("%w: session closed", ErrChannel)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("arr: build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		if isChannelFailure(err) {
			return nil, 0, fmt.Errorf("%w: GET %s: %w", ErrChannel, path, err)
		}
		return nil, 0, fmt.Errorf("arr: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &StatusError{
			Method: http.MethodGet,
			Path:   path,
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   string(bytes.TrimSpace(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("arr: read %s: %w", path, err)
	}
	return body, 0, nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
