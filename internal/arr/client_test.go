package arr_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"splintarr/internal/arr"
)

const testAPIKey = "test-api-key"

type fakeArr struct {
	t        *testing.T
	handlers map[string]http.HandlerFunc
	hits     map[string]*atomic.Int32
}

func newFakeArr(t *testing.T) *fakeArr {
	return &fakeArr{t: t, handlers: map[string]http.HandlerFunc{}, hits: map[string]*atomic.Int32{}}
}

func (f *fakeArr) handle(path string, h http.HandlerFunc) {
	f.handlers[path] = h
	f.hits[path] = &atomic.Int32{}
}

func (f *fakeArr) json(path string, status int, body string) {
	f.handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakeArr) count(path string) int {
	if c, ok := f.hits[path]; ok {
		return int(c.Load())
	}
	return 0
}

func (f *fakeArr) start() *httptest.Server {
	if _, ok := f.handlers["/api/v3/system/status"]; !ok {
		f.json("/api/v3/system/status", http.StatusOK, `{"appName":"Sonarr","version":"4.0.0"}`)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := r.URL.Path
		h, ok := f.handlers[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.hits[key].Add(1)
		h(w, r)
	}))
	f.t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) arr.Config {
	return arr.Config{
		BaseURL:            baseURL,
		APIKey:             testAPIKey,
		VerifySSL:          true,
		RateLimitPerSecond: 1000,
		Timeout:            2 * time.Second,
		MaxRetries:         2,
		InitialBackoff:     time.Millisecond,
	}
}

func TestSeriesSessionCommandAndEpisodes(t *testing.T) {
	fake := newFakeArr(t)
	fake.json("/api/v3/command/555", http.StatusOK, `{"id":555,"name":"EpisodeSearch","status":"completed","result":"successful"}`)
	fake.handle("/api/v3/episode", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("seriesId") != "42" {
			t.Errorf("unexpected seriesId %q", r.URL.Query().Get("seriesId"))
		}
		_, _ = w.Write([]byte(`[{"id":123,"seriesId":42,"hasFile":true},{"id":124,"seriesId":42,"hasFile":false}]`))
	})
	srv := fake.start()

	session, err := arr.Open(context.Background(), arr.KindSonarr, testConfig(srv.URL+"/"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	series, ok := session.(arr.EpisodeSource)
	if !ok {
		t.Fatalf("sonarr session should list episodes, got %T", session)
	}
	if v := session.(*arr.SeriesClient).Version(); v != "4.0.0" {
		t.Fatalf("unexpected version %q", v)
	}

	status, err := session.CommandStatus(context.Background(), 555)
	if err != nil {
		t.Fatalf("CommandStatus: %v", err)
	}
	if !status.Completed() || status.ID != 555 {
		t.Fatalf("unexpected status %+v", status)
	}

	episodes, err := series.GetEpisodes(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetEpisodes: %v", err)
	}
	if len(episodes) != 2 || !episodes[0].HasFile || episodes[1].HasFile {
		t.Fatalf("unexpected episodes %+v", episodes)
	}
}

func TestMovieSessionGetMovie(t *testing.T) {
	fake := newFakeArr(t)
	fake.json("/api/v3/movie/7", http.StatusOK, `{"id":7,"title":"Alien","year":1979,"hasFile":true}`)
	fake.json("/api/v3/movie/8", http.StatusOK, `[]`)
	srv := fake.start()

	session, err := arr.OpenMovies(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("OpenMovies: %v", err)
	}
	defer session.Close()

	movie, err := session.GetMovie(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if movie == nil || !movie.HasFile || movie.Title != "Alien" {
		t.Fatalf("unexpected movie %+v", movie)
	}

	missing, err := session.GetMovie(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetMovie 404: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil movie for 404, got %+v", missing)
	}

	odd, err := session.GetMovie(context.Background(), 8)
	if err != nil || odd != nil {
		t.Fatalf("expected nil movie for non-object body, got %+v, %v", odd, err)
	}
}

func TestCommandStatusCompleted(t *testing.T) {
	cases := map[string]bool{
		"completed": true,
		"Completed": true,
		"queued":    false,
		"started":   false,
		"failed":    false,
		"":          false,
	}
	for status, want := range cases {
		if got := (arr.CommandStatus{Status: status}).Completed(); got != want {
			t.Fatalf("Completed(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	fake := newFakeArr(t)
	var calls atomic.Int32
	fake.handle("/api/v3/command/1", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"status":"queued"}`))
	})
	srv := fake.start()

	session, err := arr.Open(context.Background(), arr.KindRadarr, testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	status, err := session.CommandStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("CommandStatus: %v", err)
	}
	if status.Completed() {
		t.Fatal("queued command must not be completed")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	fake := newFakeArr(t)
	fake.json("/api/v3/command/2", http.StatusInternalServerError, `{"message":"boom"}`)
	srv := fake.start()

	session, err := arr.Open(context.Background(), arr.KindSonarr, testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	_, err = session.CommandStatus(context.Background(), 2)
	var statusErr *arr.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status error, got %v", err)
	}
	if errors.Is(err, arr.ErrChannel) {
		t.Fatal("a single failing request is not a channel failure")
	}
	if fake.count("/api/v3/command/2") != 1 {
		t.Fatalf("expected a single attempt, got %d", fake.count("/api/v3/command/2"))
	}
}

func TestOpenFailuresAreChannelErrors(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	refusedURL := "http://" + listener.Addr().String()
	_ = listener.Close()

	fake := newFakeArr(t)
	srv := fake.start()
	badKey := testConfig(srv.URL)
	badKey.APIKey = "wrong"

	cases := map[string]arr.Config{
		"connection refused": testConfig(refusedURL),
		"unauthorized":       badKey,
		"missing url":        testConfig(""),
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := arr.Open(context.Background(), arr.KindSonarr, cfg)
			if !errors.Is(err, arr.ErrChannel) {
				t.Fatalf("expected ErrChannel, got %v", err)
			}
		})
	}
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	if _, err := arr.Open(context.Background(), arr.Kind("lidarr"), testConfig("http://x")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appName":"Radarr","version":"5.0.0"}`))
	}))
	defer srv.Close()

	_, err := arr.OpenMovies(context.Background(), testConfig(srv.URL))
	if !errors.Is(err, arr.ErrChannel) {
		t.Fatalf("expected self-signed cert to fail as channel error, got %v", err)
	}

	insecure := testConfig(srv.URL)
	insecure.VerifySSL = false
	session, err := arr.OpenMovies(context.Background(), insecure)
	if err != nil {
		t.Fatalf("OpenMovies with verification disabled: %v", err)
	}
	session.Close()
}

func TestClosedSessionReturnsChannelError(t *testing.T) {
	fake := newFakeArr(t)
	fake.json("/api/v3/command/3", http.StatusOK, `{"id":3,"status":"completed"}`)
	srv := fake.start()

	session, err := arr.Open(context.Background(), arr.KindSonarr, testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := session.CommandStatus(context.Background(), 3); !errors.Is(err, arr.ErrChannel) {
		t.Fatalf("expected ErrChannel after close, got %v", err)
	}
	if fake.count("/api/v3/command/3") != 0 {
		t.Fatal("closed session must not reach the server")
	}
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	fake := newFakeArr(t)
	fake.json("/api/v3/command/4", http.StatusOK, `{"id":4,"status":"queued"}`)
	srv := fake.start()

	cfg := testConfig(srv.URL)
	cfg.RateLimitPerSecond = 20
	session, err := arr.Open(context.Background(), arr.KindSonarr, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := session.CommandStatus(context.Background(), 4); err != nil {
			t.Fatalf("CommandStatus: %v", err)
		}
	}
	// Probe plus five calls at 20/s with burst 1 needs at least ~250ms.
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Fatalf("expected rate limiting, finished in %s", elapsed)
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	fake := newFakeArr(t)
	fake.json("/api/v3/command/5", http.StatusServiceUnavailable, "")
	srv := fake.start()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 10
	cfg.InitialBackoff = time.Second
	session, err := arr.Open(context.Background(), arr.KindSonarr, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = session.CommandStatus(ctx, 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&arr.StatusError{Code: http.StatusTooManyRequests}, true},
		{&arr.StatusError{Code: http.StatusBadGateway}, true},
		{&arr.StatusError{Code: http.StatusNotFound}, false},
		{&arr.StatusError{Code: http.StatusInternalServerError}, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("read: connection reset by peer"), true},
		{arr.ErrChannel, false},
		{errors.New("decode failure"), false},
	}
	for _, tc := range cases {
		if got := arr.IsRetriable(tc.err); got != tc.want {
			t.Fatalf("IsRetriable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &arr.StatusError{Method: "GET", Path: "/api/v3/command/1", Code: 500, Status: "500 Internal Server Error", Body: "boom"}
	if !strings.Contains(err.Error(), "/api/v3/command/1") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
