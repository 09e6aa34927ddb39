package daemon_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"splintarr/internal/daemon"
	"splintarr/internal/feedback"
	"splintarr/internal/logging"
	"splintarr/internal/store"
	"splintarr/internal/testsupport"
)

type fakeReconciler struct {
	mu     sync.Mutex
	calls  []int64
	result feedback.Result
	hook   func(ctx context.Context)
}

func (f *fakeReconciler) Reconcile(ctx context.Context, historyID, instanceID int64) feedback.Result {
	f.mu.Lock()
	f.calls = append(f.calls, historyID)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(ctx)
	}
	return f.result
}

func (f *fakeReconciler) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

type summary struct {
	name           string
	checked, grabs int
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []summary
	errors []error
	err    error
}

func (f *fakeNotifier) NotifyError(_ context.Context, err error, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, err)
	return nil
}

func (f *fakeNotifier) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

func (f *fakeNotifier) NotifyFeedbackSummary(_ context.Context, runName string, checked, grabs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, summary{runName, checked, grabs})
	return f.err
}

type fixture struct {
	store *store.Store
	inst  *store.Instance
	now   time.Time
	rec   *fakeReconciler
	note  *fakeNotifier
	d     *daemon.Daemon
	lock  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Feedback.CheckDelayMinutes = 15
	st := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.SeedInstance(t, st, nil, store.InstanceSonarr, "http://sonarr:8989", "v1:sealed")

	f := &fixture{
		store: st,
		inst:  inst,
		now:   time.Now().UTC(),
		rec:   &fakeReconciler{result: feedback.Result{Checked: 3, Grabs: 1}},
		note:  &fakeNotifier{},
		lock:  cfg.LockDir(),
	}
	d, err := daemon.New(cfg, st, f.rec, f.note, logging.NewNop(), daemon.Options{
		Interval: 10 * time.Millisecond,
		Now:      func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	f.d = d
	return f
}

func (f *fixture) seedRun(t *testing.T, name string, finished time.Time) *store.SearchRun {
	t.Helper()
	run, err := f.store.CreateSearchRun(context.Background(), &store.SearchRun{
		InstanceID:  f.inst.ID,
		Name:        name,
		StartedAt:   finished.Add(-time.Minute),
		CompletedAt: &finished,
	})
	if err != nil {
		t.Fatalf("CreateSearchRun: %v", err)
	}
	return run
}

func (f *fixture) pendingIDs(t *testing.T) []int64 {
	t.Helper()
	runs, err := f.store.ListPendingFeedback(context.Background(), f.now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("ListPendingFeedback: %v", err)
	}
	ids := make([]int64, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	return ids
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := f.d.Status()
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.LockFilePath == "" {
		t.Fatal("expected lock path in status")
	}
	if err := f.d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.d.Stop()
	if f.d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	// Stop is idempotent.
	f.d.Stop()
}

func TestSecondDaemonRefusesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	rec := &fakeReconciler{}

	first, err := daemon.New(cfg, st, rec, nil, logging.NewNop(), daemon.Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, st, rec, nil, logging.NewNop(), daemon.Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon to be refused")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, &fakeReconciler{}, nil, nil, daemon.Options{}); err == nil {
		t.Fatal("expected error without a store")
	}
	if _, err := daemon.New(nil, nil, nil, nil, nil, daemon.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRunOnceReconcilesDueRuns(t *testing.T) {
	f := newFixture(t)
	due := f.seedRun(t, "Missing episodes", f.now.Add(-time.Hour))
	fresh := f.seedRun(t, "Cutoff unmet", f.now.Add(-time.Minute))

	count, err := f.d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reconciled run, got %d", count)
	}
	if calls := f.rec.called(); len(calls) != 1 || calls[0] != due.ID {
		t.Fatalf("unexpected reconcile calls: %v", calls)
	}
	if ids := f.pendingIDs(t); len(ids) != 1 || ids[0] != fresh.ID {
		t.Fatalf("expected only the fresh run pending, got %v", ids)
	}
	if len(f.note.sent) != 1 || f.note.sent[0] != (summary{"Missing episodes", 3, 1}) {
		t.Fatalf("unexpected summaries: %+v", f.note.sent)
	}
	if got := f.d.Status().Reconciled; got != 1 {
		t.Fatalf("expected reconciled counter 1, got %d", got)
	}

	// A second pass has nothing due.
	count, err = f.d.RunOnce(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("expected idle pass, got %d, %v", count, err)
	}
}

func TestRunOnceSkipsSummaryWhenNothingChecked(t *testing.T) {
	f := newFixture(t)
	f.rec.result = feedback.Result{}
	run := f.seedRun(t, "Empty", f.now.Add(-time.Hour))

	if _, err := f.d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.note.sent) != 0 {
		t.Fatalf("expected no summary, got %+v", f.note.sent)
	}
	for _, id := range f.pendingIDs(t) {
		if id == run.ID {
			t.Fatal("run with nothing to check should still be marked")
		}
	}
}

func TestRunOnceNotifyFailureStillMarks(t *testing.T) {
	f := newFixture(t)
	f.note.err = errors.New("ntfy down")
	f.seedRun(t, "Run", f.now.Add(-time.Hour))

	count, err := f.d.RunOnce(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("expected one reconciled run, got %d, %v", count, err)
	}
	if ids := f.pendingIDs(t); len(ids) != 0 {
		t.Fatalf("expected nothing pending, got %v", ids)
	}
}

func TestRunOnceSkipsLockedHistory(t *testing.T) {
	f := newFixture(t)
	run := f.seedRun(t, "Busy", f.now.Add(-time.Hour))

	held := daemon.HistoryLock(f.lock, run.ID)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer func() { _ = held.Unlock() }()

	count, err := f.d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if count != 0 || len(f.rec.called()) != 0 {
		t.Fatalf("locked history should be skipped, count=%d calls=%v", count, f.rec.called())
	}
	if ids := f.pendingIDs(t); len(ids) != 1 {
		t.Fatalf("locked run should stay pending, got %v", ids)
	}
}

func TestRunOnceLeavesInterruptedRunPending(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "First", f.now.Add(-2*time.Hour))
	f.seedRun(t, "Second", f.now.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	f.rec.hook = func(context.Context) { cancel() }

	count, err := f.d.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no completed runs, got %d", count)
	}
	if calls := f.rec.called(); len(calls) != 1 {
		t.Fatalf("expected the loop to stop after the first run, got %v", calls)
	}
	if ids := f.pendingIDs(t); len(ids) != 2 {
		t.Fatalf("both runs should stay pending, got %v", ids)
	}
	if len(f.note.sent) != 0 {
		t.Fatalf("interrupted run should not notify: %+v", f.note.sent)
	}
}

func TestStartProcessesPendingRuns(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "Background", f.now.Add(-time.Hour))

	if err := f.d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.d.Status().Reconciled == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if f.d.Status().Reconciled != 1 {
		t.Fatal("expected background loop to reconcile the pending run")
	}
	if f.d.Status().LastPass.IsZero() {
		t.Fatal("expected last pass timestamp")
	}
}

type brokenStore struct{}

func (brokenStore) ListPendingFeedback(context.Context, time.Time, int) ([]*store.SearchRun, error) {
	return nil, errors.New("database is locked")
}

func (brokenStore) MarkFeedbackChecked(context.Context, int64) error { return nil }

func TestLoopNotifiesFailedPass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	note := &fakeNotifier{}
	d, err := daemon.New(cfg, brokenStore{}, &fakeReconciler{}, note, logging.NewNop(), daemon.Options{Interval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if _, err := d.RunOnce(context.Background()); err == nil {
		t.Fatal("expected RunOnce to surface the store error")
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for note.errorCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()
	if note.errorCount() == 0 {
		t.Fatal("expected failed pass to be notified")
	}
}
