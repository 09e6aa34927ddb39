package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"splintarr/internal/config"
	"splintarr/internal/feedback"
	"splintarr/internal/logging"
	"splintarr/internal/services"
	"splintarr/internal/store"
)

const (
	defaultInterval  = time.Minute
	defaultBatchSize = 25
)

// Store is the search history surface the scheduler polls.
type Store interface {
	ListPendingFeedback(ctx context.Context, cutoff time.Time, limit int) ([]*store.SearchRun, error)
	MarkFeedbackChecked(ctx context.Context, id int64) error
}

// Reconciler runs one feedback check. *feedback.Service satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, historyID, instanceID int64) feedback.Result
}

// Notifier announces reconciled runs and failed passes.
type Notifier interface {
	NotifyFeedbackSummary(ctx context.Context, runName string, checked, grabs int) error
	NotifyError(ctx context.Context, err error, context string) error
}

// Options tunes the polling loop. Zero values pick defaults.
type Options struct {
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// Daemon coordinates scheduled reconciliation and enforces single-instance
// execution.
type Daemon struct {
	logger     *slog.Logger
	store      Store
	reconciler Reconciler
	notifier   Notifier

	delay    time.Duration
	interval time.Duration
	batch    int
	now      func() time.Time
	lockDir  string

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	reconciled atomic.Int64
	lastPass   atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	Reconciled   int64
	LastPass     time.Time
}

// New constructs a daemon. notifier may be nil.
func New(cfg *config.Config, st Store, reconciler Reconciler, notifier Notifier, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || st == nil || reconciler == nil {
		return nil, errors.New("daemon requires config, store, and reconciler")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(cfg.LockDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lockPath := daemonLockPath(cfg.LockDir())
	return &Daemon{
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		reconciler: reconciler,
		notifier:   notifier,
		delay:      time.Duration(cfg.Feedback.CheckDelayMinutes) * time.Minute,
		interval:   opts.Interval,
		batch:      opts.BatchSize,
		now:        opts.Now,
		lockDir:    cfg.LockDir(),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the polling loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another splintarr daemon instance is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)
	go d.loop(loopCtx, d.done)

	d.logger.Info("splintarr daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Duration("check_delay", d.delay),
		logging.Duration("interval", d.interval),
	)
	return nil
}

// Stop stops the loop, waits for an in-flight pass, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.cancel()
	<-d.done
	d.cancel = nil
	d.done = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("splintarr daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		Reconciled:   d.reconciled.Load(),
	}
	if last := d.lastPass.Load(); last > 0 {
		status.LastPass = time.Unix(0, last)
	}
	return status
}

func (d *Daemon) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "feedback pass failed", "daemon_pass_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldImpact, "pending runs wait for the next pass"),
			)
			d.notifyPassFailure(ctx, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Daemon) notifyPassFailure(ctx context.Context, err error) {
	if d.notifier == nil {
		return
	}
	if notifyErr := d.notifier.NotifyError(ctx, err, "feedback scheduler"); notifyErr != nil {
		d.logger.Warn("pass failure notification failed", logging.Error(notifyErr))
	}
}

// RunOnce reconciles every pending run whose delay has elapsed and returns
// how many were reconciled. Runs locked by another process are skipped and
// stay pending.
func (d *Daemon) RunOnce(ctx context.Context) (int, error) {
	d.lastPass.Store(d.now().UnixNano())
	cutoff := d.now().Add(-d.delay)
	runs, err := d.store.ListPendingFeedback(ctx, cutoff, d.batch)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, run := range runs {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if d.reconcileRun(ctx, run) {
			count++
		}
	}
	return count, nil
}

func (d *Daemon) reconcileRun(ctx context.Context, run *store.SearchRun) bool {
	ctx = services.WithHistoryID(ctx, run.ID)
	logger := logging.WithContext(ctx, d.logger)

	lock := HistoryLock(d.lockDir, run.ID)
	locked, err := lock.TryLock()
	if err != nil {
		logging.WarnWithContext(logger, "history lock unavailable", "daemon_history_lock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the locks directory"),
		)
		return false
	}
	if !locked {
		logger.Debug("history is being reconciled elsewhere; skipping")
		return false
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release history lock", logging.Error(err))
		}
	}()

	result := d.reconciler.Reconcile(ctx, run.ID, run.InstanceID)
	if ctx.Err() != nil {
		// interrupted runs stay pending so the unchecked tail is retried
		return false
	}
	if err := d.store.MarkFeedbackChecked(ctx, run.ID); err != nil {
		logging.WarnWithContext(logger, "failed to mark run as checked", "daemon_mark_checked_failed",
			logging.Error(err),
			logging.Alert("double_count_risk"),
			logging.String(logging.FieldImpact, "run will be reconciled again and grabs may be double counted"),
		)
	}
	d.reconciled.Add(1)

	if d.notifier != nil && result.Checked > 0 {
		if err := d.notifier.NotifyFeedbackSummary(ctx, run.Name, result.Checked, result.Grabs); err != nil {
			logging.WarnWithContext(logger, "feedback summary notification failed", "daemon_summary_notify_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
	return true
}
