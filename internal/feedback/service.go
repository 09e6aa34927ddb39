package feedback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"splintarr/internal/arr"
	"splintarr/internal/config"
	"splintarr/internal/logging"
	"splintarr/internal/searchmeta"
	"splintarr/internal/services"
	"splintarr/internal/store"
)

const defaultSaveTimeout = 10 * time.Second

// Store is the persistence surface reconciliation borrows rows from.
type Store interface {
	LibraryStore
	GetSearchRun(ctx context.Context, id int64) (*store.SearchRun, error)
	UpdateSearchMetadata(ctx context.Context, id int64, metadata string) error
	GetInstance(ctx context.Context, id int64) (*store.Instance, error)
}

// Decrypter opens a stored instance credential.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Opener acquires a session for one reconciliation. arr.Open satisfies it.
type Opener func(ctx context.Context, kind arr.Kind, cfg arr.Config) (arr.Session, error)

// Options tunes a Service.
type Options struct {
	RequestTimeout   time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	DefaultRateLimit int
	// SaveTimeout bounds the metadata write, which runs even after the
	// caller's context is cancelled.
	SaveTimeout time.Duration
	// ReconcileTimeout bounds one Reconcile call; zero leaves only the
	// caller's deadline.
	ReconcileTimeout time.Duration
	Opener           Opener
	Notifier         GrabNotifier
	Logger           *slog.Logger
}

// OptionsFromConfig maps the [feedback] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		RequestTimeout:   time.Duration(cfg.Feedback.RequestTimeoutSeconds) * time.Second,
		MaxRetries:       cfg.Feedback.MaxRetries,
		DefaultRateLimit: cfg.Feedback.DefaultRateLimit,
		ReconcileTimeout: time.Duration(cfg.Feedback.ReconcileTimeoutSeconds) * time.Second,
	}
}

// Result reports how many commands were checked and how many grabs were
// confirmed. A zero Result is ambiguous between "nothing to check" and
// "failed before checking"; the logs tell them apart.
type Result struct {
	Checked int
	Grabs   int
}

// Service runs reconciliations. It holds no per-run state and is safe for
// concurrent use across different history runs.
type Service struct {
	store     Store
	decrypter Decrypter
	tracker   *GrabTracker
	open      Opener
	opts      Options
	logger    *slog.Logger
}

// NewService wires a reconciliation service.
func NewService(st Store, decrypter Decrypter, opts Options) *Service {
	if opts.Opener == nil {
		opts.Opener = arr.Open
	}
	if opts.DefaultRateLimit <= 0 {
		opts.DefaultRateLimit = arr.DefaultRateLimit
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	logger := logging.NewComponentLogger(opts.Logger, "feedback")
	return &Service{
		store:     st,
		decrypter: decrypter,
		tracker:   NewGrabTracker(st, opts.Notifier, opts.Logger),
		open:      opts.Opener,
		opts:      opts,
		logger:    logger,
	}
}

// Reconcile checks every actionable command recorded on a search history
// run against the instance it ran on. It never returns an error.
func (s *Service) Reconcile(ctx context.Context, historyID, instanceID int64) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.opts.ReconcileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ReconcileTimeout)
		defer cancel()
	}
	ctx = services.WithHistoryID(ctx, historyID)
	ctx = services.WithInstanceID(ctx, instanceID)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()

	run, err := s.store.GetSearchRun(ctx, historyID)
	if err != nil {
		logging.ErrorWithContext(logger, "feedback check failed to load search history", "feedback_check_history_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
		)
		return Result{}
	}
	if run == nil {
		logging.WarnWithContext(logger, "feedback check skipped: search history not found", "feedback_check_no_history",
			logging.String(logging.FieldErrorHint, "the run may have been pruned before the check fired"),
			logging.String(logging.FieldImpact, "no commands checked"),
		)
		return Result{}
	}

	entries, reason := searchmeta.Parse(run.Metadata)
	switch reason {
	case searchmeta.ReasonOK:
	case searchmeta.ReasonEmpty:
		logger.Debug("feedback check skipped: no search metadata")
		return Result{}
	default:
		logging.WarnWithContext(logger, "feedback check skipped: invalid search metadata", "feedback_check_invalid_metadata",
			logging.String("reason", reason.String()),
			logging.String(logging.FieldErrorHint, "inspect the run with 'splintarr history show'"),
			logging.String(logging.FieldImpact, "no commands checked"),
		)
		return Result{}
	}

	pending := make([]int, 0, len(entries))
	for i := range entries {
		if entries[i].Actionable() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		logger.Debug("feedback check skipped: no searchable commands",
			logging.Int("total_entries", len(entries)),
		)
		return Result{}
	}

	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		logging.ErrorWithContext(logger, "feedback check failed to load instance", "feedback_check_instance_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
		)
		return Result{}
	}
	if inst == nil {
		logging.WarnWithContext(logger, "feedback check skipped: instance not found", "feedback_check_no_instance",
			logging.String(logging.FieldImpact, "no commands checked"),
		)
		return Result{}
	}
	if !inst.Type.Valid() {
		logging.WarnWithContext(logger, "feedback check skipped: unsupported instance type", "feedback_check_bad_instance",
			logging.String("instance_type", string(inst.Type)),
			logging.String(logging.FieldImpact, "no commands checked"),
		)
		return Result{}
	}

	logger.Info("feedback check started",
		logging.String(logging.FieldEventType, "feedback_check_started"),
		logging.Int("commands_to_check", len(pending)),
		logging.String("instance_type", string(inst.Type)),
	)

	apiKey, err := s.decrypter.Decrypt(inst.APIKey)
	if err != nil {
		logging.ErrorWithContext(logger, "feedback check failed: cannot decrypt instance credential", "feedback_check_client_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-enter the instance API key or check security.secret_key"),
		)
		return Result{}
	}

	kind := arr.Kind(inst.Type)
	contentType := inst.Type.ContentType()

	var (
		result   Result
		abortErr error
	)
	func() {
		session, err := s.open(ctx, kind, s.clientConfig(inst, apiKey))
		if err != nil {
			abortErr = err
			return
		}
		defer func() {
			if cerr := session.Close(); cerr != nil {
				logger.Debug("arr session close failed", logging.Error(cerr))
			}
		}()

		classifier, err := NewClassifier(kind, session)
		if err != nil {
			abortErr = err
			return
		}

		for _, idx := range pending {
			if err := ctx.Err(); err != nil {
				abortErr = err
				return
			}
			entry := &entries[idx]
			state, err := checkEntry(ctx, session, classifier, *entry)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					abortErr = ctxErr
					return
				}
				entry.Grab = searchmeta.GrabUnknown
				result.Checked++
				logging.WarnWithContext(logger, "feedback command check failed", "feedback_check_command_failed",
					logging.Int64("command_id", *entry.CommandID),
					logging.String("item", entry.Item),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the entry is marked unknown; re-run the check later"),
					logging.String(logging.FieldImpact, "grab state for this item is unknown"),
				)
				continue
			}

			entry.Grab = state
			result.Checked++
			if state != searchmeta.GrabConfirmed {
				continue
			}
			result.Grabs++
			if err := s.tracker.RecordEntry(ctx, inst.ID, contentType, *entry); err != nil {
				logging.WarnWithContext(logger, "feedback grab not recorded on library item", "feedback_record_grab_failed",
					logging.Int64("command_id", *entry.CommandID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "library grab counter not incremented"),
				)
			}
		}
	}()

	if abortErr != nil {
		logging.ErrorWithContext(logger, "feedback check aborted: instance unavailable", "feedback_check_client_failed",
			logging.Error(abortErr),
			logging.String(logging.FieldErrorKind, abortKind(abortErr)),
			logging.Int("checked", result.Checked),
			logging.Int("grabs", result.Grabs),
			logging.Int("remaining", len(pending)-result.Checked),
			logging.String(logging.FieldErrorHint, "check the instance URL, API key, and TLS settings"),
		)
		if result.Checked > 0 {
			s.saveMetadata(ctx, logger, run.ID, entries)
		}
		return result
	}

	s.saveMetadata(ctx, logger, run.ID, entries)
	logger.Info("feedback check completed",
		logging.String(logging.FieldEventType, "feedback_check_completed"),
		logging.Int("checked", result.Checked),
		logging.Int("grabs", result.Grabs),
		logging.Float64("elapsed_seconds", time.Since(started).Seconds()),
	)
	return result
}

// checkEntry polls one command and, when it has completed, asks the
// classifier. Unfinished commands are misses without a follow-up call.
func checkEntry(ctx context.Context, session arr.Session, classifier Classifier, entry searchmeta.Entry) (searchmeta.GrabState, error) {
	status, err := session.CommandStatus(ctx, *entry.CommandID)
	if err != nil {
		return searchmeta.GrabUnknown, err
	}
	if !status.Completed() {
		return searchmeta.GrabMissed, nil
	}
	confirmed, err := classifier.Confirm(ctx, entry)
	if err != nil {
		return searchmeta.GrabUnknown, err
	}
	return searchmeta.GrabFromBool(confirmed), nil
}

func abortKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, arr.ErrChannel):
		return "channel"
	default:
		return services.Kind(err)
	}
}

func (s *Service) clientConfig(inst *store.Instance, apiKey string) arr.Config {
	rps := inst.RateLimitPerSecond
	if rps <= 0 {
		rps = s.opts.DefaultRateLimit
	}
	return arr.Config{
		BaseURL:            inst.URL,
		APIKey:             apiKey,
		VerifySSL:          inst.VerifySSL,
		RateLimitPerSecond: rps,
		Timeout:            s.opts.RequestTimeout,
		MaxRetries:         s.opts.MaxRetries,
		InitialBackoff:     s.opts.RetryBackoff,
		Logger:             s.opts.Logger,
	}
}

// saveMetadata writes the enriched entries back. Failures are logged and
// swallowed; counts already returned to the caller stand.
func (s *Service) saveMetadata(ctx context.Context, logger *slog.Logger, runID int64, entries []searchmeta.Entry) {
	raw, err := searchmeta.Serialize(entries)
	if err != nil {
		logging.WarnWithContext(logger, "feedback metadata save failed", "feedback_check_metadata_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "grab results not stored on the search run"),
		)
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SaveTimeout)
	defer cancel()
	if err := s.store.UpdateSearchMetadata(saveCtx, runID, raw); err != nil {
		logging.WarnWithContext(logger, "feedback metadata save failed", "feedback_check_metadata_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "grab results not stored on the search run"),
		)
	}
}
