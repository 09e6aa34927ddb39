package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"splintarr/internal/daemon"
	"splintarr/internal/feedback"
	"splintarr/internal/logging"
	"splintarr/internal/notifications"
	"splintarr/internal/services"
	"splintarr/internal/store"
)

func newFeedbackCommand(ctx *commandContext) *cobra.Command {
	feedbackCmd := &cobra.Command{
		Use:   "feedback",
		Short: "Reconcile search commands with grab outcomes",
	}
	feedbackCmd.AddCommand(newFeedbackCheckCommand(ctx))
	return feedbackCmd
}

type feedbackCheckOutput struct {
	HistoryID  int64  `json:"history_id"`
	InstanceID int64  `json:"instance_id"`
	RequestID  string `json:"request_id"`
	Checked    int    `json:"checked"`
	Grabs      int    `json:"grabs"`
}

func newFeedbackCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		historyID  int64
		instanceID int64
		timeout    time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check which searched commands produced a grab",
		Long: "Polls every search command recorded on a history run, records\n" +
			"confirmed grabs on the library, and writes the outcome back onto the run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if historyID <= 0 {
				return errors.New("--history must be a positive id")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cmd)

			lock := daemon.HistoryLock(cfg.LockDir(), historyID)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire history lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("history %d is already being reconciled", historyID)
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release history lock", logging.Error(err))
				}
			}()

			cipher, err := ctx.cipher()
			if err != nil {
				return err
			}

			return ctx.withStore(func(st *store.Store) error {
				runCtx := cmd.Context()
				if runCtx == nil {
					runCtx = context.Background()
				}
				if timeout > 0 {
					var cancel context.CancelFunc
					runCtx, cancel = context.WithTimeout(runCtx, timeout)
					defer cancel()
				}

				run, err := st.GetSearchRun(runCtx, historyID)
				if err != nil {
					return fmt.Errorf("load history %d: %w", historyID, err)
				}
				if run == nil {
					return services.Wrap(services.ErrNotFound, "feedback", "check",
						fmt.Sprintf("history %d does not exist", historyID), nil)
				}
				target := instanceID
				if target == 0 {
					target = run.InstanceID
				}

				requestID := uuid.NewString()
				runCtx = services.WithRequestID(runCtx, requestID)

				notifier := notifications.NewService(cfg)
				opts := feedback.OptionsFromConfig(cfg)
				opts.Notifier = notifier
				opts.Logger = logger
				result := feedback.NewService(st, cipher, opts).Reconcile(runCtx, historyID, target)

				if runCtx.Err() == nil {
					if err := st.MarkFeedbackChecked(context.WithoutCancel(runCtx), historyID); err != nil {
						logging.WarnWithContext(logger, "failed to mark run as checked", "feedback_mark_checked_failed",
							logging.Error(err),
							logging.String(logging.FieldImpact, "the scheduler will reconcile this run again"),
						)
					}
				}

				if result.Checked > 0 {
					notifyCtx := context.WithoutCancel(runCtx)
					if err := notifier.NotifyFeedbackSummary(notifyCtx, run.Name, result.Checked, result.Grabs); err != nil {
						logging.WarnWithContext(logger, "feedback summary notification failed", "feedback_summary_notify_failed",
							logging.Error(err),
							logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
						)
					}
				}

				if jsonOutput {
					return writeJSON(cmd, feedbackCheckOutput{
						HistoryID:  historyID,
						InstanceID: target,
						RequestID:  requestID,
						Checked:    result.Checked,
						Grabs:      result.Grabs,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(fmt.Sprintf("History #%d", historyID), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Commands checked", checkedKind(result), fmt.Sprintf("%d", result.Checked), colorize))
				fmt.Fprintln(out, renderStatusLine("Grabs confirmed", grabsKind(result), fmt.Sprintf("%d", result.Grabs), colorize))
				if result.Checked == 0 {
					fmt.Fprintln(out, "Nothing was checked; see the log for the reason.")
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&historyID, "history", 0, "Search history run id")
	cmd.Flags().Int64Var(&instanceID, "instance", 0, "Instance id (defaults to the run's instance)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the check after this long; completed results are still saved")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("history")
	return cmd
}

func checkedKind(result feedback.Result) statusKind {
	if result.Checked == 0 {
		return statusWarn
	}
	return statusInfo
}

func grabsKind(result feedback.Result) statusKind {
	if result.Grabs > 0 {
		return statusOK
	}
	return statusInfo
}
