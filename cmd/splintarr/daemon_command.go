package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"splintarr/internal/daemon"
	"splintarr/internal/feedback"
	"splintarr/internal/logging"
	"splintarr/internal/notifications"
	"splintarr/internal/store"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Reconcile finished search runs on a schedule",
		Long: "Runs in the foreground and reconciles every search run that finished\n" +
			"more than feedback.check_delay_minutes ago. Stop with Ctrl+C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cmd)
			cipher, err := ctx.cipher()
			if err != nil {
				return err
			}

			return ctx.withStore(func(st *store.Store) error {
				notifier := notifications.NewService(cfg)
				opts := feedback.OptionsFromConfig(cfg)
				opts.Notifier = notifier
				opts.Logger = logger
				svc := feedback.NewService(st, cipher, opts)

				d, err := daemon.New(cfg, st, svc, notifier, logger, daemon.Options{Interval: interval})
				if err != nil {
					return err
				}

				runCtx := cmd.Context()
				if runCtx == nil {
					runCtx = context.Background()
				}
				out := cmd.OutOrStdout()

				if once {
					count, err := d.RunOnce(runCtx)
					if err != nil {
						return fmt.Errorf("feedback pass: %w", err)
					}
					fmt.Fprintf(out, "Reconciled %d search run(s)\n", count)
					return nil
				}

				if err := d.Start(runCtx); err != nil {
					return err
				}
				fmt.Fprintf(out, "Splintarr daemon running (lock %s)\n", d.Status().LockFilePath)
				<-runCtx.Done()
				d.Stop()
				status := d.Status()
				logger.Info("daemon exiting", logging.Int64("reconciled", status.Reconciled))
				fmt.Fprintf(out, "Stopped after reconciling %d search run(s)\n", status.Reconciled)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Time between passes")
	return cmd
}
