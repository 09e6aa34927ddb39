package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"splintarr/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		historyID int64
		level     string
		follow    bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var filter logs.Filter
			if historyID > 0 {
				filter = logs.ForHistory(historyID)
			}
			if level != "" {
				levelFilter := logs.MinLevel(level)
				if levelFilter == nil {
					return fmt.Errorf("--level must be debug, info, warn, or error, got %q", level)
				}
				filter = logs.All(filter, levelFilter)
			}

			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			for {
				result, err := logs.Tail(cmd.Context(), cfg.LogFilePath(), opts)
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				if !follow {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Minute, Filter: filter}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of records to show")
	cmd.Flags().Int64Var(&historyID, "history", 0, "Only records from reconciling this history run")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	return cmd
}
