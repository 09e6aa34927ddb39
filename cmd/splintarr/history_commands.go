package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"splintarr/internal/searchmeta"
	"splintarr/internal/services"
	"splintarr/internal/store"
)

var titleCaser = cases.Title(language.Und)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect search history runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

type historyRunView struct {
	ID         int64              `json:"id"`
	InstanceID int64              `json:"instance_id"`
	Name       string             `json:"name"`
	Strategy   string             `json:"strategy"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	Searched   int                `json:"items_searched"`
	Triggered  int                `json:"searches_triggered"`
	Feedback   searchmeta.Summary `json:"feedback"`
	Metadata   string             `json:"metadata_state,omitempty"`
}

func summarizeRun(run *store.SearchRun) historyRunView {
	view := historyRunView{
		ID:         run.ID,
		InstanceID: run.InstanceID,
		Name:       run.Name,
		Strategy:   run.Strategy,
		Status:     run.Status,
		StartedAt:  run.StartedAt,
		Searched:   run.ItemsSearched,
		Triggered:  run.SearchesTriggered,
	}
	entries, reason := searchmeta.Parse(run.Metadata)
	if reason != searchmeta.ReasonOK {
		view.Metadata = reason.String()
		return view
	}
	view.Feedback = searchmeta.Summarize(entries)
	return view
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent search runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.ListSearchRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := make([]historyRunView, 0, len(runs))
				for _, run := range runs {
					views = append(views, summarizeRun(run))
				}
				if jsonOutput {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No search history")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						strconv.FormatInt(v.InstanceID, 10),
						v.Name,
						titleCaser.String(v.Strategy),
						v.StartedAt.Local().Format("2006-01-02 15:04"),
						strconv.Itoa(v.Searched),
						feedbackColumn(v),
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{header: "ID", align: alignRight},
					{header: "Instance", align: alignRight},
					{header: "Name", maxWidth: 40},
					{header: "Strategy"},
					{header: "Started"},
					{header: "Searched", align: alignRight},
					{header: "Grabs"},
				}, rows))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func feedbackColumn(v historyRunView) string {
	if v.Metadata != "" {
		return v.Metadata
	}
	s := v.Feedback
	if s.Actionable == 0 {
		return "-"
	}
	checked := s.Actionable - s.Unchecked
	if checked == 0 {
		return "pending"
	}
	return fmt.Sprintf("%d/%d", s.Confirmed, checked)
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the recorded commands of a search run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			return ctx.withStore(func(st *store.Store) error {
				run, err := st.GetSearchRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if run == nil {
					return services.Wrap(services.ErrNotFound, "history", "show",
						fmt.Sprintf("history %d does not exist", id), nil)
				}
				entries, reason := searchmeta.Parse(run.Metadata)
				if jsonOutput {
					if reason != searchmeta.ReasonOK {
						return writeJSON(cmd, map[string]any{"id": run.ID, "metadata_state": reason.String()})
					}
					return writeJSON(cmd, map[string]any{"id": run.ID, "entries": json.RawMessage(mustSerialize(entries))})
				}
				return renderHistoryRun(cmd, run, entries, reason)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func mustSerialize(entries []searchmeta.Entry) string {
	raw, err := searchmeta.Serialize(entries)
	if err != nil {
		return "[]"
	}
	return raw
}

func renderHistoryRun(cmd *cobra.Command, run *store.SearchRun, entries []searchmeta.Entry, reason searchmeta.Reason) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("History #%d: %s", run.ID, run.Name), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Instance: %d\n", run.InstanceID)
	fmt.Fprintf(out, "Strategy: %s\n", titleCaser.String(run.Strategy))
	fmt.Fprintf(out, "Status:   %s\n", titleCaser.String(run.Status))
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC1123))
	if run.CompletedAt != nil {
		fmt.Fprintf(out, "Finished: %s\n", run.CompletedAt.Local().Format(time.RFC1123))
	}

	switch reason {
	case searchmeta.ReasonOK:
	case searchmeta.ReasonEmpty:
		fmt.Fprintln(out, "No commands recorded")
		return nil
	default:
		return errors.New("search metadata is unreadable: " + reason.String())
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No commands recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		command := "-"
		if e.CommandID != nil {
			command = strconv.FormatInt(*e.CommandID, 10)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.Item,
			e.Action,
			command,
			titleCaser.String(e.Result),
			grabLabel(e.Grab, colorize),
		})
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{header: "#", align: alignRight},
		{header: "Item", maxWidth: 48},
		{header: "Action"},
		{header: "Command", align: alignRight},
		{header: "Result"},
		{header: "Grab"},
	}, rows))
	fmt.Fprintln(out)

	s := searchmeta.Summarize(entries)
	fmt.Fprintf(out, "%d searched, %d grabbed, %d no grab, %d unknown, %d unchecked\n",
		s.Actionable, s.Confirmed, s.Missed, s.Unknown, s.Unchecked)
	return nil
}
