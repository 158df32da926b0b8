package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reeler/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently encoded episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	historyCmd.PersistentFlags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows to show")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	})

	return historyCmd
}

func withHistory(cmd *cobra.Command, ctx *commandContext, fn func(*history.Store) error) error {
	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "History is disabled in the configuration")
		return nil
	}
	defer store.Close()
	return fn(store)
}

func printEntries(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No encoded episodes recorded")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.EpisodeID,
			e.OutputPath,
			formatDuration(e.Duration),
			humanize.Bytes(uint64(max(e.SizeBytes, 0))),
			humanize.Time(e.CompletedAt),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Episode", "Output", "Duration", "Size", "Completed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		nil,
	))
}

func printRuns(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		took := "-"
		if !r.FinishedAt.IsZero() {
			took = formatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		rows = append(rows, []string{
			r.ID,
			r.Status,
			strconv.Itoa(r.Episodes),
			r.StartedAt.Local().Format(time.DateTime),
			took,
			r.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Status", "Episodes", "Started", "Took", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
		nil,
	))
}
