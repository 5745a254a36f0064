package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bmsrender/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List job records and their outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				list, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.URL,
						jobOutcome(job),
						job.Batch,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(rows))
				fmt.Fprintf(cmd.OutOrStdout(), "%d total: %d pending, %d succeeded, %d failed\n",
					stats.Total, stats.Pending, stats.Succeeded, stats.Failed)
				return nil
			})
		},
	}
}

func jobOutcome(job *jobs.Job) string {
	switch {
	case !job.Attempted():
		return "pending"
	case job.Succeeded():
		return "rendered"
	default:
		return "failed"
	}
}

func renderJobsTable(rows [][]string) string {
	tw := table.NewWriter()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}

	tw.AppendHeader(table.Row{"ID", "URL", "Outcome", "Batch"})
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, WidthMax: 72},
	})
	return tw.Render()
}
