package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tubescribe/internal/app"
	"tubescribe/internal/pipeline"
	"tubescribe/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded transcription runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]pipeline.State, 0, len(states))
			for _, s := range states {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					filter = append(filter, pipeline.State(trimmed))
				}
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				resp, err := a.Service.Runs(cmd.Context(), limit, filter)
				return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
					if len(resp.Runs) == 0 {
						_, werr := fmt.Fprintln(w, "No runs recorded")
						return werr
					}
					columns := []tableColumn{
						{Header: "Run"},
						{Header: "Started"},
						{Header: "State"},
						{Header: "Model"},
						{Header: "Segments", Align: alignRight},
						{Header: "Elapsed", Align: alignRight},
						{Header: "Title", WidthMax: 40},
					}
					rows := make([][]string, 0, len(resp.Runs))
					for _, r := range resp.Runs {
						rows = append(rows, []string{
							shortID(r.ID),
							r.StartedAt.Local().Format("2006-01-02 15:04"),
							runStateLabel(r),
							r.Model,
							strconv.Itoa(r.SegmentCount),
							formatElapsed(r.ElapsedMS),
							r.Title,
						})
					}
					_, werr := fmt.Fprintln(w, renderTable(columns, rows))
					return werr
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only show runs in these states (repeatable)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one run, including its transcript when it succeeded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				resp, err := a.Service.Run(cmd.Context(), strings.TrimSpace(args[0]))
				return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
					return renderRun(w, resp.Run)
				})
			})
		},
	}
}

func renderRun(w io.Writer, r *runstore.Record) error {
	rows := [][]string{
		{"Run", r.ID},
		{"URL", r.URL},
		{"Video", r.VideoID},
		{"Title", r.Title},
		{"State", runStateLabel(*r)},
		{"Model", r.Model},
		{"Window", strconv.FormatFloat(r.WindowSeconds, 'f', -1, 64) + "s"},
		{"Language", r.Language},
		{"Started", r.StartedAt.Local().Format(time.RFC3339)},
		{"Elapsed", formatElapsed(r.ElapsedMS)},
	}
	if r.ErrorMessage != "" {
		rows = append(rows, []string{"Error", r.ErrorMessage})
	}
	fmt.Fprintln(w, renderTable([]tableColumn{{Header: "Field"}, {Header: "Value", WidthMax: 80}}, rows))
	if r.Result == nil || len(r.Result.Segments) == 0 {
		return nil
	}
	columns := []tableColumn{
		{Header: "#", Align: alignRight},
		{Header: "Start", Align: alignRight},
		{Header: "Text", WidthMax: 60},
		{Header: "Link"},
	}
	rowsOut := make([][]string, 0, len(r.Result.Segments))
	for _, seg := range r.Result.Segments {
		rowsOut = append(rowsOut, []string{strconv.Itoa(seg.ID), formatClock(seg.Start), strings.TrimSpace(seg.Text), seg.Link})
	}
	_, err := fmt.Fprintln(w, renderTable(columns, rowsOut))
	return err
}

func runStateLabel(r runstore.Record) string {
	if r.ErrorKind != "" {
		return fmt.Sprintf("%s (%s)", r.State, r.ErrorKind)
	}
	return string(r.State)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}
