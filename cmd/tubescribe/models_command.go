package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tubescribe/internal/app"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List recognition models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				resp := a.Service.Models()
				return emit(cmd, ctx, resp, func(w io.Writer) error {
					columns := []tableColumn{
						{Header: "Model"},
						{Header: "Size", Align: alignRight},
						{Header: "Parameters", Align: alignRight},
						{Header: "Memory", Align: alignRight},
						{Header: "Speed", Align: alignRight},
						{Header: "Multilingual"},
						{Header: "Cached"},
					}
					rows := make([][]string, 0, len(resp.Models))
					for _, m := range resp.Models {
						rows = append(rows, []string{
							m.Name,
							m.Size,
							m.Parameters,
							m.MemoryRequired,
							strconv.FormatFloat(m.RelativeSpeed, 'f', -1, 64) + "x",
							yesNo(m.Multilingual),
							yesNo(m.Available),
						})
					}
					fmt.Fprintln(w, renderTable(columns, rows))
					_, err := fmt.Fprintf(w, "Device: %s  Backend: %s\n", resp.Device, a.Config.Recognition.Backend)
					return err
				})
			})
		},
	}
}
