package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tubescribe/internal/app"
	"tubescribe/internal/staging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "cleanup [PATH]",
		Short: "Remove downloaded audio from the storage area",
		Long: "Without arguments, removes every file in the storage area. With PATH, " +
			"removes that file or run directory only. --list shows what is stored.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				if list {
					return listStorage(cmd, ctx, a)
				}
				if len(args) == 1 {
					resp, err := a.Service.CleanupFile(args[0])
					return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
						if !resp.Removed {
							_, werr := fmt.Fprintf(w, "Nothing to remove at %s\n", resp.Path)
							return werr
						}
						_, werr := fmt.Fprintf(w, "Removed %s\n", resp.Path)
						return werr
					})
				}
				resp, err := a.Service.CleanupAll()
				return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
					_, werr := fmt.Fprintln(w, resp.Message)
					return werr
				})
			})
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List run directories in the storage area instead of removing them")
	return cmd
}

func listStorage(cmd *cobra.Command, ctx *commandContext, a *app.App) error {
	dirs, err := staging.ListDirectories(a.Storage.Root())
	if err != nil {
		return err
	}
	if dirs == nil {
		dirs = []staging.DirInfo{}
	}
	return emit(cmd, ctx, dirs, func(w io.Writer) error {
		if len(dirs) == 0 {
			_, werr := fmt.Fprintf(w, "Storage area %s is empty\n", a.Storage.Root())
			return werr
		}
		columns := []tableColumn{
			{Header: "Directory"},
			{Header: "Modified"},
			{Header: "Size", Align: alignRight},
		}
		rows := make([][]string, 0, len(dirs))
		for _, d := range dirs {
			rows = append(rows, []string{d.Name, d.ModTime.Local().Format("2006-01-02 15:04"), formatBytes(d.Size)})
		}
		_, werr := fmt.Fprintln(w, renderTable(columns, rows))
		return werr
	})
}
