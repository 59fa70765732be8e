package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tubescribe/internal/app"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info URL",
		Short: "Show video metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				resp, err := a.Service.VideoInfo(cmd.Context(), args[0])
				return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
					info := resp.VideoInfo
					rows := [][]string{
						{"Video ID", info.VideoID},
						{"Title", info.Title},
						{"Uploader", info.Uploader},
						{"Duration", formatClock(info.Duration)},
						{"Uploaded", info.UploadDate},
						{"Views", strconv.FormatInt(info.ViewCount, 10)},
						{"URL", info.WebpageURL},
					}
					_, werr := fmt.Fprintln(w, renderTable([]tableColumn{{Header: "Field"}, {Header: "Value", WidthMax: 80}}, rows))
					return werr
				})
			})
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download URL",
		Short: "Download a video's audio into the storage area",
		Long: "Download a video's audio into the storage area. The file stays until " +
			"'tubescribe cleanup' removes it or the stale sweep ages it out.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				resp, err := a.Service.DownloadAudio(cmd.Context(), args[0])
				return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
					_, werr := fmt.Fprintf(w, "Downloaded %s (%s) to %s\n", resp.VideoID, formatBytes(resp.FileSize), resp.AudioPath)
					return werr
				})
			})
		},
	}
}
