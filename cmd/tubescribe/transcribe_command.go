package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"tubescribe/internal/api"
	"tubescribe/internal/app"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var model string
	var window float64
	var language string
	var copyText bool
	var textOnly bool

	cmd := &cobra.Command{
		Use:   "transcribe URL",
		Short: "Transcribe a video into timestamped windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				resp, err := a.Service.Transcribe(cmd.Context(), api.TranscribeRequest{
					URL:             args[0],
					Model:           model,
					SegmentDuration: window,
					Language:        language,
				})
				if err == nil && copyText {
					if clipErr := copyToClipboard(resp.FullTranscript); clipErr != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: unable to copy transcript: %v\n", clipErr)
					} else {
						fmt.Fprintln(cmd.ErrOrStderr(), "Transcript copied to clipboard")
					}
				}
				return emitResult(cmd, ctx, resp, err, func(w io.Writer) error {
					if textOnly {
						_, werr := fmt.Fprintln(w, resp.FullTranscript)
						return werr
					}
					return renderTranscript(w, resp)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (tiny, base, small, medium, large)")
	cmd.Flags().Float64VarP(&window, "segment-duration", "w", 0, "Window width in seconds (default from config)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language hint (code or name)")
	cmd.Flags().BoolVar(&copyText, "copy", false, "Copy the full transcript to the clipboard")
	cmd.Flags().BoolVar(&textOnly, "text", false, "Print only the full transcript")
	return cmd
}

func renderTranscript(w io.Writer, resp api.TranscribeResponse) error {
	if resp.VideoInfo != nil {
		fmt.Fprintf(w, "%s (%s)\n", resp.VideoInfo.Title, formatClock(resp.VideoInfo.Duration))
	}
	fmt.Fprintf(w, "Model: %s  Language: %s  Window: %ss  Segments: %d  Took: %.1fs\n",
		resp.WhisperModelUsed,
		resp.Language,
		strconv.FormatFloat(resp.SegmentDuration, 'f', -1, 64),
		resp.TotalSegments,
		resp.ProcessingTime,
	)
	fmt.Fprintf(w, "Run: %s\n", resp.RunID)

	columns := []tableColumn{
		{Header: "#", Align: alignRight},
		{Header: "Start", Align: alignRight},
		{Header: "End", Align: alignRight},
		{Header: "Text", WidthMax: 60},
		{Header: "Link"},
	}
	rows := make([][]string, 0, len(resp.TranscriptSegments))
	for _, seg := range resp.TranscriptSegments {
		rows = append(rows, []string{
			strconv.Itoa(seg.ID),
			formatClock(seg.Start),
			formatClock(seg.End),
			strings.TrimSpace(seg.Text),
			seg.Link,
		})
	}
	_, err := fmt.Fprintln(w, renderTable(columns, rows))
	return err
}
