package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tubescribe/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, binaries, and the recognition backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			failed := 0
			for _, r := range results {
				if !r.Passed {
					failed++
				}
			}
			renderErr := emit(cmd, ctx, results, func(w io.Writer) error {
				colorize := shouldColorize(w)
				lines := renderSectionHeader("tubescribe "+cfg.Recognition.Backend, colorize)
				for _, r := range results {
					kind := statusOK
					switch {
					case !r.Passed:
						kind = statusError
					case strings.HasPrefix(r.Detail, "optional:") || strings.HasPrefix(r.Detail, "not cached"):
						kind = statusWarn
					}
					lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				_, werr := fmt.Fprintln(w, strings.Join(lines, "\n"))
				return werr
			})
			if renderErr != nil {
				return renderErr
			}
			if failed > 0 {
				return errors.New(pluralChecks(failed) + " failed")
			}
			return nil
		},
	}
}

func pluralChecks(n int) string {
	if n == 1 {
		return "1 check"
	}
	return fmt.Sprintf("%d checks", n)
}
