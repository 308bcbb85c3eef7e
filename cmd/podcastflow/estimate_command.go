package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"podcastflow/internal/estimate"
)

func newEstimateCommand() *cobra.Command {
	var duration float64
	var sizeFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "estimate [file]",
		Short:       "Estimate processing time from a duration, a size or a local file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var size int64
			switch {
			case len(args) == 1:
				info, err := os.Stat(args[0])
				if err != nil {
					return fmt.Errorf("stat %s: %w", args[0], err)
				}
				size = info.Size()
			case sizeFlag != "":
				parsed, err := humanize.ParseBytes(sizeFlag)
				if err != nil {
					return fmt.Errorf("parse --size: %w", err)
				}
				size = int64(parsed)
			case duration <= 0:
				return errors.New("provide a file, --duration or --size")
			}

			var durationPtr *float64
			if duration > 0 {
				durationPtr = &duration
			}
			est := estimate.ForUpload(durationPtr, size)
			if asJSON {
				return writeJSON(cmd, est)
			}

			pairs := [][2]string{}
			if durationPtr != nil {
				pairs = append(pairs, [2]string{"Duration", fmt.Sprintf("%.0f seconds", duration)})
			} else {
				pairs = append(pairs,
					[2]string{"Size", estimate.FormatFileSize(size)},
					[2]string{"Assumed duration", fmt.Sprintf("%.0f seconds", estimate.DurationFromSize(size))},
				)
			}
			pairs = append(pairs,
				[2]string{"Best case", estimate.FormatTimeEstimate(float64(est.BestCase))},
				[2]string{"Conservative", estimate.FormatTimeEstimate(float64(est.Conservative))},
				[2]string{"Estimate", est.String()},
			)
			fmt.Fprintln(cmd.OutOrStdout(), renderPairs(pairs))
			return nil
		},
	}
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "Media duration in seconds")
	cmd.Flags().StringVarP(&sizeFlag, "size", "s", "", "File size, e.g. 48MB or 120MiB")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
