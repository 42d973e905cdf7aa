package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensorgrid/tsdb/query"
)

func newEventsCmd() *cobra.Command {
	var (
		startMillis int64
		endMillis   int64
		maxEvents   int
		bucketHint  int
	)

	cmd := &cobra.Command{
		Use:   "events <channel>",
		Short: "List events for a channel over a window, downsampled if the raw count exceeds --max-events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := query.New(dataDir, query.WithMetrics(recorder))

			events, downsampled, err := f.GetEvents(cmd.Context(), query.EventsOptions{
				Channel:     args[0],
				StartMillis: startMillis,
				EndMillis:   endMillis,
				MaxEvents:   maxEvents,
				BucketHint:  bucketHint,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if downsampled {
				fmt.Fprintln(out, "# downsampled")
			}
			for _, e := range events {
				fmt.Fprintf(out, "%d\tmin=%.*f\tavg=%.*f\tmax=%.*f\tn=%d\n",
					e.TimestampMillis, e.Decimals, e.Min, e.Decimals, e.Avg, e.Decimals, e.Max, e.Count)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&startMillis, "start", 0, "window start, UNIX milliseconds UTC")
	cmd.Flags().Int64Var(&endMillis, "end", 0, "window end, UNIX milliseconds UTC")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "downsample if the raw sample count exceeds this (0 = never downsample)")
	cmd.Flags().IntVar(&bucketHint, "buckets", 0, "bucket count to use once downsampling triggers (0 = max-events)")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}
