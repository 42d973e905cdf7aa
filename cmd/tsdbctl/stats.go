package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensorgrid/tsdb/query"
)

func newStatsCmd() *cobra.Command {
	var (
		startMillis int64
		endMillis   int64
		nowMillis   int64
	)

	cmd := &cobra.Command{
		Use:   "stats <channel>",
		Short: "Print count, current value, and max value for a channel over a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := query.New(dataDir, query.WithMetrics(recorder))

			stats, err := f.GetStats(cmd.Context(), query.StatsOptions{
				Channel:     args[0],
				StartMillis: startMillis,
				EndMillis:   endMillis,
				NowMillis:   nowMillis,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "count=%d\n", stats.Count)
			if stats.HasCurrent {
				fmt.Fprintf(out, "current=%.*f\n", stats.Decimals, stats.CurrentValue)
			} else {
				fmt.Fprintln(out, "current=(stale or none)")
			}
			fmt.Fprintf(out, "max=%.*f\n", stats.Decimals, stats.MaxValue)

			return nil
		},
	}

	cmd.Flags().Int64Var(&startMillis, "start", 0, "window start, UNIX milliseconds UTC")
	cmd.Flags().Int64Var(&endMillis, "end", 0, "window end, UNIX milliseconds UTC")
	cmd.Flags().Int64Var(&nowMillis, "now", 0, "reference time for current-value freshness, UNIX milliseconds UTC")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("now")

	return cmd
}
