package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensorgrid/tsdb/query"
)

func newChannelsCmd() *cobra.Command {
	var startMillis, endMillis int64

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List every channel declared in the window's day files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := query.New(dataDir, query.WithMetrics(recorder))

			chs, err := f.ListChannels(cmd.Context(), startMillis, endMillis)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ch := range chs {
				fmt.Fprintf(out, "%d\t%s\t%s\n", ch.ID, ch.Name, ch.FormatID)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&startMillis, "start", 0, "window start, UNIX milliseconds UTC")
	cmd.Flags().Int64Var(&endMillis, "end", 0, "window end, UNIX milliseconds UTC")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}
