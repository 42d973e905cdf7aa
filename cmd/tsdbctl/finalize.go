package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensorgrid/tsdb/writer"
)

func newFinalizeCmd() *cobra.Command {
	var tsMillis int64

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Append the end-of-file marker to the day file containing --ts and close it",
		Long: `finalize marks a day file as complete by appending its end-of-file marker.

A finalized file can never be appended to again, so only finalize a day
once you are certain no more late samples for it will arrive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := writer.Open(dataDir, writer.WithMetrics(recorder))
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Finalize(tsMillis); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "finalized %s\n", writer.FileName(tsMillis))

			return nil
		},
	}

	cmd.Flags().Int64Var(&tsMillis, "ts", 0, "any timestamp within the UTC day to finalize, UNIX milliseconds UTC")
	cmd.MarkFlagRequired("ts")

	return cmd
}
