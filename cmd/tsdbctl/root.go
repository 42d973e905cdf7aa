package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sensorgrid/tsdb/internal/metrics"
	"github.com/sensorgrid/tsdb/internal/obslog"
)

var (
	dataDir   string
	logLevel  string
	logFormat string

	recorder *metrics.Recorder
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tsdbctl",
		Short: "Operate a tsdb day-file directory",
		Long: `tsdbctl appends samples to and queries a directory of tsdb day files.

Examples:
  tsdbctl --dir ./data append temp --format int16/100 --ts 1700000000000 --value 23.45
  tsdbctl --dir ./data events temp --start 1700000000000 --end 1700003600000
  tsdbctl --dir ./data stats temp --start 1700000000000 --end 1700003600000 --now 1700003600000
  tsdbctl --dir ./data channels --start 1700000000000 --end 1700003600000
  tsdbctl --dir ./data finalize --ts 1700000000000`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obslog.Configure(obslog.Config{Level: logLevel, Format: logFormat})
			recorder = metrics.NewRecorder(prometheus.NewRegistry())
		},
	}

	root.PersistentFlags().StringVar(&dataDir, "dir", ".", "tsdb day-file directory")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text or json")

	root.AddCommand(newAppendCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newChannelsCmd())
	root.AddCommand(newFinalizeCmd())

	return root
}
