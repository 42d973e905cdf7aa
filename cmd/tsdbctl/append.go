package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/value"
	"github.com/sensorgrid/tsdb/writer"
)

func newAppendCmd() *cobra.Command {
	var (
		formatSpec string
		tsMillis   int64
		rawValue   string
	)

	cmd := &cobra.Command{
		Use:   "append <channel>",
		Short: "Append one sample to the day file for its timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatID, err := parseFormatID(formatSpec)
			if err != nil {
				return err
			}

			v, err := parseValueFlag(formatID, rawValue)
			if err != nil {
				return err
			}

			w, err := writer.Open(dataDir, writer.WithMetrics(recorder))
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Append(args[0], formatID, tsMillis, v); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "appended %s=%s at %d to %s\n", args[0], rawValue, tsMillis, writer.FileName(tsMillis))

			return nil
		},
	}

	cmd.Flags().StringVar(&formatSpec, "format", "float32", "value format, e.g. float32, double2, int16/100, string8")
	cmd.Flags().Int64Var(&tsMillis, "ts", 0, "sample timestamp, UNIX milliseconds UTC")
	cmd.Flags().StringVar(&rawValue, "value", "", "sample value")
	cmd.MarkFlagRequired("ts")
	cmd.MarkFlagRequired("value")

	return cmd
}

func parseValueFlag(formatID format.FormatID, raw string) (value.Value, error) {
	switch {
	case formatID == format.FormatString8 || formatID == format.FormatString16 ||
		formatID == format.FormatString32 || formatID == format.FormatString64:
		return value.Value{Kind: value.KindString, Str: raw}, nil

	case isExactIntegerFormat(formatID):
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid --value %q: %w", raw, err)
		}

		return value.Value{Kind: value.KindInt, Int: n}, nil

	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid --value %q: %w", raw, err)
		}

		return value.Value{Kind: value.KindDouble, Double: f}, nil
	}
}

// isExactIntegerFormat reports whether formatID is an integer family with a
// zero low nibble, i.e. stored as a raw integer with no fixed-point scaling.
func isExactIntegerFormat(formatID format.FormatID) bool {
	bases := []format.FormatID{
		format.FormatInt8Base, format.FormatInt16Base, format.FormatInt24Base, format.FormatInt32Base, format.FormatInt64Base,
		format.FormatUint8Base, format.FormatUint16Base, format.FormatUint24Base, format.FormatUint32Base, format.FormatUint64Base,
	}
	for _, base := range bases {
		if formatID >= base && formatID < base+4 {
			return byte(formatID)&0x0f == 0
		}
	}

	return false
}
