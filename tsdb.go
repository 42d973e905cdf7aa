// Package tsdb provides a filesystem-backed, append-only time series
// storage format: one file per UTC day, a compact binary entry stream
// (channel definitions, timestamps, values), and crash-tolerant appends.
//
// # Core features
//
//   - Append-only day files with a dense 8-bit channel id table that
//     widens to 16-bit ids past 240 channels
//   - A compact entry stream: absolute and narrow relative time deltas,
//     float/double/string/scaled-integer value formats
//   - Crash-tolerant writer: a reopened day file is rescanned and
//     truncated back to its last complete entry before appending resumes
//   - A read-side façade for listing channels, fetching (optionally
//     downsampled) events, and computing window statistics
//
// # Basic usage
//
//	w, _ := tsdb.NewWriter("./data", nil)
//	defer w.Close()
//
//	now := time.Now().UnixMilli()
//	w.Append("temp", format.FormatInt16Base+2, now, value.Value{Kind: value.KindDouble, Double: 23.45})
//
//	f := tsdb.NewQuery("./data", nil)
//	events, _, _ := f.GetEvents(context.Background(), query.EventsOptions{
//	    Channel: "temp", StartMillis: now - 3600_000, EndMillis: now,
//	})
//
// This package is a thin convenience layer over writer, store, and query;
// for fine-grained control (custom metrics registries, directory scans
// without the query façade) use those packages directly.
package tsdb

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensorgrid/tsdb/internal/metrics"
	"github.com/sensorgrid/tsdb/query"
	"github.com/sensorgrid/tsdb/writer"
)

// NewWriter opens a Writer rooted at dir, creating dir if needed, with
// metrics registered against reg (pass nil to disable metrics).
func NewWriter(dir string, reg prometheus.Registerer) (*writer.Writer, error) {
	var opts []writer.Option
	if reg != nil {
		opts = append(opts, writer.WithMetrics(metrics.NewRecorder(reg)))
	}

	return writer.Open(dir, opts...)
}

// NewQuery creates a read-side Facade over dir, with metrics registered
// against reg (pass nil to disable metrics).
func NewQuery(dir string, reg prometheus.Registerer) *query.Facade {
	var opts []query.Option
	if reg != nil {
		opts = append(opts, query.WithMetrics(metrics.NewRecorder(reg)))
	}

	return query.New(dir, opts...)
}
