// Package metrics tracks tsdb-specific Prometheus metrics.
//
// All metrics use the tsdb_ prefix. Metrics are observability-only: every
// recording method is a nil-safe no-op when the collaborator is not
// wired to a registerer, so the codec and store packages never have to
// special-case "metrics disabled".
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder tracks append, query, and file-lifecycle metrics.
type Recorder struct {
	AppendsTotal      *prometheus.CounterVec
	AppendDuration    prometheus.Histogram
	BytesWrittenTotal prometheus.Counter

	FilesOpenTotal     *prometheus.CounterVec
	FilesFinalized     prometheus.Counter
	RecoveryTruncation prometheus.Counter

	QueryDuration   *prometheus.HistogramVec
	QueryErrorTotal *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors with reg.
//
// Panics if registration fails, since that only happens on a duplicate
// registration during process initialization.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	m := &Recorder{
		AppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_appends_total",
				Help: "Total Append calls by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		AppendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tsdb_append_duration_seconds",
				Help:    "Append call latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		BytesWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tsdb_bytes_written_total",
				Help: "Total entry bytes appended across all day files.",
			},
		),
		FilesOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_files_open_total",
				Help: "Total day files opened by mode (create, append).",
			},
			[]string{"mode"},
		),
		FilesFinalized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tsdb_files_finalized_total",
				Help: "Total day files finalized with an end-of-file marker.",
			},
		),
		RecoveryTruncation: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tsdb_recovery_truncations_total",
				Help: "Total times a reopened day file was truncated back to its last complete entry.",
			},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsdb_query_duration_seconds",
				Help:    "Query facade call latency in seconds by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QueryErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_query_errors_total",
				Help: "Total query errors by operation and error kind.",
			},
			[]string{"operation", "kind"},
		),
	}

	reg.MustRegister(
		m.AppendsTotal,
		m.AppendDuration,
		m.BytesWrittenTotal,
		m.FilesOpenTotal,
		m.FilesFinalized,
		m.RecoveryTruncation,
		m.QueryDuration,
		m.QueryErrorTotal,
	)

	return m
}

// RecordAppend records the outcome and latency of one Append call.
func (m *Recorder) RecordAppend(ok bool, durationSeconds float64, entryBytes int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.AppendsTotal.WithLabelValues(outcome).Inc()
	m.AppendDuration.Observe(durationSeconds)
	if ok {
		m.BytesWrittenTotal.Add(float64(entryBytes))
	}
}

// RecordFileOpen records a day file being opened in the given mode.
func (m *Recorder) RecordFileOpen(mode string) {
	if m == nil {
		return
	}
	m.FilesOpenTotal.WithLabelValues(mode).Inc()
}

// RecordFinalize records a day file being finalized.
func (m *Recorder) RecordFinalize() {
	if m == nil {
		return
	}
	m.FilesFinalized.Inc()
}

// RecordRecoveryTruncation records a crash-recovery truncation.
func (m *Recorder) RecordRecoveryTruncation() {
	if m == nil {
		return
	}
	m.RecoveryTruncation.Inc()
}

// RecordQuery records the latency of a query operation, and its error kind
// if it failed ("" when it succeeded).
func (m *Recorder) RecordQuery(operation string, durationSeconds float64, errKind string) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(operation).Observe(durationSeconds)
	if errKind != "" {
		m.QueryErrorTotal.WithLabelValues(operation, errKind).Inc()
	}
}
