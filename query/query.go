// Package query implements the read-side façade (spec §4.7): listing
// channels, fetching a time window of events (optionally downsampled into
// buckets), and computing summary statistics over a window.
package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/internal/metrics"
	"github.com/sensorgrid/tsdb/internal/options"
	"github.com/sensorgrid/tsdb/record"
	"github.com/sensorgrid/tsdb/registry"
	"github.com/sensorgrid/tsdb/store"
)

// Facade answers read queries against one tsdb directory.
type Facade struct {
	dir     *store.Directory
	metrics *metrics.Recorder
}

// Option configures a Facade.
type Option = options.Option[*Facade]

// WithMetrics attaches a metrics recorder; nil (the default) disables
// metrics recording.
func WithMetrics(m *metrics.Recorder) Option {
	return options.NoError(func(f *Facade) { f.metrics = m })
}

// New creates a Facade over the day files in dir. Facade construction has
// no failure mode of its own, so option errors (none of the options defined
// here can produce one) are not surfaced; a future fallible option would
// need to change this signature.
func New(dir string, opts ...Option) *Facade {
	f := &Facade{dir: store.Open(dir)}
	_ = options.Apply(f, opts...)

	return f
}

func cancelledFunc(ctx context.Context) func() bool {
	if ctx == nil {
		return nil
	}

	return func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
}

func checkWindow(startMillis, endMillis int64) error {
	if endMillis < startMillis {
		return fmt.Errorf("%w: end %d before start %d", errs.ErrWindowInvalid, endMillis, startMillis)
	}

	return nil
}

// ListChannels returns every channel declared in a day file intersecting
// [startMillis, endMillis].
func (f *Facade) ListChannels(ctx context.Context, startMillis, endMillis int64) (chs []registry.Channel, err error) {
	start := time.Now()
	defer func() { f.record("list_channels", start, err) }()

	if err = checkWindow(startMillis, endMillis); err != nil {
		return nil, err
	}

	return f.dir.ListChannels(startMillis, endMillis)
}

// Event is one decoded sample returned by GetEvents, optionally aggregated
// over a downsampling bucket.
type Event struct {
	TimestampMillis int64
	Min             float64
	Avg             float64
	Max             float64
	Decimals        int
	// Count is the number of raw samples folded into this event. 1 for a
	// non-downsampled result.
	Count int
}

// EventsOptions configures GetEvents.
type EventsOptions struct {
	Channel     string
	StartMillis int64
	EndMillis   int64
	// MaxEvents is the spec §4.7 get_events threshold: if the raw sample
	// count in the window would exceed MaxEvents, GetEvents downsamples
	// into evenly spaced buckets instead of returning every raw sample,
	// and reports Downsampled=true. 0 (the default) disables the
	// threshold and always returns raw samples.
	MaxEvents int
	// BucketHint overrides the number of buckets used once downsampling
	// is triggered by MaxEvents; 0 uses MaxEvents itself as the bucket
	// count, which keeps the downsampled result at or under MaxEvents.
	BucketHint int
}

// GetEvents returns the samples for one channel across [StartMillis,
// EndMillis]. If the raw sample count exceeds opts.MaxEvents, the result
// is downsampled into buckets and Downsampled is true (spec §4.7
// "get_events ... if the raw count would exceed max_events, returns a
// downsampled sequence ... and sets the flag").
func (f *Facade) GetEvents(ctx context.Context, opts EventsOptions) (events []Event, downsampled bool, err error) {
	start := time.Now()
	defer func() { f.record("get_events", start, err) }()

	if err = checkWindow(opts.StartMillis, opts.EndMillis); err != nil {
		return nil, false, err
	}
	if opts.Channel == "" {
		return nil, false, fmt.Errorf("tsdb query: channel name is required")
	}

	seq, errp := f.dir.Scan(store.ScanOptions{
		StartMillis: opts.StartMillis,
		EndMillis:   opts.EndMillis,
		Channel:     opts.Channel,
	}, cancelledFunc(ctx))

	var raw []record.Record
	for r := range seq {
		raw = append(raw, r)
	}
	if err = *errp; err != nil {
		return nil, false, err
	}
	if err = ctxErr(ctx); err != nil {
		return nil, false, err
	}

	if opts.MaxEvents <= 0 || len(raw) <= opts.MaxEvents {
		events = make([]Event, len(raw))
		for i, r := range raw {
			events[i] = Event{
				TimestampMillis: r.Timestamp,
				Min:             r.Value.Double,
				Avg:             r.Value.Double,
				Max:             r.Value.Double,
				Decimals:        r.Value.Decimals,
				Count:           1,
			}
		}

		return events, false, nil
	}

	events = downsample(raw, opts)

	return events, true, nil
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
	}

	return nil
}

type bucket struct {
	sum      float64
	min      float64
	max      float64
	count    int
	decimals int
}

// downsample folds raw value records into evenly-spaced buckets across
// [StartMillis, EndMillis] (opts.BucketHint buckets, or opts.MaxEvents if
// BucketHint is unset). Each bucket reports min/avg/max over its
// contributing samples, and a decimal hint equal to the widest hint of any
// contributing record, so a mixed-precision channel never loses precision
// to a bucket that happened to sample a coarser value.
func downsample(raw []record.Record, opts EventsOptions) []Event {
	n := opts.BucketHint
	if n <= 0 {
		n = opts.MaxEvents
	}

	span := opts.EndMillis - opts.StartMillis + 1
	width := span / int64(n)
	if width < 1 {
		width = 1
	}

	buckets := make([]bucket, n)
	for i := range buckets {
		buckets[i] = bucket{min: math.Inf(1), max: math.Inf(-1)}
	}

	for _, r := range raw {
		idx := int((r.Timestamp - opts.StartMillis) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}

		b := &buckets[idx]
		b.sum += r.Value.Double
		b.count++
		if r.Value.Double < b.min {
			b.min = r.Value.Double
		}
		if r.Value.Double > b.max {
			b.max = r.Value.Double
		}
		if r.Value.Decimals > b.decimals {
			b.decimals = r.Value.Decimals
		}
	}

	events := make([]Event, 0, n)
	for i, b := range buckets {
		if b.count == 0 {
			continue
		}
		events = append(events, Event{
			TimestampMillis: opts.StartMillis + int64(i)*width,
			Min:             b.min,
			Avg:             b.sum / float64(b.count),
			Max:             b.max,
			Decimals:        b.decimals,
			Count:           b.count,
		})
	}

	return events
}

// Stats is the result of GetStats (spec §4.7).
type Stats struct {
	Count        int
	CurrentValue float64
	HasCurrent   bool
	MaxValue     float64
	Decimals     int
}

// StatsOptions configures GetStats.
type StatsOptions struct {
	Channel     string
	StartMillis int64
	EndMillis   int64
	// NowMillis is the reference time for CurrentValue's freshness check
	// (spec §4.7: "current_value is the last sample at or before end,
	// only if within 60s of now").
	NowMillis int64
}

const currentValueFreshness = 60 * 1000

// GetStats computes count, current value (if fresh), and max value over a
// channel's samples in [StartMillis, EndMillis].
func (f *Facade) GetStats(ctx context.Context, opts StatsOptions) (stats Stats, err error) {
	start := time.Now()
	defer func() { f.record("get_stats", start, err) }()

	if err = checkWindow(opts.StartMillis, opts.EndMillis); err != nil {
		return Stats{}, err
	}
	if opts.Channel == "" {
		return Stats{}, fmt.Errorf("tsdb query: channel name is required")
	}

	seq, errp := f.dir.Scan(store.ScanOptions{
		StartMillis: opts.StartMillis,
		EndMillis:   opts.EndMillis,
		Channel:     opts.Channel,
	}, cancelledFunc(ctx))

	out := Stats{MaxValue: math.Inf(-1)}
	var lastTS int64
	var lastValue float64
	haveAny := false

	for r := range seq {
		out.Count++
		if r.Value.Double > out.MaxValue {
			out.MaxValue = r.Value.Double
		}
		if r.Value.Decimals > out.Decimals {
			out.Decimals = r.Value.Decimals
		}
		lastTS = r.Timestamp
		lastValue = r.Value.Double
		haveAny = true
	}
	if err = *errp; err != nil {
		return Stats{}, err
	}
	if err = ctxErr(ctx); err != nil {
		return Stats{}, err
	}

	if out.Count == 0 {
		out.MaxValue = 0
	}

	if age := opts.NowMillis - lastTS; haveAny && age >= 0 && age <= currentValueFreshness {
		out.CurrentValue = lastValue
		out.HasCurrent = true
	}

	return out, nil
}

func (f *Facade) record(operation string, start time.Time, err error) {
	if f.metrics == nil {
		return
	}
	kind := ""
	if err != nil {
		kind = "error"
	}
	f.metrics.RecordQuery(operation, time.Since(start).Seconds(), kind)
}

// DecimalPlacesForFormat exposes format.DecimalPlaces-family logic to
// callers building channel metadata displays (spec §4.2 "decimal hint").
func DecimalPlacesForFormat(id format.FormatID) int {
	switch {
	case id >= format.FormatDoubleMin && id <= format.FormatDoubleMax:
		return format.DoubleDecimalPlaces(id)
	case id == format.FormatFloat32:
		return 0
	default:
		return format.DecimalPlaces(byte(id) & 0x0f)
	}
}
