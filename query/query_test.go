package query

import (
	"context"
	"testing"

	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/value"
	"github.com/sensorgrid/tsdb/writer"
	"github.com/stretchr/testify/require"
)

const base = 1_700_000_000_000

func seedDirectory(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	w, err := writer.Open(dir)
	require.NoError(t, err)
	defer w.Close()

	formatID := format.FormatInt16Base + 2
	require.NoError(t, w.Append("temp", formatID, base, value.Value{Kind: value.KindDouble, Double: 20}))
	require.NoError(t, w.Append("humidity", format.FormatFloat32, base+500, value.Value{Kind: value.KindDouble, Double: 55}))
	require.NoError(t, w.Append("temp", formatID, base+1000, value.Value{Kind: value.KindDouble, Double: 22}))
	require.NoError(t, w.Append("temp", formatID, base+2000, value.Value{Kind: value.KindDouble, Double: 24}))

	return dir
}

func TestListChannelsFacade(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	chs, err := f.ListChannels(context.Background(), base, base+2000)
	require.NoError(t, err)
	require.Len(t, chs, 2)
}

func TestGetEventsRaw(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	events, downsampled, err := f.GetEvents(context.Background(), EventsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
	})
	require.NoError(t, err)
	require.False(t, downsampled)
	require.Len(t, events, 3)
	require.InDelta(t, 20, events[0].Avg, 1e-9)
	require.Equal(t, 2, events[0].Decimals)
}

func TestGetEventsDownsampled(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	events, downsampled, err := f.GetEvents(context.Background(), EventsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
		MaxEvents:   1,
		BucketHint:  1,
	})
	require.NoError(t, err)
	require.True(t, downsampled)
	require.Len(t, events, 1)
	require.InDelta(t, 22, events[0].Avg, 1e-9)
	require.InDelta(t, 20, events[0].Min, 1e-9)
	require.InDelta(t, 24, events[0].Max, 1e-9)
	require.Equal(t, 3, events[0].Count)
}

func TestGetEventsMaxEventsBoundary(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	// "temp" has exactly 3 raw samples in [base, base+2000]: at the
	// threshold, the raw count does not exceed MaxEvents, so no
	// downsampling happens.
	events, downsampled, err := f.GetEvents(context.Background(), EventsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
		MaxEvents:   3,
	})
	require.NoError(t, err)
	require.False(t, downsampled)
	require.Len(t, events, 3)

	// One below the threshold: the raw count now exceeds MaxEvents, so
	// the flag flips and the result is bucketed.
	events, downsampled, err = f.GetEvents(context.Background(), EventsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
		MaxEvents:   2,
	})
	require.NoError(t, err)
	require.True(t, downsampled)
	require.LessOrEqual(t, len(events), 2)
}

func TestGetStats(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	stats, err := f.GetStats(context.Background(), StatsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
		NowMillis:   base + 2000,
	})
	require.NoError(t, err)
	require.Equal(t, 3, stats.Count)
	require.True(t, stats.HasCurrent)
	require.InDelta(t, 24, stats.CurrentValue, 1e-9)
	require.InDelta(t, 24, stats.MaxValue, 1e-9)
}

func TestGetStatsFutureSampleNotCurrent(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	// NowMillis before the last sample's timestamp: the sample is not yet
	// in the past relative to "now", so it must not qualify as current.
	stats, err := f.GetStats(context.Background(), StatsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
		NowMillis:   base + 1000,
	})
	require.NoError(t, err)
	require.False(t, stats.HasCurrent)
}

func TestGetStatsStaleCurrentValue(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	stats, err := f.GetStats(context.Background(), StatsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
		NowMillis:   base + 2000 + 120_000,
	})
	require.NoError(t, err)
	require.False(t, stats.HasCurrent)
}

func TestWindowInvalid(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	_, _, err := f.GetEvents(context.Background(), EventsOptions{
		Channel:     "temp",
		StartMillis: base + 1000,
		EndMillis:   base,
	})
	require.ErrorIs(t, err, errs.ErrWindowInvalid)
}

func TestGetEventsCancellation(t *testing.T) {
	dir := seedDirectory(t)
	f := New(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.GetEvents(ctx, EventsOptions{
		Channel:     "temp",
		StartMillis: base,
		EndMillis:   base + 2000,
	})
	require.ErrorIs(t, err, errs.ErrCancelled)
}
