// Package writer implements the day-file writer (spec §4.5): opening or
// creating the UTC day file for a timestamp, appending channel-definition,
// time, and value entries in the smallest legal encoding, recovering from
// a crashed mid-append by truncating to the last complete entry, and
// finalizing a file with the 0xfe marker.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/internal/entrybuf"
	"github.com/sensorgrid/tsdb/internal/filelock"
	"github.com/sensorgrid/tsdb/internal/metrics"
	"github.com/sensorgrid/tsdb/internal/obslog"
	"github.com/sensorgrid/tsdb/internal/options"
	"github.com/sensorgrid/tsdb/record"
	"github.com/sensorgrid/tsdb/registry"
	"github.com/sensorgrid/tsdb/value"
)

// DateLayout is the UTC date used in a day file's name, "data_2024-01-15.tsdb".
const DateLayout = "2006-01-02"

// FileName returns the day file name for the UTC day containing tsMillis.
func FileName(tsMillis int64) string {
	return "data_" + DayString(tsMillis) + ".tsdb"
}

// DayString returns the UTC calendar date (YYYY-MM-DD) containing tsMillis.
func DayString(tsMillis int64) string {
	return time.UnixMilli(tsMillis).UTC().Format(DateLayout)
}

// Writer appends samples to the day files under a single directory. A
// Writer keeps at most one open file handle per UTC day it has touched
// since creation; callers that only ever append to "today" in order see a
// single resident file handle, matching the common path (spec §4.5).
type Writer struct {
	dir     string
	engine  endian.EndianEngine
	metrics *metrics.Recorder

	mu    sync.Mutex
	days  map[string]*dayFile
	closed bool
}

// Option configures a Writer.
type Option = options.Option[*Writer]

// WithMetrics attaches a metrics recorder; nil (the default) disables
// metrics recording.
func WithMetrics(m *metrics.Recorder) Option {
	return options.NoError(func(w *Writer) { w.metrics = m })
}

// Open creates a Writer rooted at dir, creating dir if it does not exist.
func Open(dir string, opts ...Option) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tsdb writer: %w", err)
	}

	w := &Writer{
		dir:    dir,
		engine: endian.GetLittleEndianEngine(),
		days:   make(map[string]*dayFile),
	}
	if err := options.Apply(w, opts...); err != nil {
		return nil, fmt.Errorf("tsdb writer: %w", err)
	}

	return w, nil
}

// dayFile is the mutable per-day-file state: the open handle, its rebuilt
// channel registry, and the timestamp state needed to pick the narrowest
// legal time entry for the next append.
type dayFile struct {
	f         *os.File
	path      string
	reg       *registry.Registry
	size      int64
	finalized bool

	lastTS       *int64
	hadValueAtTS bool
}

// Append writes one sample. name is the channel name; formatID selects its
// on-disk encoding; tsMillis is the sample's UNIX milliseconds timestamp
// (UTC); v is the value, whose Kind must match formatID's family.
// tsMillis must be >= the day file's current timestamp across all
// channels (timestamp state is a single stream-wide cursor, not
// per-channel) or Append fails with errs.ErrTimestampOutOfOrder without
// writing anything.
func (w *Writer) Append(name string, formatID format.FormatID, tsMillis int64, v value.Value) (err error) {
	start := time.Now()
	var written int
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordAppend(err == nil, time.Since(start).Seconds(), written)
		}
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errs.ErrClosed
	}

	df, err := w.dayFor(tsMillis)
	if err != nil {
		return err
	}

	written, err = df.append(w.engine, name, formatID, tsMillis, v)

	return err
}

// dayFor returns the open dayFile for the UTC day containing tsMillis,
// opening or creating it if necessary. Caller holds w.mu.
func (w *Writer) dayFor(tsMillis int64) (*dayFile, error) {
	date := DayString(tsMillis)
	if df, ok := w.days[date]; ok {
		return df, nil
	}

	df, err := openDay(filepath.Join(w.dir, FileName(tsMillis)), w.engine, w.metrics)
	if err != nil {
		return nil, err
	}
	w.days[date] = df

	return df, nil
}

// Finalize appends the end-of-file marker to the day file for the UTC day
// containing tsMillis and closes it. A finalized file may never be
// appended to again.
func (w *Writer) Finalize(tsMillis int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := DayString(tsMillis)
	df, ok := w.days[date]
	if !ok {
		opened, err := openDay(filepath.Join(w.dir, FileName(tsMillis)), w.engine, w.metrics)
		if err != nil {
			return err
		}
		df = opened
	}
	defer delete(w.days, date)

	if err := df.finalize(); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.RecordFinalize()
	}

	return df.close()
}

// Recover forces the recovery scan (rebuild registry/timestamp state,
// truncate a trailing partial entry) for the UTC day containing tsMillis,
// without requiring a subsequent Append to trigger it. Safe to call
// against a day file that is already open and healthy: it is then a
// no-op, since the scan already ran once when the handle was opened.
//
// Useful for a supervisory process that wants to pre-warm or repair day
// files before normal traffic resumes after a crash.
func (w *Writer) Recover(tsMillis int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errs.ErrClosed
	}

	_, err := w.dayFor(tsMillis)

	return err
}

// Rollover closes (without finalizing) the day file for the UTC day
// containing tsMillis, releasing its handle and lock. A later Append for
// the same day reopens and re-scans the file. Use this to bound the
// number of resident file descriptors when touching many distinct days,
// or ahead of an external finalize-and-archive step that still expects
// late samples to be possible.
func (w *Writer) Rollover(tsMillis int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := DayString(tsMillis)
	df, ok := w.days[date]
	if !ok {
		return nil
	}
	delete(w.days, date)

	return df.close()
}

// Close closes every open day file handle without finalizing them: more
// samples may legitimately arrive for "today" after a process restart.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	for date, df := range w.days {
		if err := df.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(w.days, date)
	}

	return firstErr
}

// openDay opens or creates the day file at path, rebuilding its channel
// registry and timestamp state by re-scanning any existing content, and
// truncating a trailing partial entry left by a crashed writer (spec
// §4.5 item 5).
func openDay(path string, engine endian.EndianEngine, rec *metrics.Recorder) (*dayFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tsdb writer: open %s: %w", path, err)
	}

	if err := filelock.Lock(f); err != nil {
		f.Close()

		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("tsdb writer: stat %s: %w", path, err)
	}

	df := &dayFile{f: f, path: path, reg: registry.New()}

	if info.Size() == 0 {
		header := format.AppendHeader(nil, engine)
		if _, err := f.Write(header); err != nil {
			f.Close()

			return nil, fmt.Errorf("tsdb writer: write header %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()

			return nil, fmt.Errorf("tsdb writer: sync header %s: %w", path, err)
		}
		df.size = int64(len(header))
		if rec != nil {
			rec.RecordFileOpen("create")
		}

		return df, nil
	}

	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		f.Close()

		return nil, fmt.Errorf("tsdb writer: read %s: %w", path, err)
	}

	headerLen, err := format.ValidateHeader(data, engine)
	if err != nil {
		f.Close()

		return nil, err
	}

	finalized := len(data) > headerLen && data[len(data)-1] == format.EndOfFile
	dec := record.NewDecoder(data[headerLen:], engine, df.reg, finalized)
	dec.Strict = true

	if err := rescan(dec, df); err != nil {
		f.Close()

		return nil, err
	}

	truncateTo := int64(headerLen + dec.Offset())
	if truncateTo < info.Size() {
		if err := f.Truncate(truncateTo); err != nil {
			f.Close()

			return nil, fmt.Errorf("tsdb writer: truncate %s: %w", path, err)
		}
		obslog.With("path", path, "from", info.Size(), "to", truncateTo).
			Warn("truncated day file to last complete entry on reopen")
		if rec != nil {
			rec.RecordRecoveryTruncation()
		}
	}

	df.size = truncateTo
	df.finalized = finalized
	if rec != nil {
		rec.RecordFileOpen("append")
	}

	return df, nil
}

// rescan replays dec to reconstruct df's registry (already the decoder's
// target) plus the timestamp bookkeeping an appending writer needs.
func rescan(dec *record.Decoder, df *dayFile) error {
	return dec.All(func(r record.Record) bool {
		switch r.Kind {
		case record.KindTimestamp:
			if df.lastTS == nil || r.Timestamp != *df.lastTS {
				df.hadValueAtTS = false
			}
			ts := r.Timestamp
			df.lastTS = &ts
		case record.KindValue:
			df.hadValueAtTS = true
		case record.KindEndOfFile:
			df.finalized = true
		}

		return true
	})
}

// append encodes and writes one entry group (optional channel definition,
// time entry, value entry) for a single sample.
func (df *dayFile) append(engine endian.EndianEngine, name string, formatID format.FormatID, tsMillis int64, v value.Value) (int, error) {
	if df.finalized {
		return 0, errs.ErrAlreadyFinal
	}

	if df.lastTS != nil && tsMillis < *df.lastTS {
		return 0, fmt.Errorf("tsdb writer: %s: %w", df.path, errs.ErrTimestampOutOfOrder)
	}

	id, alreadyDefined, err := df.reg.Allocate(name, formatID)
	if err != nil {
		return 0, err
	}

	buf := entrybuf.Get()
	defer entrybuf.Put(buf)

	if !alreadyDefined {
		buf.B = appendChannelDef(buf.B, engine, id, formatID, name)
	}

	buf.B = df.appendTimeEntry(buf.B, engine, tsMillis)

	buf.B, err = appendValueEntry(buf.B, engine, id, formatID, v)
	if err != nil {
		return 0, err
	}

	n, err := df.f.Write(buf.B)
	if err != nil {
		return 0, fmt.Errorf("tsdb writer: write %s: %w", df.path, err)
	}
	df.size += int64(n)
	df.hadValueAtTS = true

	return n, nil
}

// appendTimeEntry appends the narrowest legal time entry for tsMillis
// given the day file's current timestamp state, updating that state, and
// may append nothing at all when the timestamp repeats a value that
// already has a recorded sample (spec §4.5 item 4). Callers must have
// already rejected tsMillis < df.lastTS (append does, via
// errs.ErrTimestampOutOfOrder) — this never emits a backward-moving
// absolute entry.
func (df *dayFile) appendTimeEntry(buf []byte, engine endian.EndianEngine, tsMillis int64) []byte {
	if df.lastTS == nil {
		buf = append(buf, format.TimeAbsolute)
		buf = engine.AppendUint64(buf, uint64(tsMillis))
		ts := tsMillis
		df.lastTS = &ts
		df.hadValueAtTS = false

		return buf
	}

	delta := uint64(tsMillis - *df.lastTS)
	if delta == 0 {
		if df.hadValueAtTS {
			return buf
		}

		return append(buf, format.TimeDelta8, 0)
	}

	ts := tsMillis
	df.lastTS = &ts
	df.hadValueAtTS = false

	switch {
	case delta <= 0xff:
		return append(buf, format.TimeDelta8, byte(delta))
	case delta <= 0xffff:
		buf = append(buf, format.TimeDelta16)

		return engine.AppendUint16(buf, uint16(delta))
	case delta <= 0xffffff:
		buf = append(buf, format.TimeDelta24)

		return appendUint24(buf, uint32(delta))
	case delta <= 0xffffffff:
		buf = append(buf, format.TimeDelta32)

		return engine.AppendUint32(buf, uint32(delta))
	default:
		// Delta too large for a 32-bit relative entry: fall back to an
		// absolute entry instead.
		buf = append(buf, format.TimeAbsolute)

		return engine.AppendUint64(buf, uint64(tsMillis))
	}
}

func appendUint24(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16))
}

func appendChannelDef(buf []byte, engine endian.EndianEngine, id uint32, formatID format.FormatID, name string) []byte {
	if id <= format.Channel8Max {
		buf = append(buf, format.ChannelDef8, byte(id))
	} else {
		buf = append(buf, format.ChannelDef16)
		buf = engine.AppendUint16(buf, uint16(id))
	}
	buf = append(buf, byte(formatID), byte(len(name)))

	return append(buf, name...)
}

func appendValueEntry(buf []byte, engine endian.EndianEngine, id uint32, formatID format.FormatID, v value.Value) ([]byte, error) {
	if id <= format.Channel8Max {
		buf = append(buf, byte(id))
	} else {
		buf = append(buf, format.ValueEscape16)
		buf = engine.AppendUint16(buf, uint16(id))
	}

	return value.Encode(formatID, buf, engine, v)
}

func (df *dayFile) finalize() error {
	if df.finalized {
		return nil
	}

	if _, err := df.f.Write([]byte{format.EndOfFile}); err != nil {
		return fmt.Errorf("tsdb writer: finalize %s: %w", df.path, err)
	}
	df.finalized = true

	return df.f.Sync()
}

func (df *dayFile) close() error {
	if err := df.f.Sync(); err != nil {
		filelock.Unlock(df.f)
		df.f.Close()

		return fmt.Errorf("tsdb writer: sync %s: %w", df.path, err)
	}

	if err := filelock.Unlock(df.f); err != nil {
		df.f.Close()

		return err
	}

	return df.f.Close()
}
