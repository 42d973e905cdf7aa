// Package store implements the day-file directory and range-scan engine
// (spec §4.6): discovering which day files intersect a query window,
// opening them in ascending-date order, and streaming their decoded
// records through a single merged sequence.
package store

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/internal/obslog"
	"github.com/sensorgrid/tsdb/record"
	"github.com/sensorgrid/tsdb/registry"
)

const dayFilePrefix = "data_"
const dayFileSuffix = ".tsdb"

// Directory is a read-only view over a tsdb directory's day files, sorted
// by date ascending so a range scan visits them in chronological order
// (grounded in the blob set's "sort once, iterate forward" shape).
type Directory struct {
	dir    string
	engine endian.EndianEngine
}

// Open returns a Directory over dir. dir is not required to exist yet; an
// empty or missing directory simply yields no files.
func Open(dir string) *Directory {
	return &Directory{dir: dir, engine: endian.GetLittleEndianEngine()}
}

// dayFileDate extracts the YYYY-MM-DD component from a day file's base
// name, or ("", false) if name doesn't match the day file convention.
func dayFileDate(name string) (string, bool) {
	if !strings.HasPrefix(name, dayFilePrefix) || !strings.HasSuffix(name, dayFileSuffix) {
		return "", false
	}
	date := strings.TrimSuffix(strings.TrimPrefix(name, dayFilePrefix), dayFileSuffix)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", false
	}

	return date, true
}

// Dates returns every day file's UTC date in the directory, ascending.
func (d *Directory) Dates() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("tsdb store: read dir %s: %w", d.dir, err)
	}

	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if date, ok := dayFileDate(e.Name()); ok {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	return dates, nil
}

// DatesInRange returns the dates (ascending) whose day file can contain a
// sample timestamp in [startMillis, endMillis].
func (d *Directory) DatesInRange(startMillis, endMillis int64) ([]string, error) {
	all, err := d.Dates()
	if err != nil {
		return nil, err
	}

	startDate := time.UnixMilli(startMillis).UTC().Format("2006-01-02")
	endDate := time.UnixMilli(endMillis).UTC().Format("2006-01-02")

	out := all[:0:0]
	for _, date := range all {
		if date >= startDate && date <= endDate {
			out = append(out, date)
		}
	}

	return out, nil
}

// Path returns the day file path for the given UTC date (YYYY-MM-DD).
func (d *Directory) Path(date string) string {
	return filepath.Join(d.dir, dayFilePrefix+date+dayFileSuffix)
}

// ScanOptions bounds a Scan call.
type ScanOptions struct {
	StartMillis int64
	EndMillis   int64
	// Channel, if non-empty, restricts results to that channel name.
	Channel string
}

// Scan streams every value record across the day files intersecting
// [StartMillis, EndMillis], in file (and so time) order, filtered to
// [StartMillis, EndMillis] and (if set) Channel. The sequence stops early
// if yield returns false, or once cancelled (nil-safe) reports true;
// stopping for cancellation leaves the error nil, so callers detect it
// themselves. Callers should check the accompanying *error output
// parameter, which holds any read or decode error, after the loop
// completes.
func (d *Directory) Scan(opts ScanOptions, cancelled func() bool) (iter.Seq[record.Record], *error) {
	var scanErr error

	seq := func(yield func(record.Record) bool) {
		dates, err := d.DatesInRange(opts.StartMillis, opts.EndMillis)
		if err != nil {
			scanErr = err

			return
		}

		for _, date := range dates {
			if cancelled != nil && cancelled() {
				return
			}

			if err := d.scanOneFile(date, opts, cancelled, yield); err != nil {
				scanErr = err

				return
			}
		}
	}

	return seq, &scanErr
}

func (d *Directory) scanOneFile(date string, opts ScanOptions, cancelled func() bool, yield func(record.Record) bool) error {
	path := d.Path(date)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A file listed a moment ago may have been rolled away; treat
			// as empty rather than failing the whole scan.
			return nil
		}

		return fmt.Errorf("tsdb store: read %s: %w", path, err)
	}

	headerLen, err := format.ValidateHeader(data, d.engine)
	if err != nil {
		return fmt.Errorf("tsdb store: %s: %w", path, err)
	}

	finalized := len(data) > headerLen && data[len(data)-1] == format.EndOfFile
	dec := record.NewDecoder(data[headerLen:], d.engine, registry.New(), finalized)

	obslog.With("path", path).Debug("scanning day file")

	err = dec.All(func(r record.Record) bool {
		if cancelled != nil && cancelled() {
			return false
		}

		if r.Kind != record.KindValue {
			return true
		}
		if r.Timestamp < opts.StartMillis || r.Timestamp > opts.EndMillis {
			return true
		}
		if opts.Channel != "" {
			ch, lookupErr := dec.Registry().Lookup(r.ChannelID)
			if lookupErr != nil || ch.Name != opts.Channel {
				return true
			}
			r.Channel = ch
		}

		return yield(r)
	})
	if err != nil {
		return fmt.Errorf("tsdb store: decode %s: %w", path, err)
	}

	return nil
}

// ListChannels returns the union of channel names and format ids declared
// across every day file intersecting [startMillis, endMillis].
func (d *Directory) ListChannels(startMillis, endMillis int64) ([]registry.Channel, error) {
	dates, err := d.DatesInRange(startMillis, endMillis)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]registry.Channel)
	for _, date := range dates {
		path := d.Path(date)

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("tsdb store: read %s: %w", path, err)
		}

		headerLen, err := format.ValidateHeader(data, d.engine)
		if err != nil {
			return nil, fmt.Errorf("tsdb store: %s: %w", path, err)
		}

		finalized := len(data) > headerLen && data[len(data)-1] == format.EndOfFile
		reg := registry.New()
		dec := record.NewDecoder(data[headerLen:], d.engine, reg, finalized)
		if err := dec.All(func(record.Record) bool { return true }); err != nil {
			return nil, fmt.Errorf("tsdb store: decode %s: %w", path, err)
		}

		for _, ch := range reg.Channels() {
			seen[ch.Name] = ch
		}
	}

	out := make([]registry.Channel, 0, len(seen))
	for _, ch := range seen {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// Stat reports the on-disk size of the day file for date, for callers
// (e.g. cmd/tsdbctl) that want to report storage usage without opening a
// Writer.
func (d *Directory) Stat(date string) (fs.FileInfo, error) {
	return os.Stat(d.Path(date))
}
