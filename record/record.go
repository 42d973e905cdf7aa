// Package record implements the stream decoder (spec §4.4): a small state
// machine that walks the byte stream after the file header, maintains the
// current timestamp, and produces a sequence of decoded records.
//
// Unlike a context-free parser, the decoder threads timestamp state across
// entries (spec §9 "stateful decoder vs pure parser"), so the state is kept
// explicit on the Decoder struct rather than hidden in a closure.
package record

import (
	"fmt"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/primitive"
	"github.com/sensorgrid/tsdb/registry"
	"github.com/sensorgrid/tsdb/value"
)

// Kind discriminates the four record families (spec §3, §4.4).
type Kind uint8

const (
	KindChannelDefined Kind = iota
	KindTimestamp
	KindValue
	KindEndOfFile
)

// Record is one decoded unit of the stream.
type Record struct {
	Kind Kind

	// Set by the decoder when Kind == KindChannelDefined; store.Scan also
	// fills it on value records when filtering by channel name.
	Channel registry.Channel

	// Set when Kind == KindTimestamp or KindValue: the timestamp that
	// applies (the one just set/added to, or the stream's current one).
	Timestamp int64

	// Set when Kind == KindValue.
	ChannelID uint32
	Value     value.Value
}

// TailTolerance is the trailing byte window (spec §7) within which a
// format error on an unfinalized file is treated as a clean end-of-stream
// instead of a fatal error, tolerating a writer that crashed mid-append.
const TailTolerance = 64 * 1024

// Decoder walks entries in a single day file's byte stream.
//
// Decoder is NOT reusable across independent streams and is NOT safe for
// concurrent use; each goroutine decoding a file should have its own
// instance, matching spec §5's "decoder is pure and synchronous" model.
type Decoder struct {
	data      []byte
	offset    int
	engine    endian.EndianEngine
	reg       *registry.Registry
	curTS     *int64
	finalized bool
	sawEOF    bool

	// Strict enables the writer-only dense-8-bit-allocation check on
	// channel-definition replay (spec §4.3: "writer path only; readers
	// accept any legal sequence they observe"). Defaults to false.
	Strict bool
}

// NewDecoder creates a Decoder over data (the entry stream following the
// file header), using reg as the channel table to populate (reg may
// already contain channels, e.g. when the writer re-scans its own file).
//
// finalized indicates whether the underlying file ends with the 0xfe
// marker; it governs the tail-tolerance policy in §7: a format error in
// the trailing TailTolerance bytes of an unfinalized file is swallowed as
// a clean stop, but any format error in a finalized file is fatal.
func NewDecoder(data []byte, engine endian.EndianEngine, reg *registry.Registry, finalized bool) *Decoder {
	return &Decoder{
		data:      data,
		engine:    engine,
		reg:       reg,
		finalized: finalized,
	}
}

// All drains the decoder, calling yield for every record in order until
// either yield returns false or the stream is exhausted. It stops and
// returns nil on a clean end of stream, and returns the first decode error
// otherwise.
func (d *Decoder) All(yield func(Record) bool) error {
	for {
		rec, err := d.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if !yield(*rec) {
			return nil
		}
	}
}

// Registry returns the channel table being populated by this decode pass.
func (d *Decoder) Registry() *registry.Registry {
	return d.reg
}

// Offset returns the current byte offset into data, i.e. how many bytes
// have been consumed by complete entries so far.
func (d *Decoder) Offset() int {
	return d.offset
}

// Next decodes and returns the next record. It returns (nil, nil) at a
// clean end of stream: either all bytes are consumed, or (for an
// unfinalized file) a partial trailing entry was found within the tail
// tolerance window and is treated as not-yet-written (spec §3, §7).
func (d *Decoder) Next() (*Record, error) {
	if d.sawEOF {
		if d.offset < len(d.data) {
			return nil, fmt.Errorf("%w: bytes follow end-of-file marker at offset %d", errs.ErrTruncated, d.offset)
		}

		return nil, nil
	}

	if d.offset >= len(d.data) {
		return nil, nil
	}

	start := d.offset
	rec, next, err := d.decodeOne(start)
	if err != nil {
		return d.handleError(start, err)
	}

	d.offset = next
	if rec.Kind == KindEndOfFile {
		d.sawEOF = true
	}

	return rec, nil
}

// handleError applies the §7 tail-tolerance policy.
func (d *Decoder) handleError(entryStart int, err error) (*Record, error) {
	if !errs.IsFormatError(err) {
		return nil, err
	}

	if d.finalized {
		return nil, fmt.Errorf("format error at offset %d: %w", entryStart, err)
	}

	if len(d.data)-entryStart <= TailTolerance {
		// Crashed mid-append: stop cleanly, leave offset at the last
		// complete entry boundary.
		return nil, nil
	}

	return nil, fmt.Errorf("format error at offset %d: %w", entryStart, err)
}

func (d *Decoder) decodeOne(offset int) (*Record, int, error) {
	typeByte := d.data[offset]

	switch {
	case typeByte <= format.ValueChannel8Max:
		return d.decodeValue(uint32(typeByte), offset+1)

	case typeByte == format.ValueEscape16:
		id16, err := primitive.ReadUint16(d.data, offset+1, d.engine)
		if err != nil {
			return nil, 0, err
		}
		if id16 < format.Channel16Min {
			return nil, 0, fmt.Errorf("%w: escaped id %d below 16-bit range", errs.ErrInvalidChannelIDRange, id16)
		}

		return d.decodeValue(uint32(id16), offset+3)

	case typeByte == format.TimeAbsolute:
		ts, err := primitive.ReadUint64(d.data, offset+1, d.engine)
		if err != nil {
			return nil, 0, err
		}
		abs := int64(ts)
		d.curTS = &abs

		return &Record{Kind: KindTimestamp, Timestamp: abs}, offset + 1 + 8, nil

	case typeByte == format.TimeDelta8:
		return d.decodeDelta(offset, 1)
	case typeByte == format.TimeDelta16:
		return d.decodeDelta(offset, 2)
	case typeByte == format.TimeDelta24:
		return d.decodeDelta(offset, 3)
	case typeByte == format.TimeDelta32:
		return d.decodeDelta(offset, 4)

	case typeByte == format.ChannelDef8:
		return d.decodeChannelDef(offset, false)
	case typeByte == format.ChannelDef16:
		return d.decodeChannelDef(offset, true)

	case typeByte == format.EndOfFile:
		return &Record{Kind: KindEndOfFile}, offset + 1, nil

	default:
		return nil, 0, fmt.Errorf("%w: 0x%02x at offset %d", errs.ErrUnknownEntryType, typeByte, offset)
	}
}

func (d *Decoder) decodeDelta(offset, width int) (*Record, int, error) {
	if d.curTS == nil {
		return nil, 0, errs.ErrMissingTimestamp
	}

	var delta uint64
	var err error

	switch width {
	case 1:
		var v uint8
		v, err = primitive.ReadUint8(d.data, offset+1)
		delta = uint64(v)
	case 2:
		var v uint16
		v, err = primitive.ReadUint16(d.data, offset+1, d.engine)
		delta = uint64(v)
	case 3:
		var v uint32
		v, err = primitive.ReadUint24(d.data, offset+1)
		delta = uint64(v)
	case 4:
		var v uint32
		v, err = primitive.ReadUint32(d.data, offset+1, d.engine)
		delta = uint64(v)
	}
	if err != nil {
		return nil, 0, err
	}

	*d.curTS += int64(delta)

	return &Record{Kind: KindTimestamp, Timestamp: *d.curTS}, offset + 1 + width, nil
}

func (d *Decoder) decodeChannelDef(offset int, wide bool) (*Record, int, error) {
	pos := offset + 1

	var id uint32
	if wide {
		id16, err := primitive.ReadUint16(d.data, pos, d.engine)
		if err != nil {
			return nil, 0, err
		}
		if id16 < format.Channel16Min {
			return nil, 0, fmt.Errorf("%w: 0xf6 id %d below 16-bit range", errs.ErrInvalidChannelIDRange, id16)
		}
		id = uint32(id16)
		pos += 2
	} else {
		id8, err := primitive.ReadUint8(d.data, pos)
		if err != nil {
			return nil, 0, err
		}
		if id8 > format.Channel8Max {
			return nil, 0, fmt.Errorf("%w: 0xf5 id %d above 8-bit range", errs.ErrInvalidChannelIDRange, id8)
		}
		id = uint32(id8)
		pos++
	}

	fmtByte, err := primitive.ReadUint8(d.data, pos)
	if err != nil {
		return nil, 0, err
	}
	pos++

	nameLen, err := primitive.ReadUint8(d.data, pos)
	if err != nil {
		return nil, 0, err
	}
	pos++

	if pos+int(nameLen) > len(d.data) {
		return nil, 0, errs.ErrShortRead
	}
	name := string(d.data[pos : pos+int(nameLen)])
	pos += int(nameLen)

	formatID := format.FormatID(fmtByte)
	if err := d.reg.Define(id, formatID, name, d.strict()); err != nil {
		return nil, 0, err
	}

	return &Record{Kind: KindChannelDefined, Channel: registry.Channel{ID: id, FormatID: formatID, Name: name}}, pos, nil
}

func (d *Decoder) decodeValue(id uint32, payloadOffset int) (*Record, int, error) {
	if d.curTS == nil {
		return nil, 0, errs.ErrMissingTimestamp
	}

	ch, err := d.reg.Lookup(id)
	if err != nil {
		return nil, 0, err
	}

	v, n, err := value.Decode(ch.FormatID, d.data, payloadOffset, d.engine)
	if err != nil {
		return nil, 0, err
	}

	return &Record{Kind: KindValue, ChannelID: id, Timestamp: *d.curTS, Value: v}, payloadOffset + n, nil
}

func (d *Decoder) strict() bool {
	return d.Strict
}
