package record

import (
	"testing"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/sensorgrid/tsdb/registry"
	"github.com/sensorgrid/tsdb/value"
	"github.com/stretchr/testify/require"
)

func channelDefBytes(engine endian.EndianEngine, id uint8, formatID format.FormatID, name string) []byte {
	buf := []byte{format.ChannelDef8, id, byte(formatID), byte(len(name))}

	return append(buf, name...)
}

func timeAbsoluteBytes(engine endian.EndianEngine, ts int64) []byte {
	buf := []byte{format.TimeAbsolute}

	return engine.AppendUint64(buf, uint64(ts))
}

func valueBytes(t *testing.T, engine endian.EndianEngine, id uint8, formatID format.FormatID, v value.Value) []byte {
	t.Helper()
	buf := []byte{id}
	buf, err := value.Encode(formatID, buf, engine, v)
	require.NoError(t, err)

	return buf
}

// TestS1RoundTripSingleChannel follows spec §8 scenario S1.
func TestS1RoundTripSingleChannel(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	formatID := format.FormatInt16Base + 2 // int16 / 100

	var stream []byte
	stream = append(stream, channelDefBytes(engine, 0, formatID, "temp")...)
	stream = append(stream, timeAbsoluteBytes(engine, 1_700_000_000_000)...)
	stream = append(stream, valueBytes(t, engine, 0, formatID, value.Value{Kind: value.KindDouble, Double: 23.45})...)

	dec := NewDecoder(stream, engine, registry.New(), false)

	defRec, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, KindChannelDefined, defRec.Kind)
	require.Equal(t, "temp", defRec.Channel.Name)

	tsRec, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, KindTimestamp, tsRec.Kind)
	require.Equal(t, int64(1_700_000_000_000), tsRec.Timestamp)

	valRec, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, KindValue, valRec.Kind)
	require.Equal(t, int64(1_700_000_000_000), valRec.Timestamp)
	require.InDelta(t, 23.45, valRec.Value.Double, 1e-9)
	require.Equal(t, 2, valRec.Value.Decimals)

	end, err := dec.Next()
	require.NoError(t, err)
	require.Nil(t, end)
}

// TestS2SmallRelativeDelta follows spec §8 scenario S2.
func TestS2SmallRelativeDelta(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	formatID := format.FormatInt16Base + 2

	var stream []byte
	stream = append(stream, channelDefBytes(engine, 0, formatID, "temp")...)
	stream = append(stream, timeAbsoluteBytes(engine, 1_700_000_000_000)...)
	stream = append(stream, valueBytes(t, engine, 0, formatID, value.Value{Kind: value.KindDouble, Double: 23.45})...)
	// delta of 5ms
	stream = append(stream, format.TimeDelta8, 0x05)
	stream = append(stream, valueBytes(t, engine, 0, formatID, value.Value{Kind: value.KindDouble, Double: 23.50})...)

	dec := NewDecoder(stream, engine, registry.New(), false)
	var records []Record
	err := dec.All(func(r Record) bool {
		records = append(records, r)
		return true
	})
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, KindTimestamp, records[2].Kind)
	require.Equal(t, int64(1_700_000_000_005), records[2].Timestamp)
	require.InDelta(t, 23.50, records[3].Value.Double, 1e-9)
}

// TestS3ChannelWidening follows spec §8 scenario S3.
func TestS3ChannelWidening(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	reg := registry.New()

	var stream []byte
	for i := 0; i < format.DenseAllocLimit; i++ {
		name := "c" + string(rune('a'+i%26)) + string(rune('A'+i/26))
		stream = append(stream, channelDefBytes(engine, uint8(i), format.FormatFloat32, name)...)
	}
	// 241st channel: must be 0xf6 with id 0xf0.
	buf := []byte{format.ChannelDef16}
	buf = engine.AppendUint16(buf, format.Channel16Min)
	buf = append(buf, byte(format.FormatFloat32), byte(len("overflow")))
	buf = append(buf, "overflow"...)
	stream = append(stream, buf...)

	stream = append(stream, timeAbsoluteBytes(engine, 1000)...)

	// Value for the 241st channel via the 0xff escape.
	valBuf := []byte{format.ValueEscape16}
	valBuf = engine.AppendUint16(valBuf, format.Channel16Min)
	valBuf, err := value.Encode(format.FormatFloat32, valBuf, engine, value.Value{Kind: value.KindDouble, Double: 1.5})
	require.NoError(t, err)
	stream = append(stream, valBuf...)

	dec := NewDecoder(stream, engine, reg, false)
	var records []Record
	err = dec.All(func(r Record) bool {
		records = append(records, r)
		return true
	})
	require.NoError(t, err)

	last := records[len(records)-1]
	require.Equal(t, KindValue, last.Kind)
	require.Equal(t, uint32(format.Channel16Min), last.ChannelID)
	require.InDelta(t, 1.5, last.Value.Double, 1e-9)
}

func TestMissingTimestampIsError(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	var stream []byte
	stream = append(stream, channelDefBytes(engine, 0, format.FormatFloat32, "x")...)
	stream = append(stream, valueBytes(t, engine, 0, format.FormatFloat32, value.Value{Kind: value.KindDouble, Double: 1})...)

	dec := NewDecoder(stream, engine, registry.New(), true)
	_, err := dec.Next() // channel def, ok
	require.NoError(t, err)
	_, err = dec.Next() // value without timestamp
	require.ErrorIs(t, err, errs.ErrMissingTimestamp)
}

// TestS5CrashMidEntry follows spec §8 scenario S5: truncate one byte short
// of the final value payload; the decoder yields only the earlier record,
// no error, since the file is not finalized.
func TestS5CrashMidEntry(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	formatID := format.FormatInt16Base + 2

	var stream []byte
	stream = append(stream, channelDefBytes(engine, 0, formatID, "temp")...)
	stream = append(stream, timeAbsoluteBytes(engine, 1_700_000_000_000)...)
	stream = append(stream, valueBytes(t, engine, 0, formatID, value.Value{Kind: value.KindDouble, Double: 23.45})...)
	stream = append(stream, format.TimeDelta8, 0x05)
	full := append(stream, valueBytes(t, engine, 0, formatID, value.Value{Kind: value.KindDouble, Double: 23.50})...)

	truncated := full[:len(full)-1]

	dec := NewDecoder(truncated, engine, registry.New(), false)
	var records []Record
	err := dec.All(func(r Record) bool {
		records = append(records, r)
		return true
	})
	require.NoError(t, err)
	// channel def, timestamp, value, time-delta: the final value entry is
	// incomplete and silently dropped.
	require.Len(t, records, 4)
	require.Equal(t, KindTimestamp, records[3].Kind)
}

// TestS6EndOfFileMarker follows spec §8 scenario S6.
func TestS6EndOfFileMarker(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	var stream []byte
	stream = append(stream, channelDefBytes(engine, 0, format.FormatFloat32, "x")...)
	stream = append(stream, timeAbsoluteBytes(engine, 1)...)
	stream = append(stream, valueBytes(t, engine, 0, format.FormatFloat32, value.Value{Kind: value.KindDouble, Double: 1})...)
	stream = append(stream, format.EndOfFile)

	dec := NewDecoder(stream, engine, registry.New(), true)
	var lastKind Kind
	err := dec.All(func(r Record) bool {
		lastKind = r.Kind
		return true
	})
	require.NoError(t, err)
	require.Equal(t, KindEndOfFile, lastKind)

	// Extra bytes after a finalized EOF marker are rejected.
	withExtra := append(append([]byte{}, stream...), 0x00)
	dec2 := NewDecoder(withExtra, engine, registry.New(), true)
	err = dec2.All(func(r Record) bool { return true })
	require.ErrorIs(t, err, errs.ErrTruncated)
}

func TestUnknownEntryTypeFatalOnFinalizedFile(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	dec := NewDecoder([]byte{0xfd}, engine, registry.New(), true)
	_, err := dec.Next()
	require.ErrorIs(t, err, errs.ErrUnknownEntryType)
}

func TestFormatErrorTailToleranceOnUnfinalizedFile(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	// An unknown entry type byte near the very end of an unfinalized file
	// is tolerated as a crash artifact.
	dec := NewDecoder([]byte{0xfd}, engine, registry.New(), false)
	rec, err := dec.Next()
	require.NoError(t, err)
	require.Nil(t, rec)
}
