package value

import (
	"testing"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/stretchr/testify/require"
)

func TestFloat32RoundTrip(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	buf, err := Encode(format.FormatFloat32, nil, engine, Value{Kind: KindDouble, Double: 3.5})
	require.NoError(t, err)

	got, n, err := Decode(format.FormatFloat32, buf, 0, engine)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.InDelta(t, 3.5, got.Double, 1e-9)
}

func TestDoubleRoundTripBitExact(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	buf, err := Encode(format.FormatDoubleMin, nil, engine, Value{Kind: KindDouble, Double: 23.456789123})
	require.NoError(t, err)

	got, n, err := Decode(format.FormatDoubleMin, buf, 0, engine)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, 23.456789123, got.Double)
	require.Equal(t, 0, got.Decimals)
}

func TestStringRoundTrip(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	buf, err := Encode(format.FormatString8, nil, engine, Value{Kind: KindString, Str: "hello"})
	require.NoError(t, err)
	require.Equal(t, []byte{5, 'h', 'e', 'l', 'l', 'o'}, buf)

	got, n, err := Decode(format.FormatString8, buf, 0, engine)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "hello", got.Str)
}

func TestStringTooLong(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	buf := []byte{10, 'a', 'b'} // claims 10 bytes, only 2 present

	_, _, err := Decode(format.FormatString8, buf, 0, engine)
	require.ErrorIs(t, err, errs.ErrStringTooLong)
}

func TestInt16ScaledRoundTrip(t *testing.T) {
	// S1 from spec §8: int16 / 100, raw 2345 -> 23.45
	engine := endian.GetLittleEndianEngine()
	formatID := format.FormatInt16Base + 2 // /100

	buf, err := Encode(formatID, nil, engine, Value{Kind: KindDouble, Double: 23.45})
	require.NoError(t, err)
	require.Equal(t, []byte{0x29, 0x09}, buf) // 2345 little-endian

	got, n, err := Decode(formatID, buf, 0, engine)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.InDelta(t, 23.45, got.Double, 1e-9)
	require.Equal(t, 2, got.Decimals)
}

func TestInt8RawExactInteger(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	formatID := format.FormatInt8Base // nibble 0: raw int8

	buf, err := Encode(formatID, nil, engine, Value{Kind: KindInt, Int: -5})
	require.NoError(t, err)

	got, _, err := Decode(formatID, buf, 0, engine)
	require.NoError(t, err)
	require.Equal(t, KindInt, got.Kind)
	require.Equal(t, int64(-5), got.Int)
}

func TestUint24RoundTrip(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	formatID := format.FormatUint24Base

	buf, err := Encode(formatID, nil, engine, Value{Kind: KindInt, Int: 0xabcdef})
	require.NoError(t, err)
	require.Len(t, buf, 3)

	got, n, err := Decode(formatID, buf, 0, engine)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, int64(0xabcdef), got.Int)
}

func TestEncodeOutOfRange(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	_, err := Encode(format.FormatInt8Base, nil, engine, Value{Kind: KindInt, Int: 1000})
	require.ErrorIs(t, err, errs.ErrValueOutOfRange)

	_, err = Encode(format.FormatUint8Base, nil, engine, Value{Kind: KindInt, Int: -1})
	require.ErrorIs(t, err, errs.ErrValueOutOfRange)
}

func TestUnknownFormat(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	_, _, err := Decode(format.FormatID(0xee), []byte{0x00}, 0, engine)
	require.ErrorIs(t, err, errs.ErrUnknownFormat)
}

func TestDecimalPlacesHelper(t *testing.T) {
	require.Equal(t, 0, DecimalPlaces(format.FormatFloat32))
	require.Equal(t, 6, DecimalPlaces(format.FormatDoubleMax))
	require.Equal(t, 0, DecimalPlaces(format.FormatString16))
	require.Equal(t, 3, DecimalPlaces(format.FormatInt32Base+3))
}
