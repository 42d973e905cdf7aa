// Package value implements the format-id -> on-disk payload codec (spec
// §4.2): the mapping between a channel's format id and its byte layout,
// including the fixed-point divisor arithmetic for the integer families and
// the length-prefixed UTF-8 string family.
//
// The decoded domain is modeled as a small tagged variant (Kind) rather than
// a dynamically-typed box, per spec §9's "polymorphic value domain" design
// note: a channel's format id determines its Kind once and for all.
package value

import (
	"fmt"
	"math"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
)

// Kind discriminates the decoded shape of a Value.
type Kind uint8

const (
	// KindDouble covers float32, double, and divisor-scaled integers
	// (fixed-point formats with a non-zero low nibble).
	KindDouble Kind = iota
	// KindString covers the length-prefixed UTF-8 string formats.
	KindString
	// KindInt covers integer formats with a zero low nibble: the exact
	// on-disk integer, with no precision loss from scaling.
	KindInt
)

// Value is the decoded/to-be-encoded payload of one value entry.
type Value struct {
	Kind     Kind
	Double   float64
	Str      string
	Int      int64 // valid when Kind == KindInt; also unsigned families store their value here (non-negative)
	Decimals int   // display hint; set by Decode, ignored by Encode
}

// DecimalPlaces returns the display decimal hint for a format id, as
// reported by the decoder alongside decoded values (spec §4.2).
func DecimalPlaces(id format.FormatID) int {
	switch {
	case id == format.FormatFloat32:
		return 0
	case id >= format.FormatDoubleMin && id <= format.FormatDoubleMax:
		return format.DoubleDecimalPlaces(id)
	case isStringFormat(id):
		return 0
	default:
		nibble := byte(id) & 0x0f
		return format.DecimalPlaces(nibble)
	}
}

func isStringFormat(id format.FormatID) bool {
	return id == format.FormatString8 || id == format.FormatString16 ||
		id == format.FormatString32 || id == format.FormatString64
}

// integerFamily describes one of the signed/unsigned integer format
// families (spec §4.2 table).
type integerFamily struct {
	base     format.FormatID
	width    int
	signed   bool
}

var families = []integerFamily{
	{format.FormatInt8Base, 1, true},
	{format.FormatInt16Base, 2, true},
	{format.FormatInt24Base, 3, true},
	{format.FormatInt32Base, 4, true},
	{format.FormatInt64Base, 8, true},
	{format.FormatUint8Base, 1, false},
	{format.FormatUint16Base, 2, false},
	{format.FormatUint24Base, 3, false},
	{format.FormatUint32Base, 4, false},
	{format.FormatUint64Base, 8, false},
}

func lookupFamily(id format.FormatID) (integerFamily, byte, bool) {
	for _, f := range families {
		if id >= f.base && id < f.base+4 {
			return f, byte(id) - byte(f.base), true
		}
	}

	return integerFamily{}, 0, false
}

// Decode reads one value payload for formatID starting at offset and
// returns the decoded Value plus the number of bytes consumed.
func Decode(formatID format.FormatID, data []byte, offset int, engine endian.EndianEngine) (Value, int, error) {
	switch {
	case formatID == format.FormatFloat32:
		if offset+4 > len(data) {
			return Value{}, 0, errs.ErrShortRead
		}
		bits := engine.Uint32(data[offset : offset+4])

		return Value{Kind: KindDouble, Double: float64(math.Float32frombits(bits)), Decimals: 0}, 4, nil

	case formatID >= format.FormatDoubleMin && formatID <= format.FormatDoubleMax:
		if offset+8 > len(data) {
			return Value{}, 0, errs.ErrShortRead
		}
		bits := engine.Uint64(data[offset : offset+8])

		return Value{Kind: KindDouble, Double: math.Float64frombits(bits), Decimals: format.DoubleDecimalPlaces(formatID)}, 8, nil

	case isStringFormat(formatID):
		return decodeString(formatID, data, offset, engine)

	default:
		fam, nibble, ok := lookupFamily(formatID)
		if !ok {
			return Value{}, 0, fmt.Errorf("%w: 0x%02x", errs.ErrUnknownFormat, byte(formatID))
		}

		return decodeInteger(fam, nibble, data, offset, engine)
	}
}

func decodeString(formatID format.FormatID, data []byte, offset int, engine endian.EndianEngine) (Value, int, error) {
	var prefixLen int
	var length uint64

	switch formatID {
	case format.FormatString8:
		prefixLen = 1
		v, err := readUint(data, offset, 1, engine)
		if err != nil {
			return Value{}, 0, err
		}
		length = v
	case format.FormatString16:
		prefixLen = 2
		v, err := readUint(data, offset, 2, engine)
		if err != nil {
			return Value{}, 0, err
		}
		length = v
	case format.FormatString32:
		prefixLen = 4
		v, err := readUint(data, offset, 4, engine)
		if err != nil {
			return Value{}, 0, err
		}
		length = v
	case format.FormatString64:
		prefixLen = 8
		v, err := readUint(data, offset, 8, engine)
		if err != nil {
			return Value{}, 0, err
		}
		length = v
	default:
		return Value{}, 0, fmt.Errorf("%w: 0x%02x", errs.ErrUnknownFormat, byte(formatID))
	}

	start := offset + prefixLen
	if length > uint64(len(data)-start) {
		return Value{}, 0, errs.ErrStringTooLong
	}

	end := start + int(length)
	s := string(data[start:end])

	return Value{Kind: KindString, Str: s, Decimals: 0}, prefixLen + int(length), nil
}

func decodeInteger(fam integerFamily, nibble byte, data []byte, offset int, engine endian.EndianEngine) (Value, int, error) {
	if offset+fam.width > len(data) {
		return Value{}, 0, errs.ErrShortRead
	}

	var raw int64
	if fam.signed {
		switch fam.width {
		case 1:
			raw = int64(int8(data[offset]))
		case 2:
			raw = int64(int16(engine.Uint16(data[offset : offset+2])))
		case 3:
			u := uint32(data[offset]) | uint32(data[offset+1])<<8 | uint32(data[offset+2])<<16
			if u&0x800000 != 0 {
				u |= 0xff000000
			}
			raw = int64(int32(u))
		case 4:
			raw = int64(int32(engine.Uint32(data[offset : offset+4])))
		case 8:
			raw = int64(engine.Uint64(data[offset : offset+8]))
		}
	} else {
		switch fam.width {
		case 1:
			raw = int64(data[offset])
		case 2:
			raw = int64(engine.Uint16(data[offset : offset+2]))
		case 3:
			raw = int64(uint32(data[offset]) | uint32(data[offset+1])<<8 | uint32(data[offset+2])<<16)
		case 4:
			raw = int64(engine.Uint32(data[offset : offset+4]))
		case 8:
			raw = int64(engine.Uint64(data[offset : offset+8]))
		}
	}

	decimals := format.DecimalPlaces(nibble)
	if nibble == 0 {
		return Value{Kind: KindInt, Int: raw, Double: float64(raw), Decimals: 0}, fam.width, nil
	}

	divisor := format.Divisors[nibble]

	return Value{Kind: KindDouble, Double: float64(raw) / divisor, Decimals: decimals}, fam.width, nil
}

func readUint(data []byte, offset, width int, engine endian.EndianEngine) (uint64, error) {
	if offset+width > len(data) {
		return 0, errs.ErrShortRead
	}

	switch width {
	case 1:
		return uint64(data[offset]), nil
	case 2:
		return uint64(engine.Uint16(data[offset : offset+2])), nil
	case 4:
		return uint64(engine.Uint32(data[offset : offset+4])), nil
	case 8:
		return engine.Uint64(data[offset : offset+8]), nil
	default:
		panic("unsupported prefix width")
	}
}

// Encode appends the payload for v under formatID to buf, returning the
// extended buffer.
func Encode(formatID format.FormatID, buf []byte, engine endian.EndianEngine, v Value) ([]byte, error) {
	switch {
	case formatID == format.FormatFloat32:
		return engine.AppendUint32(buf, math.Float32bits(float32(v.Double))), nil

	case formatID >= format.FormatDoubleMin && formatID <= format.FormatDoubleMax:
		return engine.AppendUint64(buf, math.Float64bits(v.Double)), nil

	case isStringFormat(formatID):
		return encodeString(formatID, buf, engine, v.Str)

	default:
		fam, nibble, ok := lookupFamily(formatID)
		if !ok {
			return nil, fmt.Errorf("%w: 0x%02x", errs.ErrUnknownFormat, byte(formatID))
		}

		return encodeInteger(fam, nibble, buf, engine, v)
	}
}

func encodeString(formatID format.FormatID, buf []byte, engine endian.EndianEngine, s string) ([]byte, error) {
	n := uint64(len(s))

	switch formatID {
	case format.FormatString8:
		if n > math.MaxUint8 {
			return nil, fmt.Errorf("%w: string length %d exceeds 1-byte prefix", errs.ErrStringTooLong, n)
		}
		buf = append(buf, byte(n))
	case format.FormatString16:
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("%w: string length %d exceeds 2-byte prefix", errs.ErrStringTooLong, n)
		}
		buf = engine.AppendUint16(buf, uint16(n))
	case format.FormatString32:
		if n > math.MaxUint32 {
			return nil, fmt.Errorf("%w: string length %d exceeds 4-byte prefix", errs.ErrStringTooLong, n)
		}
		buf = engine.AppendUint32(buf, uint32(n))
	case format.FormatString64:
		buf = engine.AppendUint64(buf, n)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", errs.ErrUnknownFormat, byte(formatID))
	}

	return append(buf, s...), nil
}

func encodeInteger(fam integerFamily, nibble byte, buf []byte, engine endian.EndianEngine, v Value) ([]byte, error) {
	var raw int64
	if nibble == 0 {
		raw = v.Int
	} else {
		divisor := format.Divisors[nibble]
		raw = int64(math.Round(v.Double * divisor))
	}

	if err := checkRange(fam, raw); err != nil {
		return nil, err
	}

	if fam.signed {
		switch fam.width {
		case 1:
			return append(buf, byte(int8(raw))), nil
		case 2:
			return engine.AppendUint16(buf, uint16(int16(raw))), nil
		case 3:
			u := uint32(raw) & 0xffffff
			return append(buf, byte(u), byte(u>>8), byte(u>>16)), nil
		case 4:
			return engine.AppendUint32(buf, uint32(int32(raw))), nil
		case 8:
			return engine.AppendUint64(buf, uint64(raw)), nil
		}
	} else {
		switch fam.width {
		case 1:
			return append(buf, byte(uint8(raw))), nil
		case 2:
			return engine.AppendUint16(buf, uint16(raw)), nil
		case 3:
			u := uint32(raw) & 0xffffff
			return append(buf, byte(u), byte(u>>8), byte(u>>16)), nil
		case 4:
			return engine.AppendUint32(buf, uint32(raw)), nil
		case 8:
			return engine.AppendUint64(buf, uint64(raw)), nil
		}
	}

	panic("unreachable integer width")
}

func checkRange(fam integerFamily, raw int64) error {
	if fam.signed {
		lo, hi := int64(math.MinInt8), int64(math.MaxInt8)
		switch fam.width {
		case 2:
			lo, hi = math.MinInt16, math.MaxInt16
		case 3:
			lo, hi = -(1 << 23), (1<<23)-1
		case 4:
			lo, hi = math.MinInt32, math.MaxInt32
		case 8:
			return nil // int64 range, raw is already int64
		}
		if raw < lo || raw > hi {
			return fmt.Errorf("%w: value %d out of range for width %d", errs.ErrValueOutOfRange, raw, fam.width)
		}

		return nil
	}

	var hi int64 = math.MaxUint8
	switch fam.width {
	case 2:
		hi = math.MaxUint16
	case 3:
		hi = (1 << 24) - 1
	case 4:
		hi = math.MaxUint32
	case 8:
		if raw < 0 {
			return fmt.Errorf("%w: negative value %d for unsigned width %d", errs.ErrValueOutOfRange, raw, fam.width)
		}

		return nil
	}
	if raw < 0 || raw > hi {
		return fmt.Errorf("%w: value %d out of range for width %d", errs.ErrValueOutOfRange, raw, fam.width)
	}

	return nil
}
