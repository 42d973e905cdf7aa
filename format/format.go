// Package format defines the on-disk constants of the TimeSeriesDB file
// format: the file header, the entry type-byte ranges, and the value
// format-id table (spec §3, §4.2, §6).
package format

import (
	"fmt"

	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
)

// Magic is the 8-byte file header magic: ASCII "TSDB" padded with zeros.
var Magic = [8]byte{'T', 'S', 'D', 'B', 0, 0, 0, 0}

// Version is the only documented file format version (spec §3, §6).
const Version uint32 = 1

// HeaderSize is the number of bytes occupied by magic + version.
const HeaderSize = len(Magic) + 4 // 12

// AppendHeader writes the 12-byte file header to buf.
func AppendHeader(buf []byte, engine endian.EndianEngine) []byte {
	buf = append(buf, Magic[:]...)

	return engine.AppendUint32(buf, Version)
}

// ValidateHeader checks that data begins with a well-formed header and
// returns the number of bytes it occupies.
func ValidateHeader(data []byte, engine endian.EndianEngine) (int, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: file shorter than header", errs.ErrShortRead)
	}
	if [8]byte(data[:8]) != Magic {
		return 0, fmt.Errorf("%w: got %x", errs.ErrBadMagic, data[:8])
	}

	version := engine.Uint32(data[8:12])
	if version != Version {
		return 0, fmt.Errorf("%w: got %d, want %d", errs.ErrUnsupportedVersion, version, Version)
	}

	return HeaderSize, nil
}

// Entry type bytes (spec §3).
const (
	// ValueChannel8Min..ValueChannel8Max: the byte itself is the 8-bit
	// channel id of a value entry.
	ValueChannel8Min byte = 0x00
	ValueChannel8Max byte = 0xef

	// ValueEscape16 signals a value entry whose channel id is a following
	// little-endian uint16 in 0xf0..0xffff.
	ValueEscape16 byte = 0xff

	// TimeAbsolute sets current_timestamp to a following little-endian
	// uint64 (absolute UNIX milliseconds UTC).
	TimeAbsolute byte = 0xf0
	// TimeDelta8/16/24/32 add a following unsigned delta of the given
	// width (bytes) to current_timestamp.
	TimeDelta8  byte = 0xf1
	TimeDelta16 byte = 0xf2
	TimeDelta24 byte = 0xf3
	TimeDelta32 byte = 0xf4

	// ChannelDef8 defines a channel with an 8-bit id (<= 0xef).
	ChannelDef8 byte = 0xf5
	// ChannelDef16 defines a channel with a 16-bit id (>= 0xf0).
	ChannelDef16 byte = 0xf6

	// EndOfFile marks a finalized file; no byte may follow it.
	EndOfFile byte = 0xfe
)

// Channel id ranges (spec §3).
const (
	Channel8Max      = 0xef // inclusive, highest legal 8-bit id
	Channel16Min     = 0xf0 // inclusive, lowest legal 16-bit id
	Channel16Max     = 0xffff
	DenseAllocLimit  = 0xf0 // 8-bit ids exhausted once this many are used
)

// FormatID selects the on-disk payload layout and decoded type for a
// channel's values (spec §4.2).
type FormatID byte

// Format id table (spec §4.2). Integer families are laid out as
// 0xWN where W identifies the width/signedness family and N (the low
// nibble) selects the fixed-point divisor: 0 = raw integer, 1 = /10,
// 2 = /100, 3 = /1000.
const (
	FormatFloat32 FormatID = 0x00

	// FormatDoubleMin..FormatDoubleMax: float64, display hint = id-1 decimals
	// (7 means "6 or more").
	FormatDoubleMin FormatID = 0x01
	FormatDoubleMax FormatID = 0x07

	// FormatString8/16/32/64: UTF-8 string, length prefix width grows
	// with the id (1, 2, 4, 8 bytes).
	FormatString8  FormatID = 0x08
	FormatString16 FormatID = 0x09
	FormatString32 FormatID = 0x0a
	FormatString64 FormatID = 0x0b

	FormatInt8Base  FormatID = 0x10
	FormatInt16Base FormatID = 0x20
	FormatInt24Base FormatID = 0x30
	FormatInt32Base FormatID = 0x40
	FormatInt64Base FormatID = 0x50

	FormatUint8Base  FormatID = 0x90
	FormatUint16Base FormatID = 0xa0
	FormatUint24Base FormatID = 0xb0
	FormatUint32Base FormatID = 0xc0
	FormatUint64Base FormatID = 0xd0
)

// Divisors indexed by the format id's low nibble (0..3).
var Divisors = [4]float64{1, 10, 100, 1000}

// DecimalPlaces returns the display decimal hint for an integer format id's
// low nibble (0, 1, 2, or 3 decimals).
func DecimalPlaces(nibble byte) int {
	switch nibble {
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	default:
		return 0
	}
}

// DoubleDecimalPlaces returns the display hint (id-1) for a
// FormatDoubleMin..Max id; FormatDoubleMax's hint of 6 means "6 or more
// decimals".
func DoubleDecimalPlaces(id FormatID) int {
	return int(id) - int(FormatDoubleMin)
}

func (f FormatID) String() string {
	switch {
	case f == FormatFloat32:
		return "float32"
	case f >= FormatDoubleMin && f <= FormatDoubleMax:
		return "double"
	case f == FormatString8 || f == FormatString16 || f == FormatString32 || f == FormatString64:
		return "string"
	case f >= FormatInt8Base && f < FormatInt8Base+4:
		return "int8"
	case f >= FormatInt16Base && f < FormatInt16Base+4:
		return "int16"
	case f >= FormatInt24Base && f < FormatInt24Base+4:
		return "int24"
	case f >= FormatInt32Base && f < FormatInt32Base+4:
		return "int32"
	case f >= FormatInt64Base && f < FormatInt64Base+4:
		return "int64"
	case f >= FormatUint8Base && f < FormatUint8Base+4:
		return "uint8"
	case f >= FormatUint16Base && f < FormatUint16Base+4:
		return "uint16"
	case f >= FormatUint24Base && f < FormatUint24Base+4:
		return "uint24"
	case f >= FormatUint32Base && f < FormatUint32Base+4:
		return "uint32"
	case f >= FormatUint64Base && f < FormatUint64Base+4:
		return "uint64"
	default:
		return "unknown"
	}
}
