// Package primitive implements the fixed-width little-endian integer codec
// the rest of the format is built on (spec §4.1): reads of a requested width
// from a byte slice at an offset, and appends of an integer of a requested
// width to a growing buffer. The signed 3-byte form reconstructs a 32-bit
// signed value by sign-extending bit 23; the unsigned 3-byte form
// zero-extends.
package primitive

import (
	"github.com/sensorgrid/tsdb/endian"
	"github.com/sensorgrid/tsdb/errs"
)

// ReadUint8 reads a single unsigned byte at offset.
func ReadUint8(data []byte, offset int) (uint8, error) {
	if offset < 0 || offset+1 > len(data) {
		return 0, errs.ErrShortRead
	}

	return data[offset], nil
}

// ReadUint16 reads a little-endian uint16 at offset.
func ReadUint16(data []byte, offset int, engine endian.EndianEngine) (uint16, error) {
	if offset < 0 || offset+2 > len(data) {
		return 0, errs.ErrShortRead
	}

	return engine.Uint16(data[offset : offset+2]), nil
}

// ReadUint24 reads an unsigned 24-bit little-endian integer at offset,
// zero-extended to uint32.
func ReadUint24(data []byte, offset int) (uint32, error) {
	if offset < 0 || offset+3 > len(data) {
		return 0, errs.ErrShortRead
	}

	b := data[offset : offset+3]

	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

// ReadInt24 reads a signed 24-bit little-endian integer at offset,
// sign-extended from bit 23 to int32.
func ReadInt24(data []byte, offset int) (int32, error) {
	u, err := ReadUint24(data, offset)
	if err != nil {
		return 0, err
	}

	if u&0x800000 != 0 {
		// Sign bit set: extend the top byte with 1s.
		return int32(u | 0xff000000), nil
	}

	return int32(u), nil
}

// ReadUint32 reads a little-endian uint32 at offset.
func ReadUint32(data []byte, offset int, engine endian.EndianEngine) (uint32, error) {
	if offset < 0 || offset+4 > len(data) {
		return 0, errs.ErrShortRead
	}

	return engine.Uint32(data[offset : offset+4]), nil
}

// ReadUint64 reads a little-endian uint64 at offset.
func ReadUint64(data []byte, offset int, engine endian.EndianEngine) (uint64, error) {
	if offset < 0 || offset+8 > len(data) {
		return 0, errs.ErrShortRead
	}

	return engine.Uint64(data[offset : offset+8]), nil
}

// AppendUint8 appends a single unsigned byte.
func AppendUint8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

// AppendUint16 appends a little-endian uint16.
func AppendUint16(buf []byte, v uint16, engine endian.EndianEngine) []byte {
	return engine.AppendUint16(buf, v)
}

// AppendUint24 appends the low 24 bits of v, little-endian.
func AppendUint24(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16))
}

// AppendInt24 appends the low 24 bits of v (two's complement), little-endian.
// The caller is responsible for ensuring v fits in a signed 24-bit range.
func AppendInt24(buf []byte, v int32) []byte {
	return AppendUint24(buf, uint32(v)&0xffffff)
}

// AppendUint32 appends a little-endian uint32.
func AppendUint32(buf []byte, v uint32, engine endian.EndianEngine) []byte {
	return engine.AppendUint32(buf, v)
}

// AppendUint64 appends a little-endian uint64.
func AppendUint64(buf []byte, v uint64, engine endian.EndianEngine) []byte {
	return engine.AppendUint64(buf, v)
}

// FitsInt24 reports whether v fits in a signed 24-bit integer.
func FitsInt24(v int64) bool {
	return v >= -(1<<23) && v <= (1<<23)-1
}

// FitsUint24 reports whether v fits in an unsigned 24-bit integer.
func FitsUint24(v uint64) bool {
	return v <= 0xffffff
}
