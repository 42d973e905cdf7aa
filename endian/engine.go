// Package endian provides the byte-order engine used by the primitive codec.
//
// It combines encoding/binary's ByteOrder and AppendByteOrder interfaces into
// a single EndianEngine, so the primitive codec can both decode in place and
// append without an intermediate allocation.
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, 0x01)
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface. binary.LittleEndian and binary.BigEndian both
// satisfy it, so no adapter type is required.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the engine mandated by the file format
// (spec §6: "Little-endian throughout").
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine is kept for test fixtures that want to exercise the
// primitive codec against a non-native byte order; the on-disk file format
// itself is always little-endian.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
