// Package registry implements the per-open-file channel table (spec §4.3):
// the in-memory mapping from a channel id to its (name, format id), built by
// scanning channel-definition entries, plus the writer-side id allocator.
//
// A Registry is never persisted beyond the channel-definition entries
// embedded in the file it was built from (spec §3 "Lifecycle"); it is
// rebuilt from scratch every time a file is opened.
package registry

import (
	"fmt"

	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
)

// Channel is one entry of the per-file channel table.
type Channel struct {
	ID       uint32
	FormatID format.FormatID
	Name     string
}

// Registry is the per-open-file channel id -> (name, format id) table.
//
// Not safe for concurrent use; callers (the decoder or the writer) own
// exclusive access to a Registry for the lifetime of the file handle it
// belongs to (spec §5 "The channel registry is not shared between reader
// and writer instances").
type Registry struct {
	byID8  [format.DenseAllocLimit]*Channel
	used8  int // one past the highest 8-bit id defined so far
	by16   map[uint32]*Channel
	next16 uint32
	byName map[string]*Channel
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		by16:   make(map[uint32]*Channel),
		next16: format.Channel16Min,
		byName: make(map[string]*Channel),
	}
}

// Define records a channel-definition entry observed while scanning the
// stream. It fails with ErrDuplicateChannel if the id already has a
// definition in this file, or ErrInvalidChannelIDRange if id falls outside
// the 8-bit or 16-bit legal ranges.
//
// strict additionally enforces the dense-allocation invariant on 8-bit ids
// (spec §4.3: "writer path only; readers accept any legal sequence they
// observe"). The writer uses strict=true when rebuilding its registry from
// a file it is about to continue appending to, to catch a malformed file
// before corrupting it further; decoders use strict=false.
func (r *Registry) Define(id uint32, formatID format.FormatID, name string, strict bool) error {
	if _, exists := r.lookup(id); exists {
		return fmt.Errorf("%w: id %d", errs.ErrDuplicateChannel, id)
	}

	ch := &Channel{ID: id, FormatID: formatID, Name: name}

	switch {
	case id <= format.Channel8Max:
		if strict && int(id) != r.used8 {
			return fmt.Errorf("%w: got id %d, expected %d", errs.ErrDenseAllocation, id, r.used8)
		}
		r.byID8[id] = ch
		if int(id)+1 > r.used8 {
			r.used8 = int(id) + 1
		}
	case id >= format.Channel16Min && id <= format.Channel16Max:
		r.by16[id] = ch
		if id+1 > r.next16 {
			r.next16 = id + 1
		}
	default:
		return fmt.Errorf("%w: id %d", errs.ErrInvalidChannelIDRange, id)
	}

	r.byName[name] = ch

	return nil
}

// Lookup returns the channel registered under id.
func (r *Registry) Lookup(id uint32) (Channel, error) {
	ch, ok := r.lookup(id)
	if !ok {
		return Channel{}, fmt.Errorf("%w: id %d", errs.ErrUnknownChannel, id)
	}

	return *ch, nil
}

func (r *Registry) lookup(id uint32) (*Channel, bool) {
	if id <= format.Channel8Max {
		ch := r.byID8[id]

		return ch, ch != nil
	}

	ch, ok := r.by16[id]

	return ch, ok
}

// LookupByName returns the channel currently registered under name, if any.
func (r *Registry) LookupByName(name string) (Channel, bool) {
	ch, ok := r.byName[name]
	if !ok {
		return Channel{}, false
	}

	return *ch, true
}

// Allocate returns the channel id for name, allocating a new one if name
// has not yet been defined in this file.
//
// Idempotent: if name is already defined with a matching formatID, the
// existing id is returned and no new definition is recorded (spec §4.3).
// A name redefinition with a different formatID is rejected, since nothing
// in the format allows a channel's format id to change within one file.
func (r *Registry) Allocate(name string, formatID format.FormatID) (id uint32, alreadyDefined bool, err error) {
	if ch, ok := r.byName[name]; ok {
		if ch.FormatID != formatID {
			return 0, false, fmt.Errorf("%w: name %q already defined with format 0x%02x, got 0x%02x",
				errs.ErrDuplicateChannel, name, byte(ch.FormatID), byte(formatID))
		}

		return ch.ID, true, nil
	}

	if r.used8 < format.DenseAllocLimit {
		id = uint32(r.used8)
	} else {
		id = r.next16
	}

	if err := r.Define(id, formatID, name, false); err != nil {
		return 0, false, err
	}

	return id, false, nil
}

// Channels returns every channel currently defined, in id order (8-bit ids
// first, then 16-bit ids).
func (r *Registry) Channels() []Channel {
	out := make([]Channel, 0, r.used8+len(r.by16))
	for i := 0; i < r.used8; i++ {
		if ch := r.byID8[i]; ch != nil {
			out = append(out, *ch)
		}
	}

	for id := format.Channel16Min; id < r.next16; id++ {
		if ch, ok := r.by16[id]; ok {
			out = append(out, *ch)
		}
	}

	return out
}

// Len returns the total number of distinct channels defined so far.
func (r *Registry) Len() int {
	return len(r.byName)
}
