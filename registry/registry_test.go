package registry

import (
	"testing"

	"github.com/sensorgrid/tsdb/errs"
	"github.com/sensorgrid/tsdb/format"
	"github.com/stretchr/testify/require"
)

func TestDefineAndLookup(t *testing.T) {
	r := New()

	require.NoError(t, r.Define(0, format.FormatFloat32, "temp", true))

	ch, err := r.Lookup(0)
	require.NoError(t, err)
	require.Equal(t, "temp", ch.Name)
	require.Equal(t, format.FormatFloat32, ch.FormatID)
}

func TestDefineDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Define(0, format.FormatFloat32, "temp", true))

	err := r.Define(0, format.FormatFloat32, "temp2", true)
	require.ErrorIs(t, err, errs.ErrDuplicateChannel)
}

func TestDefineStrictDenseAllocation(t *testing.T) {
	r := New()

	// Skipping id 0 and defining id 1 first must fail under strict mode.
	err := r.Define(1, format.FormatFloat32, "b", true)
	require.ErrorIs(t, err, errs.ErrDenseAllocation)

	// Non-strict (reader) mode tolerates it.
	err = r.Define(1, format.FormatFloat32, "b", false)
	require.NoError(t, err)
}

func TestLookupUnknownChannel(t *testing.T) {
	r := New()
	_, err := r.Lookup(5)
	require.ErrorIs(t, err, errs.ErrUnknownChannel)
}

func TestAllocateDense8Bit(t *testing.T) {
	r := New()

	id0, already, err := r.Allocate("a", format.FormatFloat32)
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, uint32(0), id0)

	id1, already, err := r.Allocate("b", format.FormatFloat32)
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, uint32(1), id1)
}

func TestAllocateIdempotent(t *testing.T) {
	r := New()

	id0, _, err := r.Allocate("a", format.FormatFloat32)
	require.NoError(t, err)

	id0Again, already, err := r.Allocate("a", format.FormatFloat32)
	require.NoError(t, err)
	require.True(t, already)
	require.Equal(t, id0, id0Again)
}

func TestAllocateMismatchedFormat(t *testing.T) {
	r := New()
	_, _, err := r.Allocate("a", format.FormatFloat32)
	require.NoError(t, err)

	_, _, err = r.Allocate("a", format.FormatString8)
	require.ErrorIs(t, err, errs.ErrDuplicateChannel)
}

func TestAllocateWidensTo16BitAt241st(t *testing.T) {
	r := New()

	for i := 0; i < format.DenseAllocLimit; i++ {
		id, _, err := r.Allocate(string(rune('a'+i%26))+string(rune('A'+i/26)), format.FormatFloat32)
		require.NoError(t, err)
		require.Equal(t, uint32(i), id)
	}

	id, already, err := r.Allocate("overflow", format.FormatFloat32)
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, uint32(format.Channel16Min), id)
}

func TestChannelsOrdering(t *testing.T) {
	r := New()
	_, _, err := r.Allocate("a", format.FormatFloat32)
	require.NoError(t, err)
	_, _, err = r.Allocate("b", format.FormatFloat32)
	require.NoError(t, err)

	chs := r.Channels()
	require.Len(t, chs, 2)
	require.Equal(t, "a", chs[0].Name)
	require.Equal(t, "b", chs[1].Name)
}
