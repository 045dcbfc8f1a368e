package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocLowestFreeFirst(t *testing.T) {
	a := New(4)
	a.MarkInUse(1)

	idx, err := a.Alloc()
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx)

	idx, err = a.Alloc()
	require.NoError(t, err)
	assert.EqualValues(t, 2, idx, "index 1 was already in use, so the next free index is 2")
}

func TestAllocExhaustion(t *testing.T) {
	a := New(2)
	_, err := a.Alloc()
	require.NoError(t, err)
	_, err = a.Alloc()
	require.NoError(t, err)

	_, err = a.Alloc()
	require.Error(t, err, "allocator should refuse once every unit is in use")
}

func TestFreeThenReallocLowestIndex(t *testing.T) {
	a := New(3)
	first, err := a.Alloc()
	require.NoError(t, err)
	_, err = a.Alloc()
	require.NoError(t, err)

	a.Free(first)
	idx, err := a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, first, idx, "freeing the lowest index should make it the next allocation")
}

func TestBytesRoundTrip(t *testing.T) {
	a := New(20)
	a.MarkInUse(0)
	a.MarkInUse(5)
	a.MarkInUse(19)

	encoded := a.Bytes()
	decoded := FromBytes(encoded, 20)

	for i := uint(0); i < 20; i++ {
		assert.Equal(t, a.InUse(i), decoded.InUse(i), "bit %d did not round-trip", i)
	}
}

func TestBytesMSBFirst(t *testing.T) {
	a := New(8)
	a.MarkInUse(0) // bit 0 -> MSB of byte 0

	encoded := a.Bytes()
	require.Len(t, encoded, 1)
	assert.Equal(t, byte(0x80), encoded[0], "inode/block 0 must land on the MSB of the first byte")
}

func TestCount(t *testing.T) {
	a := New(5)
	assert.EqualValues(t, 0, a.Count())
	a.MarkInUse(2)
	a.MarkInUse(4)
	assert.EqualValues(t, 2, a.Count())
	a.Free(2)
	assert.EqualValues(t, 1, a.Count())
}
