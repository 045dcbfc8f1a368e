package fsimage_test

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/mfsd/mfsd/dirblock"
	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/mfstesting"
)

func newStream(t *testing.T, opts fsimage.Options) ([]byte, *fsimage.Image) {
	t.Helper()
	resolved := opts
	sb := fsimage.Layout(nonZero(resolved.BlockSize, fsimage.DefaultBlockSize),
		nonZero(resolved.NumInodes, fsimage.DefaultNumInodes),
		nonZero(resolved.NumDataBlocks, fsimage.DefaultNumDataBlocks))
	backing := make([]byte, int(sb.TotalBlocks())*int(sb.BlockSize))
	img, err := fsimage.Initialize(bytesextra.NewReadWriteSeeker(backing), nil, opts)
	require.NoError(t, err)
	return backing, img
}

func nonZero(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

func TestInitializeReservesInodeZeroAndItsBlock(t *testing.T) {
	_, img := newStream(t, fsimage.Options{})

	assert.True(t, img.InodeAlloc.InUse(0), "root inode must be reserved")
	assert.True(t, img.DataAlloc.InUse(0), "root directory's data block must be reserved")
	assert.Equal(t, fsimage.TypeDirectory, img.Inodes[0].Type)
	assert.EqualValues(t, img.Superblock.DataRegionAddr, img.Inodes[0].Direct[0])
}

func TestInitializeRootDirHasDotAndDotDot(t *testing.T) {
	_, img := newStream(t, fsimage.Options{})

	block, err := img.ReadDirBlock(img.Superblock.DataRegionAddr)
	require.NoError(t, err)

	entries := dirblock.Decode(block)
	require.GreaterOrEqual(t, len(entries), 2)
	assert.Equal(t, dirblock.Entry{Name: ".", Inum: 0}, entries[0])
	assert.Equal(t, dirblock.Entry{Name: "..", Inum: 0}, entries[1])
}

func TestLoadRoundTripsAFreshlyInitializedImage(t *testing.T) {
	backing, original := newStream(t, fsimage.Options{NumInodes: 8, NumDataBlocks: 8})
	require.NoError(t, original.Sync())

	reopened, err := fsimage.Load(bytesextra.NewReadWriteSeeker(backing), nil)
	require.NoError(t, err)

	assert.Equal(t, original.Superblock, reopened.Superblock)
	assert.Equal(t, original.Inodes, reopened.Inodes)
	assert.EqualValues(t, original.InodeAlloc.Count(), reopened.InodeAlloc.Count())
	assert.EqualValues(t, original.DataAlloc.Count(), reopened.DataAlloc.Count())
}

func TestLoadRejectsBadMagic(t *testing.T) {
	backing := make([]byte, 4096)
	_, err := fsimage.Load(bytesextra.NewReadWriteSeeker(backing), nil)
	require.Error(t, err, "a zeroed buffer has no valid magic number")
}

func TestFlushBitmapsAndInodeTableRoundTrip(t *testing.T) {
	backing, img := newStream(t, fsimage.Options{NumInodes: 8, NumDataBlocks: 8})

	idx, err := img.InodeAlloc.Alloc()
	require.NoError(t, err)
	img.Inodes[idx] = fsimage.RawInode{Type: fsimage.TypeRegularFile}
	for i := range img.Inodes[idx].Direct {
		img.Inodes[idx].Direct[i] = fsimage.UnallocatedBlock
	}
	require.NoError(t, img.FlushInodeTable())
	require.NoError(t, img.FlushBitmaps())
	require.NoError(t, img.Sync())

	reopened, err := fsimage.Load(bytesextra.NewReadWriteSeeker(backing), nil)
	require.NoError(t, err)
	assert.True(t, reopened.InodeAlloc.InUse(idx))
	assert.Equal(t, fsimage.TypeRegularFile, reopened.Inodes[idx].Type)
}

func TestAbortAggregatesMultipleFailures(t *testing.T) {
	img, stream := mfstesting.NewFaultyImage(t, fsimage.Options{})

	stream.FailWrites = true
	err := img.Abort()
	require.Error(t, err, "a failing backing stream must make Abort report an error")

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "Abort should aggregate failures via go-multierror")
	assert.GreaterOrEqual(t, len(merr.Errors), 2,
		"flushing the superblock, both bitmaps, and the inode table should each fail independently")
}
