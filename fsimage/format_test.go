package fsimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutReferenceSizing(t *testing.T) {
	sb := Layout(DefaultBlockSize, DefaultNumInodes, DefaultNumDataBlocks)

	assert.Equal(t, uint32(Magic), sb.Magic)
	assert.Equal(t, uint32(FormatVersion), sb.Version)
	assert.Equal(t, uint32(128), sb.DirEntriesPerBlock, "4096/32 = 128 dirents per block")

	assert.Equal(t, uint32(1), sb.InodeBitmapAddr)
	assert.Equal(t, uint32(1), sb.InodeBitmapLen, "32 inodes fit in far fewer than 8*4096 bits")
	assert.Equal(t, sb.InodeBitmapAddr+sb.InodeBitmapLen, sb.DataBitmapAddr)
	assert.Equal(t, uint32(1), sb.DataBitmapLen)
	assert.Equal(t, sb.DataBitmapAddr+sb.DataBitmapLen, sb.InodeRegionAddr)
	assert.Equal(t, sb.InodeRegionAddr+sb.InodeRegionLen, sb.DataRegionAddr)
}

func TestLayoutRegionsDoNotOverlap(t *testing.T) {
	sb := Layout(4096, 512, 512)

	regions := []struct {
		name        string
		addr, count uint32
	}{
		{"inode bitmap", sb.InodeBitmapAddr, sb.InodeBitmapLen},
		{"data bitmap", sb.DataBitmapAddr, sb.DataBitmapLen},
		{"inode region", sb.InodeRegionAddr, sb.InodeRegionLen},
		{"data region", sb.DataRegionAddr, sb.DataRegionLen},
	}
	for i := 1; i < len(regions); i++ {
		prevEnd := regions[i-1].addr + regions[i-1].count
		require.LessOrEqualf(t, prevEnd, regions[i].addr,
			"%s (ends at %d) overlaps %s (starts at %d)",
			regions[i-1].name, prevEnd, regions[i].name, regions[i].addr)
	}
}

func TestInodeEncodeDecodeRoundTrip(t *testing.T) {
	in := RawInode{Type: TypeRegularFile, Size: 4096}
	for i := range in.Direct {
		in.Direct[i] = UnallocatedBlock
	}
	in.Direct[0] = 42

	buf := EncodeInode(in)
	require.Len(t, buf, InodeRecordSize)

	decoded := DecodeInode(buf)
	assert.Equal(t, in, decoded)
}

func TestSuperblockEncodeDecodeRoundTrip(t *testing.T) {
	sb := Layout(512, 16, 16)
	buf := encodeSuperblock(sb, 512)
	decoded := decodeSuperblock(buf)
	assert.Equal(t, sb, decoded)
}

func TestIsFree(t *testing.T) {
	var in RawInode
	assert.True(t, in.IsFree())
	in.Type = TypeDirectory
	assert.False(t, in.IsFree())
}
