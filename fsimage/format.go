// Package fsimage defines the on-disk layout — superblock, bitmaps,
// inode region, data region — and the bootstrap routines that create a
// fresh image or load an existing one into memory. Grounded on
// drivers/unixv1/formattingdriver.go (Format) and drivers/unixv1/driver.go
// (Mount), generalized from UnixV1's fixed 512-byte-sector layout to this
// spec's configurable block size and type taxonomy.
package fsimage

// Magic identifies an mfsd image so Load can fail fast on a file that
// isn't one, rather than silently misinterpreting arbitrary bytes. ASCII
// "MFS1".
const Magic uint32 = 0x3153464D

// FormatVersion is bumped whenever the on-disk layout changes in a way
// that isn't backward compatible.
const FormatVersion uint32 = 1

// Reference parameters from the spec's Data Model section.
const (
	DefaultBlockSize     = 4096
	DefaultNumInodes     = 32
	DefaultNumDataBlocks = 32
	// NumDirect is D, the number of direct block pointers per inode.
	NumDirect = 14
)

// UnallocatedBlock is the sentinel direct-pointer value meaning
// "unallocated".
const UnallocatedBlock int32 = -1

// InodeRecordSize is the on-disk size, in bytes, of one serialized
// RawInode: a 1-byte type tag, a 4-byte size, and NumDirect 4-byte direct
// pointers.
const InodeRecordSize = 1 + 4 + NumDirect*4

// SuperblockRecordSize is the number of bytes the superblock actually
// occupies; the rest of block 0 is zero-padding.
const SuperblockRecordSize = 14 * 4

// InodeType is the type tag stored in an inode: directory, regular file,
// or free (unallocated).
type InodeType uint8

const (
	TypeFree InodeType = iota
	TypeDirectory
	TypeRegularFile
)

// Superblock records the parameters fixed at image-creation time and the
// starting block address and length of every region that follows it.
type Superblock struct {
	Magic              uint32
	Version            uint32
	BlockSize          uint32
	NumInodes          uint32
	NumData            uint32
	DirEntriesPerBlock uint32

	InodeBitmapAddr uint32
	InodeBitmapLen  uint32
	DataBitmapAddr  uint32
	DataBitmapLen   uint32
	InodeRegionAddr uint32
	InodeRegionLen  uint32
	DataRegionAddr  uint32
	DataRegionLen   uint32
}

// ceilDiv divides and rounds up, the way every region-size computation in
// this layout needs to.
func ceilDiv(numerator, denominator uint32) uint32 {
	if denominator == 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}

// Layout computes a Superblock for a fresh image with the given
// parameters. It does not touch disk; see Initialize for that.
func Layout(blockSize, numInodes, numData uint32) Superblock {
	inodeBitmapLen := ceilDiv(numInodes, 8*blockSize)
	dataBitmapLen := ceilDiv(numData, 8*blockSize)
	inodeRegionLen := ceilDiv(numInodes*InodeRecordSize, blockSize)

	// Each data block occupies exactly one image block, so the region's
	// length in blocks is just the number of data blocks it holds.
	dataRegionLen := numData

	inodeBitmapAddr := uint32(1)
	dataBitmapAddr := inodeBitmapAddr + inodeBitmapLen
	inodeRegionAddr := dataBitmapAddr + dataBitmapLen
	dataRegionAddr := inodeRegionAddr + inodeRegionLen

	return Superblock{
		Magic:              Magic,
		Version:            FormatVersion,
		BlockSize:          blockSize,
		NumInodes:          numInodes,
		NumData:            numData,
		DirEntriesPerBlock: uint32(blockSize) / uint32(dirEntrySize),

		InodeBitmapAddr: inodeBitmapAddr,
		InodeBitmapLen:  inodeBitmapLen,
		DataBitmapAddr:  dataBitmapAddr,
		DataBitmapLen:   dataBitmapLen,
		InodeRegionAddr: inodeRegionAddr,
		InodeRegionLen:  inodeRegionLen,
		DataRegionAddr:  dataRegionAddr,
		DataRegionLen:   dataRegionLen,
	}
}

// TotalBlocks returns the total size of the image described by sb, in
// blocks.
func (sb Superblock) TotalBlocks() uint32 {
	return sb.DataRegionAddr + sb.DataRegionLen
}

// dirEntrySize mirrors dirblock.EntrySize (a 28-byte name plus a 4-byte
// inum); the two values must stay equal.
const dirEntrySize = 28 + 4
