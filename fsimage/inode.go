package fsimage

import "encoding/binary"

// RawInode is the in-memory mirror of one on-disk inode record: a type
// tag, a byte size, and NumDirect direct block pointers. A pointer value
// of UnallocatedBlock means "unallocated".
type RawInode struct {
	Type   InodeType
	Size   uint32
	Direct [NumDirect]int32
}

// IsFree reports whether this inode is not currently allocated to a file
// or directory.
func (in *RawInode) IsFree() bool {
	return in.Type == TypeFree
}

// EncodeInode serializes one inode record to exactly InodeRecordSize
// bytes, little-endian, independent of host endianness so images are
// portable.
func EncodeInode(in RawInode) []byte {
	buf := make([]byte, InodeRecordSize)
	buf[0] = byte(in.Type)
	binary.LittleEndian.PutUint32(buf[1:5], in.Size)
	for i, ptr := range in.Direct {
		off := 5 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(ptr))
	}
	return buf
}

// DecodeInode parses one InodeRecordSize-byte record back into a RawInode.
func DecodeInode(buf []byte) RawInode {
	var in RawInode
	in.Type = InodeType(buf[0])
	in.Size = binary.LittleEndian.Uint32(buf[1:5])
	for i := range in.Direct {
		off := 5 + i*4
		in.Direct[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	return in
}

// encodeSuperblock serializes sb into a full block-sized buffer, zero
// padded after the fixed-size header.
func encodeSuperblock(sb Superblock, blockSize uint32) []byte {
	buf := make([]byte, blockSize)
	fields := []uint32{
		sb.Magic, sb.Version, sb.BlockSize, sb.NumInodes, sb.NumData,
		sb.DirEntriesPerBlock, sb.InodeBitmapAddr, sb.InodeBitmapLen,
		sb.DataBitmapAddr, sb.DataBitmapLen, sb.InodeRegionAddr,
		sb.InodeRegionLen, sb.DataRegionAddr, sb.DataRegionLen,
	}
	for i, v := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return buf
}

// decodeSuperblock parses a block-sized buffer back into a Superblock.
func decodeSuperblock(buf []byte) Superblock {
	read := func(i int) uint32 {
		return binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return Superblock{
		Magic:              read(0),
		Version:            read(1),
		BlockSize:          read(2),
		NumInodes:          read(3),
		NumData:            read(4),
		DirEntriesPerBlock: read(5),
		InodeBitmapAddr:    read(6),
		InodeBitmapLen:     read(7),
		DataBitmapAddr:     read(8),
		DataBitmapLen:      read(9),
		InodeRegionAddr:    read(10),
		InodeRegionLen:     read(11),
		DataRegionAddr:     read(12),
		DataRegionLen:      read(13),
	}
}
