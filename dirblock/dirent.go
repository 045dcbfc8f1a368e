// Package dirblock provides a typed view over directory block bytes. Per
// the design notes, directory blocks are read/written as a whole block
// and manipulated through this type rather than mixing raw byte offsets
// with typed field access elsewhere in the engine.
package dirblock

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/noxer/bytewriter"
)

// NameWidth is the fixed width of a directory entry's name field,
// including its NUL terminator.
const NameWidth = 28

// EntrySize is the on-disk size of one directory entry: NameWidth bytes
// of name followed by a 4-byte little-endian inode number.
const EntrySize = NameWidth + 4

// FreeInum marks a directory entry slot as unused.
const FreeInum int32 = -1

// Entry is the in-memory form of one directory entry.
type Entry struct {
	Name string
	Inum int32
}

// EntriesPerBlock returns how many entries fit in a block of the given
// size. The reference layout is 128 entries in a 4096-byte block.
func EntriesPerBlock(blockSize uint32) int {
	return int(blockSize) / EntrySize
}

// Decode parses every entry slot out of a raw directory block.
func Decode(block []byte) []Entry {
	count := len(block) / EntrySize
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		raw := block[i*EntrySize : (i+1)*EntrySize]
		entries[i] = decodeEntry(raw)
	}
	return entries
}

func decodeEntry(raw []byte) Entry {
	nameBytes := raw[:NameWidth]
	nul := bytes.IndexByte(nameBytes, 0)
	var name string
	if nul >= 0 {
		name = string(nameBytes[:nul])
	} else {
		name = string(nameBytes)
	}
	inum := int32(binary.LittleEndian.Uint32(raw[NameWidth:]))
	return Entry{Name: name, Inum: inum}
}

// Encode renders a full set of entries back into a block-sized byte
// slice. len(entries) must equal EntriesPerBlock(blockSize).
func Encode(entries []Entry, blockSize uint32) []byte {
	block := make([]byte, blockSize)
	writer := bytewriter.New(block)
	for _, e := range entries {
		writeEntry(writer, e)
	}
	return block
}

// EncodeEmpty renders a block of blockSize bytes containing count free
// slots, used when a directory gains a brand new data block.
func EncodeEmpty(count int, blockSize uint32) []byte {
	entries := make([]Entry, count)
	for i := range entries {
		entries[i] = Entry{Inum: FreeInum}
	}
	return Encode(entries, blockSize)
}

func writeEntry(w io.Writer, e Entry) {
	var nameBuf [NameWidth]byte
	copy(nameBuf[:], e.Name)
	w.Write(nameBuf[:])
	var inumBuf [4]byte
	binary.LittleEndian.PutUint32(inumBuf[:], uint32(e.Inum))
	w.Write(inumBuf[:])
}

// PutEntry overwrites the single slot at index within block in place,
// without re-encoding the whole block. block must be a full directory
// block (EntriesPerBlock(len(block)) slots).
func PutEntry(block []byte, index int, e Entry) {
	raw := block[index*EntrySize : (index+1)*EntrySize]
	var nameBuf [NameWidth]byte
	copy(nameBuf[:], e.Name)
	copy(raw[:NameWidth], nameBuf[:])
	binary.LittleEndian.PutUint32(raw[NameWidth:], uint32(e.Inum))
}
