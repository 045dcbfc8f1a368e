// Package alloc tracks which inodes and data blocks are in use via
// bitmaps, handing out the lowest free index on request and releasing it
// on free. Grounded on drivers/common/allocatormap.go's Allocator type.
package alloc

import (
	bitmap "github.com/boljen/go-bitmap"

	"github.com/mfsd/mfsd/mfserrors"
)

// Allocator is a lowest-index-first bitmap allocator shared by the inode
// table and the data region. Tie-breaking is always the lowest index,
// which keeps behavior deterministic and makes the "fill, free one,
// refill" test scenario in the spec predictable.
type Allocator struct {
	bits  bitmap.Bitmap
	total uint
}

// New creates an Allocator for total units, all initially free.
func New(total uint) *Allocator {
	return &Allocator{bits: bitmap.New(int(total)), total: total}
}

// FromBytes wraps raw on-disk bitmap bytes (MSB-first within each byte,
// bit 0 = unit 0, per the image format) without copying semantics beyond
// what go-bitmap itself does.
func FromBytes(data []byte, total uint) *Allocator {
	bm := bitmap.New(int(total))
	for i := uint(0); i < total; i++ {
		byteIndex := i / 8
		if byteIndex >= uint(len(data)) {
			break
		}
		bitIndex := 7 - (i % 8)
		set := (data[byteIndex]>>bitIndex)&1 != 0
		bm.Set(int(i), set)
	}
	return &Allocator{bits: bm, total: total}
}

// Bytes renders the bitmap back to its on-disk byte representation,
// MSB-first within each byte, sized to hold Total bits.
func (a *Allocator) Bytes() []byte {
	numBytes := (a.total + 7) / 8
	out := make([]byte, numBytes)
	for i := uint(0); i < a.total; i++ {
		if !a.bits.Get(int(i)) {
			continue
		}
		byteIndex := i / 8
		bitIndex := 7 - (i % 8)
		out[byteIndex] |= 1 << bitIndex
	}
	return out
}

// Total returns the number of allocatable units this Allocator covers.
func (a *Allocator) Total() uint {
	return a.total
}

// InUse reports whether index is currently marked allocated.
func (a *Allocator) InUse(index uint) bool {
	if index >= a.total {
		return false
	}
	return a.bits.Get(int(index))
}

// MarkInUse forces index to the allocated state. Used to reserve units
// up front, such as inode 0 and the root directory's data block when a
// fresh image is initialized.
func (a *Allocator) MarkInUse(index uint) {
	if index < a.total {
		a.bits.Set(int(index), true)
	}
}

// Alloc returns the lowest free index and marks it in use, or ErrNoSpace
// if every unit is taken.
func (a *Allocator) Alloc() (uint, error) {
	for i := uint(0); i < a.total; i++ {
		if !a.bits.Get(int(i)) {
			a.bits.Set(int(i), true)
			return i, nil
		}
	}
	return 0, mfserrors.ErrNoSpace.WithMessage("no free index available")
}

// Free clears index. Freeing an already-free or out-of-range index is a
// no-op: callers are expected to have already checked liveness via the
// inode table or a directory entry before calling Free.
func (a *Allocator) Free(index uint) {
	if index < a.total {
		a.bits.Set(int(index), false)
	}
}

// Count returns the number of units currently marked in use, used by the
// duplicate-delivery test scenario to confirm CREAT allocated exactly one
// inode even when its request datagram was delivered twice.
func (a *Allocator) Count() uint {
	n := uint(0)
	for i := uint(0); i < a.total; i++ {
		if a.bits.Get(int(i)) {
			n++
		}
	}
	return n
}
