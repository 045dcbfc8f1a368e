// Package engine implements the inode and directory logic that is the
// public server contract: LOOKUP, STAT, CREAT, UNLINK, WRITE, and READ.
// SHUTDOWN has no engine method; the protocol dispatcher handles it by
// syncing the image. It maintains the invariant between inode metadata, directory
// entries, and the allocator bitmaps. Grounded on the read/write/lookup
// shape of drivers/unixv1/driver.go and drivers/unixv1/dirents.go, but
// built against this spec's own on-disk format rather than UnixV1's.
package engine

import (
	"github.com/mfsd/mfsd/dirblock"
	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/mfserrors"
)

// Engine drives a single Image. It assumes single-threaded, exclusive
// access: the caller (the protocol dispatcher) must process one request
// to completion before invoking another method.
type Engine struct {
	Image *fsimage.Image
}

// New wraps img in an Engine.
func New(img *fsimage.Image) *Engine {
	return &Engine{Image: img}
}

func (e *Engine) validInum(i int32) bool {
	return i >= 0 && uint32(i) < e.Image.Superblock.NumInodes
}

func (e *Engine) validBlock(block int32) bool {
	return block >= 0 && int(block) < fsimage.NumDirect
}

// Lookup scans each allocated directory block of pinum for an entry named
// name and returns its inum, or ErrNotFound.
func (e *Engine) Lookup(pinum int32, name string) (int32, error) {
	if !e.validInum(pinum) {
		return 0, mfserrors.ErrInvalid.WithMessage("pinum out of range")
	}
	parent := e.Image.Inodes[pinum]
	if parent.Type != fsimage.TypeDirectory {
		return 0, mfserrors.ErrInvalid.WithMessage("pinum is not a directory")
	}

	found := int32(-1)
	err := e.forEachEntry(parent, func(addr uint32, index int, entry dirblock.Entry) bool {
		if entry.Inum != dirblock.FreeInum && entry.Name == name {
			found = entry.Inum
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	if found < 0 {
		return 0, mfserrors.ErrNotFound.WithMessage("no such entry: " + name)
	}
	return found, nil
}

// Stat returns the type and size of inum.
func (e *Engine) Stat(inum int32) (fsimage.InodeType, uint32, error) {
	if !e.validInum(inum) {
		return 0, 0, mfserrors.ErrInvalid.WithMessage("inum out of range")
	}
	inode := e.Image.Inodes[inum]
	if inode.Type == fsimage.TypeFree {
		return 0, 0, mfserrors.ErrInvalid.WithMessage("inode is free")
	}
	return inode.Type, inode.Size, nil
}

// FirstDataPointer returns the value of direct[0] for inum, which the
// STAT reply exposes alongside type and size.
func (e *Engine) FirstDataPointer(inum int32) int32 {
	return e.Image.Inodes[inum].Direct[0]
}

// Creat creates a new entry named name under pinum with the given type.
// If an entry with that name already exists, this is a no-op that still
// reports success — idempotency that makes the operation safe to retry.
func (e *Engine) Creat(pinum int32, wantType fsimage.InodeType, name string) error {
	if !e.validInum(pinum) {
		return mfserrors.ErrInvalid.WithMessage("pinum out of range")
	}
	if wantType != fsimage.TypeDirectory && wantType != fsimage.TypeRegularFile {
		return mfserrors.ErrInvalid.WithMessage("unrecognized type")
	}
	if len(name) == 0 || len(name) >= dirblock.NameWidth {
		return mfserrors.ErrInvalid.WithMessage("name does not fit in the entry name field")
	}
	parent := e.Image.Inodes[pinum]
	if parent.Type != fsimage.TypeDirectory {
		return mfserrors.ErrInvalid.WithMessage("pinum is not a directory")
	}

	existing, err := e.Lookup(pinum, name)
	if err == nil {
		_ = existing
		return nil // idempotent: already exists, report success
	}
	if !mfserrors.IsNotFoundErr(err) {
		return err
	}

	newInum, err := e.Image.InodeAlloc.Alloc()
	if err != nil {
		return err
	}

	newInode := fsimage.RawInode{Type: wantType}
	for i := range newInode.Direct {
		newInode.Direct[i] = fsimage.UnallocatedBlock
	}

	if wantType == fsimage.TypeDirectory {
		dataAddr, err := e.Image.DataAlloc.Alloc()
		if err != nil {
			e.Image.InodeAlloc.Free(uint(newInum))
			return err
		}
		blockAddr := e.Image.Superblock.DataRegionAddr + uint32(dataAddr)
		entriesPerBlock := dirblock.EntriesPerBlock(e.Image.Superblock.BlockSize)
		block := dirblock.EncodeEmpty(entriesPerBlock, e.Image.Superblock.BlockSize)
		dirblock.PutEntry(block, 0, dirblock.Entry{Name: ".", Inum: int32(newInum)})
		dirblock.PutEntry(block, 1, dirblock.Entry{Name: "..", Inum: pinum})
		if err := e.Image.WriteDirBlock(blockAddr, block); err != nil {
			e.Image.DataAlloc.Free(dataAddr)
			e.Image.InodeAlloc.Free(uint(newInum))
			return err
		}
		newInode.Direct[0] = int32(blockAddr)
		newInode.Size = uint32(dirblock.EntrySize * 2)
	}

	if err := e.insertEntry(pinum, dirblock.Entry{Name: name, Inum: int32(newInum)}); err != nil {
		if wantType == fsimage.TypeDirectory {
			e.Image.DataAlloc.Free(uint(newInode.Direct[0]) - uint(e.Image.Superblock.DataRegionAddr))
		}
		e.Image.InodeAlloc.Free(uint(newInum))
		return err
	}

	e.Image.Inodes[newInum] = newInode
	return e.persist()
}

// Unlink removes the entry named name from pinum. If no such entry
// exists, this is a no-op that reports success. Directories must be
// empty (only "." and "..") to be removed.
func (e *Engine) Unlink(pinum int32, name string) error {
	if !e.validInum(pinum) {
		return mfserrors.ErrInvalid.WithMessage("pinum out of range")
	}
	parent := e.Image.Inodes[pinum]
	if parent.Type != fsimage.TypeDirectory {
		return mfserrors.ErrInvalid.WithMessage("pinum is not a directory")
	}

	var targetAddr uint32
	var targetIndex int
	var targetInum int32 = -1
	err := e.forEachEntry(parent, func(addr uint32, index int, entry dirblock.Entry) bool {
		if entry.Inum != dirblock.FreeInum && entry.Name == name {
			targetAddr, targetIndex, targetInum = addr, index, entry.Inum
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	if targetInum < 0 {
		return nil // idempotent: already gone
	}

	target := e.Image.Inodes[targetInum]
	if target.Type == fsimage.TypeDirectory {
		empty := true
		err := e.forEachEntry(target, func(addr uint32, index int, entry dirblock.Entry) bool {
			if addr == uint32(target.Direct[0]) && index < 2 {
				return false // "." and ".." don't count
			}
			if entry.Inum != dirblock.FreeInum {
				empty = false
				return true
			}
			return false
		})
		if err != nil {
			return err
		}
		if !empty {
			return mfserrors.ErrNotEmpty.WithMessage("directory is not empty")
		}
	}

	for _, ptr := range target.Direct {
		if ptr != fsimage.UnallocatedBlock {
			e.Image.DataAlloc.Free(uint(ptr) - uint(e.Image.Superblock.DataRegionAddr))
		}
	}
	e.Image.InodeAlloc.Free(uint(targetInum))
	e.Image.Inodes[targetInum] = fsimage.RawInode{Type: fsimage.TypeFree}
	for i := range e.Image.Inodes[targetInum].Direct {
		e.Image.Inodes[targetInum].Direct[i] = fsimage.UnallocatedBlock
	}

	block, err := e.Image.ReadDirBlock(targetAddr)
	if err != nil {
		return err
	}
	dirblock.PutEntry(block, targetIndex, dirblock.Entry{Inum: dirblock.FreeInum})
	if err := e.Image.WriteDirBlock(targetAddr, block); err != nil {
		return err
	}

	return e.persist()
}

// Write overwrites block-sized buffer into the given direct block of
// inum, allocating a new data block first if that slot is unallocated.
// Size grows monotonically to max(size, (block+1)*BlockSize).
func (e *Engine) Write(inum int32, buffer []byte, block int32) error {
	if !e.validInum(inum) {
		return mfserrors.ErrInvalid.WithMessage("inum out of range")
	}
	inode := e.Image.Inodes[inum]
	if inode.Type != fsimage.TypeRegularFile {
		return mfserrors.ErrInvalid.WithMessage("inum is not a regular file")
	}
	if !e.validBlock(block) {
		return mfserrors.ErrInvalid.WithMessage("block index out of range")
	}
	if uint32(len(buffer)) != e.Image.Superblock.BlockSize {
		return mfserrors.ErrInvalid.WithMessage("buffer is not one block in size")
	}

	var blockAddr uint32
	newlyAllocated := false
	var dataIndex uint
	if inode.Direct[block] == fsimage.UnallocatedBlock {
		idx, err := e.Image.DataAlloc.Alloc()
		if err != nil {
			return err
		}
		dataIndex, newlyAllocated = idx, true
		blockAddr = e.Image.Superblock.DataRegionAddr + uint32(dataIndex)
		inode.Direct[block] = int32(blockAddr)
	} else {
		blockAddr = uint32(inode.Direct[block])
	}

	if err := e.Image.Device.WriteBlock(blockAddr, buffer); err != nil {
		if newlyAllocated {
			e.Image.DataAlloc.Free(dataIndex)
		}
		return err
	}

	newSize := uint32(block+1) * e.Image.Superblock.BlockSize
	if newSize > inode.Size {
		inode.Size = newSize
	}
	e.Image.Inodes[inum] = inode
	return e.persist()
}

// Read returns the contents of the given direct block of inum. For a
// directory inode, this returns the raw directory block, letting clients
// enumerate entries themselves.
func (e *Engine) Read(inum int32, block int32) ([]byte, error) {
	if !e.validInum(inum) {
		return nil, mfserrors.ErrInvalid.WithMessage("inum out of range")
	}
	inode := e.Image.Inodes[inum]
	if inode.Type == fsimage.TypeFree {
		return nil, mfserrors.ErrInvalid.WithMessage("inode is free")
	}
	if !e.validBlock(block) {
		return nil, mfserrors.ErrInvalid.WithMessage("block index out of range")
	}
	ptr := inode.Direct[block]
	if ptr == fsimage.UnallocatedBlock {
		return nil, mfserrors.ErrInvalid.WithMessage("block is not allocated")
	}

	if inode.Type == fsimage.TypeDirectory {
		return e.Image.ReadDirBlock(uint32(ptr))
	}
	buf := make([]byte, e.Image.Superblock.BlockSize)
	if err := e.Image.Device.ReadBlock(uint32(ptr), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// persist flushes the resident inode table and both bitmaps. The final
// fsync that makes this durable before a reply is sent is the
// dispatcher's responsibility, not the engine's, per the design notes.
func (e *Engine) persist() error {
	if err := e.Image.FlushInodeTable(); err != nil {
		return err
	}
	return e.Image.FlushBitmaps()
}

// forEachEntry walks every entry in every allocated direct block of
// inode, in block then slot order, calling visit(blockAddr, slotIndex,
// entry). Iteration stops early if visit returns true.
func (e *Engine) forEachEntry(inode fsimage.RawInode, visit func(addr uint32, index int, entry dirblock.Entry) bool) error {
	for _, ptr := range inode.Direct {
		if ptr == fsimage.UnallocatedBlock {
			continue
		}
		addr := uint32(ptr)
		block, err := e.Image.ReadDirBlock(addr)
		if err != nil {
			return err
		}
		entries := dirblock.Decode(block)
		for i, entry := range entries {
			if visit(addr, i, entry) {
				return nil
			}
		}
	}
	return nil
}

// insertEntry places entry into the first free slot of an existing
// allocated directory block of pinum. If every allocated block is full,
// it allocates a new directory block and attaches it to the parent's
// next free direct slot, growing the parent's size accordingly. It fails
// with ErrNoSpace if the parent has no more direct slots to grow into.
func (e *Engine) insertEntry(pinum int32, entry dirblock.Entry) error {
	parent := e.Image.Inodes[pinum]

	placed := false
	var placedAddr uint32
	var placedBlock []byte
	var placedIndex int

	for _, ptr := range parent.Direct {
		if ptr == fsimage.UnallocatedBlock {
			continue
		}
		addr := uint32(ptr)
		block, err := e.Image.ReadDirBlock(addr)
		if err != nil {
			return err
		}
		entries := dirblock.Decode(block)
		for i, existing := range entries {
			if existing.Inum == dirblock.FreeInum {
				placedAddr, placedBlock, placedIndex, placed = addr, block, i, true
				break
			}
		}
		if placed {
			break
		}
	}

	if placed {
		dirblock.PutEntry(placedBlock, placedIndex, entry)
		return e.Image.WriteDirBlock(placedAddr, placedBlock)
	}

	freeSlot := -1
	for i, ptr := range parent.Direct {
		if ptr == fsimage.UnallocatedBlock {
			freeSlot = i
			break
		}
	}
	if freeSlot < 0 {
		return mfserrors.ErrNoSpace.WithMessage("parent directory has no room for a new entry")
	}

	dataIndex, err := e.Image.DataAlloc.Alloc()
	if err != nil {
		return err
	}
	newAddr := e.Image.Superblock.DataRegionAddr + uint32(dataIndex)
	entriesPerBlock := dirblock.EntriesPerBlock(e.Image.Superblock.BlockSize)
	newBlock := dirblock.EncodeEmpty(entriesPerBlock, e.Image.Superblock.BlockSize)
	dirblock.PutEntry(newBlock, 0, entry)
	if err := e.Image.WriteDirBlock(newAddr, newBlock); err != nil {
		e.Image.DataAlloc.Free(dataIndex)
		return err
	}

	parent.Direct[freeSlot] = int32(newAddr)
	parent.Size += e.Image.Superblock.BlockSize
	e.Image.Inodes[pinum] = parent
	return nil
}
