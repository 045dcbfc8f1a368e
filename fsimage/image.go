package fsimage

import (
	"io"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/mfsd/mfsd/alloc"
	"github.com/mfsd/mfsd/dirblock"
	"github.com/mfsd/mfsd/imageio"
	"github.com/mfsd/mfsd/mfserrors"
)

// Image is the in-memory projection of an mfsd backing file: the open
// device, the superblock, the resident inode table, and the two bitmap
// allocators. The inode table is small and hot, so (per the design
// notes) it stays resident across requests; directory data blocks are
// read on first use and then served from an in-memory cache, and every
// write to one goes straight through to the device.
type Image struct {
	Device     *imageio.Device
	Superblock Superblock
	Inodes     []RawInode
	InodeAlloc *alloc.Allocator
	DataAlloc  *alloc.Allocator

	dirCache map[uint32][]byte
	closer   io.Closer
}

// Options configures a freshly created image. Zero values fall back to
// the spec's reference sizes.
type Options struct {
	BlockSize     uint32
	NumInodes     uint32
	NumDataBlocks uint32
}

func (o Options) withDefaults() Options {
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.NumInodes == 0 {
		o.NumInodes = DefaultNumInodes
	}
	if o.NumDataBlocks == 0 {
		o.NumDataBlocks = DefaultNumDataBlocks
	}
	return o
}

// Open opens path for read-write, creating a fresh image with opts if the
// file is empty (or doesn't yet exist), and loading it otherwise:
// initialize-on-first-start, load-if-not-empty.
func Open(path string, opts Options) (*Image, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, mfserrors.ErrIOFatal.WithMessage(err.Error())
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, mfserrors.ErrIOFatal.WithMessage(err.Error())
	}

	if info.Size() == 0 {
		resolved := opts.withDefaults()
		sb := Layout(resolved.BlockSize, resolved.NumInodes, resolved.NumDataBlocks)
		if err := file.Truncate(int64(sb.TotalBlocks()) * int64(sb.BlockSize)); err != nil {
			file.Close()
			return nil, mfserrors.ErrIOFatal.WithMessage(err.Error())
		}
		return Initialize(file, file, resolved)
	}
	return Load(file, file)
}

// Initialize writes the root directory block, the superblock, the
// bitmaps, and the inode table (inode 0 live, the rest free) onto an
// already correctly-sized stream. It does not zero the other blocks; Open
// gets zeroed blocks by truncating an empty file to size. Grounded on drivers/unixv1/formattingdriver.go's Format().
// closer may be nil for streams (such as in-memory test images) that
// need no explicit release.
func Initialize(stream io.ReadWriteSeeker, closer io.Closer, opts Options) (*Image, error) {
	sb := Layout(opts.BlockSize, opts.NumInodes, opts.NumDataBlocks)

	device := imageio.New(stream, sb.BlockSize, sb.TotalBlocks())

	img := &Image{
		Device:     device,
		Superblock: sb,
		Inodes:     make([]RawInode, sb.NumInodes),
		InodeAlloc: alloc.New(uint(sb.NumInodes)),
		DataAlloc:  alloc.New(uint(sb.NumData)),
		dirCache:   make(map[uint32][]byte),
		closer:     closer,
	}

	// Inode 0 and the root directory's one data block are reserved.
	img.InodeAlloc.MarkInUse(0)
	img.DataAlloc.MarkInUse(0)

	entriesPerBlock := dirblock.EntriesPerBlock(sb.BlockSize)
	rootBlock := dirblock.EncodeEmpty(entriesPerBlock, sb.BlockSize)
	dirblock.PutEntry(rootBlock, 0, dirblock.Entry{Name: ".", Inum: 0})
	dirblock.PutEntry(rootBlock, 1, dirblock.Entry{Name: "..", Inum: 0})

	rootDataBlockAddr := sb.DataRegionAddr
	img.Inodes[0] = RawInode{
		Type: TypeDirectory,
		Size: uint32(dirblock.EntrySize * 2),
	}
	for i := range img.Inodes[0].Direct {
		img.Inodes[0].Direct[i] = UnallocatedBlock
	}
	img.Inodes[0].Direct[0] = int32(rootDataBlockAddr)

	if err := img.WriteDirBlock(rootDataBlockAddr, rootBlock); err != nil {
		closeQuietly(closer)
		return nil, err
	}
	if err := img.flushSuperblock(); err != nil {
		closeQuietly(closer)
		return nil, err
	}
	if err := img.FlushBitmaps(); err != nil {
		closeQuietly(closer)
		return nil, err
	}
	if err := img.FlushInodeTable(); err != nil {
		closeQuietly(closer)
		return nil, err
	}
	if err := img.Sync(); err != nil {
		closeQuietly(closer)
		return nil, err
	}
	return img, nil
}

// Load reads the superblock, then the bitmaps, then the full inode region
// into memory from an already-populated stream. Grounded on
// drivers/unixv1/driver.go's Mount(). closer may be nil for streams that
// need no explicit release.
func Load(stream io.ReadWriteSeeker, closer io.Closer) (*Image, error) {
	sbBlock := make([]byte, DefaultBlockSize)
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		closeQuietly(closer)
		return nil, mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	if _, err := io.ReadFull(stream, sbBlock); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		closeQuietly(closer)
		return nil, mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	sb := decodeSuperblock(sbBlock)
	if sb.Magic != Magic {
		closeQuietly(closer)
		return nil, mfserrors.ErrIOFatal.WithMessage("not an mfsd image: bad magic number")
	}
	if sb.Version != FormatVersion {
		closeQuietly(closer)
		return nil, mfserrors.ErrIOFatal.WithMessage("unsupported mfsd image format version")
	}

	device := imageio.New(stream, sb.BlockSize, sb.TotalBlocks())

	img := &Image{
		Device:     device,
		Superblock: sb,
		dirCache:   make(map[uint32][]byte),
		closer:     closer,
	}

	inodeBitmapBytes, err := img.readRegion(sb.InodeBitmapAddr, sb.InodeBitmapLen)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	img.InodeAlloc = alloc.FromBytes(inodeBitmapBytes, uint(sb.NumInodes))

	dataBitmapBytes, err := img.readRegion(sb.DataBitmapAddr, sb.DataBitmapLen)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	img.DataAlloc = alloc.FromBytes(dataBitmapBytes, uint(sb.NumData))

	inodeBytes, err := img.readRegion(sb.InodeRegionAddr, sb.InodeRegionLen)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	img.Inodes = make([]RawInode, sb.NumInodes)
	for i := uint32(0); i < sb.NumInodes; i++ {
		start := i * InodeRecordSize
		img.Inodes[i] = DecodeInode(inodeBytes[start : start+InodeRecordSize])
	}

	return img, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		c.Close()
	}
}

func (img *Image) readRegion(addr, length uint32) ([]byte, error) {
	out := make([]byte, 0, int(length)*int(img.Superblock.BlockSize))
	buf := make([]byte, img.Superblock.BlockSize)
	for i := uint32(0); i < length; i++ {
		if err := img.Device.ReadBlock(addr+i, buf); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out, nil
}

func (img *Image) writeRegion(addr uint32, data []byte) error {
	blockSize := int(img.Superblock.BlockSize)
	for i := 0; i*blockSize < len(data); i++ {
		chunk := data[i*blockSize : (i+1)*blockSize]
		if err := img.Device.WriteBlock(addr+uint32(i), chunk); err != nil {
			return err
		}
	}
	return nil
}

func (img *Image) flushSuperblock() error {
	return img.Device.WriteBlock(0, encodeSuperblock(img.Superblock, img.Superblock.BlockSize))
}

// FlushBitmaps writes both bitmaps back to their on-disk regions.
func (img *Image) FlushBitmaps() error {
	inodeBytes := padTo(img.InodeAlloc.Bytes(), int(img.Superblock.InodeBitmapLen)*int(img.Superblock.BlockSize))
	if err := img.writeRegion(img.Superblock.InodeBitmapAddr, inodeBytes); err != nil {
		return err
	}
	dataBytes := padTo(img.DataAlloc.Bytes(), int(img.Superblock.DataBitmapLen)*int(img.Superblock.BlockSize))
	return img.writeRegion(img.Superblock.DataBitmapAddr, dataBytes)
}

// FlushInodeTable writes the entire resident inode table back to the
// inode region.
func (img *Image) FlushInodeTable() error {
	buf := make([]byte, 0, int(img.Superblock.InodeRegionLen)*int(img.Superblock.BlockSize))
	for _, inode := range img.Inodes {
		buf = append(buf, EncodeInode(inode)...)
	}
	buf = padTo(buf, int(img.Superblock.InodeRegionLen)*int(img.Superblock.BlockSize))
	return img.writeRegion(img.Superblock.InodeRegionAddr, buf)
}

// ReadDirBlock returns the contents of the directory data block at addr,
// serving from an in-memory cache when possible. Per the design notes,
// caching directory blocks is permitted as long as durability (Sync
// before a success reply) is preserved, which WriteDirBlock/Sync enforce.
func (img *Image) ReadDirBlock(addr uint32) ([]byte, error) {
	if cached, ok := img.dirCache[addr]; ok {
		out := make([]byte, len(cached))
		copy(out, cached)
		return out, nil
	}
	buf := make([]byte, img.Superblock.BlockSize)
	if err := img.Device.ReadBlock(addr, buf); err != nil {
		return nil, err
	}
	img.dirCache[addr] = buf
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// WriteDirBlock updates the cache and immediately writes through to disk.
// The write-through keeps the durability contract simple: a later Sync
// call is always enough to make every WriteDirBlock before it durable.
func (img *Image) WriteDirBlock(addr uint32, data []byte) error {
	cached := make([]byte, len(data))
	copy(cached, data)
	img.dirCache[addr] = cached
	return img.Device.WriteBlock(addr, data)
}

// Sync flushes the device to stable storage. Every success reply for a
// mutating request must call this before the dispatcher sends the reply.
func (img *Image) Sync() error {
	return img.Device.Sync()
}

// Abort is called when an IO_FATAL error has been observed partway
// through a mutation. It tries to flush whatever can still be flushed so
// the on-disk image isn't left worse off than necessary, collecting every
// failure it encounters rather than stopping at the first one, and then
// closes the file. The server terminates after calling this.
func (img *Image) Abort() error {
	var result *multierror.Error
	if err := img.flushSuperblock(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := img.FlushBitmaps(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := img.FlushInodeTable(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := img.Device.Sync(); err != nil {
		result = multierror.Append(result, err)
	}
	if img.closer != nil {
		if err := img.closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}

// Close flushes nothing further; it simply releases the underlying
// handle, if any. Callers must have already called Sync if they want
// durability.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	return img.closer.Close()
}

func padTo(buf []byte, size int) []byte {
	if len(buf) >= size {
		return buf[:size]
	}
	out := make([]byte, size)
	copy(out, buf)
	return out
}
