// Package imageio is the lowest layer of the server: positioned,
// block-addressed I/O against the backing image file. Nothing above this
// layer touches the underlying io.ReadWriteSeeker directly.
package imageio

import (
	"fmt"
	"io"

	"github.com/mfsd/mfsd/mfserrors"
)

// Device wraps a seekable stream and exposes it as a sequence of
// fixed-size blocks. Grounded on drivers/common/blockdevice.go's
// BlockDevice, generalized from a fixed 512-byte sector to a configurable
// block size.
type Device struct {
	stream      io.ReadWriteSeeker
	syncer      Syncer
	BlockSize   uint32
	TotalBlocks uint32
}

// Syncer is implemented by *os.File. It's split out so tests can back a
// Device with an in-memory buffer that has no meaningful fsync.
type Syncer interface {
	Sync() error
}

// nopSyncer satisfies Syncer for streams with no durability to flush,
// such as an in-memory buffer used in tests.
type nopSyncer struct{}

func (nopSyncer) Sync() error { return nil }

// New creates a Device over stream. If stream also implements Syncer (as
// *os.File does), Sync() calls through to it; otherwise Sync() is a no-op.
func New(stream io.ReadWriteSeeker, blockSize, totalBlocks uint32) *Device {
	syncer, ok := stream.(Syncer)
	if !ok {
		syncer = nopSyncer{}
	}
	return &Device{stream: stream, syncer: syncer, BlockSize: blockSize, TotalBlocks: totalBlocks}
}

func (d *Device) offsetOf(block uint32) (int64, error) {
	if block >= d.TotalBlocks {
		return 0, mfserrors.ErrIOFatal.WithMessage(
			fmt.Sprintf("block %d out of range [0, %d)", block, d.TotalBlocks))
	}
	return int64(block) * int64(d.BlockSize), nil
}

// ReadBlock fills buf, which must be exactly BlockSize bytes, with the
// contents of block n. A short read or seek failure is IO_FATAL: the
// caller should abort the server rather than proceed with partial data.
func (d *Device) ReadBlock(n uint32, buf []byte) error {
	if uint32(len(buf)) != d.BlockSize {
		return mfserrors.ErrIOFatal.WithMessage("buffer size does not match block size")
	}
	offset, err := d.offsetOf(n)
	if err != nil {
		return err
	}
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	return nil
}

// WriteBlock writes buf, which must be exactly BlockSize bytes, to block n.
func (d *Device) WriteBlock(n uint32, buf []byte) error {
	if uint32(len(buf)) != d.BlockSize {
		return mfserrors.ErrIOFatal.WithMessage("buffer size does not match block size")
	}
	offset, err := d.offsetOf(n)
	if err != nil {
		return err
	}
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	if _, err := d.stream.Write(buf); err != nil {
		return mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	return nil
}

// Sync forces all previously written blocks to stable storage.
func (d *Device) Sync() error {
	if err := d.syncer.Sync(); err != nil {
		return mfserrors.ErrIOFatal.WithMessage(err.Error())
	}
	return nil
}
