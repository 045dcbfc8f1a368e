// Package mfstesting provides in-memory image fixtures for exercising
// fsimage/engine/proto without touching the filesystem. Grounded on
// testing/images.go's LoadDiskImage, adapted to build fresh images
// directly instead of decompressing fixture files, since mfsd has no
// analogue of disko's compressed sample images.
package mfstesting

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/mfsd/mfsd/fsimage"
)

// Fixture pairs a live image with the backing byte slice underneath it,
// so a test can simulate a server restart by reopening the same bytes.
type Fixture struct {
	Image   *fsimage.Image
	Backing []byte
}

// NewImage formats a fresh in-memory image with opts and returns it
// ready for use, along with the backing buffer it was written into. The
// buffer is a fixed-size byte slice wrapped by
// bytesextra.NewReadWriteSeeker, sized exactly to what opts implies, so
// no Truncate call is ever needed.
func NewImage(t *testing.T, opts fsimage.Options) Fixture {
	t.Helper()

	sb := fsimage.Layout(withDefault(opts.BlockSize, fsimage.DefaultBlockSize),
		withDefault(opts.NumInodes, fsimage.DefaultNumInodes),
		withDefault(opts.NumDataBlocks, fsimage.DefaultNumDataBlocks))

	backing := make([]byte, int(sb.TotalBlocks())*int(sb.BlockSize))
	stream := bytesextra.NewReadWriteSeeker(backing)

	img, err := fsimage.Initialize(stream, nil, opts)
	require.NoError(t, err, "failed to initialize in-memory test image")
	return Fixture{Image: img, Backing: backing}
}

// Reopen reloads an image from the raw bytes of a prior Fixture,
// simulating a server restart against the same on-disk state. The
// original Fixture's Image must not be used afterward: both would
// otherwise share the same backing array.
func Reopen(t *testing.T, backing []byte) *fsimage.Image {
	t.Helper()

	stream := bytesextra.NewReadWriteSeeker(backing)
	img, err := fsimage.Load(stream, nil)
	require.NoError(t, err, "failed to reload in-memory test image")
	return img
}

func withDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}
