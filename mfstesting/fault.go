package mfstesting

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/mfsd/mfsd/fsimage"
)

// FaultyStream wraps an in-memory stream with a toggle that makes every
// subsequent Write fail, simulating the backing device going bad partway
// through a server's lifetime (a full disk, a detached volume, and so on).
type FaultyStream struct {
	io.ReadWriteSeeker
	FailWrites bool
}

// Write returns a synthetic error once FailWrites is set, instead of
// touching the underlying stream.
func (f *FaultyStream) Write(p []byte) (int, error) {
	if f.FailWrites {
		return 0, errors.New("simulated write failure")
	}
	return f.ReadWriteSeeker.Write(p)
}

// NewFaultyImage formats a fresh in-memory image exactly like NewImage, but
// returns it atop a FaultyStream the caller can flip to FailWrites = true
// to drive the IO_FATAL abort path in a test.
func NewFaultyImage(t *testing.T, opts fsimage.Options) (*fsimage.Image, *FaultyStream) {
	t.Helper()

	sb := fsimage.Layout(withDefault(opts.BlockSize, fsimage.DefaultBlockSize),
		withDefault(opts.NumInodes, fsimage.DefaultNumInodes),
		withDefault(opts.NumDataBlocks, fsimage.DefaultNumDataBlocks))

	backing := make([]byte, int(sb.TotalBlocks())*int(sb.BlockSize))
	stream := &FaultyStream{ReadWriteSeeker: bytesextra.NewReadWriteSeeker(backing)}

	img, err := fsimage.Initialize(stream, nil, opts)
	require.NoError(t, err, "failed to initialize in-memory faulty test image")
	return img, stream
}
