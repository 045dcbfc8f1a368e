package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfsd/mfsd/fsimage"
)

func TestParseLookup(t *testing.T) {
	req, err := Parse([]byte("LOOKUP 0 foo.txt"), 4096)
	require.NoError(t, err)
	assert.Equal(t, Lookup, req.Verb)
	assert.EqualValues(t, 0, req.Pinum)
	assert.Equal(t, "foo.txt", req.Name)
}

func TestParseCreat(t *testing.T) {
	req, err := Parse([]byte("CREAT 0 1 foo.txt"), 4096)
	require.NoError(t, err)
	assert.Equal(t, Creat, req.Verb)
	assert.EqualValues(t, 0, req.Pinum)
	assert.Equal(t, fsimage.TypeRegularFile, req.Type)
	assert.Equal(t, "foo.txt", req.Name)
}

func TestParseCreatRejectsBadType(t *testing.T) {
	_, err := Parse([]byte("CREAT 0 9 foo.txt"), 4096)
	require.Error(t, err)
}

func TestParseWrite(t *testing.T) {
	payload := make([]byte, 8)
	for i := range payload {
		payload[i] = byte(i)
	}
	data := append([]byte("WRITE 3 1\x00"), payload...)

	req, err := Parse(data, 8)
	require.NoError(t, err)
	assert.Equal(t, Write, req.Verb)
	assert.EqualValues(t, 3, req.Inum)
	assert.EqualValues(t, 1, req.Block)
	assert.Equal(t, payload, req.Payload)
}

func TestParseWriteWrongPayloadSize(t *testing.T) {
	data := append([]byte("WRITE 3 1\x00"), make([]byte, 4)...)
	_, err := Parse(data, 8)
	require.Error(t, err)
}

func TestParseShutdown(t *testing.T) {
	req, err := Parse([]byte("SHUTDOWN"), 4096)
	require.NoError(t, err)
	assert.Equal(t, Shutdown, req.Verb)
}

func TestParseUnknownVerb(t *testing.T) {
	_, err := Parse([]byte("DESTROY 0"), 4096)
	require.Error(t, err)
}

func TestParseEmptyFrame(t *testing.T) {
	_, err := Parse(nil, 4096)
	require.Error(t, err)
}

func TestFormatLookupFailure(t *testing.T) {
	out := FormatLookup(0, assertErr)
	assert.Equal(t, []byte("-1"), out)
}

func TestFormatReadStatusBytes(t *testing.T) {
	ok := FormatRead([]byte{1, 2, 3}, nil)
	require.Len(t, ok, 4)
	assert.Equal(t, ReadStatusOK, ok[0])
	assert.Equal(t, []byte{1, 2, 3}, ok[1:])

	fail := FormatRead(nil, assertErr)
	assert.Equal(t, []byte{ReadStatusFail}, fail)
}

var assertErr = fsimageTestError("boom")

type fsimageTestError string

func (e fsimageTestError) Error() string { return string(e) }
