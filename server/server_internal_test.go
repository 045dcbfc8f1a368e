package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfsd/mfsd/proto"
)

func TestFirstWordStopsAtSpaceOrNUL(t *testing.T) {
	assert.Equal(t, "LOOKUP", firstWord([]byte("LOOKUP 0 foo.txt")))
	assert.Equal(t, "WRITE", firstWord(append([]byte("WRITE 1 0"), 0, 1, 2)))
	assert.Equal(t, "SHUTDOWN", firstWord([]byte("SHUTDOWN")))
}

func TestIsFailureReply(t *testing.T) {
	assert.True(t, isFailureReply([]byte("-1")))
	assert.True(t, isFailureReply([]byte{proto.ReadStatusFail}))
	assert.False(t, isFailureReply([]byte("0")))
	assert.False(t, isFailureReply([]byte{proto.ReadStatusOK, 1, 2}))
	assert.False(t, isFailureReply(nil))
}
