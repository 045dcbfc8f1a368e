package mfserrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMessageKeepsKind(t *testing.T) {
	err := ErrNotFound.WithMessage("no such entry: foo")
	assert.True(t, errors.Is(err, NotFound))
	assert.Contains(t, err.Error(), "no such entry: foo")
	assert.Contains(t, err.Error(), string(NotFound))
}

func TestIsKindHelpers(t *testing.T) {
	err := ErrNoSpace.WithMessage("inode table full")
	assert.True(t, IsKind(err, NoSpace))
	assert.False(t, IsKind(err, NotFound))
	assert.False(t, IsNotFoundErr(err))
}

func TestIsFatalOnlyIOFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrIOFatal.WithMessage("disk full")))
	assert.False(t, IsFatal(ErrInvalid.WithMessage("bad input")))
	assert.False(t, IsFatal(nil))
}

func TestBareKindSatisfiesIs(t *testing.T) {
	var err error = ErrNotFound
	assert.True(t, errors.Is(err, NotFound))
	assert.True(t, IsNotFoundErr(err))
}
