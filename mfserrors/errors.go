// Package mfserrors defines the error taxonomy shared by every layer of the
// file server: the image format, the allocator, the inode engine, and the
// protocol dispatcher all report failures as one of a small fixed set of
// kinds, never as ad hoc fmt.Errorf strings.
package mfserrors

import "fmt"

// MFSError is the common interface satisfied by every error this module
// produces internally. It lets callers attach context with WithMessage
// without losing the underlying Kind, and it participates in errors.Is /
// errors.As via Unwrap.
type MFSError interface {
	error
	WithMessage(message string) MFSError
	Unwrap() error
}

type detailedError struct {
	kind    Kind
	message string
}

func (e detailedError) Error() string {
	if e.message == "" {
		return string(e.kind)
	}
	return fmt.Sprintf("%s: %s", string(e.kind), e.message)
}

func (e detailedError) WithMessage(message string) MFSError {
	return detailedError{kind: e.kind, message: message}
}

func (e detailedError) Unwrap() error {
	return e.kind
}

// Is reports whether target is the same Kind as e, so that
// errors.Is(err, mfserrors.ErrNotFound) works regardless of how much
// context has been attached via WithMessage.
func (e detailedError) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.kind
}
