package dialogue

import (
	"errors"
	"fmt"
)

// Common errors for dialogue storage operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrClosed           = errors.New("dialogue storage is closed")
	ErrSerialization    = errors.New("dialogue serialization failed")
)

// BackendError reports a failure of the storage medium: I/O, lost
// connectivity or a record that could not be (de)serialized.
// It is distinct from ErrClosed, which means the store itself is unusable.
type BackendError struct {
	Backend string
	Op      string
	ChatID  ChatID
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s dialogue %d: %v", e.Backend, e.Op, e.ChatID, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err as a BackendError. A nil err yields nil.
func NewBackendError(backend, op string, id ChatID, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, ChatID: id, Err: err}
}

// IsBackend reports whether err was produced by a failing storage medium.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
