package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a submission ID has no row in the queue.
var ErrNotFound = errors.New("submission not found")

// StorageError wraps a failed durable write or read. Callers treat it as
// fatal for the operation that triggered it: a submission that could not
// be persisted is reported to the user, never silently held in memory.
type StorageError struct {
	Op  string // "put", "get", "delete", "open"
	ID  string // submission ID if known
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
