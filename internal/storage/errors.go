package storage

import "fmt"

// ValidationError reports an observation that is missing a required field at
// insert time. The caller's input is malformed; retrying without fixing it
// cannot succeed.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("observation field %q is required", e.Field)
}

// StorageError reports a failure in the underlying storage engine. The write
// it interrupted either fully committed or fully rolled back; the caller may
// retry the whole operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
