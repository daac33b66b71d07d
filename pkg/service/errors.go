package service

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds surfaced by WorkflowService. Match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage failure")
)

// StorageError wraps a failure of the underlying store. It matches ErrStorage
// and unwraps to the original cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(err error, format string, args ...interface{}) error {
	return &StorageError{Op: fmt.Sprintf(format, args...), Err: err}
}
