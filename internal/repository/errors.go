package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("repository: duplicate")
)

// DuplicateFieldError reports which unique column collided on insert, so
// callers can branch on the field name instead of inspecting driver error
// internals.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("repository: duplicate %s", e.Field)
}

// Is makes errors.Is(err, ErrDuplicate) match any duplicate-field error.
func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicate
}
