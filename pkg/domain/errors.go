package domain

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a record is absent or not visible to the
// calling identity. Ownership misses are indistinguishable from absence.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DuplicateIDError is returned when registration collides with an existing
// crate identifier.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("crate %s already exists", e.ID)
}

// ValidationError is returned when a request is missing required fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicateID reports whether err wraps a DuplicateIDError.
func IsDuplicateID(err error) bool {
	var dup DuplicateIDError
	return errors.As(err, &dup)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
