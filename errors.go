package pal

import (
	"errors"
	"fmt"
)

// ErrTypeResolution is returned when a model name cannot be resolved to a
// registered schema.
var ErrTypeResolution = errors.New("pal: unresolved model type")

// ErrSchema is returned when a registered schema is structurally unusable.
var ErrSchema = errors.New("pal: invalid schema")

// ErrSaveFailed is returned when the storage engine reports that no row
// was created by an insert.
var ErrSaveFailed = errors.New("pal: save failed, no row inserted")

// ErrInvalidConditions is returned when a where clause's placeholder count
// does not match the supplied argument count.
var ErrInvalidConditions = errors.New("pal: condition placeholders do not match arguments")

// ErrNotFound is returned when a single-row query matches nothing.
var ErrNotFound = errors.New("pal: record not found")

// PersistenceError wraps a lower-level storage failure encountered
// mid-operation. The surrounding transaction rolls back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("pal: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func typeErr(name string) error {
	return fmt.Errorf("%w: %q", ErrTypeResolution, name)
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}
