package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, e.g. a second trip for the same load.
	ErrDuplicate = errors.New("entity already exists")

	// ErrStaleState is returned when a guarded update finds the row no
	// longer in the expected state. The caller lost a concurrent race.
	ErrStaleState = errors.New("entity state changed concurrently")
)
