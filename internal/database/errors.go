package database

import "errors"

var (
	// ErrConflict is returned when a write violates a uniqueness constraint,
	// e.g. a second attendance record for the same employee and date.
	ErrConflict = errors.New("record already exists")

	// ErrNotFound is returned by updates and deletes that matched no row.
	ErrNotFound = errors.New("record not found")
)
