package repository

import "errors"

// Common repository errors.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry indicates a write violated a uniqueness constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// Per-aggregate aliases, so callers can match on the aggregate they asked for.
var (
	ErrConnectionNotFound = ErrNotFound
	ErrRoomNotFound       = ErrNotFound
)
