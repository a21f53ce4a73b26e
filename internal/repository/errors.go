package repository

import "errors"

// Typed rejections surfaced by the persistence layer. Callers distinguish
// them with errors.Is; anything else coming out of a repository is an
// unexpected store failure.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner indicates the row belongs to a different user.
	ErrNotOwner = errors.New("not owned by user")
	// ErrConflict indicates the candidate interval overlaps an existing entry.
	ErrConflict = errors.New("an entry already exists during the period")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("already exists")
)
