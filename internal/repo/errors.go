package repo

import "errors"

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on unique-constraint violations
	// (duplicate email, voter_id, or roster entry).
	ErrConflict = errors.New("record already exists")
	// ErrInvalidReference is returned on foreign-key violations, i.e. a
	// payload naming a user or voter id that does not exist.
	ErrInvalidReference = errors.New("referenced record does not exist")
)
