package notes

import "errors"

var (
	// ErrDuplicateTitle is returned by Create when a note with the same
	// title already exists. Nothing is inserted.
	ErrDuplicateTitle = errors.New("a note with this title already exists")

	// ErrNotFound is returned when no note matches the requested title.
	ErrNotFound = errors.New("note not found")

	// ErrInvalidSelection is returned by Diff when the version indices
	// are out of range or equal. No decryption is attempted.
	ErrInvalidSelection = errors.New("invalid version selection")
)
