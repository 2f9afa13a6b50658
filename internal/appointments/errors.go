package appointments

import "errors"

var (
	// ErrNotFound indicates no appointment row matched the lookup.
	ErrNotFound = errors.New("appointments: not found")

	// ErrTypeNotFound indicates the referenced catalog appointment type
	// does not exist in the content store.
	ErrTypeNotFound = errors.New("appointments: appointment type not found")
)
