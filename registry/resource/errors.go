package resource

import "errors"

var (
	// ErrInvalidBody is returned for malformed bodies or missing required attributes.
	ErrInvalidBody = errors.New("invalid body")
	// ErrConflict is returned when the id is already used by a resource of another type.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for operations on unknown resources or subscriptions.
	ErrNotFound = errors.New("not found")
	// ErrMissingParent is returned when a referenced parent is not registered.
	ErrMissingParent = errors.New("missing parent")
	// ErrUnavailable is returned when an event delivery channel cannot accept data.
	ErrUnavailable = errors.New("unavailable")
)
