package settings

import "errors"

var (
	// ErrMissingKey is returned when the requested key has no entry.
	ErrMissingKey = errors.New("key not found")

	// ErrTypeMismatch is returned when a stored value cannot be coerced
	// to the requested primitive type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrDeserialization is returned when a stored object does not match
	// the requested shape.
	ErrDeserialization = errors.New("cannot decode object")

	// ErrSerialization is returned by SetObject when the codec cannot
	// encode the value. The previous entry is kept.
	ErrSerialization = errors.New("cannot encode object")

	// ErrPersistence is returned when the backing medium rejects a Save
	// or cannot be read. The in-memory view is never modified by a
	// failed Save.
	ErrPersistence = errors.New("persistence failed")

	// ErrCorrupt is returned when durable state exists but cannot be decoded.
	ErrCorrupt = errors.New("stored settings are corrupt")

	// ErrInvalidTarget is returned when GetObject receives something other
	// than a non-nil pointer, or a default that cannot be assigned to it.
	ErrInvalidTarget = errors.New("invalid object target")

	// ErrClosed is returned by Save after Close.
	ErrClosed = errors.New("store is closed")
)
