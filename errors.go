package resource

import "errors"

// Handle and manager errors.
var (
	// ErrNotResolved is returned when a handle is used before the manager
	// resolved it. Being unresolved is an expected, pollable state.
	ErrNotResolved = errors.New("resource: handle not resolved")

	// ErrTypeMismatch is returned when the object behind a handle is not of
	// the handle's static type.
	ErrTypeMismatch = errors.New("resource: type mismatch")

	// ErrNilResource is returned when registering or resolving a nil object.
	ErrNilResource = errors.New("resource: nil resource")

	// ErrInvalidHandle is returned when adopting a handle that already has
	// an identity.
	ErrInvalidHandle = errors.New("resource: invalid handle")

	// ErrUnknownResource is returned for a uuid the manager does not track.
	ErrUnknownResource = errors.New("resource: unknown resource")

	// ErrNoLoader is returned when no loader is registered for a file extension.
	ErrNoLoader = errors.New("resource: no loader for extension")

	// ErrClosed is returned by a manager after Close.
	ErrClosed = errors.New("resource: manager closed")
)
