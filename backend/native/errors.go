package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNilDevice is returned when a backend is created without a HAL device.
	ErrNilDevice = errors.New("native: nil HAL device")

	// ErrNilQueue is returned when a backend is created without a HAL queue.
	ErrNilQueue = errors.New("native: nil HAL queue")

	// ErrNotHAL is returned when a device provider exposes a device or queue
	// that is not a HAL handle.
	ErrNotHAL = errors.New("native: provider does not expose HAL handles")

	// ErrNoAdapter is returned when the headless instance reports no adapter.
	ErrNoAdapter = errors.New("native: no adapter available")

	// ErrTextureDestroyed is returned when operating on a destroyed texture.
	ErrTextureDestroyed = errors.New("native: texture has been destroyed")

	// ErrDefaultViewCreationFailed is returned when lazy default view creation fails.
	ErrDefaultViewCreationFailed = errors.New("native: failed to create default view")

	// ErrExceedsLimits is returned when a texture is larger than the device
	// limits allow.
	ErrExceedsLimits = errors.New("native: texture exceeds device limits")
)
