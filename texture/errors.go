package texture

import "errors"

// Texture errors.
var (
	// ErrInvalidState is returned when an operation is called out of order,
	// such as materializing a texture that has nothing staged.
	ErrInvalidState = errors.New("texture: invalid state")

	// ErrNotAllocated is returned when hardware storage is required but the
	// texture has none.
	ErrNotAllocated = errors.New("texture: internal resources not allocated")

	// ErrBufferInvalid is returned by pixel buffers whose storage was freed.
	ErrBufferInvalid = errors.New("texture: pixel buffer no longer valid")

	// ErrFaceOutOfRange is returned for a face index outside [0, NumFaces).
	ErrFaceOutOfRange = errors.New("texture: face out of range")

	// ErrMipOutOfRange is returned for a mip level outside [0, NumMipmaps].
	ErrMipOutOfRange = errors.New("texture: mip level out of range")

	// ErrInvalidDescriptor is returned when a descriptor fails validation.
	ErrInvalidDescriptor = errors.New("texture: invalid descriptor")

	// ErrDataMismatch is returned when pixel data does not match the
	// texture or buffer it is written to.
	ErrDataMismatch = errors.New("texture: data does not match texture")

	// ErrUnsupportedFormat is returned for formats without a fixed texel size.
	ErrUnsupportedFormat = errors.New("texture: unsupported format")

	// ErrUnsupportedConversion is returned by CopyTo when the pixel data
	// cannot be converted between the two textures.
	ErrUnsupportedConversion = errors.New("texture: unsupported conversion")

	// ErrNilBackend is returned when a texture is created without a backend.
	ErrNilBackend = errors.New("texture: nil backend")
)
