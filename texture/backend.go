package texture

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Backend allocates hardware storage for textures.
//
// Backends are registered by name in package backend. Implementations must
// be safe for concurrent use.
type Backend interface {
	// Name returns the backend identifier (e.g. "software", "native").
	Name() string

	// CreateStorage allocates storage for every face and mip level of desc.
	// The descriptor has been validated and its mip count resolved.
	CreateStorage(desc Descriptor) (Storage, error)
}

// Storage is the hardware side of one texture.
type Storage interface {
	// Buffer returns the pixel buffer of one face and mip level.
	Buffer(face, mip int) (PixelBuffer, error)

	// Free releases the storage. Buffers handed out earlier report
	// Valid() == false afterwards. Free is idempotent.
	Free() error
}

// PixelBuffer is one face/mip slice of hardware storage.
type PixelBuffer interface {
	// Width, Height and Depth return the slice extent.
	Width() int
	Height() int
	Depth() int

	// Format returns the texel format.
	Format() gputypes.TextureFormat

	// Valid reports whether the storage behind the buffer is still allocated.
	Valid() bool

	// Write replaces the whole slice with tightly packed pixels.
	Write(pix []byte) error

	// Read returns a copy of the slice's pixels.
	Read() ([]byte, error)
}

// Descriptor holds the creation parameters of a texture.
type Descriptor struct {
	Type   Type `json:"type"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Depth  int  `json:"depth"`

	// NumMipmaps counts the levels below the base level. MipUnlimited
	// requests the full chain.
	NumMipmaps int `json:"numMipmaps"`

	Format gputypes.TextureFormat `json:"format"`
	Usage  Usage                  `json:"usage"`

	// HWGamma stores 8-bit color data in an sRGB format so sampling
	// linearizes it.
	HWGamma bool `json:"hwGamma,omitempty"`

	// FSAA is the multisample count; 0 and 1 both mean no multisampling.
	FSAA     int    `json:"fsaa,omitempty"`
	FSAAHint string `json:"fsaaHint,omitempty"`

	Label string `json:"label,omitempty"`
}

// NumFaces returns 6 for cube maps and 1 otherwise.
func (d Descriptor) NumFaces() int {
	if d.Type == TypeCube {
		return 6
	}
	return 1
}

// MipLevelCount returns the total number of levels including the base.
func (d Descriptor) MipLevelCount() int {
	return d.NumMipmaps + 1
}

// SampleCount returns the GPU sample count.
func (d Descriptor) SampleCount() int {
	return max(d.FSAA, 1)
}

// GPUFormat returns the format storage is allocated with. Hardware gamma
// selects the sRGB variant of 8-bit color formats.
func (d Descriptor) GPUFormat() gputypes.TextureFormat {
	if d.HWGamma {
		return srgbVariant(d.Format)
	}
	return d.Format
}

// normalize fills defaults and resolves MipUnlimited.
func (d Descriptor) normalize() Descriptor {
	if d.Type == 0 {
		d.Type = Type2D
	}
	if d.Usage == 0 {
		d.Usage = UsageDefault
	}
	if d.Height == 0 && d.Type == Type1D {
		d.Height = 1
	}
	if d.Depth == 0 {
		d.Depth = 1
	}
	maxMips := MaxMipmaps(d.Width, d.Height, d.Depth)
	if d.Type != Type3D {
		maxMips = MaxMipmaps(d.Width, d.Height, 1)
	}
	if d.NumMipmaps == MipUnlimited || d.NumMipmaps > maxMips {
		d.NumMipmaps = maxMips
	}
	return d
}

// Validate checks the descriptor for consistency.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("%w: extent %dx%dx%d", ErrInvalidDescriptor, d.Width, d.Height, d.Depth)
	}
	switch d.Type {
	case Type1D:
		if d.Height != 1 || d.Depth != 1 {
			return fmt.Errorf("%w: 1d texture with height %d depth %d", ErrInvalidDescriptor, d.Height, d.Depth)
		}
	case Type2D:
		if d.Depth != 1 {
			return fmt.Errorf("%w: 2d texture with depth %d", ErrInvalidDescriptor, d.Depth)
		}
	case Type3D:
	case TypeCube:
		if d.Width != d.Height || d.Depth != 1 {
			return fmt.Errorf("%w: cube faces must be square with depth 1, got %dx%dx%d",
				ErrInvalidDescriptor, d.Width, d.Height, d.Depth)
		}
	default:
		return fmt.Errorf("%w: type %d", ErrInvalidDescriptor, d.Type)
	}
	if d.NumMipmaps < 0 {
		return fmt.Errorf("%w: %d mipmaps", ErrInvalidDescriptor, d.NumMipmaps)
	}
	if BytesPerPixel(d.Format) == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.Format)
	}
	if d.FSAA < 0 {
		return fmt.Errorf("%w: fsaa %d", ErrInvalidDescriptor, d.FSAA)
	}
	return nil
}
