package texture

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Type is the texture dimensionality.
type Type uint8

// Texture types.
const (
	// Type1D is a one-dimensional texture.
	Type1D Type = iota + 1
	// Type2D is a two-dimensional texture (default).
	Type2D
	// Type3D is a volume texture.
	Type3D
	// TypeCube is a cube map with six square faces.
	TypeCube
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Type1D:
		return "1d"
	case Type2D:
		return "2d"
	case Type3D:
		return "3d"
	case TypeCube:
		return "cube"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Dimension returns the GPU texture dimension. Cube maps are stored as
// 2D textures with six array layers.
func (t Type) Dimension() gputypes.TextureDimension {
	switch t {
	case Type1D:
		return gputypes.TextureDimension1D
	case Type3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t < Type1D || t > TypeCube {
		return nil, fmt.Errorf("%w: type %d", ErrInvalidDescriptor, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "1d":
		*t = Type1D
	case "2d":
		*t = Type2D
	case "3d":
		*t = Type3D
	case "cube":
		*t = TypeCube
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidDescriptor, b)
	}
	return nil
}

// Usage describes how a texture is going to be used. The buffer usage
// bits are hints for the backend; UsageRenderTarget changes allocation.
type Usage uint32

// Usage flags.
const (
	UsageStatic       Usage = 0x1
	UsageDynamic      Usage = 0x2
	UsageWriteOnly    Usage = 0x4
	UsageDiscardable  Usage = 0x8
	UsageRenderTarget Usage = 0x200

	UsageStaticWriteOnly             = UsageStatic | UsageWriteOnly
	UsageDynamicWriteOnly            = UsageDynamic | UsageWriteOnly
	UsageDynamicWriteOnlyDiscardable = UsageDynamicWriteOnly | UsageDiscardable

	// UsageDefault is used when a descriptor leaves Usage zero.
	UsageDefault = UsageStaticWriteOnly
)

// Has reports whether all bits of flag are set.
func (u Usage) Has(flag Usage) bool {
	return u&flag == flag
}

// GPU maps the usage to WebGPU texture usage flags. Every texture can be
// written, sampled and copied from, since uploads, readback and CopyTo
// rely on it.
func (u Usage) GPU() gputypes.TextureUsage {
	gu := gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageCopySrc |
		gputypes.TextureUsageTextureBinding
	if u.Has(UsageRenderTarget) {
		gu |= gputypes.TextureUsageRenderAttachment
	}
	return gu
}

// MipUnlimited requests a full mip chain down to 1x1.
const MipUnlimited = 0x7FFFFFFF

// Cube map faces, in upload order.
const (
	FacePositiveX = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ
)

// State is the lifecycle state of a Texture.
type State uint8

// Texture states.
const (
	// StateUninitialized is a texture created with New and not yet initialized.
	StateUninitialized State = iota
	// StateInitialized has metadata but neither staged data nor storage.
	StateInitialized
	// StateStaged has pixel data waiting for InitializeFromTextureData.
	StateStaged
	// StateAllocated has hardware storage.
	StateAllocated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStaged:
		return "staged"
	case StateAllocated:
		return "allocated"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
