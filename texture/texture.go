package texture

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/resource"
	"github.com/gogpu/resource/rtti"
)

var textureType = rtti.Register(&rtti.TypeInfo{
	ID:   rtti.TypeTexture,
	Name: "Texture",
	Fields: []rtti.Field{
		{Name: "type", Kind: rtti.KindEnum},
		{Name: "width", Kind: rtti.KindUint},
		{Name: "height", Kind: rtti.KindUint},
		{Name: "depth", Kind: rtti.KindUint},
		{Name: "numMipmaps", Kind: rtti.KindUint},
		{Name: "format", Kind: rtti.KindEnum},
		{Name: "usage", Kind: rtti.KindFlags},
		{Name: "hwGamma", Kind: rtti.KindBool},
		{Name: "fsaa", Kind: rtti.KindUint},
		{Name: "fsaaHint", Kind: rtti.KindString},
		{Name: "label", Kind: rtti.KindString},
		{Name: "textureData", Kind: rtti.KindReference, Array: true},
	},
})

// Compile-time interface checks.
var (
	_ resource.Resource               = (*Texture)(nil)
	_ gpucontext.Texture              = (*Texture)(nil)
	_ gpucontext.TextureUpdater       = (*Texture)(nil)
	_ gpucontext.TextureRegionUpdater = (*Texture)(nil)
)

// Texture is a texture resource backed by per-face, per-mip pixel buffers.
//
// Loading is two-phase. Pixel data is first staged per face with
// SetTextureData, then InitializeFromTextureData allocates hardware storage
// if needed, uploads every staged level and drops the staging copies.
//
// Thread safety: Texture is safe for concurrent use.
type Texture struct {
	backend Backend

	mu          sync.RWMutex
	desc        Descriptor
	initialized bool
	storage     Storage
	staged      []*Data // one slot per face
}

// New returns an uninitialized texture that allocates through b.
func New(b Backend) *Texture {
	return &Texture{backend: b}
}

// Create returns a texture initialized from desc with its hardware storage
// allocated.
func Create(b Backend, desc Descriptor) (*Texture, error) {
	t := New(b)
	if err := t.Initialize(desc); err != nil {
		return nil, err
	}
	if err := t.CreateInternalResources(); err != nil {
		return nil, err
	}
	return t, nil
}

// Initialize sets the texture metadata. It does not allocate.
//
// Zero fields take defaults: Type2D, depth 1 (and height 1 for 1D
// textures), UsageDefault. NumMipmaps is clamped to the full chain.
// Initializing an allocated texture returns ErrInvalidState.
func (t *Texture) Initialize(desc Descriptor) error {
	desc = desc.normalize()
	if err := desc.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage != nil {
		return fmt.Errorf("%w: initialize while allocated", ErrInvalidState)
	}
	t.desc = desc
	t.initialized = true
	t.staged = make([]*Data, desc.NumFaces())
	return nil
}

// Descriptor returns the texture metadata.
func (t *Texture) Descriptor() Descriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.desc
}

// Type returns the texture type.
func (t *Texture) Type() Type { return t.Descriptor().Type }

// Width returns the base level width in pixels.
func (t *Texture) Width() int { return t.Descriptor().Width }

// Height returns the base level height in pixels.
func (t *Texture) Height() int { return t.Descriptor().Height }

// Depth returns the base level depth.
func (t *Texture) Depth() int { return t.Descriptor().Depth }

// NumMipmaps returns the number of levels below the base level.
func (t *Texture) NumMipmaps() int { return t.Descriptor().NumMipmaps }

// Format returns the pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.Descriptor().Format }

// Usage returns the usage flags.
func (t *Texture) Usage() Usage { return t.Descriptor().Usage }

// HWGamma reports whether hardware gamma correction is enabled.
func (t *Texture) HWGamma() bool { return t.Descriptor().HWGamma }

// FSAA returns the multisample count.
func (t *Texture) FSAA() int { return t.Descriptor().FSAA }

// FSAAHint returns the backend-specific multisampling hint.
func (t *Texture) FSAAHint() string { return t.Descriptor().FSAAHint }

// NumFaces returns 6 for cube maps and 1 otherwise.
func (t *Texture) NumFaces() int { return t.Descriptor().NumFaces() }

// HasAlpha reports whether the pixel format has an alpha channel.
func (t *Texture) HasAlpha() bool { return HasAlpha(t.Format()) }

// Backend returns the backend the texture allocates through.
func (t *Texture) Backend() Backend { return t.backend }

// State returns the lifecycle state. Staged data takes precedence over
// allocation: an allocated texture with fresh staging reports StateStaged.
func (t *Texture) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch {
	case !t.initialized:
		return StateUninitialized
	case t.stagedCount() > 0:
		return StateStaged
	case t.storage != nil:
		return StateAllocated
	default:
		return StateInitialized
	}
}

// Staged returns the number of faces holding staged data.
func (t *Texture) Staged() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stagedCount()
}

// SetTextureData stages pixel data for one face. Cube faces are ordered
// +X, -X, +Y, -Y, +Z, -Z. The data must match the texture extent and
// format and may carry fewer mip levels than the texture.
func (t *Texture) SetTextureData(face int, d *Data) error {
	if d == nil {
		return fmt.Errorf("%w: nil data", ErrDataMismatch)
	}
	if err := d.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("%w: set data on uninitialized texture", ErrInvalidState)
	}
	if face < 0 || face >= len(t.staged) {
		return fmt.Errorf("%w: %d of %d", ErrFaceOutOfRange, face, len(t.staged))
	}
	if d.Width != t.desc.Width || d.Height != t.desc.Height || d.Depth != t.desc.Depth {
		return fmt.Errorf("%w: data %dx%dx%d, texture %dx%dx%d", ErrDataMismatch,
			d.Width, d.Height, d.Depth, t.desc.Width, t.desc.Height, t.desc.Depth)
	}
	if d.Format != t.desc.Format {
		return fmt.Errorf("%w: data format %s, texture format %s", ErrDataMismatch, d.Format, t.desc.Format)
	}
	if d.NumMipmaps() > t.desc.NumMipmaps {
		return fmt.Errorf("%w: data has %d mipmaps, texture %d", ErrDataMismatch, d.NumMipmaps(), t.desc.NumMipmaps)
	}

	t.staged[face] = d
	return nil
}

// InitializeFromTextureData uploads the staged data of every face and
// clears the staging slots. Storage is allocated first if needed.
//
// Every face must be staged. Calling it with nothing staged, including a
// second call without fresh staging, returns ErrInvalidState.
func (t *Texture) InitializeFromTextureData() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("%w: uninitialized texture", ErrInvalidState)
	}
	if t.stagedCount() == 0 {
		return fmt.Errorf("%w: no staged texture data", ErrInvalidState)
	}
	for face, d := range t.staged {
		if d == nil {
			return fmt.Errorf("%w: face %d not staged", ErrInvalidState, face)
		}
	}

	if t.storage == nil {
		if err := t.createLocked(); err != nil {
			return err
		}
	}

	for face, d := range t.staged {
		for level, pix := range d.Mips {
			buf, err := t.storage.Buffer(face, level)
			if err != nil {
				return err
			}
			if err := buf.Write(pix); err != nil {
				return fmt.Errorf("texture: upload face %d level %d: %w", face, level, err)
			}
		}
	}

	clear(t.staged)
	resource.Logger().Debug("texture: staged data uploaded",
		"label", t.desc.Label, "faces", len(t.staged), "mipmaps", t.desc.NumMipmaps)
	return nil
}

// CreateInternalResources allocates hardware storage. It is a no-op when
// storage already exists.
func (t *Texture) CreateInternalResources() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("%w: allocate uninitialized texture", ErrInvalidState)
	}
	if t.storage != nil {
		return nil
	}
	return t.createLocked()
}

// FreeInternalResources releases hardware storage. Pixel buffers obtained
// earlier become invalid. It is a no-op when nothing is allocated.
func (t *Texture) FreeInternalResources() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freeLocked()
}

// Unload releases hardware storage and drops staged data. The texture keeps
// its metadata and can be loaded again.
func (t *Texture) Unload() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.staged)
	return t.freeLocked()
}

// Buffer returns the pixel buffer of one face and mip level.
func (t *Texture) Buffer(face, mip int) (PixelBuffer, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.storage == nil {
		return nil, ErrNotAllocated
	}
	if err := t.checkSliceLocked(face, mip); err != nil {
		return nil, err
	}
	return t.storage.Buffer(face, mip)
}

// TextureData reads every mip level of face back from hardware storage.
func (t *Texture) TextureData(face int) (*Data, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.storage == nil {
		return nil, ErrNotAllocated
	}
	if err := t.checkSliceLocked(face, 0); err != nil {
		return nil, err
	}

	d := &Data{
		Width:  t.desc.Width,
		Height: t.desc.Height,
		Depth:  t.desc.Depth,
		Format: t.desc.Format,
		Mips:   make([][]byte, t.desc.MipLevelCount()),
	}
	for level := range d.Mips {
		buf, err := t.storage.Buffer(face, level)
		if err != nil {
			return nil, err
		}
		pix, err := buf.Read()
		if err != nil {
			return nil, fmt.Errorf("texture: read face %d level %d: %w", face, level, err)
		}
		d.Mips[level] = pix
	}
	return d, nil
}

// Size returns the memory footprint of every face and mip level in bytes.
func (t *Texture) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.initialized {
		return 0
	}
	return sliceBytes(t.desc) * uint64(t.desc.NumFaces())
}

// UpdateData replaces the base level of face 0.
func (t *Texture) UpdateData(data []byte) error {
	buf, err := t.Buffer(0, 0)
	if err != nil {
		return err
	}
	return buf.Write(data)
}

// UpdateRegion replaces a w x h rectangle of the base level of face 0.
// data holds tightly packed rows. Concurrent region updates are serialized.
func (t *Texture) UpdateRegion(x, y, w, h int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage == nil {
		return ErrNotAllocated
	}
	buf, err := t.storage.Buffer(0, 0)
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > buf.Width() || y+h > buf.Height() || buf.Depth() != 1 {
		return fmt.Errorf("%w: region (%d,%d %dx%d) outside %dx%d", ErrDataMismatch, x, y, w, h, buf.Width(), buf.Height())
	}
	bpp := BytesPerPixel(buf.Format())
	if len(data) != w*h*bpp {
		return fmt.Errorf("%w: region needs %d bytes, got %d", ErrDataMismatch, w*h*bpp, len(data))
	}

	pix, err := buf.Read()
	if err != nil {
		return err
	}
	stride := buf.Width() * bpp
	row := w * bpp
	for r := range h {
		off := (y+r)*stride + x*bpp
		copy(pix[off:off+row], data[r*row:(r+1)*row])
	}
	return buf.Write(pix)
}

// TypeInfo implements rtti.Reflectable.
func (t *Texture) TypeInfo() *rtti.TypeInfo {
	return textureType
}

// String implements fmt.Stringer.
func (t *Texture) String() string {
	d := t.Descriptor()
	return fmt.Sprintf("Texture{%s %dx%dx%d mips=%d %s %s}", d.Type, d.Width, d.Height, d.Depth, d.NumMipmaps, d.Format, t.State())
}

func (t *Texture) createLocked() error {
	if t.backend == nil {
		return ErrNilBackend
	}
	s, err := t.backend.CreateStorage(t.desc)
	if err != nil {
		return fmt.Errorf("texture: create storage on %s: %w", t.backend.Name(), err)
	}
	t.storage = s
	resource.Logger().Debug("texture: storage allocated",
		"backend", t.backend.Name(), "label", t.desc.Label,
		"width", t.desc.Width, "height", t.desc.Height, "format", t.desc.Format.String())
	return nil
}

func (t *Texture) freeLocked() error {
	if t.storage == nil {
		return nil
	}
	err := t.storage.Free()
	t.storage = nil
	if err != nil {
		return fmt.Errorf("texture: free storage: %w", err)
	}
	resource.Logger().Debug("texture: storage freed", "label", t.desc.Label)
	return nil
}

func (t *Texture) checkSliceLocked(face, mip int) error {
	if face < 0 || face >= t.desc.NumFaces() {
		return fmt.Errorf("%w: %d of %d", ErrFaceOutOfRange, face, t.desc.NumFaces())
	}
	if mip < 0 || mip > t.desc.NumMipmaps {
		return fmt.Errorf("%w: %d of %d", ErrMipOutOfRange, mip, t.desc.NumMipmaps)
	}
	return nil
}

func (t *Texture) stagedCount() int {
	n := 0
	for _, d := range t.staged {
		if d != nil {
			n++
		}
	}
	return n
}

// sliceBytes returns the bytes of all mip levels of one face.
func sliceBytes(desc Descriptor) uint64 {
	bpp := uint64(BytesPerPixel(desc.Format))
	var n uint64
	for level := range desc.MipLevelCount() {
		w, h, d := MipExtent(desc.Width, desc.Height, desc.Depth, level)
		n += uint64(w*h*d) * bpp
	}
	return n
}
