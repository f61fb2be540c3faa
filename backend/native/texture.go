package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/resource"
	"github.com/gogpu/resource/texture"
)

var (
	_ texture.Storage     = (*Storage)(nil)
	_ texture.PixelBuffer = (*Buffer)(nil)
)

// Storage is the HAL side of one texture: a hal.Texture with every face
// and mip level, its lazily created default view and the shadow copies of
// its slices.
//
// Thread Safety:
// Storage is safe for concurrent use. The default view is created exactly
// once. Free may be called more than once.
type Storage struct {
	backend *Backend
	desc    texture.Descriptor
	bytes   int64
	faces   [][]*Buffer

	// mu protects halTexture and destroyed.
	mu         sync.RWMutex
	halTexture hal.Texture
	destroyed  bool

	defaultViewOnce sync.Once
	defaultView     hal.TextureView
	defaultViewErr  error
}

func newStorage(b *Backend, halTex hal.Texture, desc texture.Descriptor) *Storage {
	s := &Storage{backend: b, desc: desc, halTexture: halTex}
	format := desc.GPUFormat()
	bpp := texture.BytesPerPixel(format)

	for face := range desc.NumFaces() {
		mips := make([]*Buffer, desc.MipLevelCount())
		for level := range mips {
			w, h, d := texture.MipExtent(desc.Width, desc.Height, desc.Depth, level)
			mips[level] = &Buffer{
				storage: s,
				layer:   face,
				mip:     level,
				width:   w,
				height:  h,
				depth:   d,
				format:  format,
				bpp:     bpp,
				shadow:  make([]byte, w*h*d*bpp),
			}
			s.bytes += int64(w * h * d * bpp)
		}
		s.faces = append(s.faces, mips)
	}

	b.allocated.Add(s.bytes)
	b.live.Add(1)
	return s
}

// Descriptor returns the descriptor the storage was created from.
func (s *Storage) Descriptor() texture.Descriptor { return s.desc }

// Raw returns the underlying HAL texture, or nil after Free.
func (s *Storage) Raw() hal.Texture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil
	}
	return s.halTexture
}

// IsDestroyed reports whether Free has been called.
func (s *Storage) IsDestroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// DefaultView returns the view covering every mip level and face, creating
// it on first call.
func (s *Storage) DefaultView() (hal.TextureView, error) {
	if s.IsDestroyed() {
		return nil, ErrTextureDestroyed
	}

	s.defaultViewOnce.Do(s.createDefaultView)
	if s.defaultViewErr != nil {
		return nil, s.defaultViewErr
	}
	return s.defaultView, nil
}

func (s *Storage) createDefaultView() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		s.defaultViewErr = ErrTextureDestroyed
		return
	}

	view, err := s.backend.device.CreateTextureView(s.halTexture, &hal.TextureViewDescriptor{
		Label:     s.backend.label(s.desc.Label) + " (default view)",
		Format:    gputypes.TextureFormatUndefined, // inherit from texture
		Dimension: viewDimension(s.desc.Type),
		Aspect:    gputypes.TextureAspectAll,
	})
	if err != nil {
		s.defaultViewErr = fmt.Errorf("%w: %w", ErrDefaultViewCreationFailed, err)
		return
	}
	s.defaultView = view
}

// Buffer returns the pixel buffer of one face and mip level.
func (s *Storage) Buffer(face, mip int) (texture.PixelBuffer, error) {
	if face < 0 || face >= len(s.faces) {
		return nil, fmt.Errorf("%w: %d of %d", texture.ErrFaceOutOfRange, face, len(s.faces))
	}
	if mip < 0 || mip >= len(s.faces[face]) {
		return nil, fmt.Errorf("%w: %d of %d", texture.ErrMipOutOfRange, mip, len(s.faces[face])-1)
	}
	if s.IsDestroyed() {
		return nil, texture.ErrBufferInvalid
	}
	return s.faces[face][mip], nil
}

// Free destroys the default view and the HAL texture. Buffers handed out
// earlier become invalid.
func (s *Storage) Free() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	halTex := s.halTexture
	view := s.defaultView
	s.halTexture = nil
	s.mu.Unlock()

	device := s.backend.device
	if view != nil {
		device.DestroyTextureView(view)
	}
	if halTex != nil {
		device.DestroyTexture(halTex)
	}
	for _, mips := range s.faces {
		for _, buf := range mips {
			buf.release()
		}
	}

	s.backend.allocated.Add(-s.bytes)
	s.backend.live.Add(-1)
	resource.Logger().Debug("native: texture destroyed", "label", s.desc.Label, "bytes", s.bytes)
	return nil
}

// Buffer is one face and mip level of a Storage.
type Buffer struct {
	storage *Storage
	layer   int
	mip     int
	width   int
	height  int
	depth   int
	format  gputypes.TextureFormat
	bpp     int

	mu     sync.RWMutex
	shadow []byte // nil once freed
}

func (b *Buffer) Width() int                     { return b.width }
func (b *Buffer) Height() int                    { return b.height }
func (b *Buffer) Depth() int                     { return b.depth }
func (b *Buffer) Format() gputypes.TextureFormat { return b.format }

// Storage returns the storage the buffer belongs to.
func (b *Buffer) Storage() *Storage { return b.storage }

// Valid reports whether the HAL texture behind the buffer still exists.
func (b *Buffer) Valid() bool {
	return !b.storage.IsDestroyed()
}

// Write uploads pix to the slice through the queue and updates the shadow.
func (b *Buffer) Write(pix []byte) error {
	s := b.storage
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return texture.ErrBufferInvalid
	}
	if want := b.width * b.height * b.depth * b.bpp; len(pix) != want {
		return fmt.Errorf("%w: %d bytes, want %d", texture.ErrDataMismatch, len(pix), want)
	}

	err := s.backend.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  s.halTexture,
			MipLevel: uint32(b.mip),
			Origin:   hal.Origin3D{Z: uint32(b.layer)},
			Aspect:   gputypes.TextureAspectAll,
		},
		pix,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(b.width * b.bpp),
			RowsPerImage: uint32(b.height),
		},
		&hal.Extent3D{
			Width:              uint32(b.width),
			Height:             uint32(b.height),
			DepthOrArrayLayers: uint32(b.depth),
		},
	)
	if err != nil {
		return fmt.Errorf("native: write texture layer %d mip %d: %w", b.layer, b.mip, err)
	}

	b.mu.Lock()
	copy(b.shadow, pix)
	b.mu.Unlock()
	return nil
}

// Read returns a copy of the slice's pixels from the shadow.
func (b *Buffer) Read() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.shadow == nil {
		return nil, texture.ErrBufferInvalid
	}
	return append([]byte(nil), b.shadow...), nil
}

func (b *Buffer) release() {
	b.mu.Lock()
	b.shadow = nil
	b.mu.Unlock()
}

// Raw returns the HAL texture and default view behind an allocated
// texture created on a native Backend.
func Raw(t *texture.Texture) (hal.Texture, hal.TextureView, error) {
	pb, err := t.Buffer(0, 0)
	if err != nil {
		return nil, nil, err
	}
	buf, ok := pb.(*Buffer)
	if !ok {
		return nil, nil, fmt.Errorf("native: texture is stored on %s", t.Backend().Name())
	}
	s := buf.Storage()
	view, err := s.DefaultView()
	if err != nil {
		return nil, nil, err
	}
	raw := s.Raw()
	if raw == nil {
		return nil, nil, ErrTextureDestroyed
	}
	return raw, view, nil
}

func viewDimension(t texture.Type) gputypes.TextureViewDimension {
	switch t {
	case texture.Type1D:
		return gputypes.TextureViewDimension1D
	case texture.Type3D:
		return gputypes.TextureViewDimension3D
	case texture.TypeCube:
		return gputypes.TextureViewDimensionCube
	default:
		return gputypes.TextureViewDimension2D
	}
}
