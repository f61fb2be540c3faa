package backend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/resource/texture"
)

var _ texture.Backend = (*Software)(nil)

// Software is a backend that keeps texture storage in system memory.
// It is always available and serves headless tools and tests.
type Software struct {
	allocated atomic.Int64
}

// init registers the software backend on package import.
func init() {
	shared := NewSoftware()
	Register(BackendSoftware, func() texture.Backend {
		return shared
	})
}

// NewSoftware creates a new system-memory backend.
func NewSoftware() *Software {
	return &Software{}
}

// Name returns the backend identifier.
func (b *Software) Name() string {
	return BackendSoftware
}

// Allocated returns the bytes held by live storage.
func (b *Software) Allocated() int64 {
	return b.allocated.Load()
}

// CreateStorage allocates zeroed pixel memory for every face and mip level
// of desc.
func (b *Software) CreateStorage(desc texture.Descriptor) (texture.Storage, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	format := desc.GPUFormat()
	bpp := texture.BytesPerPixel(format)
	s := &softwareStorage{backend: b}
	for range desc.NumFaces() {
		mips := make([]*softwareBuffer, desc.MipLevelCount())
		for level := range mips {
			w, h, d := texture.MipExtent(desc.Width, desc.Height, desc.Depth, level)
			mips[level] = &softwareBuffer{
				storage: s,
				width:   w,
				height:  h,
				depth:   d,
				format:  format,
				pix:     make([]byte, w*h*d*bpp),
			}
			s.bytes += int64(w * h * d * bpp)
		}
		s.faces = append(s.faces, mips)
	}
	b.allocated.Add(s.bytes)
	return s, nil
}

type softwareStorage struct {
	backend *Software
	faces   [][]*softwareBuffer
	bytes   int64

	mu    sync.RWMutex
	freed bool
}

func (s *softwareStorage) Buffer(face, mip int) (texture.PixelBuffer, error) {
	if face < 0 || face >= len(s.faces) {
		return nil, fmt.Errorf("%w: %d of %d", texture.ErrFaceOutOfRange, face, len(s.faces))
	}
	if mip < 0 || mip >= len(s.faces[face]) {
		return nil, fmt.Errorf("%w: %d of %d", texture.ErrMipOutOfRange, mip, len(s.faces[face])-1)
	}
	if !s.valid() {
		return nil, texture.ErrBufferInvalid
	}
	return s.faces[face][mip], nil
}

func (s *softwareStorage) Free() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freed {
		return nil
	}
	s.freed = true
	for _, mips := range s.faces {
		for _, buf := range mips {
			buf.release()
		}
	}
	s.backend.allocated.Add(-s.bytes)
	return nil
}

func (s *softwareStorage) valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.freed
}

// softwareBuffer is one face and mip level of softwareStorage.
type softwareBuffer struct {
	storage *softwareStorage
	width   int
	height  int
	depth   int
	format  gputypes.TextureFormat

	mu  sync.RWMutex
	pix []byte // nil once freed
}

func (b *softwareBuffer) Width() int                     { return b.width }
func (b *softwareBuffer) Height() int                    { return b.height }
func (b *softwareBuffer) Depth() int                     { return b.depth }
func (b *softwareBuffer) Format() gputypes.TextureFormat { return b.format }

func (b *softwareBuffer) Valid() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pix != nil
}

func (b *softwareBuffer) Write(pix []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pix == nil {
		return texture.ErrBufferInvalid
	}
	if len(pix) != len(b.pix) {
		return fmt.Errorf("%w: %d bytes, want %d", texture.ErrDataMismatch, len(pix), len(b.pix))
	}
	copy(b.pix, pix)
	return nil
}

func (b *softwareBuffer) Read() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.pix == nil {
		return nil, texture.ErrBufferInvalid
	}
	return append([]byte(nil), b.pix...), nil
}

func (b *softwareBuffer) release() {
	b.mu.Lock()
	b.pix = nil
	b.mu.Unlock()
}
