package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"

	"github.com/gogpu/resource"
	"github.com/gogpu/resource/backend"
	"github.com/gogpu/resource/texture"
)

var _ texture.Backend = (*Backend)(nil)

// Backend allocates texture storage on a HAL device.
//
// Backend is safe for concurrent use. HAL devices serialize queue writes
// internally; the backend adds no locking of its own around them.
type Backend struct {
	device hal.Device
	queue  hal.Queue
	opts   options

	// Set for backends that own their device (NewHeadless).
	adapter  gputypes.AdapterInfo
	instance hal.Instance

	closeOnce sync.Once
	allocated atomic.Int64
	live      atomic.Int32
}

// headless is the shared device behind the registered "native" factory.
var headless = sync.OnceValues(func() (*Backend, error) {
	return NewHeadless()
})

// init registers the native backend on package import.
func init() {
	backend.Register(backend.BackendNative, func() texture.Backend {
		b, err := headless()
		if err != nil {
			resource.Logger().Info("native: backend unavailable", "err", err)
			return nil
		}
		return b
	})
}

// New creates a backend on an existing device and queue. The caller keeps
// ownership of both.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if queue == nil {
		return nil, ErrNilQueue
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Backend{device: device, queue: queue, opts: o}, nil
}

// NewFromProvider creates a backend on the device and queue of p, which
// must be HAL handles.
func NewFromProvider(p gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	if p == nil {
		return nil, ErrNilDevice
	}
	dev := p.Device()
	if dev == nil {
		return nil, ErrNilDevice
	}
	device, ok := dev.(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: device is %T", ErrNotHAL, dev)
	}
	q := p.Queue()
	if q == nil {
		return nil, ErrNilQueue
	}
	queue, ok := q.(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: queue is %T", ErrNotHAL, q)
	}
	return New(device, queue, opts...)
}

// NewHeadless opens a device on the software HAL. Close releases it.
func NewHeadless(opts ...Option) (*Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	instance, err := software.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	open, err := adapters[0].Adapter.Open(0, o.limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	b, err := New(open.Device, open.Queue, opts...)
	if err != nil {
		open.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	b.adapter = adapters[0].Info
	b.instance = instance
	resource.Logger().Info("native: headless device opened", "adapter", b.adapter.Name)
	return b, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendNative
}

// Device returns the HAL device textures are created on.
func (b *Backend) Device() hal.Device { return b.device }

// Queue returns the HAL queue uploads are written through.
func (b *Backend) Queue() hal.Queue { return b.queue }

// AdapterInfo returns the adapter of a headless backend. It is zero for
// backends created on a caller's device.
func (b *Backend) AdapterInfo() gputypes.AdapterInfo { return b.adapter }

// Allocated returns the bytes of live texture storage.
func (b *Backend) Allocated() int64 { return b.allocated.Load() }

// Live returns the number of live HAL textures.
func (b *Backend) Live() int { return int(b.live.Load()) }

// CreateStorage creates a HAL texture holding every face and mip level of
// desc.
func (b *Backend) CreateStorage(desc texture.Descriptor) (texture.Storage, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := b.checkLimits(desc); err != nil {
		return nil, err
	}

	halDesc := &hal.TextureDescriptor{
		Label:         b.label(desc.Label),
		Size:          extent(desc),
		MipLevelCount: uint32(desc.MipLevelCount()),
		SampleCount:   uint32(desc.SampleCount()),
		Dimension:     desc.Type.Dimension(),
		Format:        desc.GPUFormat(),
		Usage:         desc.Usage.GPU(),
	}
	if desc.HWGamma {
		halDesc.ViewFormats = []gputypes.TextureFormat{desc.Format}
	}

	halTex, err := b.device.CreateTexture(halDesc)
	if err != nil {
		return nil, fmt.Errorf("native: create texture: %w", err)
	}
	return newStorage(b, halTex, desc), nil
}

// Close releases the device of a headless backend. It does nothing for
// backends created on a caller's device. Storage must be freed first.
func (b *Backend) Close() {
	if b.instance == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.device.Destroy()
		b.instance.Destroy()
	})
}

func (b *Backend) checkLimits(desc texture.Descriptor) error {
	l := b.opts.limits
	var maxDim uint32
	switch desc.Type {
	case texture.Type1D:
		maxDim = l.MaxTextureDimension1D
	case texture.Type3D:
		maxDim = l.MaxTextureDimension3D
	default:
		maxDim = l.MaxTextureDimension2D
	}
	for _, n := range []int{desc.Width, desc.Height, desc.Depth} {
		if uint32(n) > maxDim {
			return fmt.Errorf("%w: %dx%dx%d, max %d", ErrExceedsLimits, desc.Width, desc.Height, desc.Depth, maxDim)
		}
	}
	if desc.Type == texture.TypeCube && uint32(desc.NumFaces()) > l.MaxTextureArrayLayers {
		return fmt.Errorf("%w: %d array layers, max %d", ErrExceedsLimits, desc.NumFaces(), l.MaxTextureArrayLayers)
	}
	return nil
}

func (b *Backend) label(name string) string {
	if name == "" {
		return b.opts.labelPrefix + " texture"
	}
	return b.opts.labelPrefix + ": " + name
}

// extent returns the HAL size of desc. Cube faces are array layers.
func extent(desc texture.Descriptor) hal.Extent3D {
	layers := desc.Depth
	if desc.Type == texture.TypeCube {
		layers = desc.NumFaces()
	}
	return hal.Extent3D{
		Width:              uint32(desc.Width),
		Height:             uint32(desc.Height),
		DepthOrArrayLayers: uint32(layers),
	}
}
