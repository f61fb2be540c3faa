package texture

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io/fs"

	"github.com/gogpu/gputypes"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/gogpu/resource"
	"github.com/gogpu/resource/internal/cache"
)

// Extensions lists the file extensions the loader decodes.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// DefaultCacheBudget is the default byte budget of decoded pixel data kept
// by a Loader.
const DefaultCacheBudget = 64 << 20

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	format      gputypes.TextureFormat
	mipmaps     int
	usage       Usage
	hwGamma     bool
	cacheBudget int64
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{
		format:      gputypes.TextureFormatRGBA8Unorm,
		mipmaps:     0,
		usage:       UsageDefault,
		cacheBudget: DefaultCacheBudget,
	}
}

// CanLoadAs reports whether decoded images can be converted to f.
func CanLoadAs(f gputypes.TextureFormat) bool {
	return isColor8(f)
}

// WithFormat sets the format decoded images are converted to. Formats
// rejected by CanLoadAs are ignored.
func WithFormat(f gputypes.TextureFormat) LoaderOption {
	return func(o *loaderOptions) {
		if isColor8(f) {
			o.format = f
		}
	}
}

// WithMipmaps generates n levels below the base level. MipUnlimited
// generates the full chain.
func WithMipmaps(n int) LoaderOption {
	return func(o *loaderOptions) {
		o.mipmaps = max(n, 0)
	}
}

// WithUsage sets the usage of loaded textures.
func WithUsage(u Usage) LoaderOption {
	return func(o *loaderOptions) {
		o.usage = u
	}
}

// WithHWGamma enables hardware gamma correction on loaded textures.
func WithHWGamma(enabled bool) LoaderOption {
	return func(o *loaderOptions) {
		o.hwGamma = enabled
	}
}

// WithCacheBudget sets the byte budget for cached decoded data.
// Zero disables the cache.
func WithCacheBudget(bytes int64) LoaderOption {
	return func(o *loaderOptions) {
		o.cacheBudget = bytes
	}
}

var _ resource.Loader = (*Loader)(nil)

// Loader decodes image files into 2D textures. It implements
// resource.Loader.
//
// Decoded pixel data is cached by file name, size and modification time,
// so reloading an unchanged file skips decoding.
type Loader struct {
	backend Backend
	opts    loaderOptions
	decoded *cache.ShardedCache[string, *Data] // nil when caching is off
}

// NewLoader creates a loader that allocates textures on b.
func NewLoader(b Backend, opts ...LoaderOption) *Loader {
	o := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&o)
	}

	l := &Loader{backend: b, opts: o}
	if o.cacheBudget > 0 {
		l.decoded = cache.NewSharded[string, *Data](cache.StringHasher,
			cache.WithMaxCost[*Data](o.cacheBudget),
			cache.WithCost(func(d *Data) int64 { return int64(d.Size()) }),
		)
	}
	return l
}

// ManagerOptions returns options that register l for every supported
// extension.
func (l *Loader) ManagerOptions() []resource.Option {
	opts := make([]resource.Option, 0, len(Extensions))
	for _, ext := range Extensions {
		opts = append(opts, resource.WithLoader(ext, l))
	}
	return opts
}

// Load decodes name from fsys and returns an allocated texture.
func (l *Loader) Load(ctx context.Context, fsys fs.FS, name string) (resource.Resource, error) {
	if l.backend == nil {
		return nil, ErrNilBackend
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := l.Decode(fsys, name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tex := New(l.backend)
	desc := Descriptor{
		Type:       Type2D,
		Width:      d.Width,
		Height:     d.Height,
		Depth:      1,
		NumMipmaps: d.NumMipmaps(),
		Format:     d.Format,
		Usage:      l.opts.usage,
		HWGamma:    l.opts.hwGamma,
		Label:      name,
	}
	if err := tex.Initialize(desc); err != nil {
		return nil, err
	}
	if err := tex.SetTextureData(0, d); err != nil {
		return nil, err
	}
	if err := tex.InitializeFromTextureData(); err != nil {
		_ = tex.Unload()
		return nil, err
	}
	return tex, nil
}

// Decode reads and decodes name into pixel data in the loader's format,
// with mipmaps generated if configured. The result may be shared with the
// cache and must not be modified.
func (l *Loader) Decode(fsys fs.FS, name string) (*Data, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d", name, info.Size(), info.ModTime().UnixNano())
	if l.decoded != nil {
		if d, ok := l.decoded.Get(key); ok {
			return d, nil
		}
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, kind, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", name, err)
	}

	d, err := FromImageFormat(img, l.opts.format)
	if err != nil {
		return nil, err
	}
	if l.opts.mipmaps > 0 {
		if err := d.GenerateMips(l.opts.mipmaps); err != nil {
			return nil, err
		}
	}

	resource.Logger().Debug("texture: decoded",
		"name", name, "codec", kind, "width", d.Width, "height", d.Height, "mipmaps", d.NumMipmaps())

	if l.decoded != nil {
		l.decoded.Set(key, d)
	}
	return d, nil
}

// CachedBytes returns the size of the decoded data held by the cache.
func (l *Loader) CachedBytes() int64 {
	if l.decoded == nil {
		return 0
	}
	return l.decoded.Cost()
}
