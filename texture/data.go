package texture

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// Data is the staged pixel data of one texture face: every mip level,
// tightly packed, base level first.
//
// 8-bit color formats hold straight (non-premultiplied) alpha.
type Data struct {
	Width  int
	Height int
	Depth  int
	Format gputypes.TextureFormat

	// Mips holds one slice per level. len(Mips) == NumMipmaps()+1.
	Mips [][]byte
}

// NewData allocates zeroed pixel data. numMips counts the levels below the
// base level; MipUnlimited allocates the full chain.
func NewData(width, height, depth int, format gputypes.TextureFormat, numMips int) (*Data, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: extent %dx%dx%d", ErrInvalidDescriptor, width, height, depth)
	}
	bpp := BytesPerPixel(format)
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	maxMips := MaxMipmaps(width, height, depth)
	if numMips == MipUnlimited || numMips > maxMips {
		numMips = maxMips
	}
	if numMips < 0 {
		return nil, fmt.Errorf("%w: %d mipmaps", ErrInvalidDescriptor, numMips)
	}

	d := &Data{
		Width:  width,
		Height: height,
		Depth:  depth,
		Format: format,
		Mips:   make([][]byte, numMips+1),
	}
	for level := range d.Mips {
		w, h, dp := MipExtent(width, height, depth, level)
		d.Mips[level] = make([]byte, w*h*dp*bpp)
	}
	return d, nil
}

// FromImage converts img to RGBA8Unorm pixel data with a single level.
func FromImage(img image.Image) *Data {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	return &Data{
		Width:  b.Dx(),
		Height: b.Dy(),
		Depth:  1,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Mips:   [][]byte{dst.Pix},
	}
}

// FromImageFormat converts img to pixel data of an 8-bit RGBA or BGRA format.
func FromImageFormat(img image.Image, format gputypes.TextureFormat) (*Data, error) {
	if !isColor8(format) {
		return nil, fmt.Errorf("%w: image to %s", ErrUnsupportedConversion, format)
	}
	d := FromImage(img)
	if isBGRA8(format) {
		swapRB(d.Mips[0])
	}
	d.Format = format
	return d, nil
}

// MaxMipmaps returns the number of levels below the base level in a full
// chain down to 1x1x1.
func MaxMipmaps(width, height, depth int) int {
	largest := max(width, height, depth)
	if largest <= 1 {
		return 0
	}
	return bits.Len(uint(largest)) - 1
}

// MipExtent returns the extent of a mip level. Every axis halves per level
// and never drops below 1.
func MipExtent(width, height, depth, level int) (w, h, d int) {
	return max(1, width>>level), max(1, height>>level), max(1, depth>>level)
}

// NumMipmaps returns the number of levels below the base level.
func (d *Data) NumMipmaps() int {
	return len(d.Mips) - 1
}

// MipExtent returns the extent of level.
func (d *Data) MipExtent(level int) (w, h, depth int) {
	return MipExtent(d.Width, d.Height, d.Depth, level)
}

// Size returns the total number of bytes over all levels.
func (d *Data) Size() uint64 {
	var n uint64
	for _, m := range d.Mips {
		n += uint64(len(m))
	}
	return n
}

// Validate checks that every level has the size its extent requires.
func (d *Data) Validate() error {
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("%w: extent %dx%dx%d", ErrDataMismatch, d.Width, d.Height, d.Depth)
	}
	bpp := BytesPerPixel(d.Format)
	if bpp == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.Format)
	}
	if len(d.Mips) == 0 {
		return fmt.Errorf("%w: no mip levels", ErrDataMismatch)
	}
	for level, m := range d.Mips {
		w, h, dp := d.MipExtent(level)
		if want := w * h * dp * bpp; len(m) != want {
			return fmt.Errorf("%w: level %d has %d bytes, want %d", ErrDataMismatch, level, len(m), want)
		}
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	c := *d
	c.Mips = make([][]byte, len(d.Mips))
	for i, m := range d.Mips {
		c.Mips[i] = append([]byte(nil), m...)
	}
	return &c
}

// Image returns a copy of level as an image. Only 8-bit RGBA and BGRA
// formats with depth 1 can be viewed as images.
func (d *Data) Image(level int) (*image.NRGBA, error) {
	if !isColor8(d.Format) || d.Depth != 1 {
		return nil, fmt.Errorf("%w: %s to image", ErrUnsupportedConversion, d.Format)
	}
	if level < 0 || level >= len(d.Mips) {
		return nil, fmt.Errorf("%w: %d", ErrMipOutOfRange, level)
	}
	w, h, _ := d.MipExtent(level)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, d.Mips[level])
	if isBGRA8(d.Format) {
		swapRB(img.Pix)
	}
	return img, nil
}

// GenerateMips replaces every level below the base with a bilinear
// downsample of the previous level. levels counts the levels below the
// base; MipUnlimited generates the full chain.
func (d *Data) GenerateMips(levels int) error {
	if !isColor8(d.Format) || d.Depth != 1 {
		return fmt.Errorf("%w: mip generation for %s", ErrUnsupportedConversion, d.Format)
	}
	if len(d.Mips) == 0 {
		return fmt.Errorf("%w: no base level", ErrDataMismatch)
	}
	if maxMips := MaxMipmaps(d.Width, d.Height, 1); levels == MipUnlimited || levels > maxMips {
		levels = maxMips
	}
	if levels < 0 {
		return fmt.Errorf("%w: %d mipmaps", ErrInvalidDescriptor, levels)
	}

	mips := make([][]byte, levels+1)
	mips[0] = d.Mips[0]

	// BGRA data is scaled as is: the filter treats every channel alike.
	prev := &image.NRGBA{Pix: mips[0], Stride: d.Width * 4, Rect: image.Rect(0, 0, d.Width, d.Height)}
	for level := 1; level <= levels; level++ {
		w, h, _ := d.MipExtent(level)
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		mips[level] = dst.Pix
		prev = dst
	}
	d.Mips = mips
	return nil
}

// swapRB converts between RGBA and BGRA byte order in place.
func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
