package texture

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// CopyTo copies every face and mip level the two textures have in common
// into target. Slices of different extent are rescaled with a bilinear
// filter, which requires 8-bit RGBA or BGRA formats on both sides; other
// formats copy only between slices of identical layout.
//
// Both textures must be allocated.
func (t *Texture) CopyTo(target *Texture) error {
	if target == nil {
		return fmt.Errorf("%w: nil target", ErrInvalidState)
	}
	if target == t {
		t.mu.RLock()
		defer t.mu.RUnlock()
		if t.storage == nil {
			return ErrNotAllocated
		}
		return nil
	}

	src := t.Descriptor()
	dst := target.Descriptor()
	faces := min(src.NumFaces(), dst.NumFaces())
	levels := min(src.NumMipmaps, dst.NumMipmaps) + 1

	for face := range faces {
		for level := range levels {
			sb, err := t.Buffer(face, level)
			if err != nil {
				return fmt.Errorf("texture: copy source: %w", err)
			}
			db, err := target.Buffer(face, level)
			if err != nil {
				return fmt.Errorf("texture: copy target: %w", err)
			}
			if err := copySlice(sb, db); err != nil {
				return fmt.Errorf("texture: copy face %d level %d: %w", face, level, err)
			}
		}
	}
	return nil
}

func copySlice(src, dst PixelBuffer) error {
	pix, err := src.Read()
	if err != nil {
		return err
	}

	sameExtent := src.Width() == dst.Width() && src.Height() == dst.Height() && src.Depth() == dst.Depth()
	if sameExtent && sameLayout(src.Format(), dst.Format()) {
		return dst.Write(pix)
	}
	if !isColor8(src.Format()) || !isColor8(dst.Format()) || src.Depth() != 1 || dst.Depth() != 1 {
		return fmt.Errorf("%w: %s %dx%dx%d to %s %dx%dx%d", ErrUnsupportedConversion,
			src.Format(), src.Width(), src.Height(), src.Depth(),
			dst.Format(), dst.Width(), dst.Height(), dst.Depth())
	}

	if isBGRA8(src.Format()) {
		swapRB(pix)
	}
	in := &image.NRGBA{Pix: pix, Stride: src.Width() * 4, Rect: image.Rect(0, 0, src.Width(), src.Height())}

	out := in
	if !sameExtent {
		out = image.NewNRGBA(image.Rect(0, 0, dst.Width(), dst.Height()))
		draw.BiLinear.Scale(out, out.Bounds(), in, in.Bounds(), draw.Src, nil)
	}
	if isBGRA8(dst.Format()) {
		swapRB(out.Pix)
	}
	return dst.Write(out.Pix)
}

// sameLayout reports whether a and b store texels identically. sRGB and
// linear variants of one format share a layout.
func sameLayout(a, b gputypes.TextureFormat) bool {
	return srgbVariant(a) == srgbVariant(b)
}
