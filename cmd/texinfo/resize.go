package main

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/resource/texture"
)

var errUnknownOutput = errors.New("unknown output format")

func resizeCmd() *cobra.Command {
	var (
		flags  loaderFlags
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "resize <input> <output>",
		Short: "Copy an image into a texture of another size or format",
		Long: `Load the input as a texture, copy it into a new texture with a bilinear
filter and write the result. The output encoding follows its extension:
.png, .jpg, .bmp or .tiff. A zero width or height keeps the aspect ratio.

Examples:
  texinfo resize -W 256 brick.png brick_256.png
  texinfo resize -W 64 -H 64 -f BGRA8Unorm icon.png icon.bmp`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 && height <= 0 {
				return errors.New("--width or --height is required")
			}
			return runResize(cmd, &flags, args[0], args[1], width, height)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&width, "width", "W", 0, "Output width in pixels")
	cmd.Flags().IntVarP(&height, "height", "H", 0, "Output height in pixels")

	return cmd
}

func runResize(cmd *cobra.Command, flags *loaderFlags, in, out string, width, height int) error {
	encode, err := encoderFor(out)
	if err != nil {
		return err
	}
	l, err := flags.loader()
	if err != nil {
		return err
	}

	dir, name := filepath.Split(in)
	if dir == "" {
		dir = "."
	}
	r, err := l.Load(cmd.Context(), os.DirFS(dir), name)
	if err != nil {
		return err
	}
	src := r.(*texture.Texture)
	defer src.Unload()

	switch {
	case width <= 0:
		width = max(src.Width()*height/src.Height(), 1)
	case height <= 0:
		height = max(src.Height()*width/src.Width(), 1)
	}

	dst, err := texture.Create(src.Backend(), texture.Descriptor{
		Width:  width,
		Height: height,
		Format: src.Format(),
		Label:  out,
	})
	if err != nil {
		return err
	}
	defer dst.Unload()

	if err := src.CopyTo(dst); err != nil {
		return err
	}
	d, err := dst.TextureData(0)
	if err != nil {
		return err
	}
	img, err := d.Image(0)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d -> %dx%d %s (%s)\n",
		out, src.Width(), src.Height(), width, height, dst.Format(), src.Backend().Name())
	return nil
}

func encoderFor(name string) (func(io.Writer, image.Image) error, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownOutput, filepath.Ext(name))
	}
}
