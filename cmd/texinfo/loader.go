package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/resource/backend"
	"github.com/gogpu/resource/texture"
)

// loaderFlags are the texture loading flags shared by commands.
type loaderFlags struct {
	backend string
	format  string
	mipmaps int
}

func (f *loaderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "Storage backend (default: best available)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Texture format, e.g. RGBA8Unorm or BGRA8UnormSrgb")
	cmd.Flags().IntVarP(&f.mipmaps, "mipmaps", "m", 0, "Mip levels to generate below the base (-1: full chain)")
}

func (f *loaderFlags) loader() (*texture.Loader, error) {
	b, err := backend.Select(f.backend)
	if err != nil {
		return nil, err
	}

	opts := []texture.LoaderOption{}
	if f.mipmaps < 0 {
		opts = append(opts, texture.WithMipmaps(texture.MipUnlimited))
	} else {
		opts = append(opts, texture.WithMipmaps(f.mipmaps))
	}
	if f.format != "" {
		format, err := texture.ParseFormat(f.format)
		if err != nil {
			return nil, err
		}
		if !texture.CanLoadAs(format) {
			return nil, fmt.Errorf("%w: images cannot be loaded as %s", texture.ErrUnsupportedConversion, format)
		}
		opts = append(opts, texture.WithFormat(format))
	}
	return texture.NewLoader(b, opts...), nil
}
