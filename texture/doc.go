// Package texture implements the Texture resource.
//
// A Texture is described by a Descriptor (type, extent, mip count, pixel
// format, usage) and stores its pixels in backend-owned storage with one
// PixelBuffer per face and mip level. Backends live in package backend.
//
// # Loading
//
// Loading is two-phase:
//
//	tex := texture.New(b)
//	_ = tex.Initialize(texture.Descriptor{Type: texture.Type2D, Width: 256, Height: 256,
//	    Format: gputypes.TextureFormatRGBA8Unorm})
//	_ = tex.SetTextureData(0, data)       // stage
//	_ = tex.InitializeFromTextureData()   // allocate, upload, drop staging
//
// Cube maps stage six faces in the order +X, -X, +Y, -Y, +Z, -Z and are
// materialized only once every face is staged.
//
// # Files
//
// Loader decodes PNG, JPEG, GIF, BMP, TIFF and WebP files into textures
// and plugs into a resource.Manager:
//
//	l := texture.NewLoader(b, texture.WithMipmaps(texture.MipUnlimited))
//	m := resource.NewManager(l.ManagerOptions()...)
package texture
