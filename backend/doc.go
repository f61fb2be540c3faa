// Package backend provides the registry of texture storage backends.
//
// A backend implements texture.Backend and owns the hardware storage of
// textures: one pixel buffer per face and mip level. Backends register a
// factory from an init() function and are selected at runtime. The
// software backend is registered on import:
//
//	import _ "github.com/gogpu/resource/backend"
//
// The GPU backend registers itself when its package is imported:
//
//	import _ "github.com/gogpu/resource/backend/native"
//
// # Backend Selection
//
// Use Default() to get the best available backend, or Get() to request
// a specific backend by name:
//
//	// Get the default (best available) backend
//	b := backend.Default()
//
//	// Or request a specific backend
//	b := backend.Get("software")
//
//	tex, err := texture.Create(b, texture.Descriptor{Width: 256, Height: 256})
//
// # Available Backends
//
// - "native": GPU storage through the gogpu/wgpu HAL
// - "software": system memory (always available)
package backend
