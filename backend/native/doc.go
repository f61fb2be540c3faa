// Package native provides GPU texture storage through the gogpu/wgpu HAL.
//
// Every texture allocated by a Backend owns one hal.Texture with all of
// its mip levels and faces (cube faces are array layers), plus a default
// view created on first use. Pixel buffers upload through
// hal.Queue.WriteTexture and keep a system-memory shadow of each slice so
// Read does not need a GPU readback.
//
// Importing the package registers a "native" factory with package backend.
// The factory opens a headless device on the software HAL the first time
// it is called:
//
//	import _ "github.com/gogpu/resource/backend/native"
//
//	b := backend.Get("native")
//
// Applications that already own a device pass it in directly:
//
//	b, err := native.New(device, queue)
//	b, err := native.NewFromProvider(provider)
package native
