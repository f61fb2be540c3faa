// Package resource provides deferred, shared handles to engine resources.
//
// # Overview
//
// A [Handle] is a cheap value that refers to a resource which may not be
// loaded yet. The [Manager] hands handles out immediately, loads the
// resource synchronously or on its worker pool, and then resolves the
// handle. Every copy of a handle, and every handle derived from it with
// [Convert], [Cast] or [Handle.Base], shares one data block and observes
// resolution at the same moment.
//
// # Quick Start
//
//	m := resource.NewManager(
//	    resource.WithFS(os.DirFS("assets")),
//	    resource.WithLoader(".png", texture.NewLoader(backend.MustDefault())),
//	)
//	defer m.Close()
//
//	h := resource.LoadAsync[*texture.Texture](m, "brick.png")
//	// ... later
//	if tex, ok := h.TryGet(); ok {
//	    _ = tex.Width()
//	}
//
// # Authority
//
// Only the Manager can assign an identity (uuid) to a handle or resolve it.
// Handle methods are read-only, so game code holding a handle cannot
// forge a resolution.
//
// # Failures
//
// A failed load leaves the handle unresolved and records the error on the
// shared block, where [Handle.Err] and [Handle.Wait] report it. Loading the
// same path again retries.
//
// # Persistence
//
// Handles marshal to JSON as their uuid. An unmarshaled handle is detached;
// [Rebind] maps it back to the manager's block.
//
// # Sub-packages
//
//   - texture: the Texture resource and its loader
//   - backend: backend registry and the system-memory backend
//   - backend/native: wgpu HAL backend
//   - rtti: type descriptors for serialization and tooling
package resource
