package resource

import (
	"context"
	"io/fs"

	"github.com/gogpu/resource/rtti"
)

// Resource is an engine object managed through handles.
//
// Implementations must be pointer types: handles compare resources by
// identity and share one object between all copies.
type Resource interface {
	rtti.Reflectable

	// Size returns the approximate memory footprint in bytes.
	Size() uint64

	// Unload releases backend-side storage. The object itself stays valid
	// and can be brought back by the manager through a reload.
	Unload() error
}

// Loader produces resources from files. Loaders are registered on a
// Manager per file extension.
type Loader interface {
	Load(ctx context.Context, fsys fs.FS, name string) (Resource, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, fsys fs.FS, name string) (Resource, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, fsys fs.FS, name string) (Resource, error) {
	return f(ctx, fsys, name)
}
