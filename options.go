package resource

import (
	"io/fs"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager during creation.
//
// Example:
//
//	m := resource.NewManager(
//	    resource.WithFS(os.DirFS("assets")),
//	    resource.WithLoader(".png", texture.NewLoader(backend.MustDefault())),
//	    resource.WithWorkers(4),
//	)
type Option func(*managerOptions)

// managerOptions holds optional configuration for Manager creation.
type managerOptions struct {
	fsys       fs.FS
	loaders    map[string]Loader
	workers    int
	registerer prometheus.Registerer
	namespace  string
}

// defaultManagerOptions returns the default manager options.
func defaultManagerOptions() managerOptions {
	return managerOptions{
		fsys:       os.DirFS("."),
		loaders:    make(map[string]Loader),
		workers:    0, // GOMAXPROCS
		registerer: nil,
		namespace:  "gogpu",
	}
}

// WithFS sets the file system loaders read from. Defaults to the current
// working directory.
func WithFS(fsys fs.FS) Option {
	return func(o *managerOptions) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithLoader registers l for files with extension ext (".png", "png").
// Extensions match case-insensitively. A later registration for the same
// extension replaces the earlier one.
func WithLoader(ext string, l Loader) Option {
	return func(o *managerOptions) {
		if l == nil {
			return
		}
		o.loaders[normalizeExt(ext)] = l
	}
}

// WithWorkers sets the number of background load workers.
// Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *managerOptions) {
		o.workers = n
	}
}

// WithRegisterer registers the manager's Prometheus collectors on reg.
// Without it the collectors exist but are not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *managerOptions) {
		o.registerer = reg
	}
}

// WithNamespace sets the Prometheus metrics namespace (default "gogpu").
func WithNamespace(namespace string) Option {
	return func(o *managerOptions) {
		o.namespace = namespace
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
