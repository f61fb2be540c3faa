package backend

import (
	"slices"
	"sync"

	"github.com/gogpu/resource/texture"
)

// BackendFactory creates a backend instance. It returns nil when the
// backend cannot run on this machine.
type BackendFactory func() texture.Backend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendNative, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered or not available.
func Get(name string) texture.Backend {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend based on priority.
// Priority order: native > software, then any other registered backend
// by name. Returns nil if no backend is available.
func Default() texture.Backend {
	for _, name := range backendPriority {
		if b := Get(name); b != nil {
			return b
		}
	}

	// Fallback: first available
	for _, name := range Available() {
		if slices.Contains(backendPriority, name) {
			continue
		}
		if b := Get(name); b != nil {
			return b
		}
	}

	return nil
}

// MustDefault returns the default backend or panics.
func MustDefault() texture.Backend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}
