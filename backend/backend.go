package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/resource"
	"github.com/gogpu/resource/texture"
)

// ErrBackendNotAvailable is returned when a requested backend is not
// registered or cannot be created on this machine.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Backend name constants.
const (
	// BackendSoftware is the name of the system-memory backend.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu HAL).
	BackendNative = "native"
)

// Select returns the backend registered under name, or the default backend
// when name is empty.
func Select(name string) (texture.Backend, error) {
	var b texture.Backend
	if name == "" {
		b = Default()
	} else {
		b = Get(name)
	}
	if b == nil {
		if name == "" {
			return nil, ErrBackendNotAvailable
		}
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	resource.Logger().Info("backend: selected", "backend", b.Name(), "requested", name)
	return b, nil
}
