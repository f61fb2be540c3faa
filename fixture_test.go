package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"

	"github.com/gogpu/resource/rtti"
)

var (
	meshType = rtti.Register(&rtti.TypeInfo{ID: 9001, Name: "testMesh"})
	clipType = rtti.Register(&rtti.TypeInfo{ID: 9002, Name: "testClip"})
)

// mesh and clip are two unrelated resource types used by the tests.
type mesh struct {
	name      string
	version   int
	unloads   atomic.Int32
	unloadErr error
}

func (m *mesh) TypeInfo() *rtti.TypeInfo { return meshType }
func (m *mesh) Size() uint64             { return uint64(len(m.name)) }
func (m *mesh) Name() string             { return m.name }
func (m *mesh) Unload() error {
	if m.unloadErr != nil {
		return m.unloadErr
	}
	m.unloads.Add(1)
	return nil
}

// named is an intermediate resource interface that mesh implements.
type named interface {
	Resource
	Name() string
}

type clip struct {
	seconds float64
}

func (c *clip) TypeInfo() *rtti.TypeInfo { return clipType }
func (c *clip) Size() uint64             { return 8 }
func (c *clip) Unload() error            { return nil }

// blob is a resource of a non-comparable kind.
type blob []byte

func (b blob) TypeInfo() *rtti.TypeInfo { return meshType }
func (b blob) Size() uint64             { return uint64(len(b)) }
func (b blob) Unload() error            { return nil }

var errBadMesh = errors.New("bad mesh")

// meshLoader reads a mesh from a file. Files containing "fail" fail to load.
// If gate is set, every load waits for it to be closed first.
type meshLoader struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (l *meshLoader) Load(ctx context.Context, fsys fs.FS, name string) (Resource, error) {
	n := l.calls.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	if string(b) == "fail" {
		return nil, fmt.Errorf("%s: %w", name, errBadMesh)
	}
	return &mesh{name: string(b), version: int(n)}, nil
}
