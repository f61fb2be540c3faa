package resource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/resource/rtti"
)

var handleDataType = rtti.Register(&rtti.TypeInfo{
	ID:   rtti.TypeHandleData,
	Name: "ResourceHandleData",
	Fields: []rtti.Field{
		{Name: "uuid", Kind: rtti.KindString},
	},
})

// handleState is an immutable resolution snapshot. The object pointer, the
// resolved flag and the last failure are always published together.
type handleState struct {
	ptr      Resource
	resolved bool
	err      error
}

// handleData is the block shared by every handle of one identity.
//
// Readers only ever load the current snapshot. All writes go through the
// unexported methods below, which only the Manager calls.
type handleData struct {
	uuid  atomic.Pointer[string]
	state atomic.Pointer[handleState]

	// mu serializes writers and guards changed.
	mu      sync.Mutex
	changed chan struct{}
}

func newHandleData(r Resource) *handleData {
	d := &handleData{changed: make(chan struct{})}
	d.state.Store(&handleState{ptr: r})
	return d
}

func (d *handleData) snapshot() *handleState {
	return d.state.Load()
}

func (d *handleData) id() string {
	if p := d.uuid.Load(); p != nil {
		return *p
	}
	return ""
}

// setUUID assigns the identity. Assigning a different uuid twice is a
// contract violation.
func (d *handleData) setUUID(id string) {
	if d.uuid.CompareAndSwap(nil, &id) {
		return
	}
	if cur := d.id(); cur != id {
		panic(fmt.Sprintf("resource: uuid already assigned (%s, got %s)", cur, id))
	}
}

// resolve publishes r as the resolved object. Called again after a reload,
// it swaps the object while the flag stays set.
func (d *handleData) resolve(r Resource) {
	d.publish(func(*handleState) *handleState {
		return &handleState{ptr: r, resolved: true}
	})
}

// fail records a load failure. A block that was resolved before keeps its
// previous object and stays resolved.
func (d *handleData) fail(err error) {
	d.publish(func(cur *handleState) *handleState {
		return &handleState{ptr: cur.ptr, resolved: cur.resolved, err: err}
	})
}

// clearErr drops a recorded failure before a retry.
func (d *handleData) clearErr() {
	d.publish(func(cur *handleState) *handleState {
		if cur.err == nil {
			return cur
		}
		return &handleState{ptr: cur.ptr, resolved: cur.resolved}
	})
}

func (d *handleData) publish(next func(cur *handleState) *handleState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.state.Load()
	s := next(cur)
	if s == cur {
		return
	}
	d.state.Store(s)
	close(d.changed)
	d.changed = make(chan struct{})
}

// wait blocks until the block is resolved, a failure is recorded, or ctx is done.
func (d *handleData) wait(ctx context.Context) (*handleState, error) {
	for {
		d.mu.Lock()
		s := d.state.Load()
		ch := d.changed
		d.mu.Unlock()

		if s.resolved {
			return s, nil
		}
		if s.err != nil {
			return s, s.err
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// TypeInfo implements rtti.Reflectable.
func (d *handleData) TypeInfo() *rtti.TypeInfo {
	return handleDataType
}
