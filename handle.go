package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/gogpu/resource/rtti"
)

var handleType = rtti.Register(&rtti.TypeInfo{
	ID:   rtti.TypeHandle,
	Name: "ResourceHandle",
	Fields: []rtti.Field{
		{Name: "data", Kind: rtti.KindReference},
	},
})

// Handle is a cheap, copyable reference to a managed resource.
//
// A handle decouples "having a reference" from "the resource being loaded".
// The Manager hands out handles immediately and resolves them later; every
// copy, and every handle obtained through Convert, Cast or Base, shares one
// data block and therefore observes resolution at the same moment.
//
// The zero value is an empty handle: unresolved, with no identity.
//
// Handles are safe for concurrent use. No method except Wait blocks.
type Handle[T Resource] struct {
	data *handleData
}

// New wraps r in a fresh identity. The handle starts unresolved even though
// the object is already known: resolution belongs to the Manager.
func New[T Resource](r T) Handle[T] {
	var res Resource = r
	if isNil(res) {
		res = nil
	}
	return Handle[T]{data: newHandleData(res)}
}

// Convert returns a handle of another static type sharing h's data block.
// The object type is checked when the handle is dereferenced.
func Convert[To, From Resource](h Handle[From]) Handle[To] {
	return Handle[To]{data: h.data}
}

// Cast narrows h to To. It fails with ErrTypeMismatch as soon as the object
// behind the block is known not to be a To; for a block that holds no object
// yet the check happens on Get.
func Cast[To, From Resource](h Handle[From]) (Handle[To], error) {
	if h.data != nil {
		if p := h.data.snapshot().ptr; !isNil(p) {
			if _, ok := p.(To); !ok {
				return Handle[To]{}, fmt.Errorf("%w: cannot cast %T to %s", ErrTypeMismatch, p, typeName[To]())
			}
		}
	}
	return Handle[To]{data: h.data}, nil
}

// MustCast is like Cast but panics on a type mismatch.
func MustCast[To, From Resource](h Handle[From]) Handle[To] {
	c, err := Cast[To](h)
	if err != nil {
		panic(err)
	}
	return c
}

// Equal reports whether a and b refer to the same resolved object.
// Unresolved handles compare as nil, so two unresolved handles are equal.
func Equal[A, B Resource](a Handle[A], b Handle[B]) bool {
	return sameObject(a.resolvedPtr(), b.resolvedPtr())
}

// SameIdentity reports whether a and b share one data block.
func SameIdentity[A, B Resource](a Handle[A], b Handle[B]) bool {
	return a.data == b.data
}

// IsEmpty reports whether h was default-constructed.
func (h Handle[T]) IsEmpty() bool {
	return h.data == nil
}

// IsResolved reports whether the manager finished loading the resource.
// It never blocks.
func (h Handle[T]) IsResolved() bool {
	return h.data != nil && h.data.snapshot().resolved
}

// IsValid reports whether h is resolved and refers to a non-nil object.
func (h Handle[T]) IsValid() bool {
	return h.resolvedPtr() != nil
}

// UUID returns the identity assigned by the manager, or "".
func (h Handle[T]) UUID() string {
	if h.data == nil {
		return ""
	}
	return h.data.id()
}

// Err returns the last load failure recorded by the manager.
func (h Handle[T]) Err() error {
	if h.data == nil {
		return nil
	}
	return h.data.snapshot().err
}

// Get returns the resource, or ErrNotResolved before resolution.
func (h Handle[T]) Get() (T, error) {
	if h.data == nil {
		var zero T
		return zero, ErrNotResolved
	}
	return typed[T](h.data.snapshot())
}

// TryGet is Get without the error detail.
func (h Handle[T]) TryGet() (T, bool) {
	v, err := h.Get()
	return v, err == nil
}

// MustGet returns the resource and panics if h is not resolved.
// Use it only where resolution was already checked.
func (h Handle[T]) MustGet() T {
	v, err := h.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Wait blocks until h is resolved, the manager records a load failure, or
// ctx is done.
func (h Handle[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if h.data == nil {
		return zero, ErrNotResolved
	}
	s, err := h.data.wait(ctx)
	if err != nil {
		return zero, err
	}
	return typed[T](s)
}

// Base returns h as a handle of the common resource type.
func (h Handle[T]) Base() Handle[Resource] {
	return Handle[Resource]{data: h.data}
}

// String implements fmt.Stringer.
func (h Handle[T]) String() string {
	if h.data == nil {
		return fmt.Sprintf("Handle[%s]{}", typeName[T]())
	}
	return fmt.Sprintf("Handle[%s]{uuid=%s resolved=%t}", typeName[T](), h.UUID(), h.IsResolved())
}

// TypeInfo implements rtti.Reflectable.
func (h Handle[T]) TypeInfo() *rtti.TypeInfo {
	return handleType
}

type handleJSON struct {
	UUID string `json:"uuid"`
}

// MarshalJSON persists the handle identity. Empty handles encode as null.
func (h Handle[T]) MarshalJSON() ([]byte, error) {
	if h.data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(handleJSON{UUID: h.UUID()})
}

// UnmarshalJSON restores a detached, unresolved handle carrying only the
// persisted uuid. Pass it to Rebind to obtain the manager's shared handle.
func (h *Handle[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*h = Handle[T]{}
		return nil
	}
	var v handleJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("resource: decode handle: %w", err)
	}
	d := newHandleData(nil)
	if v.UUID != "" {
		d.setUUID(v.UUID)
	}
	*h = Handle[T]{data: d}
	return nil
}

func (h Handle[T]) resolvedPtr() Resource {
	if h.data == nil {
		return nil
	}
	s := h.data.snapshot()
	if !s.resolved || isNil(s.ptr) {
		return nil
	}
	return s.ptr
}

func typed[T Resource](s *handleState) (T, error) {
	var zero T
	if !s.resolved || isNil(s.ptr) {
		return zero, ErrNotResolved
	}
	v, ok := s.ptr.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, s.ptr, typeName[T]())
	}
	return v, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// sameObject reports whether a and b are the same object. Resources of
// non-comparable kinds (maps, slices, funcs) match when they share their
// underlying storage, so the comparison never panics.
func sameObject(a, b Resource) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// isNil reports whether r is nil or a typed nil pointer.
func isNil(r Resource) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
