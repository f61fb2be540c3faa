// Package rtti exposes stable type metadata for persistable resource types.
//
// Each persistable type publishes a TypeInfo: a numeric type tag that never
// changes between releases, a human-readable name, and the ordered list of
// fields a serializer has to save and restore. The reflection mechanism
// itself (encoding, versioning, field accessors) belongs to the caller;
// this package only guarantees that tags and field lists are unique and
// discoverable.
//
// Types register themselves from package init:
//
//	var textureType = rtti.Register(&rtti.TypeInfo{
//	    ID:   rtti.TypeTexture,
//	    Name: "Texture",
//	    Fields: []rtti.Field{
//	        {Name: "width", Kind: rtti.KindUint},
//	    },
//	})
package rtti

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// TypeID is a stable numeric type tag.
type TypeID uint32

// Type tags of the types shipped with this module.
const (
	TypeHandleData  TypeID = 1001
	TypeHandle      TypeID = 1002
	TypeTexture     TypeID = 1101
	TypeTextureData TypeID = 1102
)

// Kind classifies the value stored in a field.
type Kind uint8

// Field kinds.
const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindEnum
	KindFlags
	KindBytes
	KindReference
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindFlags:
		return "flags"
	case KindBytes:
		return "bytes"
	case KindReference:
		return "reference"
	default:
		return "invalid"
	}
}

// Field describes one persisted field.
type Field struct {
	// Name is the stable serialized name.
	Name string

	// Kind is the value class.
	Kind Kind

	// Array marks repeated fields (one value per face, per mip...).
	Array bool
}

// TypeInfo is the persisted identity of a type.
type TypeInfo struct {
	ID     TypeID
	Name   string
	Fields []Field
}

// Field returns the field with the given serialized name.
func (t *TypeInfo) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns field names in declaration order.
func (t *TypeInfo) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// String implements fmt.Stringer.
func (t *TypeInfo) String() string {
	return fmt.Sprintf("%s#%d", t.Name, t.ID)
}

// Reflectable is implemented by every type that exposes persistence metadata.
type Reflectable interface {
	TypeInfo() *TypeInfo
}

var (
	registryMu sync.RWMutex
	byID       = make(map[TypeID]*TypeInfo)
	byName     = make(map[string]*TypeInfo)
)

// Register adds info to the global registry and returns it.
//
// Registering the same ID or name twice with a different TypeInfo panics:
// type tags are part of the persisted format and must never collide.
// Registering an identical TypeInfo pointer again is a no-op.
func Register(info *TypeInfo) *TypeInfo {
	if info == nil || info.ID == 0 || info.Name == "" {
		panic("rtti: type info needs a non-zero ID and a name")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if prev, ok := byID[info.ID]; ok {
		if prev == info {
			return info
		}
		panic(fmt.Sprintf("rtti: type id %d already registered as %q", info.ID, prev.Name))
	}
	if prev, ok := byName[info.Name]; ok {
		panic(fmt.Sprintf("rtti: type name %q already registered with id %d", info.Name, prev.ID))
	}

	byID[info.ID] = info
	byName[info.Name] = info
	return info
}

// Lookup returns the type registered under id.
func Lookup(id TypeID) (*TypeInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := byID[id]
	return info, ok
}

// LookupName returns the type registered under name.
func LookupName(name string) (*TypeInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := byName[name]
	return info, ok
}

// Registered returns all registered types ordered by ID.
func Registered() []*TypeInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	infos := make([]*TypeInfo, 0, len(byID))
	for _, info := range byID {
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b *TypeInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

// unregister removes a type. Used by tests only.
func unregister(id TypeID) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if info, ok := byID[id]; ok {
		delete(byName, info.Name)
		delete(byID, id)
	}
}
