package rtti

import (
	"fmt"

	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/store"
)

// PropertyType tags a property's value for editors and serializers.
type PropertyType uint8

const (
	Unknown PropertyType = iota
	ColorRGB
	Vector2
	Vector3
	Quaternion
	NameType
	Float
	Uint8
	Uint16
	Uint32
	Uint64
	Int
	Bool
	HandleType
	Shape
	String
	Enum
	Void
)

var propertyTypeNames = [...]string{
	Unknown:    "UNKNOWN",
	ColorRGB:   "COLORRGB",
	Vector2:    "VECTOR2",
	Vector3:    "VECTOR3",
	Quaternion: "QUATERNION",
	NameType:   "NAME",
	Float:      "FLOAT",
	Uint8:      "UINT8",
	Uint16:     "UINT16",
	Uint32:     "UINT32",
	Uint64:     "UINT64",
	Int:        "INT",
	Bool:       "BOOL",
	HandleType: "HANDLE",
	Shape:      "SHAPE",
	String:     "STRING",
	Enum:       "ENUM",
	Void:       "VOID",
}

func (t PropertyType) String() string {
	if int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return fmt.Sprintf("PropertyType(%d)", uint8(t))
}

// PropertyInfo describes one reflected field. Get reports false for dead
// handles. Set is nil for read-only properties.
type PropertyInfo struct {
	Name       name.Name
	Type       PropertyType
	HandleType uint16 // type id of the referenced store for HANDLE properties
	Editor     bool
	Get        func(h store.Handle) (any, bool)
	Set        func(h store.Handle, v any) error
}

// Accessors builds a property from typed getter and setter functions.
// set may be nil.
func Accessors[V any](n string, typ PropertyType, get func(store.Handle) (V, bool), set func(store.Handle, V) error) PropertyInfo {
	p := PropertyInfo{
		Name:   name.Of(n),
		Type:   typ,
		Editor: true,
		Get: func(h store.Handle) (any, bool) {
			v, ok := get(h)
			if !ok {
				return nil, false
			}
			return v, true
		},
	}
	if set != nil {
		p.Set = func(h store.Handle, v any) error {
			typed, ok := v.(V)
			if !ok {
				return fmt.Errorf("property %s wants %T, got %T: %w", n, typed, v, ErrPropertyType)
			}
			return set(h, typed)
		}
	}
	return p
}

// Field builds a property that reads and writes one field through the
// store's locked accessors. set may be nil.
func Field[T, V any](n string, typ PropertyType, acc store.Accessor[T], get func(*T) V, set func(*T, V)) PropertyInfo {
	getter := func(h store.Handle) (V, bool) {
		var v V
		ok := acc.View(h, func(rec *T) { v = get(rec) })
		return v, ok
	}
	var setter func(store.Handle, V) error
	if set != nil {
		setter = func(h store.Handle, v V) error {
			if !acc.Update(h, func(rec *T) { set(rec, v) }) {
				return fmt.Errorf("set %s on %s: %w", n, h, store.ErrDeadHandle)
			}
			return nil
		}
	}
	return Accessors(n, typ, getter, setter)
}

// Hidden marks a property as not shown in editors.
func Hidden(p PropertyInfo) PropertyInfo {
	p.Editor = false
	return p
}

// Referencing tags a HANDLE property with the type it points at.
func Referencing(p PropertyInfo, typeID uint16) PropertyInfo {
	p.HandleType = typeID
	return p
}
