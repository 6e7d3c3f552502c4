// Package rtti is the runtime type table. Every store registers a TypeInfo
// so tools can inspect, serialize and destroy records knowing only a Handle.
package rtti

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/store"
)

var (
	ErrUnknownType     = errors.New("unknown type")
	ErrUnknownProperty = errors.New("unknown property")
	ErrReadOnly        = errors.New("property is read-only")
	ErrPropertyType    = errors.New("property value has the wrong type")
	ErrUnsupported     = errors.New("operation not supported by type")
	ErrInvalidType     = errors.New("invalid type info")
	ErrDuplicateType   = errors.New("type already registered")
)

// TypeInfo is the reflection record for one store. Capacity, IsAlive and
// Destroy are required; the rest may be nil when the type does not support
// the operation.
type TypeInfo struct {
	Name       name.Name
	Module     name.Name
	TypeID     uint16
	Component  bool
	Properties map[name.Name]PropertyInfo

	Capacity        func() uint32
	IsAlive         func(store.Handle) bool
	Destroy         func(store.Handle)
	Serialize       func(h store.Handle, node *yaml.Node) error
	Deserialize     func(node *yaml.Node, creator store.Handle) (store.Handle, error)
	Duplicate       func(h store.Handle, newName name.Name) (store.Handle, error)
	FindByIndex     func(index uint32) store.Handle
	FindByName      func(n name.Name) store.Handle
	LivingInstances func() []store.Handle
	LivingCount     func() uint32
}

// Describe fills the store-backed functions of a TypeInfo from s.
func Describe(module string, s store.Store) TypeInfo {
	return TypeInfo{
		Name:            name.Of(s.Name()),
		Module:          name.Of(module),
		TypeID:          s.TypeID(),
		Properties:      map[name.Name]PropertyInfo{},
		Capacity:        s.Capacity,
		IsAlive:         s.IsAlive,
		Destroy:         s.Destroy,
		FindByIndex:     s.FindByIndex,
		LivingInstances: s.LivingInstances,
		LivingCount:     s.LivingCount,
	}
}

// AddProperty stores p under its name, replacing any earlier entry.
func (t *TypeInfo) AddProperty(p PropertyInfo) {
	if t.Properties == nil {
		t.Properties = map[name.Name]PropertyInfo{}
	}
	t.Properties[p.Name] = p
}

// PropertyNames returns the property names in lexical order.
func (t TypeInfo) PropertyNames() []string {
	out := make([]string, 0, len(t.Properties))
	for n := range t.Properties {
		out = append(out, n.String())
	}
	sort.Strings(out)
	return out
}

// Registry maps type ids to TypeInfo. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[uint16]TypeInfo
	byName map[name.Name]uint16
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		types:  make(map[uint16]TypeInfo),
		byName: make(map[name.Name]uint16),
		log:    log,
	}
}

func (r *Registry) Register(info TypeInfo) error {
	switch {
	case info.TypeID == 0:
		return fmt.Errorf("register %s: type id 0 is reserved: %w", info.Name, ErrInvalidType)
	case info.Name.IsEmpty():
		return fmt.Errorf("register type %d: missing name: %w", info.TypeID, ErrInvalidType)
	case info.Capacity == nil || info.IsAlive == nil || info.Destroy == nil:
		return fmt.Errorf("register %s: capacity, liveness and destroy functions are required: %w", info.Name, ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.types[info.TypeID]; ok {
		return fmt.Errorf("register %s: id %d held by %s: %w", info.Name, info.TypeID, prev.Name, ErrDuplicateType)
	}
	if id, ok := r.byName[info.Name]; ok {
		return fmt.Errorf("register %s: name held by id %d: %w", info.Name, id, ErrDuplicateType)
	}
	r.types[info.TypeID] = info
	r.byName[info.Name] = info.TypeID

	r.log.Debug("type registered",
		zap.String("type", info.Name.String()),
		zap.String("module", info.Module.String()),
		zap.Uint16("id", info.TypeID),
		zap.Int("properties", len(info.Properties)),
	)
	return nil
}

func (r *Registry) Lookup(typeID uint16) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[typeID]
	return info, ok
}

func (r *Registry) LookupByName(n name.Name) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[n]
	if !ok {
		return TypeInfo{}, false
	}
	return r.types[id], true
}

// Types returns every registered type ordered by id.
func (r *Registry) Types() []TypeInfo {
	r.mu.RLock()
	out := make([]TypeInfo, 0, len(r.types))
	for _, info := range r.types {
		out = append(out, info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// Len reports the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// IsAlive dispatches on h.Type. Unregistered types are never alive.
func (r *Registry) IsAlive(h store.Handle) bool {
	info, ok := r.Lookup(h.Type)
	if !ok {
		return false
	}
	return info.IsAlive(h)
}

// Destroy forwards to the owning store. A dead handle of a registered type
// is a precondition violation raised by the store.
func (r *Registry) Destroy(h store.Handle) error {
	info, err := r.resolve(h.Type)
	if err != nil {
		return fmt.Errorf("destroy %s: %w", h, err)
	}
	info.Destroy(h)
	return nil
}

func (r *Registry) Serialize(h store.Handle, node *yaml.Node) error {
	info, err := r.resolve(h.Type)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", h, err)
	}
	if info.Serialize == nil {
		return fmt.Errorf("serialize %s: %w", info.Name, ErrUnsupported)
	}
	if !info.IsAlive(h) {
		return fmt.Errorf("serialize %s: %w", h, store.ErrDeadHandle)
	}
	return info.Serialize(h, node)
}

func (r *Registry) Deserialize(typeID uint16, node *yaml.Node, creator store.Handle) (store.Handle, error) {
	info, err := r.resolve(typeID)
	if err != nil {
		return store.Null, fmt.Errorf("deserialize type %d: %w", typeID, err)
	}
	if info.Deserialize == nil {
		return store.Null, fmt.Errorf("deserialize %s: %w", info.Name, ErrUnsupported)
	}
	return info.Deserialize(node, creator)
}

func (r *Registry) Duplicate(h store.Handle, newName name.Name) (store.Handle, error) {
	info, err := r.resolve(h.Type)
	if err != nil {
		return store.Null, fmt.Errorf("duplicate %s: %w", h, err)
	}
	if info.Duplicate == nil {
		return store.Null, fmt.Errorf("duplicate %s: %w", info.Name, ErrUnsupported)
	}
	if !info.IsAlive(h) {
		return store.Null, fmt.Errorf("duplicate %s: %w", h, store.ErrDeadHandle)
	}
	return info.Duplicate(h, newName)
}

// FindByName asks the type's store for a record with the given name.
// Types without names report Null.
func (r *Registry) FindByName(typeID uint16, n name.Name) store.Handle {
	info, ok := r.Lookup(typeID)
	if !ok || info.FindByName == nil {
		return store.Null
	}
	return info.FindByName(n)
}

func (r *Registry) GetProperty(h store.Handle, prop string) (any, error) {
	p, err := r.property(h, prop)
	if err != nil {
		return nil, err
	}
	v, ok := p.Get(h)
	if !ok {
		return nil, fmt.Errorf("get %s on %s: %w", prop, h, store.ErrDeadHandle)
	}
	return v, nil
}

func (r *Registry) SetProperty(h store.Handle, prop string, v any) error {
	p, err := r.property(h, prop)
	if err != nil {
		return err
	}
	if p.Set == nil {
		return fmt.Errorf("set %s: %w", prop, ErrReadOnly)
	}
	return p.Set(h, v)
}

// Reset forgets every registered type. Stores are not touched.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.types)
	clear(r.byName)
}

func (r *Registry) resolve(typeID uint16) (TypeInfo, error) {
	info, ok := r.Lookup(typeID)
	if !ok {
		return TypeInfo{}, ErrUnknownType
	}
	return info, nil
}

func (r *Registry) property(h store.Handle, prop string) (PropertyInfo, error) {
	info, err := r.resolve(h.Type)
	if err != nil {
		return PropertyInfo{}, fmt.Errorf("property %s on %s: %w", prop, h, err)
	}
	p, ok := info.Properties[name.Of(prop)]
	if !ok {
		return PropertyInfo{}, fmt.Errorf("property %s on %s: %w", prop, info.Name, ErrUnknownProperty)
	}
	return p, nil
}
