package component

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lowengine/lowgo/internal/core/event"
	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/rtti"
	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
	"github.com/lowengine/lowgo/internal/core/uid"
	"github.com/lowengine/lowgo/internal/core/world"
)

// Transform places a record in a parent/child hierarchy.
// Pure data; all mutations go through Transforms.
type Transform struct {
	Name      name.Name
	Position  Vector3
	Rotation  Quaternion
	Scale     Vector3
	Parent    store.Handle
	ParentUID uid.UniqueID
	Children  []store.Handle
	UniqueID  uid.UniqueID
	Dirty     bool
}

// Transforms owns the paged transform store. It is safe for concurrent
// make, destroy and field access. Hierarchy edits touch several records one
// at a time, so concurrent SetParent calls on overlapping subtrees must be
// serialized by the caller.
type Transforms struct {
	w     *world.World
	store *store.Paged[Transform]
	log   *zap.Logger
}

func NewTransforms() *Transforms { return &Transforms{} }

func (t *Transforms) Name() string { return "Transform" }

func (t *Transforms) Store() *store.Paged[Transform] { return t.store }

func (t *Transforms) Initialize(w *world.World) error {
	t.w = w
	t.log = w.Log().Named("transform")
	t.store = store.NewPaged[Transform](TransformTypeID, "Transform", w.Capacity(CoreModule, "Transform"), t.log)
	t.store.SetHooks(store.Hooks[Transform]{
		OnCreate:  func(h store.Handle, _ *Transform) { event.Emit(w.Bus(), event.HandleCreated{Handle: h}) },
		OnDestroy: func(h store.Handle, _ *Transform) { event.Emit(w.Bus(), event.HandleDestroyed{Handle: h}) },
	})

	info := rtti.Describe(CoreModule, t.store)
	info.Component = true
	info.Destroy = t.Destroy
	info.Serialize = t.Serialize
	info.Deserialize = t.Deserialize
	info.Duplicate = t.Duplicate
	info.FindByName = t.FindByName

	acc := store.Accessor[Transform](t.store)
	info.AddProperty(rtti.Accessors("name", rtti.NameType,
		func(h store.Handle) (name.Name, bool) {
			rec, ok := t.store.Get(h)
			return rec.Name, ok
		},
		func(h store.Handle, n name.Name) error { return t.Rename(h, n) }))
	info.AddProperty(rtti.Field("position", rtti.Vector3, acc,
		func(r *Transform) Vector3 { return r.Position },
		func(r *Transform, v Vector3) { r.Position = v; r.Dirty = true }))
	info.AddProperty(rtti.Field("rotation", rtti.Quaternion, acc,
		func(r *Transform) Quaternion { return r.Rotation },
		func(r *Transform, v Quaternion) { r.Rotation = v; r.Dirty = true }))
	info.AddProperty(rtti.Field("scale", rtti.Vector3, acc,
		func(r *Transform) Vector3 { return r.Scale },
		func(r *Transform, v Vector3) { r.Scale = v; r.Dirty = true }))
	info.AddProperty(rtti.Referencing(rtti.Accessors("parent", rtti.HandleType,
		func(h store.Handle) (store.Handle, bool) {
			rec, ok := t.store.Get(h)
			return rec.Parent, ok
		},
		t.SetParent), TransformTypeID))
	info.AddProperty(rtti.Hidden(rtti.Field[Transform, uint64]("parent_uid", rtti.Uint64, acc,
		func(r *Transform) uint64 { return uint64(r.ParentUID) }, nil)))
	info.AddProperty(rtti.Hidden(rtti.Field[Transform, []store.Handle]("children", rtti.Unknown, acc,
		func(r *Transform) []store.Handle { return slices.Clone(r.Children) }, nil)))
	info.AddProperty(rtti.Hidden(rtti.Field[Transform, uint64]("unique_id", rtti.Uint64, acc,
		func(r *Transform) uint64 { return uint64(r.UniqueID) }, nil)))
	info.AddProperty(rtti.Hidden(rtti.Field("dirty", rtti.Bool, acc,
		func(r *Transform) bool { return r.Dirty },
		func(r *Transform, v bool) { r.Dirty = v })))

	return w.Registry().Register(info)
}

// Cleanup destroys every living transform and frees the pages.
func (t *Transforms) Cleanup(*world.World) {
	for _, h := range t.store.LivingInstances() {
		if t.store.IsAlive(h) {
			t.Destroy(h)
		}
	}
	t.store.Cleanup()
}

// Make creates a root transform at the origin with a fresh unique id.
func (t *Transforms) Make(n string) store.Handle {
	h, err := t.MakeWithUID(name.Of(n), 0)
	if err != nil {
		// Only a caller-supplied id can collide.
		panic(err)
	}
	return h
}

// MakeWithUID creates a transform carrying id, or a generated id when id is
// zero. A colliding id leaves nothing behind.
func (t *Transforms) MakeWithUID(n name.Name, id uid.UniqueID) (store.Handle, error) {
	h := t.store.Make(func(r *Transform) {
		r.Name = n
		r.Rotation = Identity
		r.Scale = One
		r.Dirty = true
	})
	id, err := bindUniqueID(t.w, h, id)
	if err != nil {
		t.store.Destroy(h)
		return store.Null, fmt.Errorf("make transform %s: %w", n, err)
	}
	t.store.Update(h, func(r *Transform) { r.UniqueID = id })
	return h, nil
}

func (t *Transforms) IsAlive(h store.Handle) bool { return t.store.IsAlive(h) }

func (t *Transforms) Get(h store.Handle) (Transform, bool) { return t.store.Get(h) }

// Update runs fn on the record and marks it dirty. Hierarchy fields must be
// changed through SetParent.
func (t *Transforms) Update(h store.Handle, fn func(*Transform)) bool {
	return t.store.Update(h, func(r *Transform) {
		fn(r)
		r.Dirty = true
	})
}

func (t *Transforms) Rename(h store.Handle, n name.Name) error {
	if !t.store.Update(h, func(r *Transform) { r.Name = n }) {
		return deadHandle("rename", h)
	}
	t.w.Observers().Notify(h, name.Of("name"))
	return nil
}

// Destroy tells observers, detaches h from its parent, orphans its children
// and releases the record. h must be alive.
func (t *Transforms) Destroy(h store.Handle) {
	rec, ok := t.store.Get(h)
	if !ok {
		// Let the store raise the precondition violation.
		t.store.Destroy(h)
		return
	}
	t.w.Observers().Notify(h, event.Destroy)

	t.detach(h, rec.Parent)
	for _, child := range rec.Children {
		t.store.Update(child, func(c *Transform) {
			c.Parent = store.Null
			c.ParentUID = 0
			c.Dirty = true
		})
	}
	t.w.UniqueIDs().Remove(rec.UniqueID)
	t.store.Destroy(h)
	t.w.Observers().Forget(h)
}

// SetParent moves child under parent. A Null parent makes child a root.
func (t *Transforms) SetParent(child, parent store.Handle) error {
	rec, ok := t.store.Get(child)
	if !ok {
		return deadHandle("set parent of", child)
	}
	var parentUID uid.UniqueID
	if !parent.IsNull() {
		p, ok := t.store.Get(parent)
		if !ok {
			return deadHandle("set parent to", parent)
		}
		if t.isAncestor(child, parent) {
			return fmt.Errorf("set parent of %s to %s: %w", child, parent, ErrCycle)
		}
		parentUID = p.UniqueID
	}
	if rec.Parent == parent {
		return nil
	}

	t.detach(child, rec.Parent)
	t.store.Update(child, func(r *Transform) {
		r.Parent = parent
		r.ParentUID = parentUID
		r.Dirty = true
	})
	if !parent.IsNull() {
		t.store.Update(parent, func(p *Transform) { p.Children = append(p.Children, child) })
	}
	t.w.Observers().Notify(child, name.Of("parent"))
	return nil
}

// isAncestor reports whether a is h itself or one of h's ancestors.
func (t *Transforms) isAncestor(a, h store.Handle) bool {
	for cur := h; !cur.IsNull(); {
		if cur == a {
			return true
		}
		rec, ok := t.store.Get(cur)
		if !ok {
			return false
		}
		cur = rec.Parent
	}
	return false
}

func (t *Transforms) detach(child, parent store.Handle) {
	if parent.IsNull() {
		return
	}
	t.store.Update(parent, func(p *Transform) {
		p.Children = slices.DeleteFunc(p.Children, func(c store.Handle) bool { return c == child })
	})
}

// FindByName returns the first living transform named n, or Null.
func (t *Transforms) FindByName(n name.Name) store.Handle {
	return t.store.FindBy(func(r *Transform) bool { return r.Name == n })
}

// Duplicate copies the values of h into a new transform named newName. The
// copy shares h's parent; children are not copied.
func (t *Transforms) Duplicate(h store.Handle, newName name.Name) (store.Handle, error) {
	rec, ok := t.store.Get(h)
	if !ok {
		return store.Null, deadHandle("duplicate", h)
	}
	dup, err := t.MakeWithUID(newName, 0)
	if err != nil {
		return store.Null, err
	}
	t.store.Update(dup, func(r *Transform) {
		r.Position = rec.Position
		r.Rotation = rec.Rotation
		r.Scale = rec.Scale
	})
	if !rec.Parent.IsNull() {
		if err := t.SetParent(dup, rec.Parent); err != nil {
			t.Destroy(dup)
			return store.Null, err
		}
	}
	return dup, nil
}

func (t *Transforms) Serialize(h store.Handle, node *yaml.Node) error {
	rec, ok := t.store.Get(h)
	if !ok {
		return deadHandle("serialize", h)
	}
	for _, kv := range []struct {
		key string
		v   any
	}{
		{"name", rec.Name.String()},
		{"position", rec.Position},
		{"rotation", rec.Rotation},
		{"scale", rec.Scale},
		{"parent_uid", uint64(rec.ParentUID)},
	} {
		if err := serial.Set(node, kv.key, kv.v); err != nil {
			return fmt.Errorf("serialize %s: %w", h, err)
		}
	}
	return putUniqueID(node, rec.UniqueID)
}

// Deserialize creates a transform from node. The parent is linked when it is
// already alive; otherwise only parent_uid is kept until AfterRestore.
func (t *Transforms) Deserialize(node *yaml.Node, _ store.Handle) (store.Handle, error) {
	id, err := uniqueIDFrom(node)
	if err != nil {
		return store.Null, fmt.Errorf("deserialize transform: %w", err)
	}
	var (
		n         string
		rec       = Transform{Rotation: Identity, Scale: One}
		parentUID uint64
	)
	for _, err := range []error{
		decodeInto(node, "name", &n),
		decodeInto(node, "position", &rec.Position),
		decodeInto(node, "rotation", &rec.Rotation),
		decodeInto(node, "scale", &rec.Scale),
		decodeInto(node, "parent_uid", &parentUID),
	} {
		if err != nil {
			return store.Null, fmt.Errorf("deserialize transform: %w", err)
		}
	}

	h, err := t.MakeWithUID(name.Of(n), id)
	if err != nil {
		return store.Null, err
	}
	t.store.Update(h, func(r *Transform) {
		r.Position = rec.Position
		r.Rotation = rec.Rotation
		r.Scale = rec.Scale
		r.ParentUID = uid.UniqueID(parentUID)
	})
	if parentUID != 0 {
		if parent := t.w.UniqueIDs().Find(uid.UniqueID(parentUID)); t.store.IsAlive(parent) {
			if err := t.SetParent(h, parent); err != nil {
				return h, err
			}
		}
	}
	return h, nil
}

// AfterRestore links transforms whose parent was restored after them.
func (t *Transforms) AfterRestore(w *world.World) error {
	type link struct {
		child     store.Handle
		parentUID uid.UniqueID
	}
	var pending []link
	t.store.Each(func(h store.Handle, r *Transform) {
		if r.ParentUID != 0 && r.Parent.IsNull() {
			pending = append(pending, link{h, r.ParentUID})
		}
	})
	for _, l := range pending {
		parent := w.UniqueIDs().Find(l.parentUID)
		if !t.store.IsAlive(parent) {
			t.log.Warn("parent not restored",
				zap.Stringer("transform", l.child),
				zap.Stringer("parent_uid", l.parentUID),
			)
			t.store.Update(l.child, func(r *Transform) { r.ParentUID = 0 })
			continue
		}
		if err := t.SetParent(l.child, parent); err != nil {
			return err
		}
	}
	return nil
}
