package component

import (
	"fmt"

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

// Camera owns one transform that places it in the scene.
type Camera struct {
	Name      name.Name
	Fov       float32
	Near      float32
	Far       float32
	Active    bool
	Transform store.Handle
	UniqueID  uid.UniqueID
}

// Cameras keeps cameras in a flat store. Use it from one goroutine.
type Cameras struct {
	w          *world.World
	transforms *Transforms
	store      *store.Flat[Camera]
	log        *zap.Logger
}

// NewCameras needs the transform module; register it after transforms.
func NewCameras(transforms *Transforms) *Cameras {
	return &Cameras{transforms: transforms}
}

func (c *Cameras) Name() string { return "Camera" }

func (c *Cameras) Store() *store.Flat[Camera] { return c.store }

func (c *Cameras) Initialize(w *world.World) error {
	if c.transforms.store == nil {
		return fmt.Errorf("cameras: transforms not initialized")
	}
	c.w = w
	c.log = w.Log().Named("camera")
	c.store = store.NewFlat[Camera](CameraTypeID, "Camera", w.Capacity(CoreModule, "Camera"), c.log)
	c.store.SetHooks(store.Hooks[Camera]{
		OnCreate:  func(h store.Handle, _ *Camera) { event.Emit(w.Bus(), event.HandleCreated{Handle: h}) },
		OnDestroy: func(h store.Handle, _ *Camera) { event.Emit(w.Bus(), event.HandleDestroyed{Handle: h}) },
	})

	info := rtti.Describe(CoreModule, c.store)
	info.Component = true
	info.Destroy = c.Destroy
	info.Serialize = c.Serialize
	info.Deserialize = c.Deserialize
	info.Duplicate = c.Duplicate
	info.FindByName = func(n name.Name) store.Handle {
		return c.store.FindBy(func(r *Camera) bool { return r.Name == n })
	}

	acc := store.Accessor[Camera](c.store)
	info.AddProperty(rtti.Field("name", rtti.NameType, acc,
		func(r *Camera) name.Name { return r.Name },
		func(r *Camera, v name.Name) { r.Name = v }))
	info.AddProperty(rtti.Field("fov", rtti.Float, acc,
		func(r *Camera) float32 { return r.Fov },
		func(r *Camera, v float32) { r.Fov = v }))
	info.AddProperty(rtti.Field("near", rtti.Float, acc,
		func(r *Camera) float32 { return r.Near },
		func(r *Camera, v float32) { r.Near = v }))
	info.AddProperty(rtti.Field("far", rtti.Float, acc,
		func(r *Camera) float32 { return r.Far },
		func(r *Camera, v float32) { r.Far = v }))
	info.AddProperty(rtti.Field("active", rtti.Bool, acc,
		func(r *Camera) bool { return r.Active },
		func(r *Camera, v bool) { r.Active = v }))
	info.AddProperty(rtti.Referencing(rtti.Field[Camera, store.Handle]("transform", rtti.HandleType, acc,
		func(r *Camera) store.Handle { return r.Transform }, nil), TransformTypeID))
	info.AddProperty(rtti.Hidden(rtti.Field[Camera, uint64]("unique_id", rtti.Uint64, acc,
		func(r *Camera) uint64 { return uint64(r.UniqueID) }, nil)))

	return w.Registry().Register(info)
}

func (c *Cameras) Cleanup(*world.World) {
	for _, h := range c.store.LivingInstances() {
		c.Destroy(h)
	}
	c.store.Cleanup()
}

// Make creates a camera with its own transform named after it.
func (c *Cameras) Make(n string) store.Handle {
	h, err := c.make(name.Of(n), 0, store.Null)
	if err != nil {
		panic(err)
	}
	return h
}

// make builds a camera around transform, creating a transform when it is
// Null.
func (c *Cameras) make(n name.Name, id uid.UniqueID, transform store.Handle) (store.Handle, error) {
	owned := transform.IsNull()
	if owned {
		t, err := c.transforms.MakeWithUID(n, 0)
		if err != nil {
			return store.Null, err
		}
		transform = t
	}
	h := c.store.Make(func(r *Camera) {
		r.Name = n
		r.Fov = 60
		r.Near = 0.1
		r.Far = 1000
		r.Transform = transform
	})
	id, err := bindUniqueID(c.w, h, id)
	if err != nil {
		c.store.Destroy(h)
		if owned {
			c.transforms.Destroy(transform)
		}
		return store.Null, fmt.Errorf("make camera %s: %w", n, err)
	}
	c.store.Update(h, func(r *Camera) { r.UniqueID = id })
	return h, nil
}

func (c *Cameras) Get(h store.Handle) (Camera, bool) { return c.store.Get(h) }

func (c *Cameras) Update(h store.Handle, fn func(*Camera)) bool { return c.store.Update(h, fn) }

// Destroy releases the camera and the transform it owns.
func (c *Cameras) Destroy(h store.Handle) {
	rec, ok := c.store.Get(h)
	if !ok {
		c.store.Destroy(h)
		return
	}
	c.w.Observers().Notify(h, event.Destroy)
	if c.transforms.IsAlive(rec.Transform) {
		c.transforms.Destroy(rec.Transform)
	}
	c.w.UniqueIDs().Remove(rec.UniqueID)
	c.store.Destroy(h)
	c.w.Observers().Forget(h)
}

// Duplicate copies the camera and deep copies its transform.
func (c *Cameras) Duplicate(h store.Handle, newName name.Name) (store.Handle, error) {
	rec, ok := c.store.Get(h)
	if !ok {
		return store.Null, deadHandle("duplicate", h)
	}
	transform := store.Null
	if c.transforms.IsAlive(rec.Transform) {
		t, err := c.transforms.Duplicate(rec.Transform, newName)
		if err != nil {
			return store.Null, err
		}
		transform = t
	}
	dup, err := c.make(newName, 0, transform)
	if err != nil {
		return store.Null, err
	}
	c.store.Update(dup, func(r *Camera) {
		r.Fov = rec.Fov
		r.Near = rec.Near
		r.Far = rec.Far
		r.Active = rec.Active
	})
	return dup, nil
}

// ownerOf returns the living camera that owns transform, or Null.
func (c *Cameras) ownerOf(transform store.Handle) store.Handle {
	return c.store.FindBy(func(r *Camera) bool { return r.Transform == transform })
}

func (c *Cameras) Serialize(h store.Handle, node *yaml.Node) error {
	rec, ok := c.store.Get(h)
	if !ok {
		return deadHandle("serialize", h)
	}
	var transformUID uid.UniqueID
	if t, ok := c.transforms.Get(rec.Transform); ok {
		transformUID = t.UniqueID
	}
	for _, kv := range []struct {
		key string
		v   any
	}{
		{"name", rec.Name.String()},
		{"active", rec.Active},
		{"fov", rec.Fov},
		{"near", rec.Near},
		{"far", rec.Far},
		{"transform_uid", uint64(transformUID)},
	} {
		if err := serial.Set(node, kv.key, kv.v); err != nil {
			return fmt.Errorf("serialize %s: %w", h, err)
		}
	}
	return putUniqueID(node, rec.UniqueID)
}

// Deserialize adopts the transform named by transform_uid when it is alive
// and unowned. A transform already owned by another camera is duplicated,
// and a fresh one is made when none is alive.
func (c *Cameras) Deserialize(node *yaml.Node, _ store.Handle) (store.Handle, error) {
	id, err := uniqueIDFrom(node)
	if err != nil {
		return store.Null, fmt.Errorf("deserialize camera: %w", err)
	}
	var (
		n            string
		rec          = Camera{Fov: 60, Near: 0.1, Far: 1000}
		transformUID uint64
	)
	for _, err := range []error{
		decodeInto(node, "name", &n),
		decodeInto(node, "active", &rec.Active),
		decodeInto(node, "fov", &rec.Fov),
		decodeInto(node, "near", &rec.Near),
		decodeInto(node, "far", &rec.Far),
		decodeInto(node, "transform_uid", &transformUID),
	} {
		if err != nil {
			return store.Null, fmt.Errorf("deserialize camera: %w", err)
		}
	}

	transform, copied := store.Null, false
	if transformUID != 0 {
		if t := c.w.UniqueIDs().Find(uid.UniqueID(transformUID)); c.transforms.IsAlive(t) {
			transform = t
		}
	}
	if !transform.IsNull() && !c.ownerOf(transform).IsNull() {
		dup, err := c.transforms.Duplicate(transform, name.Of(n))
		if err != nil {
			return store.Null, fmt.Errorf("deserialize camera: %w", err)
		}
		transform = dup
		copied = true
	}
	h, err := c.make(name.Of(n), id, transform)
	if err != nil {
		if copied {
			c.transforms.Destroy(transform)
		}
		return store.Null, err
	}
	c.store.Update(h, func(r *Camera) {
		r.Active = rec.Active
		r.Fov = rec.Fov
		r.Near = rec.Near
		r.Far = rec.Far
	})
	return h, nil
}
