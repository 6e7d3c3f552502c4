package component

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/lowengine/lowgo/internal/core/event"
	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/rtti"
	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
	"github.com/lowengine/lowgo/internal/core/uid"
	"github.com/lowengine/lowgo/internal/core/world"
)

// Texture is an asset record. MipLevels holds the edge length of every mip
// level, largest first.
type Texture struct {
	Name      name.Name
	Path      string
	Width     uint32
	Height    uint32
	MipLevels []uint32
	UniqueID  uid.UniqueID
}

// Textures keeps texture assets in a flat store. Use it from one goroutine.
type Textures struct {
	w     *world.World
	store *store.Flat[Texture]
}

func NewTextures() *Textures { return &Textures{} }

func (t *Textures) Name() string { return "Texture" }

func (t *Textures) Store() *store.Flat[Texture] { return t.store }

func (t *Textures) Initialize(w *world.World) error {
	t.w = w
	t.store = store.NewFlat[Texture](TextureTypeID, "Texture", w.Capacity(RendererModule, "Texture"), w.Log().Named("texture"))

	info := rtti.Describe(RendererModule, t.store)
	info.Destroy = t.Destroy
	info.Serialize = t.Serialize
	info.Deserialize = t.Deserialize
	info.Duplicate = t.Duplicate
	info.FindByName = func(n name.Name) store.Handle {
		return t.store.FindBy(func(r *Texture) bool { return r.Name == n })
	}

	acc := store.Accessor[Texture](t.store)
	info.AddProperty(rtti.Field("name", rtti.NameType, acc,
		func(r *Texture) name.Name { return r.Name },
		func(r *Texture, v name.Name) { r.Name = v }))
	info.AddProperty(rtti.Field("path", rtti.String, acc,
		func(r *Texture) string { return r.Path },
		func(r *Texture, v string) { r.Path = v }))
	info.AddProperty(rtti.Field[Texture, uint32]("width", rtti.Uint32, acc,
		func(r *Texture) uint32 { return r.Width }, nil))
	info.AddProperty(rtti.Field[Texture, uint32]("height", rtti.Uint32, acc,
		func(r *Texture) uint32 { return r.Height }, nil))
	info.AddProperty(rtti.Hidden(rtti.Field[Texture, []uint32]("mip_levels", rtti.Unknown, acc,
		func(r *Texture) []uint32 { return slices.Clone(r.MipLevels) }, nil)))
	info.AddProperty(rtti.Hidden(rtti.Field[Texture, uint64]("unique_id", rtti.Uint64, acc,
		func(r *Texture) uint64 { return uint64(r.UniqueID) }, nil)))

	return w.Registry().Register(info)
}

func (t *Textures) Cleanup(*world.World) {
	for _, h := range t.store.LivingInstances() {
		t.Destroy(h)
	}
	t.store.Cleanup()
}

// MipChain returns the mip edge lengths for a width x height image, halving
// the larger edge down to 1.
func MipChain(width, height uint32) []uint32 {
	edge := max(width, height)
	if edge == 0 {
		return nil
	}
	var out []uint32
	for ; edge > 0; edge >>= 1 {
		out = append(out, edge)
	}
	return out
}

// Make registers a texture and computes its mip chain.
func (t *Textures) Make(n, path string, width, height uint32) store.Handle {
	h, err := t.make(name.Of(n), 0, func(r *Texture) {
		r.Path = path
		r.Width = width
		r.Height = height
		r.MipLevels = MipChain(width, height)
	})
	if err != nil {
		panic(err)
	}
	return h
}

func (t *Textures) make(n name.Name, id uid.UniqueID, init func(*Texture)) (store.Handle, error) {
	h := t.store.Make(func(r *Texture) {
		r.Name = n
		init(r)
	})
	id, err := bindUniqueID(t.w, h, id)
	if err != nil {
		t.store.Destroy(h)
		return store.Null, fmt.Errorf("make texture %s: %w", n, err)
	}
	t.store.Update(h, func(r *Texture) { r.UniqueID = id })
	event.Emit(t.w.Bus(), event.HandleCreated{Handle: h})
	return h, nil
}

func (t *Textures) Get(h store.Handle) (Texture, bool) { return t.store.Get(h) }

func (t *Textures) Destroy(h store.Handle) {
	rec, ok := t.store.Get(h)
	if !ok {
		t.store.Destroy(h)
		return
	}
	t.w.Observers().Notify(h, event.Destroy)
	t.w.UniqueIDs().Remove(rec.UniqueID)
	t.store.Destroy(h)
	t.w.Observers().Forget(h)
	event.Emit(t.w.Bus(), event.HandleDestroyed{Handle: h})
}

// Duplicate copies every field; the mip list is copied, not shared.
func (t *Textures) Duplicate(h store.Handle, newName name.Name) (store.Handle, error) {
	rec, ok := t.store.Get(h)
	if !ok {
		return store.Null, deadHandle("duplicate", h)
	}
	return t.make(newName, 0, func(r *Texture) {
		r.Path = rec.Path
		r.Width = rec.Width
		r.Height = rec.Height
		r.MipLevels = slices.Clone(rec.MipLevels)
	})
}

func (t *Textures) Serialize(h store.Handle, node *yaml.Node) error {
	rec, ok := t.store.Get(h)
	if !ok {
		return deadHandle("serialize", h)
	}
	for _, kv := range []struct {
		key string
		v   any
	}{
		{"name", rec.Name.String()},
		{"path", rec.Path},
		{"width", rec.Width},
		{"height", rec.Height},
		{"mip_levels", rec.MipLevels},
	} {
		if err := serial.Set(node, kv.key, kv.v); err != nil {
			return fmt.Errorf("serialize %s: %w", h, err)
		}
	}
	return putUniqueID(node, rec.UniqueID)
}

func (t *Textures) Deserialize(node *yaml.Node, _ store.Handle) (store.Handle, error) {
	id, err := uniqueIDFrom(node)
	if err != nil {
		return store.Null, fmt.Errorf("deserialize texture: %w", err)
	}
	var (
		n   string
		rec Texture
	)
	for _, err := range []error{
		decodeInto(node, "name", &n),
		decodeInto(node, "path", &rec.Path),
		decodeInto(node, "width", &rec.Width),
		decodeInto(node, "height", &rec.Height),
		decodeInto(node, "mip_levels", &rec.MipLevels),
	} {
		if err != nil {
			return store.Null, fmt.Errorf("deserialize texture: %w", err)
		}
	}
	if rec.MipLevels == nil {
		rec.MipLevels = MipChain(rec.Width, rec.Height)
	}
	return t.make(name.Of(n), id, func(r *Texture) {
		r.Path = rec.Path
		r.Width = rec.Width
		r.Height = rec.Height
		r.MipLevels = rec.MipLevels
	})
}
