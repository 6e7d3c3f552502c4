package component_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/component"
	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
)

func TestCameraOwnsTransform(t *testing.T) {
	f := newFixture(t)
	cam := f.cameras.Make("main")
	rec, ok := f.cameras.Get(cam)
	assert.Assert(t, ok)
	assert.Equal(t, rec.Fov, float32(60))
	assert.Assert(t, f.transforms.IsAlive(rec.Transform))
	assert.Equal(t, f.transforms.FindByName(name.Of("main")), rec.Transform)

	assert.NilError(t, f.w.Destroy(cam))
	assert.Assert(t, !f.w.IsAlive(cam))
	assert.Assert(t, !f.transforms.IsAlive(rec.Transform))
}

func TestCameraDuplicateDeepCopiesTransform(t *testing.T) {
	f := newFixture(t)
	cam := f.cameras.Make("main")
	f.cameras.Update(cam, func(c *component.Camera) { c.Fov = 90; c.Active = true })
	rec, _ := f.cameras.Get(cam)
	f.transforms.Update(rec.Transform, func(tr *component.Transform) {
		tr.Position = component.Vector3{Z: -10}
	})

	dup, err := f.w.Registry().Duplicate(cam, name.Of("second"))
	assert.NilError(t, err)
	dupRec, _ := f.cameras.Get(dup)
	assert.Equal(t, dupRec.Fov, float32(90))
	assert.Assert(t, dupRec.Active)
	assert.Equal(t, dupRec.Name.String(), "second")
	assert.Assert(t, dupRec.Transform != rec.Transform)

	tr, _ := f.transforms.Get(dupRec.Transform)
	assert.Equal(t, tr.Position, component.Vector3{Z: -10})
	assert.Equal(t, tr.Name.String(), "second")

	// Destroying the copy leaves the original's transform alone.
	f.cameras.Destroy(dup)
	assert.Assert(t, f.transforms.IsAlive(rec.Transform))
	assert.Assert(t, !f.transforms.IsAlive(dupRec.Transform))
}

func TestCameraSerializeAdoptsTransform(t *testing.T) {
	f := newFixture(t)
	cam := f.cameras.Make("main")
	f.cameras.Update(cam, func(c *component.Camera) { c.Near = 0.5; c.Far = 50 })
	rec, _ := f.cameras.Get(cam)
	tr, _ := f.transforms.Get(rec.Transform)

	trNode := serial.NewMap()
	assert.NilError(t, f.w.Registry().Serialize(rec.Transform, trNode))
	camNode := serial.NewMap()
	assert.NilError(t, f.w.Registry().Serialize(cam, camNode))

	g := newFixture(t)
	trBack, err := g.w.Registry().Deserialize(component.TransformTypeID, trNode, store.Null)
	assert.NilError(t, err)
	camBack, err := g.w.Registry().Deserialize(component.CameraTypeID, camNode, store.Null)
	assert.NilError(t, err)

	got, _ := g.cameras.Get(camBack)
	assert.Equal(t, got.Transform, trBack)
	assert.Equal(t, got.Near, float32(0.5))
	assert.Equal(t, got.Far, float32(50))
	assert.Equal(t, got.UniqueID, rec.UniqueID)
	assert.Equal(t, g.w.UniqueIDs().Find(tr.UniqueID), trBack)

	// Without the transform snapshot a fresh transform is made.
	h := newFixture(t)
	alone, err := h.w.Registry().Deserialize(component.CameraTypeID, camNode, store.Null)
	assert.NilError(t, err)
	aloneRec, _ := h.cameras.Get(alone)
	assert.Assert(t, h.transforms.IsAlive(aloneRec.Transform))
}

func TestCameraCleanupDestroysTransforms(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"a", "b", "c"} {
		f.cameras.Make(n)
	}
	assert.Equal(t, f.transforms.Store().LivingCount(), uint32(3))

	f.cameras.Cleanup(f.w)
	assert.Equal(t, f.transforms.Store().LivingCount(), uint32(0))
	assert.Equal(t, f.cameras.Store().Capacity(), uint32(0))
}

func TestCameraDeserializeDoesNotShareOwnedTransform(t *testing.T) {
	f := newFixture(t)
	cam := f.cameras.Make("main")
	rec, _ := f.cameras.Get(cam)
	f.transforms.Update(rec.Transform, func(tr *component.Transform) { tr.Position = component.Vector3{X: 3} })
	tr, _ := f.transforms.Get(rec.Transform)

	node := serial.NewMap()
	assert.NilError(t, serial.Set(node, "name", "second"))
	assert.NilError(t, serial.Set(node, "transform_uid", uint64(tr.UniqueID)))
	second, err := f.w.Registry().Deserialize(component.CameraTypeID, node, store.Null)
	assert.NilError(t, err)

	secondRec, _ := f.cameras.Get(second)
	assert.Assert(t, secondRec.Transform != rec.Transform)
	copied, ok := f.transforms.Get(secondRec.Transform)
	assert.Assert(t, ok)
	assert.Equal(t, copied.Position, component.Vector3{X: 3})

	f.cameras.Destroy(second)
	assert.Assert(t, f.transforms.IsAlive(rec.Transform))
	assert.Assert(t, !f.transforms.IsAlive(secondRec.Transform))
}
