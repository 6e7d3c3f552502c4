package component_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/component"
	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/rtti"
	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
)

func TestMipChain(t *testing.T) {
	assert.DeepEqual(t, component.MipChain(256, 64), []uint32{256, 128, 64, 32, 16, 8, 4, 2, 1})
	assert.DeepEqual(t, component.MipChain(1, 1), []uint32{1})
	assert.Assert(t, component.MipChain(0, 0) == nil)
}

func TestTextureDuplicateCopiesMips(t *testing.T) {
	f := newFixture(t)
	tex := f.textures.Make("grass", "textures/grass.ktx", 4, 4)

	dup, err := f.w.Registry().Duplicate(tex, name.Of("grass2"))
	assert.NilError(t, err)

	f.textures.Store().Update(dup, func(r *component.Texture) { r.MipLevels[0] = 99 })
	orig, _ := f.textures.Get(tex)
	copied, _ := f.textures.Get(dup)
	assert.DeepEqual(t, orig.MipLevels, []uint32{4, 2, 1})
	assert.DeepEqual(t, copied.MipLevels, []uint32{99, 2, 1})
	assert.Equal(t, copied.Path, orig.Path)
	assert.Assert(t, copied.UniqueID != orig.UniqueID)
}

func TestTextureGrowsPastCapacity(t *testing.T) {
	f := newFixture(t)
	var handles []store.Handle
	for i := 0; i < 20; i++ {
		handles = append(handles, f.textures.Make("t", "p", 2, 2))
	}
	assert.Equal(t, f.textures.Store().Capacity(), uint32(32))
	for _, h := range handles {
		assert.Assert(t, f.w.IsAlive(h))
	}
}

func TestTextureSerializeAndProperties(t *testing.T) {
	f := newFixture(t)
	tex := f.textures.Make("sky", "textures/sky.ktx", 8, 2)

	node := serial.NewMap()
	assert.NilError(t, f.w.Registry().Serialize(tex, node))
	data, err := serial.Marshal(node)
	assert.NilError(t, err)

	g := newFixture(t)
	back, err := serial.Unmarshal(data)
	assert.NilError(t, err)
	h, err := g.w.Registry().Deserialize(component.TextureTypeID, back, store.Null)
	assert.NilError(t, err)
	got, _ := g.textures.Get(h)
	want, _ := f.textures.Get(tex)
	assert.DeepEqual(t, got, want)

	assert.ErrorIs(t, f.w.Registry().SetProperty(tex, "width", uint32(4)), rtti.ErrReadOnly)
	assert.NilError(t, f.w.Registry().SetProperty(tex, "path", "textures/night.ktx"))
	v, err := f.w.Registry().GetProperty(tex, "path")
	assert.NilError(t, err)
	assert.Equal(t, v, any("textures/night.ktx"))
	assert.Equal(t, f.w.Registry().FindByName(component.TextureTypeID, name.Of("sky")), tex)
}
