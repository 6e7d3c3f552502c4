package component_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/component"
	"github.com/lowengine/lowgo/internal/core/world"
)

type fixture struct {
	w          *world.World
	transforms *component.Transforms
	cameras    *component.Cameras
	textures   *component.Textures
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		w:          world.New(world.CapacityFunc(func(string, string) uint32 { return 8 }), nil),
		transforms: component.NewTransforms(),
		textures:   component.NewTextures(),
	}
	f.cameras = component.NewCameras(f.transforms)
	f.w.Register(f.transforms)
	f.w.Register(f.cameras)
	f.w.Register(f.textures)
	assert.NilError(t, f.w.Initialize())
	t.Cleanup(f.w.Cleanup)
	return f
}
