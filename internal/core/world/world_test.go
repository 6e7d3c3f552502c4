package world_test

import (
	"context"
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/rtti"
	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
	"github.com/lowengine/lowgo/internal/core/uid"
	"github.com/lowengine/lowgo/internal/core/world"
	"github.com/lowengine/lowgo/internal/persist"
)

type note struct {
	Text string
	UID  uid.UniqueID
}

// notes is a minimal module: one flat store, unique ids, text payload.
type notes struct {
	module   string
	typeID   uint16
	store    *store.Flat[note]
	w        *world.World
	trace    *[]string
	restored int
	fail     error
}

func (n *notes) Name() string { return n.module }

func (n *notes) Initialize(w *world.World) error {
	if n.fail != nil {
		return n.fail
	}
	n.w = w
	n.store = store.NewFlat[note](n.typeID, "Note"+n.module, w.Capacity(n.module, "Note"), nil)
	info := rtti.Describe(n.module, n.store)
	info.Destroy = n.Destroy
	info.Serialize = func(h store.Handle, node *yaml.Node) error {
		rec, _ := n.store.Get(h)
		if err := serial.Set(node, world.UniqueIDKey, uid.ToString(rec.UID)); err != nil {
			return err
		}
		return serial.Set(node, "text", rec.Text)
	}
	info.Deserialize = func(node *yaml.Node, _ store.Handle) (store.Handle, error) {
		text, _, err := serial.Decode[string](node, "text")
		if err != nil {
			return store.Null, err
		}
		raw, _, err := serial.Decode[string](node, world.UniqueIDKey)
		if err != nil {
			return store.Null, err
		}
		id, err := uid.FromString(raw)
		if err != nil {
			return store.Null, err
		}
		h := n.store.Make(func(r *note) { r.Text = text; r.UID = id })
		return h, w.UniqueIDs().Register(id, h)
	}
	*n.trace = append(*n.trace, "init "+n.module)
	return w.Registry().Register(info)
}

func (n *notes) Cleanup(*world.World) {
	for _, h := range n.store.LivingInstances() {
		n.Destroy(h)
	}
	n.store.Cleanup()
	*n.trace = append(*n.trace, "cleanup "+n.module)
}

func (n *notes) AfterRestore(*world.World) error {
	n.restored++
	return nil
}

func (n *notes) Make(text string) store.Handle {
	h := n.store.Make(func(r *note) { r.Text = text })
	id := n.w.NewUniqueID(h)
	n.store.Update(h, func(r *note) { r.UID = id })
	_ = n.w.UniqueIDs().Register(id, h)
	return h
}

func (n *notes) Destroy(h store.Handle) {
	rec, _ := n.store.Get(h)
	n.w.UniqueIDs().Remove(rec.UID)
	n.store.Destroy(h)
}

func newWorld(t *testing.T, trace *[]string) (*world.World, *notes, *notes) {
	t.Helper()
	w := world.New(world.CapacityFunc(func(module, typeName string) uint32 {
		if module == "A" {
			return 2
		}
		return 8
	}), nil)
	a := &notes{module: "A", typeID: 50, trace: trace}
	b := &notes{module: "B", typeID: 51, trace: trace}
	w.Register(a)
	w.Register(b)
	assert.NilError(t, w.Initialize())
	return w, a, b
}

func TestInitializeAndCleanupOrder(t *testing.T) {
	var trace []string
	w, a, _ := newWorld(t, &trace)
	assert.Equal(t, a.store.Capacity(), uint32(2))
	assert.Equal(t, w.Registry().Len(), 2)

	h := a.Make("hello")
	assert.Assert(t, w.IsAlive(h))
	assert.Equal(t, w.UniqueIDs().Len(), 1)

	w.Cleanup()
	assert.DeepEqual(t, trace, []string{"init A", "init B", "cleanup B", "cleanup A"})
	assert.Equal(t, w.Registry().Len(), 0)
	assert.Equal(t, w.UniqueIDs().Len(), 0)
	assert.Assert(t, !w.IsAlive(h))

	// A cleaned world can be initialized again.
	assert.NilError(t, w.Initialize())
	assert.Equal(t, w.Registry().Len(), 2)
}

func TestInitializeStopsAtFailure(t *testing.T) {
	var trace []string
	w := world.New(nil, nil)
	w.Register(&notes{module: "A", typeID: 50, trace: &trace})
	w.Register(&notes{module: "B", typeID: 51, trace: &trace, fail: fmt.Errorf("no gpu")})
	err := w.Initialize()
	assert.ErrorContains(t, err, "initialize module B: no gpu")
	assert.Equal(t, w.Capacity("A", "Note"), uint32(world.DefaultCapacity))

	w.Cleanup()
	assert.DeepEqual(t, trace, []string{"init A", "cleanup A"})
}

func TestDestroyQueue(t *testing.T) {
	var trace []string
	w, a, b := newWorld(t, &trace)
	h1 := a.Make("one")
	h2 := b.Make("two")
	h3 := a.Make("three")

	w.MarkForDestruction(h1)
	w.MarkForDestruction(h2)
	w.MarkForDestruction(h1)
	assert.Equal(t, w.Queued(), 3)
	assert.Assert(t, w.IsAlive(h1))

	assert.Equal(t, w.FlushDestroyQueue(), 2)
	assert.Equal(t, w.Queued(), 0)
	assert.Assert(t, !w.IsAlive(h1))
	assert.Assert(t, !w.IsAlive(h2))
	assert.Assert(t, w.IsAlive(h3))
	assert.Equal(t, w.UniqueIDs().Len(), 1)

	assert.ErrorIs(t, w.Destroy(store.Handle{Type: 99}), rtti.ErrUnknownType)
}

type memRepo struct {
	byType map[string][]persist.Snapshot
	saves  int
}

// Replace rebuilds every listed type from snaps, as the real backends do.
func (m *memRepo) Replace(_ context.Context, typeNames []string, snaps []persist.Snapshot) error {
	if m.byType == nil {
		m.byType = map[string][]persist.Snapshot{}
	}
	for _, t := range typeNames {
		m.byType[t] = nil
	}
	for _, s := range snaps {
		m.byType[s.TypeName] = append(m.byType[s.TypeName], s)
	}
	m.saves++
	return nil
}

func (m *memRepo) LoadType(_ context.Context, typeName string) ([]persist.Snapshot, error) {
	return m.byType[typeName], nil
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	var trace []string
	w, a, b := newWorld(t, &trace)
	h1 := a.Make("alpha")
	a.Make("beta")
	b.Make("gamma")
	first, _ := a.store.Get(h1)

	repo := &memRepo{}
	n, err := w.Save(ctx, repo)
	assert.NilError(t, err)
	assert.Equal(t, n, 3)
	assert.Equal(t, len(repo.byType["NoteA"]), 2)
	assert.Equal(t, repo.byType["NoteA"][0].UniqueID, uint64(first.UID))
	assert.Equal(t, repo.byType["NoteA"][0].TypeID, uint16(50))

	w.Cleanup()
	assert.NilError(t, w.Initialize())
	handles, err := w.Load(ctx, repo)
	assert.NilError(t, err)
	assert.Equal(t, len(handles), 3)
	assert.Equal(t, a.restored, 1)
	assert.Equal(t, b.restored, 1)

	restored := w.UniqueIDs().Find(first.UID)
	assert.Assert(t, w.IsAlive(restored))
	rec, _ := a.store.Get(restored)
	assert.Equal(t, rec.Text, "alpha")

	info, ok := w.Registry().LookupByName(name.Of("NoteB"))
	assert.Assert(t, ok)
	assert.Equal(t, info.LivingCount(), uint32(1))
}

func TestSaveDropsDestroyedRecords(t *testing.T) {
	ctx := context.Background()
	var trace []string
	w, a, b := newWorld(t, &trace)
	keep := a.Make("keep")
	gone := a.Make("gone")
	lonely := b.Make("lonely")
	keepRec, _ := a.store.Get(keep)
	goneRec, _ := a.store.Get(gone)

	repo := &memRepo{}
	n, err := w.Save(ctx, repo)
	assert.NilError(t, err)
	assert.Equal(t, n, 3)

	a.Destroy(gone)
	b.Destroy(lonely)
	n, err = w.Save(ctx, repo)
	assert.NilError(t, err)
	assert.Equal(t, n, 1)
	assert.Equal(t, repo.saves, 2)
	assert.Equal(t, len(repo.byType["NoteB"]), 0)

	w.Cleanup()
	assert.NilError(t, w.Initialize())
	handles, err := w.Load(ctx, repo)
	assert.NilError(t, err)
	assert.Equal(t, len(handles), 1)
	assert.Assert(t, w.IsAlive(w.UniqueIDs().Find(keepRec.UID)))
	assert.Assert(t, w.UniqueIDs().Find(goneRec.UID).IsNull())
	assert.Equal(t, b.store.LivingCount(), uint32(0))
}

func TestRestoreRejectsMismatchedType(t *testing.T) {
	var trace []string
	w, _, _ := newWorld(t, &trace)
	_, err := w.Restore([]persist.Snapshot{{TypeID: 50, TypeName: "NoteB", UniqueID: 1, Payload: []byte("text: x\n")}})
	assert.ErrorContains(t, err, "does not match a registered type")
}
