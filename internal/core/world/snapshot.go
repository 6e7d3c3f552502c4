package world

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
	"github.com/lowengine/lowgo/internal/core/uid"
	"github.com/lowengine/lowgo/internal/persist"
)

// UniqueIDKey is the mapping key serializers use for a record's unique id.
const UniqueIDKey = "_unique_id"

// SnapshotStore is what the world needs from a snapshot backend. Both
// persist.SnapshotRepo and persist.RedisSnapshotRepo satisfy it.
//
// Replace must be atomic: it stores snaps and drops every stored snapshot
// of the listed types that snaps does not contain.
type SnapshotStore interface {
	Replace(ctx context.Context, typeNames []string, snaps []persist.Snapshot) error
	LoadType(ctx context.Context, typeName string) ([]persist.Snapshot, error)
}

// Snapshot serializes every living record of every serializable type,
// ordered by type id and then by index.
func (w *World) Snapshot() ([]persist.Snapshot, error) {
	var out []persist.Snapshot
	for _, info := range w.registry.Types() {
		if info.Serialize == nil || info.LivingInstances == nil {
			continue
		}
		for _, h := range info.LivingInstances() {
			node := serial.NewMap()
			if err := w.registry.Serialize(h, node); err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", h, err)
			}
			payload, err := serial.Marshal(node)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", h, err)
			}
			id, err := snapshotID(node, h)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", h, err)
			}
			out = append(out, persist.Snapshot{
				TypeID:   info.TypeID,
				TypeName: info.Name.String(),
				UniqueID: uint64(id),
				Payload:  payload,
			})
		}
	}
	return out, nil
}

// snapshotID reads the serialized unique id. Types without one are keyed by
// the packed handle.
func snapshotID(node *yaml.Node, h store.Handle) (uid.UniqueID, error) {
	text, ok, err := serial.Decode[string](node, UniqueIDKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return uid.UniqueID(h.ID()), nil
	}
	return uid.FromString(text)
}

// Restore deserializes snaps in order and then gives Restorer modules a
// chance to resolve references. It returns the created handles.
func (w *World) Restore(snaps []persist.Snapshot) ([]store.Handle, error) {
	handles := make([]store.Handle, 0, len(snaps))
	for _, s := range snaps {
		info, ok := w.registry.Lookup(s.TypeID)
		if !ok || info.Name.String() != s.TypeName {
			return handles, fmt.Errorf("restore %s/%016x: type id %d does not match a registered type", s.TypeName, s.UniqueID, s.TypeID)
		}
		node, err := serial.Unmarshal(s.Payload)
		if err != nil {
			return handles, fmt.Errorf("restore %s/%016x: %w", s.TypeName, s.UniqueID, err)
		}
		h, err := w.registry.Deserialize(info.TypeID, node, store.Null)
		if err != nil {
			return handles, fmt.Errorf("restore %s/%016x: %w", s.TypeName, s.UniqueID, err)
		}
		handles = append(handles, h)
	}
	for _, m := range w.modules[:w.initialized] {
		r, ok := m.(Restorer)
		if !ok {
			continue
		}
		if err := r.AfterRestore(w); err != nil {
			return handles, fmt.Errorf("restore module %s: %w", m.Name(), err)
		}
	}
	w.log.Info("snapshots restored", zap.Int("records", len(handles)))
	return handles, nil
}

// Save makes repo hold exactly the living records of every serializable
// type, so records destroyed since the last save are not restored.
func (w *World) Save(ctx context.Context, repo SnapshotStore) (int, error) {
	snaps, err := w.Snapshot()
	if err != nil {
		return 0, err
	}
	var types []string
	for _, info := range w.registry.Types() {
		if info.Serialize != nil && info.LivingInstances != nil {
			types = append(types, info.Name.String())
		}
	}
	if err := repo.Replace(ctx, types, snaps); err != nil {
		return 0, fmt.Errorf("save snapshots: %w", err)
	}
	return len(snaps), nil
}

// Load reads every registered type's snapshots from repo, in type id order,
// and restores them.
func (w *World) Load(ctx context.Context, repo SnapshotStore) ([]store.Handle, error) {
	var all []persist.Snapshot
	for _, info := range w.registry.Types() {
		if info.Deserialize == nil {
			continue
		}
		snaps, err := repo.LoadType(ctx, info.Name.String())
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", info.Name, err)
		}
		all = append(all, snaps...)
	}
	return w.Restore(all)
}
