package component

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/store"
	"github.com/lowengine/lowgo/internal/core/uid"
	"github.com/lowengine/lowgo/internal/core/world"
)

const (
	CoreModule     = "LowCore"
	RendererModule = "LowRenderer"

	TransformTypeID uint16 = 25
	CameraTypeID    uint16 = 26
	TextureTypeID   uint16 = 27
)

var ErrCycle = errors.New("transform hierarchy cycle")

// bindUniqueID registers id for h, generating a fresh id when id is zero.
func bindUniqueID(w *world.World, h store.Handle, id uid.UniqueID) (uid.UniqueID, error) {
	if id != 0 {
		return id, w.UniqueIDs().Register(id, h)
	}
	for {
		id = w.NewUniqueID(h)
		err := w.UniqueIDs().Register(id, h)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, uid.ErrDuplicate) {
			return 0, err
		}
	}
}

// uniqueIDFrom reads the record id from a serialized node. The integer
// "unique_id" key wins over the hex "_unique_id" key. Zero means absent.
func uniqueIDFrom(node *yaml.Node) (uid.UniqueID, error) {
	if id, ok, err := serial.Decode[uint64](node, "unique_id"); err != nil || ok {
		return uid.UniqueID(id), err
	}
	text, ok, err := serial.Decode[string](node, world.UniqueIDKey)
	if err != nil || !ok {
		return 0, err
	}
	return uid.FromString(text)
}

func putUniqueID(node *yaml.Node, id uid.UniqueID) error {
	return serial.Set(node, world.UniqueIDKey, uid.ToString(id))
}

// decodeInto decodes key into dst when present.
func decodeInto[V any](node *yaml.Node, key string, dst *V) error {
	v, ok, err := serial.Decode[V](node, key)
	if err != nil {
		return err
	}
	if ok {
		*dst = v
	}
	return nil
}

func deadHandle(op string, h store.Handle) error {
	return fmt.Errorf("%s %s: %w", op, h, store.ErrDeadHandle)
}
