package component

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type Vector3 struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

// UnmarshalYAML accepts both the {x, y, z} mapping and the short [x, y, z]
// sequence form.
func (v *Vector3) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var xyz []float32
		if err := node.Decode(&xyz); err != nil {
			return err
		}
		if len(xyz) != 3 {
			return fmt.Errorf("vector3 at line %d: want 3 components, got %d", node.Line, len(xyz))
		}
		*v = Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		return nil
	}
	type plain Vector3
	return node.Decode((*plain)(v))
}

type Quaternion struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
	W float32 `yaml:"w"`
}

var (
	One      = Vector3{1, 1, 1}
	Identity = Quaternion{W: 1}
)
