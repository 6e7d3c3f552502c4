// Package serial holds the yaml.v3 node helpers store serializers write
// through. A record serializes into one mapping node.
package serial

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var ErrNotMapping = errors.New("yaml node is not a mapping")

// NewMap returns an empty mapping node.
func NewMap() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// Set encodes v under key, replacing an existing entry. A zero node is
// turned into a mapping first.
func Set(n *yaml.Node, key string, v any) error {
	var val yaml.Node
	if err := val.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return SetNode(n, key, &val)
}

// SetNode stores child under key without re-encoding it.
func SetNode(n *yaml.Node, key string, child *yaml.Node) error {
	n = mapping(n)
	if n == nil {
		return fmt.Errorf("set %s: %w", key, ErrNotMapping)
	}
	if n.Kind == 0 {
		n.Kind = yaml.MappingNode
		n.Tag = "!!map"
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("set %s: %w", key, ErrNotMapping)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			n.Content[i+1] = child
			return nil
		}
	}
	n.Content = append(n.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		child,
	)
	return nil
}

// Lookup returns the value stored under key, or nil.
func Lookup(n *yaml.Node, key string) *yaml.Node {
	n = mapping(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// Decode reads key into a V. ok is false when the key is absent.
func Decode[V any](n *yaml.Node, key string) (v V, ok bool, err error) {
	child := Lookup(n, key)
	if child == nil {
		return v, false, nil
	}
	if err := child.Decode(&v); err != nil {
		return v, true, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Keys lists the mapping's keys in document order.
func Keys(n *yaml.Node) []string {
	n = mapping(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

func Marshal(n *yaml.Node) ([]byte, error) {
	return yaml.Marshal(n)
}

// Unmarshal parses a document and returns its root node.
func Unmarshal(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 {
		return NewMap(), nil
	}
	return mapping(&doc), nil
}

// mapping unwraps document nodes.
func mapping(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	return n
}
