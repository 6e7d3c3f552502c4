package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lowengine/lowgo/internal/core/serial"
	"github.com/lowengine/lowgo/internal/core/world"
)

// writeDump serializes every living record into one YAML document keyed by
// type name, then writes it to path.
func writeDump(w *world.World, path string) (int, error) {
	doc := serial.NewMap()
	count := 0
	for _, info := range w.Registry().Types() {
		if info.Serialize == nil {
			continue
		}
		list := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, h := range info.LivingInstances() {
			node := serial.NewMap()
			if err := w.Registry().Serialize(h, node); err != nil {
				return count, fmt.Errorf("dump %s: %w", h, err)
			}
			list.Content = append(list.Content, node)
			count++
		}
		if err := serial.SetNode(doc, info.Name.String(), list); err != nil {
			return count, err
		}
	}

	data, err := serial.Marshal(doc)
	if err != nil {
		return count, fmt.Errorf("marshal dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return count, fmt.Errorf("write dump %s: %w", path, err)
	}
	return count, nil
}
