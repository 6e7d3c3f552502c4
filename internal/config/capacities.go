package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CapacityTable is the engine's type_capacities.yaml: module → type → initial
// store capacity.
type CapacityTable map[string]map[string]uint32

// ReadCapacityTable parses a type_capacities.yaml file.
func ReadCapacityTable(path string) (CapacityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capacities %s: %w", path, err)
	}
	var table CapacityTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse capacities %s: %w", path, err)
	}
	return table, nil
}

// LoadCapacities merges a capacity table file into c. Entries already set in
// the TOML config win.
func (c *Config) LoadCapacities(path string) error {
	table, err := ReadCapacityTable(path)
	if err != nil {
		return err
	}
	c.MergeCapacities(table)
	return nil
}

func (c *Config) MergeCapacities(table CapacityTable) {
	if c.Capacities == nil {
		c.Capacities = map[string]map[string]uint32{}
	}
	for module, types := range table {
		dst := c.Capacities[module]
		if dst == nil {
			dst = map[string]uint32{}
			c.Capacities[module] = dst
		}
		for typeName, n := range types {
			if _, ok := dst[typeName]; !ok {
				dst[typeName] = n
			}
		}
	}
}
