// capconv converts the engine's type_capacities.yaml into the
// [capacities.<module>] tables of lowstore.toml.
//
// Usage:
//
//	go run ./cmd/capconv [-in path] [-out path] [-min n]
//
// With -out omitted the TOML is written to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/lowengine/lowgo/internal/config"
)

type capacitiesFile struct {
	Capacities config.CapacityTable `toml:"capacities"`
}

func main() {
	in := flag.String("in", filepath.Join("config", "type_capacities.yaml"), "capacity table to convert")
	out := flag.String("out", "", "TOML output file (default stdout)")
	minCap := flag.Uint("min", 1, "raise capacities below this value")
	flag.Parse()

	if err := convert(*in, *out, uint32(*minCap)); err != nil {
		fmt.Fprintf(os.Stderr, "capconv: %v\n", err)
		os.Exit(1)
	}
}

func convert(in, out string, minCap uint32) error {
	table, err := config.ReadCapacityTable(in)
	if err != nil {
		return err
	}
	raised := clampTable(table, minCap)

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := encode(w, table); err != nil {
		return err
	}

	modules := make([]string, 0, len(table))
	types := 0
	for m, t := range table {
		modules = append(modules, m)
		types += len(t)
	}
	sort.Strings(modules)
	fmt.Fprintf(os.Stderr, "capconv: %d modules, %d types, %d raised to %d (%v)\n", len(modules), types, raised, minCap, modules)
	return nil
}

// clampTable raises every capacity below minCap and reports how many changed.
func clampTable(table config.CapacityTable, minCap uint32) int {
	raised := 0
	for _, types := range table {
		for name, n := range types {
			if n < minCap {
				types[name] = minCap
				raised++
			}
		}
	}
	return raised
}

func encode(w io.Writer, table config.CapacityTable) error {
	fmt.Fprintln(w, "# Generated by capconv. Paste into lowstore.toml or point")
	fmt.Fprintln(w, "# [stores] capacities_file at the YAML source instead.")
	if err := toml.NewEncoder(w).Encode(capacitiesFile{Capacities: table}); err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	return nil
}
