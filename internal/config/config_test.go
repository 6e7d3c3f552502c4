package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lowstore.toml", `
[logging]
level = "debug"
`)
	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Logging.Level, "debug")
	assert.Equal(t, cfg.Logging.Format, "console")
	assert.Equal(t, cfg.Stores.DefaultCapacity, uint32(64))
	assert.Equal(t, cfg.Database.ConnMaxLifetime, 30*time.Minute)
	assert.Equal(t, cfg.Capacity("LowCore", "Transform"), uint32(64))
	assert.Assert(t, !cfg.Redis.Enabled)
	assert.Equal(t, cfg.Redis.Addr, "localhost:6379")
	assert.Equal(t, cfg.Redis.KeyPrefix, "lowstore")
}

func TestLoadRedisSection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lowstore.toml", `
[redis]
enabled = true
addr = "cache:6380"
db = 2
`)
	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Assert(t, cfg.Redis.Enabled)
	assert.Equal(t, cfg.Redis.Addr, "cache:6380")
	assert.Equal(t, cfg.Redis.DB, 2)
	assert.Equal(t, cfg.Redis.KeyPrefix, "lowstore")
}

func TestLoadMergesCapacityTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "type_capacities.yaml", `
LowCore:
  Transform: 2048
  Camera: 4
LowRenderer:
  Texture: 128
`)
	path := writeFile(t, dir, "lowstore.toml", `
[stores]
default_capacity = 16
capacities_file = "type_capacities.yaml"

[workload]
tick_rate = "10ms"

[capacities.LowCore]
Camera = 8
`)
	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Capacity("LowCore", "Transform"), uint32(2048))
	assert.Equal(t, cfg.Capacity("LowCore", "Camera"), uint32(8))
	assert.Equal(t, cfg.Capacity("LowRenderer", "Texture"), uint32(128))
	assert.Equal(t, cfg.Capacity("LowRenderer", "Mesh"), uint32(16))
	assert.Equal(t, cfg.Workload.TickRate, 10*time.Millisecond)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "read config")

	bad := writeFile(t, dir, "bad.toml", "[logging\n")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config")

	missingTable := writeFile(t, dir, "table.toml", `
[stores]
capacities_file = "nope.yaml"
`)
	_, err = Load(missingTable)
	assert.ErrorContains(t, err, "read capacities")
}
