package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "craneqp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/craneqp.yaml")
	assert.Error(t, err)

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Engine.PageSize)
	assert.Equal(t, 16, cfg.Engine.BufferBudget)
	assert.Equal(t, os.TempDir(), cfg.Engine.SpillDir)
	assert.Equal(t, cfg.Engine.SpillDir, cfg.Engine.StatsDir)
	assert.Equal(t, 0.9, cfg.Optimizer.CoolingFactor)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  page_size: 512
  buffer_budget: 5
  spill_dir: "/tmp/spill"
optimizer:
  seed: 42
  cooling_factor: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Engine.PageSize)
	assert.Equal(t, 5, cfg.Engine.BufferBudget)
	assert.Equal(t, "/tmp/spill", cfg.Engine.SpillDir)
	assert.Equal(t, "/tmp/spill", cfg.Engine.StatsDir)

	opts := cfg.OptimizerOptions()
	assert.Equal(t, uint64(42), opts.Seed)
	assert.Equal(t, 0.5, opts.CoolingFactor)
	assert.Equal(t, 0.1, opts.InitialTemperatureFactor)
	assert.Equal(t, 1.0, opts.MinTemperature)
}

func TestStatsDirFollowsSpillDir(t *testing.T) {
	cfg, err := Load(writeConfig(t, "engine:\n  spill_dir: /data/craneqp\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/craneqp", cfg.Engine.SpillDir)
	assert.Equal(t, "/data/craneqp", cfg.Engine.StatsDir)

	cfg, err = Load(writeConfig(t, "engine:\n  spill_dir: /data/a\n  stats_dir: /data/b\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/b", cfg.Engine.StatsDir)

	cfg, err = Load(writeConfig(t, "engine:\n  page_size: 1024\n"))
	require.NoError(t, err)
	assert.Equal(t, os.TempDir(), cfg.Engine.SpillDir)
	assert.Equal(t, os.TempDir(), cfg.Engine.StatsDir)
}

func TestLoadRepairsSchedule(t *testing.T) {
	cfg, err := Load(writeConfig(t, "optimizer:\n  cooling_factor: 1.5\n  min_temperature: -2\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Optimizer.CoolingFactor)
	assert.Equal(t, 1.0, cfg.Optimizer.MinTemperature)
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  buffer_budget: 2\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "engine:\n  page_size: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "engine: [not, a, map]\n"))
	assert.Error(t, err)
}
