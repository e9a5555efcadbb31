package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/yashagw/craneqp/internal/optimizer"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

type EngineConfig struct {
	PageSize     int    `yaml:"page_size"`     // bytes per page
	BufferBudget int    `yaml:"buffer_budget"` // pages shared by the joins of one plan
	SpillDir     string `yaml:"spill_dir"`
	StatsDir     string `yaml:"stats_dir"`
}

type OptimizerConfig struct {
	Seed                     uint64  `yaml:"seed"`
	InitialTemperatureFactor float64 `yaml:"initial_temperature_factor"`
	CoolingFactor            float64 `yaml:"cooling_factor"`
	MinTemperature           float64 `yaml:"min_temperature"`
}

// Default returns the built-in settings. Directories stay empty until Load
// fills them, so a spill_dir read from a file also becomes the stats dir.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			PageSize:     4096,
			BufferBudget: 16,
		},
		Optimizer: OptimizerConfig{
			Seed:                     1,
			InitialTemperatureFactor: 0.1,
			CoolingFactor:            0.9,
			MinTemperature:           1,
		},
	}
}

// Load reads configPath over the defaults. An empty path searches
// configs/craneqp.yaml and craneqp.yaml, falling back to the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/craneqp.yaml", "craneqp.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				return parse(cfg, data, p)
			}
		}
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	return parse(cfg, data, configPath)
}

func parse(cfg *Config, data []byte, path string) (*Config, error) {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	applyDefaults(cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.SpillDir == "" {
		cfg.Engine.SpillDir = os.TempDir()
	}
	if cfg.Engine.StatsDir == "" {
		cfg.Engine.StatsDir = cfg.Engine.SpillDir
	}
	if cfg.Optimizer.InitialTemperatureFactor <= 0 {
		cfg.Optimizer.InitialTemperatureFactor = 0.1
	}
	if cfg.Optimizer.CoolingFactor <= 0 || cfg.Optimizer.CoolingFactor >= 1 {
		cfg.Optimizer.CoolingFactor = 0.9
	}
	if cfg.Optimizer.MinTemperature <= 0 {
		cfg.Optimizer.MinTemperature = 1
	}
}

// Validate rejects settings no plan can run under.
func (c *Config) Validate() error {
	if c.Engine.PageSize <= 0 {
		return errors.Newf("engine.page_size must be positive, got %d", c.Engine.PageSize)
	}
	if c.Engine.BufferBudget < 3 {
		return errors.Newf("engine.buffer_budget must be at least 3, got %d", c.Engine.BufferBudget)
	}
	return nil
}

// OptimizerOptions converts the optimizer section into search options.
func (c *Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{
		Seed:                     c.Optimizer.Seed,
		InitialTemperatureFactor: c.Optimizer.InitialTemperatureFactor,
		CoolingFactor:            c.Optimizer.CoolingFactor,
		MinTemperature:           c.Optimizer.MinTemperature,
	}
}
