// Package config handles application configuration.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/houseprice/housing"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
)

// Config defines the structure for all application configuration.
type Config struct {
	DataPath     string   `yaml:"data_path"`
	Target       string   `yaml:"target"`
	ArtifactPath string   `yaml:"artifact_path"`
	LogLevel     string   `yaml:"log_level"`
	Training     Training `yaml:"training"`
	Serving      Serving  `yaml:"serving"`
}

// Training holds the settings of one training run.
type Training struct {
	NSplits       int            `yaml:"n_splits"`
	TestSize      float64        `yaml:"test_size"`
	RandomSeed    int64          `yaml:"random_seed"`
	ParallelFolds FlexBool       `yaml:"parallel_folds"`
	PlotPath      string         `yaml:"plot_path"` // Empty disables the fold chart
	ModelParams   map[string]any `yaml:"model_params"`
}

// Serving holds the settings of the prediction server.
type Serving struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration of the reference training run.
func Default() *Config {
	return &Config{
		DataPath:     "data/train.csv",
		Target:       housing.TargetColumn,
		ArtifactPath: "model.bin",
		LogLevel:     "info",
		Training: Training{
			NSplits:    5,
			TestSize:   0.2,
			RandomSeed: 43,
			ModelParams: map[string]any{
				"depth":       5,
				"l2_leaf_reg": 1,
			},
		},
		Serving: Serving{
			Addr:            ":9696",
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Load loads configuration from the YAML file at configPath on top of the
// defaults, then applies environment overrides. An empty configPath skips
// the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", configPath)
		}
		// A model_params section replaces the default map instead of merging into it
		defaults := cfg.Training.ModelParams
		cfg.Training.ModelParams = nil
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", configPath)
		}
		if cfg.Training.ModelParams == nil {
			cfg.Training.ModelParams = defaults
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOUSEPRICE_DATA_PATH"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("HOUSEPRICE_ARTIFACT_PATH"); v != "" {
		c.ArtifactPath = v
	}
	if v := os.Getenv("HOUSEPRICE_ADDR"); v != "" {
		c.Serving.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the values every command depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataPath) == "" {
		return errors.NewValidationError("data_path", "must not be empty", c.DataPath)
	}
	if strings.TrimSpace(c.Target) == "" {
		return errors.NewValidationError("target", "must not be empty", c.Target)
	}
	if strings.TrimSpace(c.ArtifactPath) == "" {
		return errors.NewValidationError("artifact_path", "must not be empty", c.ArtifactPath)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Training.NSplits < 2 {
		return errors.NewValidationError("training.n_splits", "must be at least 2", c.Training.NSplits)
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	}
	if c.Serving.ShutdownTimeout < 0 {
		return errors.NewValidationError("serving.shutdown_timeout", "must not be negative", c.Serving.ShutdownTimeout.String())
	}
	return nil
}
