package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/houseprice/config"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "SalePrice", cfg.Target)
	assert.Equal(t, "model.bin", cfg.ArtifactPath)
	assert.Equal(t, 5, cfg.Training.NSplits)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, int64(43), cfg.Training.RandomSeed)
	assert.Equal(t, map[string]any{"depth": 5, "l2_leaf_reg": 1}, cfg.Training.ModelParams)
	assert.Equal(t, ":9696", cfg.Serving.Addr)
	assert.Equal(t, config.Duration(10*time.Second), cfg.Serving.ShutdownTimeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data_path: /data/houses.csv
log_level: debug
training:
  n_splits: 3
  parallel_folds: "true"
  plot_path: folds.png
  model_params:
    depth: 4
    iterations: 200
serving:
  shutdown_timeout: 2.5
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/houses.csv", cfg.DataPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Training.NSplits)
	assert.Equal(t, 0.2, cfg.Training.TestSize, "unset keys keep their defaults")
	assert.True(t, bool(cfg.Training.ParallelFolds))
	assert.Equal(t, "folds.png", cfg.Training.PlotPath)
	assert.Equal(t, map[string]any{"depth": 4, "iterations": 200}, cfg.Training.ModelParams)
	assert.Equal(t, config.Duration(2500*time.Millisecond), cfg.Serving.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "artifact_path: from-file.bin\n")
	t.Setenv("HOUSEPRICE_DATA_PATH", "/env/train.csv")
	t.Setenv("HOUSEPRICE_ARTIFACT_PATH", "/env/model.bin")
	t.Setenv("HOUSEPRICE_ADDR", ":8080")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/train.csv", cfg.DataPath)
	assert.Equal(t, "/env/model.bin", cfg.ArtifactPath)
	assert.Equal(t, ":8080", cfg.Serving.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "training: [1, 2"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "serving:\n  shutdown_timeout: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"one split", func(c *config.Config) { c.Training.NSplits = 1 }},
		{"zero test size", func(c *config.Config) { c.Training.TestSize = 0 }},
		{"full test size", func(c *config.Config) { c.Training.TestSize = 1 }},
		{"empty data path", func(c *config.Config) { c.DataPath = "" }},
		{"empty artifact path", func(c *config.Config) { c.ArtifactPath = " " }},
		{"empty target", func(c *config.Config) { c.Target = "" }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"negative timeout", func(c *config.Config) { c.Serving.ShutdownTimeout = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}
