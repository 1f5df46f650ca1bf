package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("sparse file keeps stock values for omitted fields", func(t *testing.T) {
		path := writeConfigFile(t, `
evaluation:
  pass_threshold: 80
defaults:
  radius_km: 250
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 80, cfg.Evaluation.PassThreshold)
		assert.Equal(t, 250.0, cfg.Defaults.RadiusKM)

		def := DefaultConfig()
		assert.Equal(t, def.Evaluation.MaxEvalPasses, cfg.Evaluation.MaxEvalPasses)
		assert.Equal(t, def.Defaults.TimespanDays, cfg.Defaults.TimespanDays)
		assert.Equal(t, def.Defaults.MinMagnitude, cfg.Defaults.MinMagnitude)
		assert.Equal(t, def.MaxRunSteps, cfg.MaxRunSteps)
	})

	t.Run("explicit zero values are honored", func(t *testing.T) {
		path := writeConfigFile(t, `
evaluation:
  pass_threshold: 0
  min_empty_explanation_len: 0
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Zero(t, cfg.Evaluation.PassThreshold, "an explicit zero is not an unset field")
		assert.Zero(t, cfg.Evaluation.MinEmptyExplanationLen)
		assert.Equal(t, DefaultConfig().Evaluation.MaxEvalPasses, cfg.Evaluation.MaxEvalPasses)
	})

	t.Run("out-of-range value is rejected", func(t *testing.T) {
		path := writeConfigFile(t, "max_run_steps: 500\n")

		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid pipeline config")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed YAML is an error", func(t *testing.T) {
		path := writeConfigFile(t, "evaluation: [not a map\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
