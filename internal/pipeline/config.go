package pipeline

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/seismiq/quakeagent/internal/domain"
)

// Config tunes the pipeline: defaulting policy, evaluation gate, and run
// bounds. Zero values are filled from DefaultConfig before validation, so
// a partial YAML file only needs the fields it changes.
type Config struct {
	// Defaults is the query defaulting policy shared by the normaliser
	// and the executor.
	Defaults domain.Defaults `yaml:"defaults"`

	Evaluation EvaluationConfig `yaml:"evaluation"`

	// MaxRunSteps bounds the orchestrator's transition loop as a defense
	// against routing bugs. The retry cap alone already guarantees
	// termination; this is a second, coarser bound.
	MaxRunSteps int `yaml:"max_run_steps" validate:"gte=1,lte=100"`

	// Temperature is passed to the completion service on every call.
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// EvaluationConfig tunes the quality gate.
type EvaluationConfig struct {
	// PassThreshold is the minimum confidence score to pass.
	PassThreshold int `yaml:"pass_threshold" validate:"gte=0,lte=100"`

	// MaxEvalPasses is the hard ceiling on evaluation passes. The gate
	// force-passes on the final pass regardless of score.
	MaxEvalPasses int `yaml:"max_eval_passes" validate:"gte=1,lte=10"`

	// MinEmptyExplanationLen is the minimum answer length required when
	// the result is empty, a proxy for explaining rather than stating the
	// failure.
	MinEmptyExplanationLen int `yaml:"min_empty_explanation_len" validate:"gte=0"`
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Defaults: domain.StandardDefaults(),
		Evaluation: EvaluationConfig{
			PassThreshold:          70,
			MaxEvalPasses:          3,
			MinEmptyExplanationLen: 80,
		},
		MaxRunSteps: 20,
		Temperature: 0.2,
	}
}

// LoadConfig reads a YAML config file and validates the result. Decoding
// starts from DefaultConfig, so fields the file omits keep their stock
// values while explicit values, zero included, are honored as written.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	return nil
}
