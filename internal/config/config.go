// Package config holds the compiler and evaluator's tunable knobs, loaded
// from YAML with defaults matching spec.md, in the plain-struct-with-
// documented-fields style of fluent-jit's CompilerCfg/TunerCfg.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hantei/internal/optimizer"
)

// OptimizerConfig controls the fixed-point rewrite pipeline (spec §4.3).
type OptimizerConfig struct {
	// PassCap bounds the number of full pipeline sweeps before giving up on
	// reaching a fixed point (spec §4.3: "cap at e.g. 16 iterations").
	PassCap int `yaml:"pass_cap"`
}

// EvaluatorConfig controls the cross-product arbitration driver (spec
// §4.6-4.7).
type EvaluatorConfig struct {
	// Backend selects which execution engine Evaluate uses: "bytecode" (the
	// register VM) or "interpreter" (the direct tree walker). Both must
	// agree on every (recipe, data) pair (spec §8, backend parity).
	Backend string `yaml:"backend"`
	// RegisterBudget caps the register count a single compiled path may
	// use; zero means unbounded (spec §7: backend error "register budget
	// exceeded").
	RegisterBudget int `yaml:"register_budget"`
}

// Config is the top-level configuration document.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
}

// BackendBytecode and BackendInterpreter are the two recognized
// EvaluatorConfig.Backend values.
const (
	BackendBytecode    = "bytecode"
	BackendInterpreter = "interpreter"
)

// Default returns the configuration spec.md's defaults describe: the
// fixed-point pass cap of 16, the bytecode backend, and no register budget.
func Default() Config {
	return Config{
		Optimizer: OptimizerConfig{PassCap: optimizer.DefaultPassCap},
		Evaluator: EvaluatorConfig{Backend: BackendBytecode, RegisterBudget: 0},
	}
}

// Load reads and parses a YAML configuration file, filling in Default()'s
// values for anything the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration with an unrecognized backend or a
// non-positive pass cap.
func (c Config) Validate() error {
	if c.Optimizer.PassCap <= 0 {
		return fmt.Errorf("config: optimizer.pass_cap must be positive, got %d", c.Optimizer.PassCap)
	}
	switch c.Evaluator.Backend {
	case BackendBytecode, BackendInterpreter:
	default:
		return fmt.Errorf("config: evaluator.backend must be %q or %q, got %q", BackendBytecode, BackendInterpreter, c.Evaluator.Backend)
	}
	if c.Evaluator.RegisterBudget < 0 {
		return fmt.Errorf("config: evaluator.register_budget must be non-negative, got %d", c.Evaluator.RegisterBudget)
	}
	return nil
}
