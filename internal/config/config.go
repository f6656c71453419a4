// Package config loads the planner's settings from the environment, with an
// optional YAML file underneath.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	perrors "github.com/copyleftdev/tundr-planner/internal/errors"
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/acceptor"
	"github.com/copyleftdev/tundr-planner/internal/optimization/localsearch"
)

// FileVariable names the environment variable that points at a YAML file.
// Values from the file are applied before the environment, so explicitly
// set variables win.
const FileVariable = "PLANNER_CONFIG_FILE"

// Smoke problem names.
const (
	ProblemCloud   = "cloud"
	ProblemRouting = "routing"
	ProblemVisits  = "visits"
)

type Config struct {
	Environment string `env:"ENV" yaml:"environment"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" yaml:"port"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" yaml:"read_timeout"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" yaml:"write_timeout"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Logging struct {
		Level  string `env:"LOG_LEVEL" yaml:"level"`
		Format string `env:"LOG_FORMAT" yaml:"format"`
		Output string `env:"LOG_OUTPUT" yaml:"output"`
	} `yaml:"logging"`
	Solver struct {
		RandomSeed      int64  `env:"SOLVER_RANDOM_SEED" yaml:"random_seed"`
		EnvironmentMode string `env:"SOLVER_ENVIRONMENT_MODE" yaml:"environment_mode"`
		// SelectionOrder is "random" or "original".
		SelectionOrder           string        `env:"SOLVER_SELECTION_ORDER" yaml:"selection_order"`
		StepCountLimit           int           `env:"SOLVER_STEP_COUNT_LIMIT" yaml:"step_count_limit"`
		TimeSpentLimit           time.Duration `env:"SOLVER_TIME_SPENT_LIMIT" yaml:"time_spent_limit"`
		UnimprovedStepCountLimit int           `env:"SOLVER_UNIMPROVED_STEP_COUNT_LIMIT" yaml:"unimproved_step_count_limit"`
		BestScoreLimit           string        `env:"SOLVER_BEST_SCORE_LIMIT" yaml:"best_score_limit"`
	} `yaml:"solver"`
	Acceptor acceptor.Config           `envPrefix:"ACCEPTOR_" yaml:"acceptor"`
	Forager  localsearch.ForagerConfig `envPrefix:"FORAGER_" yaml:"forager"`
	// Smoke selects the generated problem cmd/planner solves.
	Smoke struct {
		Problem string `env:"SMOKE_PROBLEM" yaml:"problem"`
		// Size is the number of value objects: computers, vehicles or
		// workers. Entities is the number of processes or customers.
		Size     int   `env:"SMOKE_SIZE" yaml:"size"`
		Entities int   `env:"SMOKE_ENTITIES" yaml:"entities"`
		Seed     int64 `env:"SMOKE_SEED" yaml:"seed"`
		// ExitWhenDone stops the process once the solve ends instead of
		// serving its result until interrupted.
		ExitWhenDone bool `env:"SMOKE_EXIT_WHEN_DONE" yaml:"exit_when_done"`
	} `yaml:"smoke"`
}

// Default returns the settings used for everything neither the file nor the
// environment sets.
func Default() *Config {
	cfg := &Config{Environment: "development"}
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Solver.EnvironmentMode = string(optimization.Reproducible)
	cfg.Solver.SelectionOrder = "random"
	cfg.Solver.TimeSpentLimit = 30 * time.Second
	cfg.Smoke.Problem = ProblemCloud
	cfg.Smoke.Size = 10
	cfg.Smoke.Entities = 40
	cfg.Smoke.Seed = 1
	return cfg
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom builds the configuration from defaults, the YAML file named by
// FileVariable and then the given environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := Default()
	if path := environ[FileVariable]; path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, perrors.Wrap(err, "parse environment").WithComponent("config").WithOperation("Load")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return perrors.Wrapf(err, "read %s", path).WithComponent("config").WithOperation("Load")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return perrors.Wrapf(err, "decode %s", path).WithComponent("config").WithOperation("Load")
	}
	return nil
}

// Validate checks every section, including the solver configuration
// LocalSearch would build.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return perrors.Errorf("http port %d out of range", c.HTTP.Port).WithComponent("config").WithOperation("Validate")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return perrors.Errorf("unknown log level %q", c.Logging.Level).WithComponent("config").WithOperation("Validate")
	}
	switch c.Smoke.Problem {
	case ProblemCloud, ProblemRouting, ProblemVisits:
	default:
		return perrors.Errorf("unknown smoke problem %q", c.Smoke.Problem).WithComponent("config").WithOperation("Validate")
	}
	if c.Smoke.Size <= 0 || c.Smoke.Entities <= 0 {
		return perrors.Errorf("smoke problem sizes must be positive").WithComponent("config").WithOperation("Validate")
	}
	ls := c.LocalSearch()
	return ls.Validate()
}

// LocalSearch builds a single phase solver configuration from the Solver,
// Acceptor and Forager sections.
func (c *Config) LocalSearch() localsearch.Config {
	return localsearch.Config{
		RandomSeed:      c.Solver.RandomSeed,
		EnvironmentMode: optimization.EnvironmentMode(c.Solver.EnvironmentMode),
		Termination: localsearch.TerminationConfig{
			StepCountLimit:           c.Solver.StepCountLimit,
			TimeSpentLimit:           c.Solver.TimeSpentLimit,
			UnimprovedStepCountLimit: c.Solver.UnimprovedStepCountLimit,
			BestScoreLimit:           c.Solver.BestScoreLimit,
		},
		Phases: []localsearch.PhaseConfig{{
			SelectionOrder: c.Solver.SelectionOrder,
			Acceptor:       c.Acceptor,
			Forager:        c.Forager,
		}},
	}
}
