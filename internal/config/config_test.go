package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/acceptor"
	"github.com/copyleftdev/tundr-planner/internal/optimization/localsearch"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ProblemCloud, cfg.Smoke.Problem)

	ls := cfg.LocalSearch()
	assert.Equal(t, optimization.Reproducible, ls.EnvironmentMode)
	assert.Equal(t, 30*time.Second, ls.Termination.TimeSpentLimit)
	require.Len(t, ls.Phases, 1)
	assert.Equal(t, "random", ls.Phases[0].SelectionOrder)
	assert.Equal(t, []string{acceptor.TypeHillClimbing}, ls.Phases[0].Acceptor.ResolvedTypes())
}

func TestLoadFrom_Environment(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HTTP_PORT":                     "9090",
		"SOLVER_RANDOM_SEED":            "42",
		"SOLVER_ENVIRONMENT_MODE":       "full_assert",
		"SOLVER_STEP_COUNT_LIMIT":       "500",
		"SOLVER_BEST_SCORE_LIMIT":       "0hard/-100soft",
		"ACCEPTOR_TYPES":                "late_acceptance,entity_tabu",
		"ACCEPTOR_LATE_ACCEPTANCE_SIZE": "50",
		"ACCEPTOR_ENTITY_TABU_RATIO":    "0.2",
		"FORAGER_ACCEPTED_COUNT_LIMIT":  "3",
		"FORAGER_PICK_EARLY_TYPE":       "first_best_score_improving",
		"SMOKE_PROBLEM":                 "routing",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, ProblemRouting, cfg.Smoke.Problem)

	ls := cfg.LocalSearch()
	assert.Equal(t, int64(42), ls.RandomSeed)
	assert.Equal(t, optimization.FullAssert, ls.EnvironmentMode)
	assert.Equal(t, 500, ls.Termination.StepCountLimit)
	assert.Equal(t, "0hard/-100soft", ls.Termination.BestScoreLimit)

	ph := ls.Phases[0]
	assert.Equal(t, []string{acceptor.TypeLateAcceptance, acceptor.TypeEntityTabu}, ph.Acceptor.Types)
	assert.Equal(t, 50, ph.Acceptor.LateAcceptanceSize)
	assert.InDelta(t, 0.2, ph.Acceptor.EntityTabuRatio, 1e-12)
	assert.Equal(t, 3, ph.Forager.AcceptedCountLimit)
	assert.Equal(t, localsearch.PickEarlyFirstBestScoreImproving, ph.Forager.PickEarlyType)
}

func TestLoadFrom_FileUnderEnvironment(t *testing.T) {
	path := writeFile(t, `
environment: production
http:
  port: 7000
  read_timeout: 5s
logging:
  level: warn
solver:
  random_seed: 7
  step_count_limit: 1000
acceptor:
  simulated_annealing_starting_temperature: 0hard/10soft
smoke:
  problem: visits
  size: 3
  entities: 12
`)
	cfg, err := LoadFrom(map[string]string{
		FileVariable:              path,
		"HTTP_PORT":               "7001",
		"SOLVER_STEP_COUNT_LIMIT": "20",
	})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 7001, cfg.HTTP.Port, "the environment wins over the file")
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.HTTP.IdleTimeout, "unset keys keep their defaults")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, int64(7), cfg.Solver.RandomSeed)
	assert.Equal(t, 20, cfg.Solver.StepCountLimit)
	assert.Equal(t, "0hard/10soft", cfg.Acceptor.SimulatedAnnealingStartingTemperature)
	assert.Equal(t, ProblemVisits, cfg.Smoke.Problem)
	assert.Equal(t, 12, cfg.Smoke.Entities)
}

func TestLoadFrom_EmptyFile(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{FileVariable: writeFile(t, "")})
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		file    string
		target  error
	}{
		{name: "unparseable port", environ: map[string]string{"HTTP_PORT": "eighty"}},
		{name: "port out of range", environ: map[string]string{"HTTP_PORT": "70000"}},
		{name: "unknown log level", environ: map[string]string{"LOG_LEVEL": "chatty"}},
		{name: "unknown smoke problem", environ: map[string]string{"SMOKE_PROBLEM": "sudoku"}},
		{name: "no smoke entities", environ: map[string]string{"SMOKE_ENTITIES": "0"}},
		{name: "unknown environment mode", environ: map[string]string{"SOLVER_ENVIRONMENT_MODE": "paranoid"}},
		{name: "unknown acceptor", environ: map[string]string{"ACCEPTOR_TYPES": "greedy"}, target: acceptor.ErrIllegalParameter},
		{name: "tabu size and ratio", environ: map[string]string{
			"ACCEPTOR_VALUE_TABU_SIZE":  "3",
			"ACCEPTOR_VALUE_TABU_RATIO": "0.1",
		}, target: acceptor.ErrIllegalSize},
		{name: "no termination", environ: map[string]string{"SOLVER_TIME_SPENT_LIMIT": "0s"}, target: localsearch.ErrNoTermination},
		{name: "negative limit", environ: map[string]string{"SOLVER_STEP_COUNT_LIMIT": "-1"}, target: localsearch.ErrIllegalTermination},
		{name: "unknown pick early", environ: map[string]string{"FORAGER_PICK_EARLY_TYPE": "sometimes"}, target: localsearch.ErrIllegalForager},
		{name: "missing file", environ: map[string]string{FileVariable: "/nonexistent/planner.yaml"}},
		{name: "unknown file key", file: "solver:\n  patience: 3\n"},
		{name: "malformed file", file: "http: [port\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := tt.environ
			if environ == nil {
				environ = map[string]string{}
			}
			if tt.file != "" {
				environ[FileVariable] = writeFile(t, tt.file)
			}
			cfg, err := LoadFrom(environ)
			require.Error(t, err)
			assert.Nil(t, cfg)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}
