package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/tundr-planner/internal/config"
	"github.com/copyleftdev/tundr-planner/internal/optimization/localsearch"
)

func TestSmokeProblem(t *testing.T) {
	for _, name := range []string{config.ProblemCloud, config.ProblemRouting, config.ProblemVisits} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Smoke.Problem = name
			cfg.Smoke.Size = 3
			cfg.Smoke.Entities = 9
			cfg.Solver.EnvironmentMode = "full_assert"
			cfg.Solver.StepCountLimit = 30
			cfg.Solver.TimeSpentLimit = 20 * time.Second
			require.NoError(t, cfg.Validate())

			p, err := smokeProblem(cfg)
			require.NoError(t, err)
			assert.Positive(t, p.Solution.EntityCount())

			s, err := localsearch.NewSolver(cfg.LocalSearch())
			require.NoError(t, err)
			res, err := s.Solve(context.Background(), p)
			require.NoError(t, err)
			assert.True(t, res.BestScore.AtLeast(res.StartingScore))
		})
	}

	cfg := config.Default()
	cfg.Smoke.Problem = "sudoku"
	_, err := smokeProblem(cfg)
	assert.Error(t, err)
}
