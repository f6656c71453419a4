// Command planner solves a generated fixture problem with the local search
// solver while serving health, metrics and run progress over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/tundr-planner/internal/config"
	"github.com/copyleftdev/tundr-planner/internal/logging"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/localsearch"
	"github.com/copyleftdev/tundr-planner/internal/problems"
	"github.com/copyleftdev/tundr-planner/internal/server"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "planner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	serviceLogger := logger.WithFields(map[string]interface{}{
		"service":     "tundr-planner",
		"version":     version,
		"environment": cfg.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	problem, err := smokeProblem(cfg)
	if err != nil {
		return err
	}

	runs := server.NewRuns()
	solver, err := localsearch.NewSolver(cfg.LocalSearch(),
		localsearch.WithLogger(logging.NewZapLogger(serviceLogger)),
		localsearch.OnBestSolutionChanged(runs.Observe),
	)
	if err != nil {
		return fmt.Errorf("configure solver: %w", err)
	}
	runs.Register(solver.RunID(), cfg.Smoke.Problem, solver.Stop)

	srv := server.NewServer(cfg, serviceLogger, runs)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		serviceLogger.Info("Starting server", map[string]interface{}{"address": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runs.Start(solver.RunID())
		res, err := solver.Solve(gctx, problem)
		runs.Finish(solver.RunID(), res, err)
		if err != nil {
			return fmt.Errorf("solve %s: %w", cfg.Smoke.Problem, err)
		}
		serviceLogger.Info("Solve finished", map[string]interface{}{
			"run_id":         res.RunID,
			"starting_score": res.StartingScore.String(),
			"best_score":     res.BestScore.String(),
			"feasible":       res.BestScore.IsFeasible(),
			"duration":       res.Duration.String(),
			"cancelled":      res.Cancelled(),
		})
		if cfg.Smoke.ExitWhenDone {
			cancel()
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		serviceLogger.Info("Shutting down server...")
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer done()
		_ = srv.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		serviceLogger.Error("Planner stopped with an error", map[string]interface{}{"error": err.Error()})
		return err
	}
	serviceLogger.Info("Planner exited properly")
	return nil
}

func smokeProblem(cfg *config.Config) (localsearch.Problem, error) {
	s := cfg.Smoke
	switch s.Problem {
	case config.ProblemCloud:
		cb := problems.NewCloudBalance(s.Size, s.Entities, s.Seed)
		return localsearch.Problem{Model: cb.Model, Solution: cb.Solution, Calculator: cb.Calculator()}, nil
	case config.ProblemRouting:
		r := problems.NewRouting(s.Size, s.Entities, s.Seed)
		return localsearch.Problem{Model: r.Model, Solution: r.Solution, Calculator: r.Calculator()}, nil
	case config.ProblemVisits:
		vs := problems.NewVisitScheduling(s.Size, s.Entities, s.Seed)
		return localsearch.Problem{
			Model:           vs.Model,
			Solution:        vs.Solution,
			Calculator:      vs.Calculator(),
			DirectorOptions: []director.Option{director.WithCustomListener(vs.Arrival, vs.ArrivalListener())},
		}, nil
	}
	return localsearch.Problem{}, fmt.Errorf("unknown smoke problem %q", s.Problem)
}
