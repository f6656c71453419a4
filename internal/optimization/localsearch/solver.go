// Package localsearch runs local search phases over a working solution: each
// step scores the candidates of a move selector, lets an acceptor filter
// them, lets a forager pick one and applies it, while the best solution seen
// so far is kept as a deep clone.
package localsearch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/acceptor"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
	"github.com/copyleftdev/tundr-planner/internal/optimization/selector"
)

var (
	// ErrUndoCorruption is returned in the asserting modes when undoing a
	// move does not restore the solution it was applied to.
	ErrUndoCorruption = errors.New("undo move corrupted the working solution")
	// ErrScoreCorruption is returned in the asserting modes when an
	// incremental score differs from the score calculated from scratch.
	ErrScoreCorruption = errors.New("incremental score corruption")
	// ErrNoTermination is returned for a phase that could never end.
	ErrNoTermination = errors.New("phase has no termination")
	// ErrIllegalForager is returned for a forager that cannot work with its
	// move selector.
	ErrIllegalForager = errors.New("illegal forager configuration")
	// ErrIllegalTermination is returned for negative or unknown limits.
	ErrIllegalTermination = errors.New("illegal termination configuration")
	// ErrSolving is returned when Solve is called on a solver that is
	// already solving.
	ErrSolving = errors.New("solver is already solving")
)

// Problem is the input of a solve.
type Problem struct {
	Model *domain.Model
	// Solution is the starting solution. It is cloned, never mutated.
	Solution   *domain.Solution
	Calculator director.IncrementalScoreCalculator
	// DirectorOptions register custom shadow variable listeners.
	DirectorOptions []director.Option
}

// BestSolutionEvent is published whenever a step beats the best score.
type BestSolutionEvent struct {
	RunID      string
	PhaseIndex int
	StepIndex  int
	Score      score.Score
	// Solution is a deep clone owned by the receiver.
	Solution *domain.Solution
	Time     time.Time
}

// Result is the outcome of a solve.
type Result struct {
	RunID         string
	StartingScore score.Score
	BestScore     score.Score
	BestSolution  *domain.Solution
	Phases        []PhaseResult
	Duration      time.Duration
}

// Cancelled reports whether a phase stopped because the solve was
// cancelled.
func (r *Result) Cancelled() bool {
	for _, p := range r.Phases {
		if p.Reason == ReasonCancelled {
			return true
		}
	}
	return false
}

// SelectorFactory builds the move selector of a phase.
type SelectorFactory func(m *domain.Model, order selector.SelectionOrder) (selector.MoveSelector, error)

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// WithRunID sets the run identifier instead of a random UUID.
func WithRunID(id string) Option {
	return func(s *Solver) { s.runID = id }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Solver) { s.now = now }
}

// WithTracer sets the tracer. The default is the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(s *Solver) { s.tracer = t }
}

// WithSelectorFactory replaces selector.Default for every phase.
func WithSelectorFactory(f SelectorFactory) Option {
	return func(s *Solver) { s.selectors = f }
}

// OnBestSolutionChanged registers a callback for improvements. Callbacks
// run on the solving goroutine and must not block.
func OnBestSolutionChanged(f func(BestSolutionEvent)) Option {
	return func(s *Solver) { s.listeners = append(s.listeners, f) }
}

// Solver runs the configured phases on a problem. One solve runs at a time;
// Stop and BestSolution may be called from other goroutines.
type Solver struct {
	cfg       Config
	mode      optimization.EnvironmentMode
	logger    *zap.Logger
	tracer    trace.Tracer
	runID     string
	now       func() time.Time
	selectors SelectorFactory
	listeners []func(BestSolutionEvent)

	mu        sync.Mutex
	solving   bool
	cancel    context.CancelFunc
	best      *domain.Solution
	bestScore score.Score
}

// NewSolver validates the configuration.
func NewSolver(cfg Config, opts ...Option) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := optimization.ParseEnvironmentMode(string(cfg.EnvironmentMode))
	s := &Solver{
		cfg:       cfg,
		mode:      mode,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/copyleftdev/tundr-planner/localsearch"),
		now:       time.Now,
		selectors: selector.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.logger = s.logger.With(zap.String("run_id", s.runID))
	return s, nil
}

// RunID identifies the solver's runs in logs, events and results.
func (s *Solver) RunID() string { return s.runID }

// Stop asks a running solve to finish after the current step.
func (s *Solver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// BestSolution returns a clone of the best solution found so far, or nil
// before solving started.
func (s *Solver) BestSolution() (*domain.Solution, score.Score) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.best == nil {
		return nil, score.Score{}
	}
	return s.best.Clone(), s.bestScore
}

func (s *Solver) buildPhases(model *domain.Model) ([]*decider, error) {
	var out []*decider
	for i, cfg := range s.cfg.phases() {
		order, err := cfg.order()
		if err != nil {
			return nil, err
		}
		sel, err := s.selectors(model, order)
		if err != nil {
			return nil, optimization.WrapErrorf(err, "phase %d move selector", i).
				WithComponent("localsearch").WithOperation("Solve")
		}
		acc, err := acceptor.Build(cfg.Acceptor)
		if err != nil {
			return nil, err
		}
		termCfg := cfg.Termination
		if termCfg.IsZero() {
			termCfg = s.cfg.Termination
		}
		term, err := termCfg.Build()
		if err != nil {
			return nil, err
		}
		ph, err := NewPhase(sel, acc, NewForager(cfg.acceptedCountLimit(), cfg.Forager.PickEarlyType), term)
		if err != nil {
			return nil, optimization.WrapErrorf(err, "phase %d", i).
				WithComponent("localsearch").WithOperation("Solve")
		}
		out = append(out, &decider{Phase: ph, logger: s.logger, tracer: s.tracer})
	}
	return out, nil
}

// Solve runs every phase on a clone of the problem's solution. Cancelling
// ctx or calling Stop ends the solve after the current step; the best
// solution found so far is still returned. An error means the
// configuration was illegal or an internal consistency check failed.
func (s *Solver) Solve(ctx context.Context, p Problem) (*Result, error) {
	s.mu.Lock()
	if s.solving {
		s.mu.Unlock()
		return nil, ErrSolving
	}
	s.solving = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel()
		s.cancel = nil
		s.solving = false
		s.mu.Unlock()
	}()

	ctx, span := s.tracer.Start(ctx, "localsearch.Solve", trace.WithAttributes(
		attribute.String("run.id", s.runID),
		attribute.Int64("run.seed", s.cfg.RandomSeed),
		attribute.String("run.environment_mode", s.mode.String()),
	))
	defer span.End()

	res, err := s.solve(ctx, p)
	switch {
	case err != nil:
		solvesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Solving failed", zap.Error(err))
		return res, err
	case res.Cancelled():
		solvesTotal.WithLabelValues("cancelled").Inc()
	default:
		solvesTotal.WithLabelValues("completed").Inc()
	}
	span.SetAttributes(attribute.String("run.best_score", res.BestScore.String()))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (s *Solver) solve(ctx context.Context, p Problem) (*Result, error) {
	if p.Model == nil || p.Solution == nil || p.Calculator == nil {
		return nil, optimization.NewError("problem needs a model, a solution and a score calculator").
			WithComponent("localsearch").WithOperation("Solve")
	}
	opts := append([]director.Option{director.WithLogger(s.logger)}, p.DirectorOptions...)
	sd, err := director.New(p.Model, p.Calculator, opts...)
	if err != nil {
		return nil, err
	}
	if err := sd.SetWorkingSolution(p.Solution.Clone()); err != nil {
		return nil, err
	}
	deciders, err := s.buildPhases(p.Model)
	if err != nil {
		return nil, err
	}

	sc := scope.NewSolver(s.runID, sd, rand.New(rand.NewSource(s.cfg.RandomSeed)), s.mode, s.now)
	starting, err := sd.CalculateScore()
	if err != nil {
		return nil, err
	}
	sc.StartingScore = starting
	sc.BestScore = starting
	sc.BestSolution = sd.CloneWorkingSolution()
	s.record(sc.BestSolution, starting)

	s.logger.Info("Solving started",
		zap.Stringer("starting_score", starting),
		zap.Int64("seed", s.cfg.RandomSeed),
		zap.String("environment_mode", s.mode.String()),
		zap.Int("entities", p.Solution.EntityCount()),
		zap.Int("phases", len(deciders)))

	var all scope.Listeners
	for _, d := range deciders {
		all = append(all, d.listeners()...)
		d.improved = s.improved
	}
	if err := all.SolvingStarted(sc); err != nil {
		return nil, err
	}
	defer all.SolvingEnded(sc)

	res := &Result{RunID: s.runID, StartingScore: starting}
	for i, d := range deciders {
		pr, err := d.run(ctx, sc, i)
		res.Phases = append(res.Phases, pr)
		if err != nil {
			s.fillResult(res, sc)
			return res, err
		}
		if pr.Reason == ReasonCancelled {
			break
		}
	}
	s.fillResult(res, sc)
	s.logger.Info("Solving ended",
		zap.Stringer("best_score", res.BestScore),
		zap.Duration("duration", res.Duration),
		zap.Bool("cancelled", res.Cancelled()))
	return res, nil
}

func (s *Solver) fillResult(res *Result, sc *scope.Solver) {
	res.BestScore = sc.BestScore
	res.BestSolution = sc.BestSolution.Clone()
	res.Duration = sc.Elapsed()
}

func (s *Solver) record(best *domain.Solution, sc score.Score) {
	s.mu.Lock()
	s.best = best
	s.bestScore = sc
	s.mu.Unlock()
	recordBestScore(sc.LevelFloats())
}

// improved publishes a new best solution. Each listener gets its own clone.
func (s *Solver) improved(st *scope.Step) {
	sc := st.Phase.Solver
	s.record(sc.BestSolution, sc.BestScore)
	s.logger.Debug("New best solution",
		zap.Int("phase", st.Phase.Index),
		zap.Int("step", st.Index),
		zap.Stringer("score", sc.BestScore))
	for _, l := range s.listeners {
		l(BestSolutionEvent{
			RunID:      s.runID,
			PhaseIndex: st.Phase.Index,
			StepIndex:  st.Index,
			Score:      sc.BestScore,
			Solution:   sc.BestSolution.Clone(),
			Time:       sc.Now(),
		})
	}
}
