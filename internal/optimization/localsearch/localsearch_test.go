package localsearch

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/acceptor"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
	"github.com/copyleftdev/tundr-planner/internal/optimization/selector"
	"github.com/copyleftdev/tundr-planner/internal/problems"
)

// cloudProblem starts with every process on the first computer, so almost
// any move off it improves the hard score.
func cloudProblem() (*problems.CloudBalance, Problem) {
	cb := problems.NewCloudBalance(4, 12, 7)
	first := cb.Solution.ObjectsOf(cb.Computer)[0]
	for _, p := range cb.Solution.ObjectsOf(cb.Process) {
		cb.Solution.SetRef(p, cb.Assigned, first)
	}
	return cb, Problem{Model: cb.Model, Solution: cb.Solution, Calculator: cb.Calculator()}
}

func steps(n int) TerminationConfig { return TerminationConfig{StepCountLimit: n} }

// budget limits steps and, in case the search gets stuck inside a step,
// wall time.
func budget(n int) TerminationConfig {
	return TerminationConfig{StepCountLimit: n, TimeSpentLimit: 20 * time.Second}
}

func TestSolve_ImprovesAndReportsBest(t *testing.T) {
	cb, p := cloudProblem()
	var events []BestSolutionEvent
	s, err := NewSolver(Config{
		RandomSeed:  3,
		Termination: budget(300),
		Phases:      []PhaseConfig{{Acceptor: acceptor.Config{LateAcceptanceSize: 20}}},
	},
		WithLogger(zaptest.NewLogger(t)),
		WithRunID("run-1"),
		OnBestSolutionChanged(func(e BestSolutionEvent) { events = append(events, e) }),
	)
	require.NoError(t, err)

	before := domain.Fingerprint(cb.Solution)
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, before, domain.Fingerprint(cb.Solution), "the input solution is not mutated")
	assert.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Phases, 1)
	assert.Equal(t, ReasonTerminated, res.Phases[0].Reason)
	assert.Positive(t, res.Phases[0].Steps)
	assert.LessOrEqual(t, res.Phases[0].Steps, 300)
	assert.Len(t, res.Phases[0].MeanStepDelta, 2)
	assert.True(t, res.BestScore.AtLeast(res.StartingScore))
	assert.Equal(t, cb.Evaluate(res.BestSolution), res.BestScore)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, res.BestScore, last.Score)
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, cb.Evaluate(last.Solution), last.Score)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i].Score.Better(events[i-1].Score))
	}

	best, bestScore := s.BestSolution()
	assert.Equal(t, res.BestScore, bestScore)
	assert.Equal(t, domain.Fingerprint(res.BestSolution), domain.Fingerprint(best))
}

func TestSolve_Reproducible(t *testing.T) {
	run := func(seed int64) []string {
		_, p := cloudProblem()
		var trail []string
		s, err := NewSolver(Config{
			RandomSeed:  seed,
			Termination: budget(150),
			Phases:      []PhaseConfig{{Acceptor: acceptor.Config{SimulatedAnnealingStartingTemperature: "0hard/50soft"}}},
		}, OnBestSolutionChanged(func(e BestSolutionEvent) {
			trail = append(trail, e.Score.String())
		}))
		require.NoError(t, err)
		res, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		return append(trail, res.Phases[0].EndingScore.String())
	}
	assert.Equal(t, run(11), run(11))
}

func TestSolve_AssertedModes(t *testing.T) {
	cb := problems.NewCloudBalance(3, 8, 2)
	routing := problems.NewRouting(2, 6, 5)
	visits := problems.NewVisitScheduling(2, 7, 9)

	tests := []struct {
		name    string
		problem Problem
	}{
		{"basic", Problem{Model: cb.Model, Solution: cb.Solution, Calculator: cb.Calculator()}},
		{"chained", Problem{Model: routing.Model, Solution: routing.Solution, Calculator: routing.Calculator()}},
		{"list", Problem{
			Model:           visits.Model,
			Solution:        visits.Solution,
			Calculator:      visits.Calculator(),
			DirectorOptions: []director.Option{director.WithCustomListener(visits.Arrival, visits.ArrivalListener())},
		}},
	}
	for _, tt := range tests {
		for _, mode := range []optimization.EnvironmentMode{optimization.NonIntrusiveFullAssert, optimization.FullAssert} {
			t.Run(tt.name+"/"+string(mode), func(t *testing.T) {
				s, err := NewSolver(Config{
					RandomSeed:      1,
					EnvironmentMode: mode,
					Termination:     budget(60),
					Phases: []PhaseConfig{{
						Acceptor: acceptor.Config{LateAcceptanceSize: 5},
						Forager:  ForagerConfig{AcceptedCountLimit: 4},
					}},
				})
				require.NoError(t, err)
				res, err := s.Solve(context.Background(), tt.problem)
				require.NoError(t, err)
				assert.Positive(t, res.Phases[0].Steps)
			})
		}
	}
}

// corrupt changes a process's computer and returns an undo that does
// nothing.
type corrupt struct {
	cb      *problems.CloudBalance
	process domain.ID
	target  domain.ID
}

func (m corrupt) IsDoable(*director.ScoreDirector) bool { return true }
func (m corrupt) Do(sd *director.ScoreDirector) move.Move {
	sd.ChangeVariable(m.process, m.cb.Assigned, m.target)
	return nothing{}
}
func (m corrupt) PlanningEntities() []domain.ID { return []domain.ID{m.process} }
func (m corrupt) PlanningValues() []domain.ID   { return []domain.ID{m.target} }
func (m corrupt) Key() string                   { return "corrupt" }
func (m corrupt) String() string                { return "corrupt" }

type nothing struct{}

func (nothing) IsDoable(*director.ScoreDirector) bool { return true }
func (nothing) Do(*director.ScoreDirector) move.Move  { return nothing{} }
func (nothing) PlanningEntities() []domain.ID         { return nil }
func (nothing) PlanningValues() []domain.ID           { return nil }
func (nothing) Key() string                           { return "nothing" }
func (nothing) String() string                        { return "nothing" }

func TestSolve_UndoCorruption(t *testing.T) {
	cb, p := cloudProblem()
	processes := cb.Solution.ObjectsOf(cb.Process)
	computers := cb.Solution.ObjectsOf(cb.Computer)
	target := computers[0]
	if cb.Solution.Ref(processes[0], cb.Assigned) == target {
		target = computers[1]
	}
	bad := corrupt{cb: cb, process: processes[0], target: target}

	s, err := NewSolver(Config{EnvironmentMode: optimization.FullAssert, Termination: steps(5)},
		WithSelectorFactory(func(*domain.Model, selector.SelectionOrder) (selector.MoveSelector, error) {
			return selector.Fixed[move.Move](bad), nil
		}))
	require.NoError(t, err)
	_, err = s.Solve(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndoCorruption)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestSolve_NoMoveAccepted(t *testing.T) {
	_, p := cloudProblem()
	s, err := NewSolver(Config{Termination: steps(10)},
		WithSelectorFactory(func(*domain.Model, selector.SelectionOrder) (selector.MoveSelector, error) {
			return selector.Fixed[move.Move](), nil
		}))
	require.NoError(t, err)
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoMoveAccepted, res.Phases[0].Reason)
	assert.Equal(t, 0, res.Phases[0].Steps)
	assert.Equal(t, res.StartingScore, res.BestScore)
}

func TestSolve_CachedListMoves(t *testing.T) {
	tests := []struct {
		name      string
		cacheType selector.CacheType
		wantErr   error
	}{
		{"step cache", selector.StepCache, nil},
		{"phase cache", selector.PhaseCache, selector.ErrIllegalCacheType},
		{"solver cache", selector.SolverCache, selector.ErrIllegalCacheType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := problems.NewVisitScheduling(2, 6, 3)
			s, err := NewSolver(Config{
				RandomSeed:      4,
				EnvironmentMode: optimization.FullAssert,
				Termination:     budget(40),
				Phases:          []PhaseConfig{{Acceptor: acceptor.Config{LateAcceptanceSize: 5}}},
			}, WithSelectorFactory(func(*domain.Model, selector.SelectionOrder) (selector.MoveSelector, error) {
				return selector.NewCachingSelector[move.Move](
					selector.NewListChangeMoveSelector(vs.Visits, selector.Original, false), tt.cacheType, selector.Original)
			}))
			require.NoError(t, err)

			res, err := s.Solve(context.Background(), Problem{
				Model:           vs.Model,
				Solution:        vs.Solution,
				Calculator:      vs.Calculator(),
				DirectorOptions: []director.Option{director.WithCustomListener(vs.Arrival, vs.ArrivalListener())},
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Positive(t, res.Phases[0].Steps)
			assert.Equal(t, vs.Evaluate(res.BestSolution), res.BestScore)
		})
	}
}

func TestSolve_Cancelled(t *testing.T) {
	_, p := cloudProblem()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var s *Solver
	s, err := NewSolver(Config{
		Termination: TerminationConfig{TimeSpentLimit: time.Hour, StepCountLimit: 5000},
		Phases:      []PhaseConfig{{}, {}},
	}, OnBestSolutionChanged(func(BestSolutionEvent) { s.Stop() }))
	require.NoError(t, err)

	res, err := s.Solve(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.Cancelled())
	assert.Len(t, res.Phases, 1, "later phases do not run")
	assert.True(t, res.BestScore.Better(res.StartingScore))
}

func TestSolve_Multiphase(t *testing.T) {
	_, p := cloudProblem()
	s, err := NewSolver(Config{
		Termination: steps(20),
		Phases: []PhaseConfig{
			{Acceptor: acceptor.Config{ValueTabuSize: 1}},
			{Acceptor: acceptor.Config{LateAcceptanceSize: 10}, Termination: budget(30)},
			{SelectionOrder: "original", Termination: TerminationConfig{UnimprovedStepCountLimit: 5, StepCountLimit: 40}},
		},
	}, WithTracer(noop.NewTracerProvider().Tracer("test")))
	require.NoError(t, err)
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Phases, 3)
	assert.Equal(t, 20, res.Phases[0].Steps)
	assert.LessOrEqual(t, res.Phases[1].Steps, 30)
	assert.Equal(t, res.Phases[1].EndingScore, res.Phases[2].StartingScore)
	assert.LessOrEqual(t, res.Phases[2].Steps, 40)
}

func TestSolver_RejectsConcurrentSolve(t *testing.T) {
	_, p := cloudProblem()
	var s *Solver
	var nested error
	s, err := NewSolver(Config{Termination: budget(50)}, OnBestSolutionChanged(func(BestSolutionEvent) {
		_, nested = s.Solve(context.Background(), p)
	}))
	require.NoError(t, err)
	_, err = s.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrSolving)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid", Config{Termination: steps(1)}, nil},
		{"no termination", Config{}, ErrNoTermination},
		{"phase without termination", Config{Phases: []PhaseConfig{{Termination: steps(1)}, {}}}, ErrNoTermination},
		{"negative limit", Config{Termination: TerminationConfig{StepCountLimit: -1}}, ErrIllegalTermination},
		{"bad composition", Config{Termination: TerminationConfig{StepCountLimit: 1, Composition: "xor"}}, ErrIllegalTermination},
		{"bad order", Config{Termination: steps(1), Phases: []PhaseConfig{{SelectionOrder: "sorted"}}}, ErrIllegalForager},
		{"negative accepted limit", Config{Termination: steps(1), Phases: []PhaseConfig{{Forager: ForagerConfig{AcceptedCountLimit: -1}}}}, ErrIllegalForager},
		{"bad pick early", Config{Termination: steps(1), Phases: []PhaseConfig{{Forager: ForagerConfig{PickEarlyType: "eventually"}}}}, ErrIllegalForager},
		{"bad acceptor", Config{Termination: steps(1), Phases: []PhaseConfig{{Acceptor: acceptor.Config{LateAcceptanceSize: -3}}}}, acceptor.ErrIllegalSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewSolver(Config{EnvironmentMode: "paranoid", Termination: steps(1)})
	assert.Error(t, err)
}

func TestPhaseConfig_AcceptedCountLimit(t *testing.T) {
	tests := []struct {
		name string
		cfg  PhaseConfig
		want int
	}{
		{"random default", PhaseConfig{}, DefaultAcceptedCountLimit},
		{"random with tabu", PhaseConfig{Acceptor: acceptor.Config{EntityTabuSize: 3}}, DefaultTabuAcceptedCountLimit},
		{"original", PhaseConfig{SelectionOrder: "original"}, 0},
		{"explicit", PhaseConfig{Forager: ForagerConfig{AcceptedCountLimit: 12}}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.acceptedCountLimit())
		})
	}
}

func TestNewPhase_NeverEndingNeedsLimit(t *testing.T) {
	cb := problems.NewCloudBalance(2, 3, 1)
	sel, err := selector.Default(cb.Model, selector.Random)
	require.NoError(t, err)
	_, err = NewPhase(sel, acceptor.NewHillClimbing(), NewForager(0, PickEarlyNever), StepCount{Limit: 1})
	assert.ErrorIs(t, err, ErrIllegalForager)
	_, err = NewPhase(sel, acceptor.NewHillClimbing(), NewForager(1, PickEarlyNever), nil)
	assert.ErrorIs(t, err, ErrNoTermination)
}

// orderCheck records, at every StepEnded, which step the phase still
// reports as last completed.
type orderCheck struct {
	acceptor.HillClimbing
	seen [][2]int
}

func (o *orderCheck) StepEnded(st *scope.Step) {
	o.seen = append(o.seen, [2]int{st.Index, st.Phase.LastCompletedStep.Index})
}

func TestDecider_StepEndedBeforeLastCompletedStepMoves(t *testing.T) {
	cb := problems.NewCloudBalance(3, 6, 4)
	sd, err := director.New(cb.Model, cb.Calculator())
	require.NoError(t, err)
	require.NoError(t, sd.SetWorkingSolution(cb.Solution))
	sel, err := selector.Default(cb.Model, selector.Original)
	require.NoError(t, err)

	check := &orderCheck{}
	ph, err := NewPhase(sel, check, NewForager(0, PickEarlyNever), StepCount{Limit: 3})
	require.NoError(t, err)
	d := &decider{Phase: ph, logger: zaptest.NewLogger(t), tracer: noop.NewTracerProvider().Tracer("test")}

	sc := scope.NewSolver("test", sd, rand.New(rand.NewSource(0)), optimization.Reproducible, nil)
	sc.BestScore, err = sd.CalculateScore()
	require.NoError(t, err)
	require.NoError(t, ph.listeners().SolvingStarted(sc))
	res, err := d.run(context.Background(), sc, 0)
	require.NoError(t, err)
	ph.listeners().SolvingEnded(sc)

	require.Equal(t, res.Steps, len(check.seen))
	for _, s := range check.seen {
		assert.Equal(t, s[0]-1, s[1])
	}
}

func TestForager(t *testing.T) {
	sd := func() *director.ScoreDirector {
		cb := problems.NewCloudBalance(2, 2, 1)
		d, err := director.New(cb.Model, cb.Calculator())
		require.NoError(t, err)
		return d
	}()
	sc := scope.NewSolver("test", sd, rand.New(rand.NewSource(5)), optimization.Reproducible, nil)
	sc.BestScore = score.Simple(-10)
	p := scope.NewPhase(sc, 0, score.Simple(-20))

	candidate := func(st *scope.Step, s int64, accepted bool) *scope.MoveScope {
		return &scope.MoveScope{Step: st, Move: nothing{}, Score: score.Simple(s), Accepted: accepted}
	}

	t.Run("highest accepted score wins", func(t *testing.T) {
		f := NewForager(0, PickEarlyNever)
		st := scope.NewStep(p)
		require.NoError(t, f.StepStarted(st))
		f.AddMove(candidate(st, -15, true))
		f.AddMove(candidate(st, -12, false))
		best := candidate(st, -13, true)
		f.AddMove(best)
		f.AddMove(candidate(st, -18, true))
		assert.False(t, f.IsQuitEarly())
		assert.Same(t, best, f.PickMove(st))
		assert.Equal(t, int64(4), st.SelectedMoveCount)
		assert.Equal(t, int64(3), st.AcceptedMoveCount)
	})

	t.Run("accepted count limit", func(t *testing.T) {
		f := NewForager(2, PickEarlyNever)
		st := scope.NewStep(p)
		require.NoError(t, f.StepStarted(st))
		f.AddMove(candidate(st, -15, true))
		assert.False(t, f.IsQuitEarly())
		f.AddMove(candidate(st, -16, false))
		assert.False(t, f.IsQuitEarly())
		f.AddMove(candidate(st, -16, true))
		assert.True(t, f.IsQuitEarly())
	})

	t.Run("nothing accepted", func(t *testing.T) {
		f := NewForager(0, PickEarlyNever)
		st := scope.NewStep(p)
		require.NoError(t, f.StepStarted(st))
		f.AddMove(candidate(st, -1, false))
		assert.Nil(t, f.PickMove(st))
	})

	t.Run("pick early", func(t *testing.T) {
		tests := []struct {
			pick PickEarlyType
			// scores of accepted moves; the early pick is the index of want.
			scores []int64
			want   int
		}{
			{PickEarlyFirstBestScoreImproving, []int64{-19, -15, -9, -5}, 2},
			{PickEarlyFirstLastStepScoreImproving, []int64{-25, -19, -9}, 1},
		}
		for _, tt := range tests {
			f := NewForager(0, tt.pick)
			st := scope.NewStep(p)
			require.NoError(t, f.StepStarted(st))
			var moves []*scope.MoveScope
			for _, s := range tt.scores {
				ms := candidate(st, s, true)
				moves = append(moves, ms)
				f.AddMove(ms)
				if f.IsQuitEarly() {
					break
				}
			}
			assert.Len(t, moves, tt.want+1, string(tt.pick))
			assert.Same(t, moves[tt.want], f.PickMove(st), string(tt.pick))
		}
	})

	t.Run("ties are broken at random", func(t *testing.T) {
		first := 0
		for i := 0; i < 200; i++ {
			f := NewForager(0, PickEarlyNever)
			st := scope.NewStep(p)
			require.NoError(t, f.StepStarted(st))
			a, b := candidate(st, -11, true), candidate(st, -11, true)
			f.AddMove(a)
			f.AddMove(b)
			if f.PickMove(st) == a {
				first++
			}
		}
		assert.InDelta(t, 100, first, 30)
	})
}

func TestTerminations(t *testing.T) {
	cb := problems.NewCloudBalance(2, 2, 1)
	sd, err := director.New(cb.Model, cb.Calculator())
	require.NoError(t, err)
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	sc := scope.NewSolver("test", sd, rand.New(rand.NewSource(0)), optimization.Reproducible, clock)
	sc.BestScore = score.HardSoft(0, -100)
	p := scope.NewPhase(sc, 0, score.HardSoft(-4, -200))

	// Six completed steps, the best found at step 2.
	p.LastCompletedStep = &scope.Step{Phase: p, Index: 5, Score: score.HardSoft(0, -120)}
	p.BestSolutionStepIndex = 2
	now = now.Add(30 * time.Second)

	tests := []struct {
		name       string
		term       Termination
		terminated bool
		gradient   float64
	}{
		{"step count reached", StepCount{Limit: 6}, true, 1},
		{"step count pending", StepCount{Limit: 12}, false, 0.5},
		{"time spent pending", TimeSpent{Limit: time.Minute}, false, 0.5},
		{"time spent reached", TimeSpent{Limit: 30 * time.Second}, true, 1},
		{"unimproved reached", UnimprovedStepCount{Limit: 3}, true, 1},
		{"unimproved pending", UnimprovedStepCount{Limit: 6}, false, 0.5},
		{"best score reached", BestScoreLimit{Limit: score.HardSoft(0, -100)}, true, 1},
		{"best score pending", BestScoreLimit{Limit: score.HardSoft(0, 0)}, false, 0.5},
		{"or", Or{StepCount{Limit: 12}, TimeSpent{Limit: 30 * time.Second}}, true, 1},
		{"and", And{StepCount{Limit: 12}, TimeSpent{Limit: 30 * time.Second}}, false, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminated, tt.term.IsTerminated(p))
			assert.InDelta(t, tt.gradient, tt.term.TimeGradient(p), 1e-9)
		})
	}
}

func TestTerminationConfig_Build(t *testing.T) {
	term, err := TerminationConfig{}.Build()
	require.NoError(t, err)
	assert.Nil(t, term)

	term, err = steps(5).Build()
	require.NoError(t, err)
	assert.Equal(t, StepCount{Limit: 5}, term)

	term, err = TerminationConfig{StepCountLimit: 5, BestScoreLimit: "0hard/0soft", Composition: "and"}.Build()
	require.NoError(t, err)
	assert.Equal(t, And{StepCount{Limit: 5}, BestScoreLimit{Limit: score.HardSoft(0, 0)}}, term)

	_, err = TerminationConfig{BestScoreLimit: "perfect"}.Build()
	assert.Error(t, err)
}
