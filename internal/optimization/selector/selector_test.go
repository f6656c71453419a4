package selector_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/selector"
	"github.com/copyleftdev/tundr-planner/internal/problems"
)

// label is an inert move identified by its name.
type label string

func (l label) IsDoable(*director.ScoreDirector) bool { return true }
func (l label) Do(*director.ScoreDirector) move.Move  { return l }
func (l label) PlanningEntities() []domain.ID         { return nil }
func (l label) PlanningValues() []domain.ID           { return nil }
func (l label) Key() string                           { return string(l) }
func (l label) String() string                        { return string(l) }

func labels(names ...string) []move.Move {
	out := make([]move.Move, len(names))
	for i, n := range names {
		out[i] = label(n)
	}
	return out
}

// counting is a just-in-time selector that counts lifecycle events and
// iterator creations.
type counting struct {
	items     []move.Move
	iterators int
	events    map[string]int
}

func newCounting(items ...move.Move) *counting {
	return &counting{items: items, events: make(map[string]int)}
}

func (c *counting) SolvingStarted(*scope.Solver) error {
	c.events["solving_started"]++
	return nil
}

func (c *counting) PhaseStarted(*scope.Phase) error {
	c.events["phase_started"]++
	return nil
}

func (c *counting) StepStarted(*scope.Step) error {
	c.events["step_started"]++
	return nil
}

func (c *counting) StepEnded(*scope.Step)      { c.events["step_ended"]++ }
func (c *counting) PhaseEnded(*scope.Phase)    { c.events["phase_ended"]++ }
func (c *counting) SolvingEnded(*scope.Solver) { c.events["solving_ended"]++ }

func (c *counting) CacheType() selector.CacheType { return selector.JustInTime }
func (c *counting) IsCountable() bool             { return true }
func (c *counting) IsNeverEnding() bool           { return false }
func (c *counting) Size() int64                   { return int64(len(c.items)) }

func (c *counting) Iterator() selector.Iterator[move.Move] {
	c.iterators++
	return selector.SliceIterator(c.items)
}

func cloudDirector(t *testing.T) (*problems.CloudBalance, *director.ScoreDirector) {
	t.Helper()
	cb := problems.NewCloudBalance(3, 6, 4)
	sd, err := director.New(cb.Model, cb.Calculator())
	require.NoError(t, err)
	require.NoError(t, sd.SetWorkingSolution(cb.Solution))
	return cb, sd
}

// run drives a selector through a solve of phases x steps, calling visit
// once per step.
func run(t *testing.T, sd *director.ScoreDirector, seed int64, l scope.Listener, phases, steps int, visit func(st *scope.Step)) {
	t.Helper()
	initial, err := sd.CalculateScore()
	require.NoError(t, err)
	solver := scope.NewSolver("test", sd, rand.New(rand.NewSource(seed)), optimization.Reproducible, nil)
	require.NoError(t, l.SolvingStarted(solver))
	for p := 0; p < phases; p++ {
		phase := scope.NewPhase(solver, p, initial)
		require.NoError(t, l.PhaseStarted(phase))
		for s := 0; s < steps; s++ {
			st := scope.NewStep(phase)
			require.NoError(t, l.StepStarted(st))
			if visit != nil {
				visit(st)
			}
			l.StepEnded(st)
		}
		l.PhaseEnded(phase)
	}
	l.SolvingEnded(solver)
}

// inStep starts a solve, a phase and a step and returns a function ending
// them.
func inStep(t *testing.T, sd *director.ScoreDirector, seed int64, l scope.Listener) func() {
	t.Helper()
	initial, err := sd.CalculateScore()
	require.NoError(t, err)
	solver := scope.NewSolver("test", sd, rand.New(rand.NewSource(seed)), optimization.Reproducible, nil)
	require.NoError(t, l.SolvingStarted(solver))
	phase := scope.NewPhase(solver, 0, initial)
	require.NoError(t, l.PhaseStarted(phase))
	st := scope.NewStep(phase)
	require.NoError(t, l.StepStarted(st))
	return func() {
		l.StepEnded(st)
		l.PhaseEnded(phase)
		l.SolvingEnded(solver)
	}
}

func TestCachingSelector_ChildCallsMatchCacheType(t *testing.T) {
	tests := []struct {
		name      string
		cacheType selector.CacheType
		want      int
	}{
		{"solver", selector.SolverCache, 1},
		{"phase", selector.PhaseCache, 2},
		{"step", selector.StepCache, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sd := cloudDirector(t)
			child := newCounting(labels("a", "b", "c")...)
			cache, err := selector.NewCachingSelector[move.Move](child, tt.cacheType, selector.Original)
			require.NoError(t, err)

			run(t, sd, 1, cache, 2, 3, func(*scope.Step) {
				for i := 0; i < 2; i++ {
					got := selector.Collect(cache.Iterator(), -1)
					assert.Equal(t, labels("a", "b", "c"), got)
				}
				assert.Equal(t, int64(3), cache.Size())
			})

			assert.Equal(t, tt.want, child.iterators)
			assert.Equal(t, 1, child.events["solving_started"])
			assert.Equal(t, 2, child.events["phase_started"])
			assert.Equal(t, 6, child.events["step_started"])
			assert.Equal(t, 6, child.events["step_ended"])
			assert.Equal(t, 2, child.events["phase_ended"])
			assert.Equal(t, 1, child.events["solving_ended"])
		})
	}
}

func TestCachingSelector_IllegalCacheType(t *testing.T) {
	cb, _ := cloudDirector(t)
	phaseCached, err := selector.NewCachingSelector[move.Move](newCounting(), selector.PhaseCache, selector.Original)
	require.NoError(t, err)

	tests := []struct {
		name      string
		child     selector.Selector[move.Move]
		cacheType selector.CacheType
	}{
		{"just in time", newCounting(), selector.JustInTime},
		{"finer than child", phaseCached, selector.StepCache},
		{"never ending child", selector.NewChangeMoveSelector(
			selector.NewEntitySelector(cb.Process, selector.Random), cb.Assigned,
			selector.NewValueSelector(cb.Assigned, selector.Random), selector.Random), selector.PhaseCache},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := selector.NewCachingSelector(tt.child, tt.cacheType, selector.Original)
			assert.ErrorIs(t, err, selector.ErrIllegalCacheType)
			_, err = selector.NewShufflingSelector(tt.child, tt.cacheType)
			assert.ErrorIs(t, err, selector.ErrIllegalCacheType)
		})
	}
}

func TestCachingSelector_PositionalMovesStayInStep(t *testing.T) {
	vs := problems.NewVisitScheduling(2, 6, 3)
	r := problems.NewRouting(2, 6, 5)
	subChains, err := selector.NewSubChainSelector(r.Previous, selector.Original, selector.SizeBounds{Min: 1, Max: 2})
	require.NoError(t, err)
	subLists, err := selector.NewSubListChangeMoveSelector(vs.Visits, selector.Original, selector.SizeBounds{Min: 1, Max: 2}, false)
	require.NoError(t, err)
	listChange := selector.NewListChangeMoveSelector(vs.Visits, selector.Original, false)
	union, err := selector.NewUnionMoveSelector([]selector.MoveSelector{
		listChange, selector.Fixed[move.Move](labels("a")...),
	}, selector.Original)
	require.NoError(t, err)
	keep := func(*director.ScoreDirector, move.Move) bool { return true }

	tests := []struct {
		name  string
		child selector.Selector[move.Move]
	}{
		{"list change", listChange},
		{"list swap", selector.NewListSwapMoveSelector(vs.Visits, selector.Original)},
		{"sub list change", subLists},
		{"sub chain change", selector.NewSubChainChangeMoveSelector(subChains, r.Previous,
			selector.NewValueSelector(r.Previous, selector.Original), selector.Original, false)},
		{"sub chain swap", selector.NewSubChainSwapMoveSelector(subChains, r.Previous, selector.Original, false)},
		{"filtered", selector.NewFilteringSelector[move.Move](listChange, keep)},
		{"union", union},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, cacheType := range []selector.CacheType{selector.PhaseCache, selector.SolverCache} {
				_, err := selector.NewCachingSelector(tt.child, cacheType, selector.Original)
				assert.ErrorIs(t, err, selector.ErrIllegalCacheType, cacheType.String())
				_, err = selector.NewShufflingSelector(tt.child, cacheType)
				assert.ErrorIs(t, err, selector.ErrIllegalCacheType, cacheType.String())
			}
			_, err := selector.NewCachingSelector(tt.child, selector.StepCache, selector.Original)
			assert.NoError(t, err)
		})
	}

	t.Run("sub chains", func(t *testing.T) {
		_, err := selector.NewCachingSelector[[]domain.ID](subChains, selector.PhaseCache, selector.Original)
		assert.ErrorIs(t, err, selector.ErrIllegalCacheType)
		_, err = selector.NewCachingSelector[[]domain.ID](subChains, selector.StepCache, selector.Original)
		assert.NoError(t, err)
	})
}

func TestCachingSelector_StepCachedListMovesOverLiveSolution(t *testing.T) {
	vs := problems.NewVisitScheduling(2, 6, 3)
	sd, err := director.New(vs.Model, vs.Calculator(), director.WithCustomListener(vs.Arrival, vs.ArrivalListener()))
	require.NoError(t, err)
	require.NoError(t, sd.SetWorkingSolution(vs.Solution))

	cache, err := selector.NewCachingSelector[move.Move](
		selector.NewListChangeMoveSelector(vs.Visits, selector.Original, false), selector.StepCache, selector.Original)
	require.NoError(t, err)

	stale := 0
	run(t, sd, 1, cache, 1, 5, func(*scope.Step) {
		moves := selector.Collect(cache.Iterator(), -1)
		require.NotEmpty(t, moves)
		for _, m := range moves {
			require.True(t, m.IsDoable(sd), "fresh cache holds stale move %s", m)
		}

		// Apply one move for real; the rest of this step's cache refers to
		// the solution before it.
		_, _, err := move.DoScored(sd, moves[0])
		require.NoError(t, err)
		for _, m := range moves[1:] {
			if !m.IsDoable(sd) {
				stale++
				continue
			}
			undo, _, err := move.DoScored(sd, m)
			require.NoError(t, err)
			require.NoError(t, sd.VerifyShadows())
			_, _, err = move.DoScored(sd, undo)
			require.NoError(t, err)
		}
		require.NoError(t, sd.VerifyShadows())
	})
	assert.Positive(t, stale)
}

func TestShufflingSelector_ShufflesOncePerRefresh(t *testing.T) {
	_, sd := cloudDirector(t)
	items := labels("a", "b", "c", "d", "e", "f", "g", "h")
	child := newCounting(items...)
	shuffled, err := selector.NewShufflingSelector[move.Move](child, selector.StepCache)
	require.NoError(t, err)

	var orders [][]move.Move
	run(t, sd, 7, shuffled, 1, 4, func(*scope.Step) {
		first := selector.Collect(shuffled.Iterator(), -1)
		second := selector.Collect(shuffled.Iterator(), -1)
		assert.Equal(t, first, second, "order changed within one step")
		assert.ElementsMatch(t, items, first)
		orders = append(orders, first)
	})
	assert.Equal(t, 4, child.iterators)

	distinct := false
	for _, o := range orders[1:] {
		if !assert.ObjectsAreEqual(orders[0], o) {
			distinct = true
		}
	}
	assert.True(t, distinct, "four refreshes produced the same order")
}

func TestProbabilityWeightedSelector(t *testing.T) {
	weights := map[string]float64{"zero": 0, "light": 1, "heavy": 3}
	weight := func(_ *director.ScoreDirector, m move.Move) float64 { return weights[m.Key()] }

	t.Run("draws proportionally", func(t *testing.T) {
		_, sd := cloudDirector(t)
		sel, err := selector.NewProbabilityWeightedSelector[move.Move](
			newCounting(labels("zero", "light", "heavy")...), selector.PhaseCache, weight)
		require.NoError(t, err)
		end := inStep(t, sd, 3, sel)
		defer end()

		assert.True(t, sel.IsNeverEnding())
		assert.Equal(t, int64(2), sel.Size())
		draws := selector.Collect(sel.Iterator(), 4000)
		heavy := make([]float64, len(draws))
		for i, m := range draws {
			require.NotEqual(t, "zero", m.Key())
			if m.Key() == "heavy" {
				heavy[i] = 1
			}
		}
		assert.InDelta(t, 0.75, stat.Mean(heavy, nil), 0.03)
	})

	t.Run("rejects illegal weights", func(t *testing.T) {
		for _, w := range []float64{-1, math.NaN(), math.Inf(1)} {
			_, sd := cloudDirector(t)
			bad := func(*director.ScoreDirector, move.Move) float64 { return w }
			sel, err := selector.NewProbabilityWeightedSelector[move.Move](
				newCounting(labels("a")...), selector.PhaseCache, bad)
			require.NoError(t, err)
			initial, err := sd.CalculateScore()
			require.NoError(t, err)
			solver := scope.NewSolver("test", sd, rand.New(rand.NewSource(1)), optimization.Reproducible, nil)
			require.NoError(t, sel.SolvingStarted(solver))
			err = sel.PhaseStarted(scope.NewPhase(solver, 0, initial))
			assert.ErrorIs(t, err, selector.ErrIllegalWeight, "weight %v", w)
		}
	})
}

func TestFilteringSelector(t *testing.T) {
	keep := func(_ *director.ScoreDirector, m move.Move) bool { return m.Key() != "b" }

	t.Run("finite child", func(t *testing.T) {
		_, sd := cloudDirector(t)
		sel := selector.NewFilteringSelector[move.Move](newCounting(labels("a", "b", "c")...), keep)
		end := inStep(t, sd, 1, sel)
		defer end()
		assert.Equal(t, labels("a", "c"), selector.Collect(sel.Iterator(), -1))
	})

	t.Run("never ending child bails out", func(t *testing.T) {
		_, sd := cloudDirector(t)
		random, err := selector.NewCachingSelector[move.Move](newCounting(labels("b", "b", "b")...), selector.PhaseCache, selector.Random)
		require.NoError(t, err)
		sel := selector.NewFilteringSelector[move.Move](random, keep)
		end := inStep(t, sd, 1, sel)
		defer end()
		assert.True(t, sel.IsNeverEnding())
		assert.Empty(t, selector.Collect(sel.Iterator(), 10))
	})
}

func TestUnionMoveSelector(t *testing.T) {
	t.Run("original order concatenates", func(t *testing.T) {
		_, sd := cloudDirector(t)
		union, err := selector.NewUnionMoveSelector([]selector.MoveSelector{
			selector.Fixed(labels("a", "b")...), selector.Fixed(labels("c")...),
		}, selector.Original)
		require.NoError(t, err)
		end := inStep(t, sd, 1, union)
		defer end()
		assert.Equal(t, int64(3), union.Size())
		assert.Equal(t, labels("a", "b", "c"), selector.Collect(union.Iterator(), -1))
	})

	ratio := func(t *testing.T, opts ...selector.UnionOption) float64 {
		t.Helper()
		_, sd := cloudDirector(t)
		union, err := selector.NewUnionMoveSelector([]selector.MoveSelector{
			selector.Fixed(labels("l1", "l2", "l3")...), selector.Fixed(labels("r1")...),
		}, selector.Random, opts...)
		require.NoError(t, err)
		end := inStep(t, sd, 11, union)
		defer end()
		draws := selector.Collect(union.Iterator(), 4000)
		require.Len(t, draws, 4000)
		left := make([]float64, len(draws))
		for i, m := range draws {
			if m.Key()[0] == 'l' {
				left[i] = 1
			}
		}
		return stat.Mean(left, nil)
	}

	t.Run("random weighs by child size", func(t *testing.T) {
		assert.InDelta(t, 0.75, ratio(t), 0.03)
	})

	t.Run("random with fixed weights", func(t *testing.T) {
		assert.InDelta(t, 0.5, ratio(t, selector.WithFixedWeights(1, 1)), 0.03)
	})

	t.Run("random with weight factory", func(t *testing.T) {
		factory := func(_ *director.ScoreDirector, child selector.MoveSelector) float64 {
			if child.Size() == 1 {
				return 9
			}
			return 1
		}
		assert.InDelta(t, 0.1, ratio(t, selector.WithWeightFactory(factory)), 0.03)
	})

	t.Run("illegal weights", func(t *testing.T) {
		children := []selector.MoveSelector{selector.Fixed(labels("a")...), selector.Fixed(labels("b")...)}
		_, err := selector.NewUnionMoveSelector(children, selector.Random, selector.WithFixedWeights(-1, 1))
		assert.ErrorIs(t, err, selector.ErrIllegalWeight)
		_, err = selector.NewUnionMoveSelector(children, selector.Random, selector.WithFixedWeights(1))
		assert.ErrorIs(t, err, selector.ErrIllegalWeight)

		_, sd := cloudDirector(t)
		union, err := selector.NewUnionMoveSelector(children, selector.Random,
			selector.WithWeightFactory(func(*director.ScoreDirector, selector.MoveSelector) float64 { return math.Inf(1) }))
		require.NoError(t, err)
		initial, err := sd.CalculateScore()
		require.NoError(t, err)
		solver := scope.NewSolver("test", sd, rand.New(rand.NewSource(1)), optimization.Reproducible, nil)
		phase := scope.NewPhase(solver, 0, initial)
		require.NoError(t, union.PhaseStarted(phase))
		assert.ErrorIs(t, union.StepStarted(scope.NewStep(phase)), selector.ErrIllegalWeight)
	})
}

func TestCartesianMoveSelector(t *testing.T) {
	empty := selector.Fixed[move.Move]()
	tests := []struct {
		name        string
		children    []selector.MoveSelector
		ignoreEmpty bool
		want        [][]string
	}{
		{
			name:     "nested order",
			children: []selector.MoveSelector{selector.Fixed(labels("a", "b")...), selector.Fixed(labels("x", "y", "z")...)},
			want: [][]string{
				{"a", "x"}, {"a", "y"}, {"a", "z"},
				{"b", "x"}, {"b", "y"}, {"b", "z"},
			},
		},
		{
			name:     "empty child empties the product",
			children: []selector.MoveSelector{selector.Fixed(labels("a", "b")...), empty},
		},
		{
			name:        "ignored empty child",
			children:    []selector.MoveSelector{selector.Fixed(labels("a", "b")...), empty},
			ignoreEmpty: true,
			want:        [][]string{{"a"}, {"b"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sd := cloudDirector(t)
			sel := selector.NewCartesianMoveSelector(tt.children, selector.Original, tt.ignoreEmpty)
			end := inStep(t, sd, 1, sel)
			defer end()

			var got [][]string
			for _, m := range selector.Collect(sel.Iterator(), -1) {
				if c, ok := m.(*move.Composite); ok {
					var keys []string
					for _, child := range c.Moves {
						keys = append(keys, child.Key())
					}
					got = append(got, keys)
					continue
				}
				got = append(got, []string{m.Key()})
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(len(tt.want)), sel.Size())
		})
	}

	t.Run("random draws one move per child", func(t *testing.T) {
		_, sd := cloudDirector(t)
		sel := selector.NewCartesianMoveSelector([]selector.MoveSelector{
			selector.Fixed(labels("a", "b")...), selector.Fixed(labels("x", "y")...),
		}, selector.Random, false)
		end := inStep(t, sd, 5, sel)
		defer end()
		for _, m := range selector.Collect(sel.Iterator(), 20) {
			c, ok := m.(*move.Composite)
			require.True(t, ok)
			require.Len(t, c.Moves, 2)
			assert.Contains(t, []string{"a", "b"}, c.Moves[0].Key())
			assert.Contains(t, []string{"x", "y"}, c.Moves[1].Key())
		}
	})
}

func TestSizeBounds(t *testing.T) {
	routing := problems.NewRoutingChains([]string{"d0", "u0"})
	cb := problems.NewCloudBalance(2, 2, 1)
	tests := []struct {
		name   string
		bounds selector.SizeBounds
		ok     bool
	}{
		{"unbounded", selector.SizeBounds{Min: 1}, true},
		{"range", selector.SizeBounds{Min: 2, Max: 3}, true},
		{"zero minimum", selector.SizeBounds{Min: 0, Max: 3}, false},
		{"maximum below minimum", selector.SizeBounds{Min: 3, Max: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pillarErr := selector.NewPillarSelector(cb.Assigned, selector.Original, true, tt.bounds)
			_, chainErr := selector.NewSubChainSelector(routing.Previous, selector.Original, tt.bounds)
			if tt.ok {
				assert.NoError(t, pillarErr)
				assert.NoError(t, chainErr)
				return
			}
			assert.ErrorIs(t, pillarErr, selector.ErrIllegalSize)
			assert.ErrorIs(t, chainErr, selector.ErrIllegalSize)
		})
	}
}

func TestLeafAndMoveSelectors(t *testing.T) {
	t.Run("basic variable", func(t *testing.T) {
		cb, sd := cloudDirector(t)
		entities := selector.NewEntitySelector(cb.Process, selector.Original)
		change := selector.NewChangeMoveSelector(entities, cb.Assigned, selector.NewValueSelector(cb.Assigned, selector.Original), selector.Original)
		swap := selector.NewSwapMoveSelector(entities, entities, []*domain.Variable{cb.Assigned}, selector.Original)
		pillars, err := selector.NewPillarSelector(cb.Assigned, selector.Original, false, selector.SizeBounds{})
		require.NoError(t, err)
		pillarChange := selector.NewPillarChangeMoveSelector(pillars, cb.Assigned, selector.NewValueSelector(cb.Assigned, selector.Original), selector.Original)
		pillarSwap := selector.NewPillarSwapMoveSelector(pillars, []*domain.Variable{cb.Assigned}, selector.Original)

		all := scope.Listeners{change, swap, pillarChange, pillarSwap}
		end := inStep(t, sd, 1, all)
		defer end()

		tests := []struct {
			name string
			sel  selector.MoveSelector
			size int64
		}{
			{"change", change, 18},
			{"swap", swap, 15},
			{"pillar change", pillarChange, 9},
			{"pillar swap", pillarSwap, 3},
		}
		for _, tt := range tests {
			moves := selector.Collect(tt.sel.Iterator(), -1)
			assert.Len(t, moves, int(tt.size), tt.name)
			assert.Equal(t, tt.size, tt.sel.Size(), tt.name)
		}
	})

	t.Run("chained variable", func(t *testing.T) {
		r := problems.NewRoutingChains([]string{"d0", "u0", "u1", "u2"}, []string{"d1", "u3"})
		sd, err := director.New(r.Model, r.Calculator())
		require.NoError(t, err)
		require.NoError(t, sd.SetWorkingSolution(r.Solution))

		subChains, err := selector.NewSubChainSelector(r.Previous, selector.Original, selector.SizeBounds{Min: 1, Max: 2})
		require.NoError(t, err)
		change := selector.NewSubChainChangeMoveSelector(subChains, r.Previous, selector.NewValueSelector(r.Previous, selector.Original), selector.Original, true)
		end := inStep(t, sd, 1, change)
		defer end()

		assert.Equal(t, int64(6), subChains.Size())
		var names [][]string
		for _, sc := range selector.Collect(subChains.Iterator(), -1) {
			var n []string
			for _, id := range sc {
				n = append(n, r.Solution.Name(id))
			}
			names = append(names, n)
		}
		assert.Equal(t, [][]string{{"u0"}, {"u0", "u1"}, {"u1"}, {"u1", "u2"}, {"u2"}, {"u3"}}, names)
		assert.Len(t, selector.Collect(change.Iterator(), -1), int(change.Size()))
	})

	t.Run("list variable", func(t *testing.T) {
		vs := problems.NewVisitLists([]string{"Z"}, []string{"Ann", "A", "B", "C"}, []string{"Bob", "X", "Y"})
		sd, err := director.New(vs.Model, vs.Calculator(), director.WithCustomListener(vs.Arrival, vs.ArrivalListener()))
		require.NoError(t, err)
		require.NoError(t, sd.SetWorkingSolution(vs.Solution))

		change := selector.NewListChangeMoveSelector(vs.Visits, selector.Original, false)
		unassigning := selector.NewListChangeMoveSelector(vs.Visits, selector.Original, true)
		swap := selector.NewListSwapMoveSelector(vs.Visits, selector.Original)
		subList, err := selector.NewSubListChangeMoveSelector(vs.Visits, selector.Original, selector.SizeBounds{Min: 1, Max: 2}, false)
		require.NoError(t, err)
		end := inStep(t, sd, 1, scope.Listeners{change, unassigning, swap, subList})
		defer end()

		tests := []struct {
			name string
			sel  selector.MoveSelector
			size int64
		}{
			{"change", change, 32},
			{"change with unassign", unassigning, 37},
			{"swap", swap, 10},
		}
		for _, tt := range tests {
			moves := selector.Collect(tt.sel.Iterator(), -1)
			assert.Len(t, moves, int(tt.size), tt.name)
			assert.Equal(t, tt.size, tt.sel.Size(), tt.name)
			keys := make(map[string]bool)
			for _, m := range moves {
				assert.True(t, m.IsDoable(sd), "%s: %s", tt.name, m)
				assert.False(t, keys[m.Key()], "%s: duplicate %s", tt.name, m)
				keys[m.Key()] = true
			}
		}

		moves := selector.Collect(subList.Iterator(), -1)
		assert.Len(t, moves, int(subList.Size()))
		for _, m := range moves {
			assert.True(t, m.IsDoable(sd), m.String())
		}
	})
}

func TestRandomOrderIsReproducible(t *testing.T) {
	draw := func() []string {
		cb, sd := cloudDirector(t)
		sel, err := selector.Default(cb.Model, selector.Random)
		require.NoError(t, err)
		end := inStep(t, sd, 42, sel)
		defer end()
		var keys []string
		for _, m := range selector.Collect(sel.Iterator(), 50) {
			keys = append(keys, m.Key())
		}
		return keys
	}
	first := draw()
	assert.Len(t, first, 50)
	assert.Equal(t, first, draw())
}

func TestDefault(t *testing.T) {
	cb, sd := cloudDirector(t)
	sel, err := selector.Default(cb.Model, selector.Original)
	require.NoError(t, err)
	end := inStep(t, sd, 1, sel)
	defer end()
	assert.Equal(t, int64(33), sel.Size())
	assert.Len(t, selector.Collect(sel.Iterator(), -1), 33)

	_, err = selector.Default(domain.NewModel(), selector.Original)
	assert.Error(t, err)
}
