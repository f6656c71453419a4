package move_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
	"github.com/copyleftdev/tundr-planner/internal/problems"
)

func setUp(t *testing.T, m *domain.Model, calc director.IncrementalScoreCalculator, sol *domain.Solution, opts ...director.Option) *director.ScoreDirector {
	t.Helper()
	sd, err := director.New(m, calc, opts...)
	require.NoError(t, err)
	require.NoError(t, sd.SetWorkingSolution(sol))
	_, err = sd.CalculateScore()
	require.NoError(t, err)
	return sd
}

// doAndUndo applies m, checks the result with verify, then applies the undo
// and checks that the genuine state and score are restored.
func doAndUndo(t *testing.T, sd *director.ScoreDirector, m move.Move, evaluate func(*domain.Solution) score.Score, verify func()) {
	t.Helper()
	sol := sd.WorkingSolution()
	before := domain.Fingerprint(sol)
	initial, err := sd.CalculateScore()
	require.NoError(t, err)

	require.True(t, m.IsDoable(sd), "move %s should be doable", m)
	undo, moved, err := move.DoScored(sd, m)
	require.NoError(t, err)
	require.NoError(t, sd.VerifyShadows())
	assert.True(t, evaluate(sol).Equal(moved), "incremental %s, from scratch %s", moved, evaluate(sol))
	if verify != nil {
		verify()
	}

	_, restored, err := move.DoScored(sd, undo)
	require.NoError(t, err)
	require.NoError(t, sd.VerifyShadows())
	assert.Equal(t, before, domain.Fingerprint(sol), "undo of %s did not restore the solution", m)
	assert.True(t, initial.Equal(restored), "score %s restored as %s", initial, restored)
}

func TestBasicMoves(t *testing.T) {
	cb := problems.NewCloudBalance(3, 6, 4)
	sol := cb.Solution
	sd := setUp(t, cb.Model, cb.Calculator(), sol)
	c0, c2 := sol.MustLookup("c0"), sol.MustLookup("c2")
	p0, p1, p3, p4 := sol.MustLookup("p0"), sol.MustLookup("p1"), sol.MustLookup("p3"), sol.MustLookup("p4")
	vars := []*domain.Variable{cb.Assigned}

	t.Run("change", func(t *testing.T) {
		m := &move.Change{Entity: p0, Variable: cb.Assigned, To: c2}
		doAndUndo(t, sd, m, cb.Evaluate, func() {
			assert.Equal(t, c2, sol.Ref(p0, cb.Assigned))
			assert.Contains(t, sol.Seq(c2, cb.Processes), p0)
		})
		assert.False(t, (&move.Change{Entity: p0, Variable: cb.Assigned, To: c0}).IsDoable(sd))
	})

	t.Run("swap", func(t *testing.T) {
		m := &move.Swap{Left: p0, Right: p1, Variables: vars}
		l, r := sol.Ref(p0, cb.Assigned), sol.Ref(p1, cb.Assigned)
		doAndUndo(t, sd, m, cb.Evaluate, func() {
			assert.Equal(t, r, sol.Ref(p0, cb.Assigned))
			assert.Equal(t, l, sol.Ref(p1, cb.Assigned))
		})
		assert.False(t, (&move.Swap{Left: p0, Right: p3, Variables: vars}).IsDoable(sd), "same value")
		assert.Equal(t, m.Key(), (&move.Swap{Left: p1, Right: p0, Variables: vars}).Key())
	})

	t.Run("pillar change", func(t *testing.T) {
		m := &move.PillarChange{Pillar: []domain.ID{p0, p3}, Variable: cb.Assigned, To: c2}
		doAndUndo(t, sd, m, cb.Evaluate, func() {
			assert.Empty(t, sol.Seq(c0, cb.Processes))
		})
	})

	t.Run("pillar swap", func(t *testing.T) {
		m := &move.PillarSwap{Left: []domain.ID{p0, p3}, Right: []domain.ID{p1, p4}, Variables: vars}
		doAndUndo(t, sd, m, cb.Evaluate, func() {
			assert.Equal(t, []domain.ID{p1, p4}, sol.Seq(c0, cb.Processes))
		})
	})
}

func TestChainedMoves(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *problems.Routing, sol *domain.Solution) move.Move
		want  map[string][]string
	}{
		{
			name: "change tail to other chain",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.ChainedChange{Entity: sol.MustLookup("a3"), Variable: r.Previous, To: sol.MustLookup("b1")}
			},
			want: map[string][]string{"a0": {"a0", "a1", "a2"}, "b0": {"b0", "b1", "a3"}},
		},
		{
			name: "change middle to front of other chain",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.ChainedChange{Entity: sol.MustLookup("a2"), Variable: r.Previous, To: sol.MustLookup("b0")}
			},
			want: map[string][]string{"a0": {"a0", "a1", "a3"}, "b0": {"b0", "a2", "b1"}},
		},
		{
			name: "change after own successor",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.ChainedChange{Entity: sol.MustLookup("a1"), Variable: r.Previous, To: sol.MustLookup("a2")}
			},
			want: map[string][]string{"a0": {"a0", "a2", "a1", "a3"}, "b0": {"b0", "b1"}},
		},
		{
			name: "swap across chains",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.ChainedSwap{Left: sol.MustLookup("a2"), Right: sol.MustLookup("b1"), Variable: r.Previous}
			},
			want: map[string][]string{"a0": {"a0", "a1", "b1", "a3"}, "b0": {"b0", "a2"}},
		},
		{
			name: "swap neighbours",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.ChainedSwap{Left: sol.MustLookup("a2"), Right: sol.MustLookup("a1"), Variable: r.Previous}
			},
			want: map[string][]string{"a0": {"a0", "a2", "a1", "a3"}, "b0": {"b0", "b1"}},
		},
		{
			name: "sub chain change",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.SubChainChange{
					SubChain: []domain.ID{sol.MustLookup("a1"), sol.MustLookup("a2")},
					Variable: r.Previous, To: sol.MustLookup("b1"),
				}
			},
			want: map[string][]string{"a0": {"a0", "a3"}, "b0": {"b0", "b1", "a1", "a2"}},
		},
		{
			name: "sub chain change reversed",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.SubChainChange{
					SubChain: []domain.ID{sol.MustLookup("a1"), sol.MustLookup("a2")},
					Variable: r.Previous, To: sol.MustLookup("b0"), Reverse: true,
				}
			},
			want: map[string][]string{"a0": {"a0", "a3"}, "b0": {"b0", "a2", "a1", "b1"}},
		},
		{
			name: "sub chain reversed in place",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.SubChainChange{
					SubChain: []domain.ID{sol.MustLookup("a1"), sol.MustLookup("a2"), sol.MustLookup("a3")},
					Variable: r.Previous, To: sol.MustLookup("a0"), Reverse: true,
				}
			},
			want: map[string][]string{"a0": {"a0", "a3", "a2", "a1"}, "b0": {"b0", "b1"}},
		},
		{
			name: "sub chain swap",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.SubChainSwap{
					Left:     []domain.ID{sol.MustLookup("a2"), sol.MustLookup("a3")},
					Right:    []domain.ID{sol.MustLookup("b1")},
					Variable: r.Previous,
				}
			},
			want: map[string][]string{"a0": {"a0", "a1", "b1"}, "b0": {"b0", "a2", "a3"}},
		},
		{
			name: "adjacent sub chain swap reversed",
			build: func(r *problems.Routing, sol *domain.Solution) move.Move {
				return &move.SubChainSwap{
					Left:     []domain.ID{sol.MustLookup("a2"), sol.MustLookup("a3")},
					Right:    []domain.ID{sol.MustLookup("a1")},
					Variable: r.Previous,
					Reverse:  true,
				}
			},
			want: map[string][]string{"a0": {"a0", "a3", "a2", "a1"}, "b0": {"b0", "b1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := problems.NewRoutingChains([]string{"a0", "a1", "a2", "a3"}, []string{"b0", "b1"})
			sol := r.Solution
			sd := setUp(t, r.Model, r.Calculator(), sol)
			m := tt.build(r, sol)
			doAndUndo(t, sd, m, r.Evaluate, func() {
				for depot, want := range tt.want {
					assert.Equal(t, want, r.Chain(sol, depot))
				}
			})
		})
	}
}

func TestChainedMoves_NotDoable(t *testing.T) {
	r := problems.NewRoutingChains([]string{"a0", "a1", "a2", "a3"})
	sol := r.Solution
	sd := setUp(t, r.Model, r.Calculator(), sol)
	a0, a1, a2 := sol.MustLookup("a0"), sol.MustLookup("a1"), sol.MustLookup("a2")

	assert.False(t, (&move.ChainedChange{Entity: a1, Variable: r.Previous, To: a0}).IsDoable(sd))
	assert.False(t, (&move.ChainedChange{Entity: a1, Variable: r.Previous, To: a1}).IsDoable(sd))
	assert.False(t, (&move.ChainedSwap{Left: a1, Right: a1, Variable: r.Previous}).IsDoable(sd))
	assert.False(t, (&move.SubChainChange{SubChain: []domain.ID{a1, a2}, Variable: r.Previous, To: a2}).IsDoable(sd))
	assert.False(t, (&move.SubChainChange{SubChain: []domain.ID{a1, a2}, Variable: r.Previous, To: a0}).IsDoable(sd))
	assert.True(t, (&move.SubChainChange{SubChain: []domain.ID{a1, a2}, Variable: r.Previous, To: a0, Reverse: true}).IsDoable(sd))
	assert.False(t, (&move.SubChainSwap{Left: []domain.ID{a1, a2}, Right: []domain.ID{a2}, Variable: r.Previous}).IsDoable(sd))
}

func TestListMoves(t *testing.T) {
	tests := []struct {
		name  string
		build func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move
		want  map[string][]string
		check func(t *testing.T, vs *problems.VisitScheduling, sol *domain.Solution)
	}{
		{
			name: "change across entities",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return move.NewListChange(sol, vs.Visits, sol.MustLookup("Ann"), 0, sol.MustLookup("Bob"), 1)
			},
			want: map[string][]string{"Ann": {"B", "C"}, "Bob": {"X", "A", "Y"}},
			check: func(t *testing.T, vs *problems.VisitScheduling, sol *domain.Solution) {
				a := sol.MustLookup("A")
				assert.Equal(t, sol.MustLookup("Bob"), sol.Ref(a, vs.Owner))
				assert.Equal(t, int64(1), sol.Num(a, vs.Index))
			},
		},
		{
			name: "change within an entity",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return move.NewListChange(sol, vs.Visits, sol.MustLookup("Ann"), 0, sol.MustLookup("Ann"), 2)
			},
			want: map[string][]string{"Ann": {"B", "C", "A"}, "Bob": {"X", "Y"}},
		},
		{
			name: "swap across entities",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return move.NewListSwap(sol, vs.Visits, sol.MustLookup("Ann"), 2, sol.MustLookup("Bob"), 0)
			},
			want: map[string][]string{"Ann": {"A", "B", "X"}, "Bob": {"C", "Y"}},
		},
		{
			name: "swap within an entity",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return move.NewListSwap(sol, vs.Visits, sol.MustLookup("Ann"), 0, sol.MustLookup("Ann"), 2)
			},
			want: map[string][]string{"Ann": {"C", "B", "A"}},
		},
		{
			name: "assign",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return &move.ListAssign{Variable: vs.Visits, Element: sol.MustLookup("Z"), Destination: sol.MustLookup("Bob"), Index: 2}
			},
			want: map[string][]string{"Bob": {"X", "Y", "Z"}},
			check: func(t *testing.T, vs *problems.VisitScheduling, sol *domain.Solution) {
				assert.Equal(t, sol.MustLookup("Y"), sol.Ref(sol.MustLookup("Z"), vs.Previous))
			},
		},
		{
			name: "unassign",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return &move.ListUnassign{Variable: vs.Visits, Source: sol.MustLookup("Ann"), Index: 1, Element: sol.MustLookup("B")}
			},
			want: map[string][]string{"Ann": {"A", "C"}},
			check: func(t *testing.T, vs *problems.VisitScheduling, sol *domain.Solution) {
				b := sol.MustLookup("B")
				assert.Equal(t, int64(-1), sol.Num(b, vs.Index))
				assert.Equal(t, domain.None, sol.Ref(b, vs.Owner))
			},
		},
		{
			name: "sub list change reversed",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return move.NewSubListChange(sol, vs.Visits, sol.MustLookup("Ann"), 1, 2, sol.MustLookup("Bob"), 1, true)
			},
			want: map[string][]string{"Ann": {"A"}, "Bob": {"X", "C", "B", "Y"}},
		},
		{
			name: "sub list change within an entity",
			build: func(vs *problems.VisitScheduling, sol *domain.Solution) move.Move {
				return move.NewSubListChange(sol, vs.Visits, sol.MustLookup("Ann"), 0, 2, sol.MustLookup("Ann"), 1, false)
			},
			want: map[string][]string{"Ann": {"C", "A", "B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := problems.NewVisitLists([]string{"Z"}, []string{"Ann", "A", "B", "C"}, []string{"Bob", "X", "Y"})
			sol := vs.Solution
			sd := setUp(t, vs.Model, vs.Calculator(), sol,
				director.WithCustomListener(vs.Arrival, vs.ArrivalListener()))
			m := tt.build(vs, sol)
			doAndUndo(t, sd, m, vs.Evaluate, func() {
				for vehicle, want := range tt.want {
					assert.Equal(t, want, vs.Names(sol, vehicle))
				}
				if tt.check != nil {
					tt.check(t, vs, sol)
				}
			})
		})
	}
}

func TestListMoves_StaleAfterSolutionChanged(t *testing.T) {
	vs := problems.NewVisitLists([]string{"Z"}, []string{"Ann", "A", "B", "C"}, []string{"Bob", "X", "Y"})
	sol := vs.Solution
	sd := setUp(t, vs.Model, vs.Calculator(), sol, director.WithCustomListener(vs.Arrival, vs.ArrivalListener()))
	ann, bob := sol.MustLookup("Ann"), sol.MustLookup("Bob")

	built := []move.Move{
		move.NewListChange(sol, vs.Visits, ann, 0, bob, 1),
		move.NewListSwap(sol, vs.Visits, ann, 2, bob, 0),
		move.NewSubListChange(sol, vs.Visits, ann, 1, 2, bob, 1, false),
		&move.ListUnassign{Variable: vs.Visits, Source: ann, Index: 1, Element: sol.MustLookup("B")},
		&move.ListAssign{Variable: vs.Visits, Element: sol.MustLookup("Z"), Destination: ann, Index: 3},
	}
	for _, m := range built {
		require.True(t, m.IsDoable(sd), "%s", m)
	}

	_, _, err := move.DoScored(sd, move.NewListChange(sol, vs.Visits, ann, 0, bob, 0))
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C"}, vs.Names(sol, "Ann"))
	for _, m := range built {
		assert.False(t, m.IsDoable(sd), "%s refers to the list before A moved", m)
	}
}

func TestListMoves_PlanningValues(t *testing.T) {
	vs := problems.NewVisitLists(nil, []string{"Ann", "A", "B", "C"}, []string{"Bob", "X", "Y"})
	sol := vs.Solution
	ann, bob := sol.MustLookup("Ann"), sol.MustLookup("Bob")
	a, b, c, x := sol.MustLookup("A"), sol.MustLookup("B"), sol.MustLookup("C"), sol.MustLookup("X")

	assert.Equal(t, []domain.ID{a}, move.NewListChange(sol, vs.Visits, ann, 0, bob, 0).PlanningValues())
	assert.ElementsMatch(t, []domain.ID{c, x}, move.NewListSwap(sol, vs.Visits, ann, 2, bob, 0).PlanningValues())
	assert.Equal(t, []domain.ID{b, c}, move.NewSubListChange(sol, vs.Visits, ann, 1, 2, bob, 0, true).PlanningValues())
}

func TestSubChainMoves_StaleAfterChainChanged(t *testing.T) {
	r := problems.NewRoutingChains([]string{"a0", "a1", "a2", "a3"}, []string{"b0", "b1"})
	sol := r.Solution
	sd := setUp(t, r.Model, r.Calculator(), sol)
	a1, a2, a3, b1 := sol.MustLookup("a1"), sol.MustLookup("a2"), sol.MustLookup("a3"), sol.MustLookup("b1")

	change := &move.SubChainChange{SubChain: []domain.ID{a1, a2}, Variable: r.Previous, To: b1}
	swap := &move.SubChainSwap{Left: []domain.ID{a1, a2}, Right: []domain.ID{b1}, Variable: r.Previous}
	require.True(t, change.IsDoable(sd))
	require.True(t, swap.IsDoable(sd))

	_, _, err := move.DoScored(sd, &move.ChainedChange{Entity: a2, Variable: r.Previous, To: a3})
	require.NoError(t, err)
	require.Equal(t, []string{"a0", "a1", "a3", "a2"}, r.Chain(sol, "a0"))
	assert.False(t, change.IsDoable(sd), "a1 and a2 are no longer adjacent")
	assert.False(t, swap.IsDoable(sd))
}

func TestComposite(t *testing.T) {
	cb := problems.NewCloudBalance(3, 6, 2)
	sol := cb.Solution
	sd := setUp(t, cb.Model, cb.Calculator(), sol)
	c1, c2 := sol.MustLookup("c1"), sol.MustLookup("c2")
	p0, p3 := sol.MustLookup("p0"), sol.MustLookup("p3")

	m := move.NewComposite(
		&move.Change{Entity: p0, Variable: cb.Assigned, To: c1},
		move.NewComposite(&move.Change{Entity: p3, Variable: cb.Assigned, To: c2}),
		&move.Change{Entity: p0, Variable: cb.Assigned, To: c1},
	)
	assert.Len(t, m.Moves, 3)
	assert.Equal(t, []domain.ID{p0, p3}, m.PlanningEntities())

	doAndUndo(t, sd, m, cb.Evaluate, func() {
		assert.Equal(t, c1, sol.Ref(p0, cb.Assigned))
		assert.Equal(t, c2, sol.Ref(p3, cb.Assigned))
	})

	undo := m.Do(sd)
	composite, ok := undo.(*move.Composite)
	require.True(t, ok)
	assert.Len(t, composite.Moves, 2, "the repeated change is no longer doable and is skipped")
	undo.Do(sd)
}

func TestUndoKeys(t *testing.T) {
	cb := problems.NewCloudBalance(2, 2, 1)
	sol := cb.Solution
	sd := setUp(t, cb.Model, cb.Calculator(), sol)
	c0, c1, p0 := sol.MustLookup("c0"), sol.MustLookup("c1"), sol.MustLookup("p0")

	m := &move.Change{Entity: p0, Variable: cb.Assigned, To: c1}
	undo := m.Do(sd)
	assert.Equal(t, (&move.Change{Entity: p0, Variable: cb.Assigned, To: c0}).Key(), undo.Key())
	assert.NotEqual(t, m.Key(), undo.Key())
}
