package selector

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
)

// ChildWeightFunc weighs a child of a union selector at the start of each
// step.
type ChildWeightFunc func(sd *director.ScoreDirector, child MoveSelector) float64

// UnionOption configures a union selector.
type UnionOption func(*UnionMoveSelector) error

// WithFixedWeights weighs the children with constant weights, one per child.
func WithFixedWeights(weights ...float64) UnionOption {
	return func(s *UnionMoveSelector) error {
		if len(weights) != len(s.selectors) {
			return optimization.ConfigError(ErrIllegalWeight, "UnionMoveSelector", "New",
				"%d weights for %d children", len(weights), len(s.selectors))
		}
		for _, w := range weights {
			if err := checkWeight(w); err != nil {
				return err
			}
		}
		s.fixed = weights
		return nil
	}
}

// WithWeightFactory weighs the children with a function evaluated against
// the working solution.
func WithWeightFactory(f ChildWeightFunc) UnionOption {
	return func(s *UnionMoveSelector) error {
		s.weight = f
		return nil
	}
}

func checkWeight(w float64) error {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return optimization.ConfigError(ErrIllegalWeight, "UnionMoveSelector", "weigh",
			"weight %v must be finite and non-negative", w)
	}
	return nil
}

// sizeWeight is the default weight: the child's size, or one when the child
// cannot count its moves.
func sizeWeight(_ *director.ScoreDirector, child MoveSelector) float64 {
	if !child.IsCountable() {
		return 1
	}
	return float64(child.Size())
}

// UnionMoveSelector concatenates its children. In random order it picks a
// child per draw with probability proportional to the child's weight and
// then takes that child's next move.
type UnionMoveSelector struct {
	lifecycle
	selectors []MoveSelector
	order     SelectionOrder
	weight    ChildWeightFunc
	fixed     []float64
	weights   []float64
}

func NewUnionMoveSelector(children []MoveSelector, order SelectionOrder, opts ...UnionOption) (*UnionMoveSelector, error) {
	s := &UnionMoveSelector{selectors: children, order: order, weight: sizeWeight}
	for _, c := range children {
		s.children = append(s.children, c)
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *UnionMoveSelector) CacheType() CacheType {
	types := make([]CacheType, len(s.selectors))
	for i, c := range s.selectors {
		types[i] = c.CacheType()
	}
	return minCacheType(types...)
}

func (s *UnionMoveSelector) MaxCacheType() CacheType {
	types := make([]CacheType, len(s.selectors))
	for i, c := range s.selectors {
		types[i] = maxCacheType(c)
	}
	return minCacheType(types...)
}

func (s *UnionMoveSelector) IsCountable() bool {
	for _, c := range s.selectors {
		if !c.IsCountable() {
			return false
		}
	}
	return true
}

func (s *UnionMoveSelector) IsNeverEnding() bool {
	if s.order == Random {
		return true
	}
	for _, c := range s.selectors {
		if c.IsNeverEnding() {
			return true
		}
	}
	return false
}

func (s *UnionMoveSelector) Size() int64 {
	var n int64
	for _, c := range s.selectors {
		n += c.Size()
	}
	return n
}

func (s *UnionMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		return s.randomIterator()
	}
	i := 0
	var it Iterator[move.Move]
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		for i < len(s.selectors) {
			if it == nil {
				it = s.selectors[i].Iterator()
			}
			if m, ok := it.Next(); ok {
				return m, true
			}
			it = nil
			i++
		}
		return nil, false
	})
}

// StepStarted weighs the children for the step. Children must have started
// first so their sizes are current.
func (s *UnionMoveSelector) StepStarted(st *scope.Step) error {
	if err := s.lifecycle.StepStarted(st); err != nil {
		return err
	}
	if s.order != Random {
		return nil
	}
	s.weights = s.weights[:0]
	for i, c := range s.selectors {
		w, err := s.weigh(i, c)
		if err != nil {
			return err
		}
		s.weights = append(s.weights, w)
	}
	return nil
}

func (s *UnionMoveSelector) weigh(i int, child MoveSelector) (float64, error) {
	if s.fixed != nil {
		return s.fixed[i], nil
	}
	w := s.weight(s.director(), child)
	return w, checkWeight(w)
}

func (s *UnionMoveSelector) StepEnded(st *scope.Step) {
	s.weights = s.weights[:0]
	s.lifecycle.StepEnded(st)
}

// randomIterator draws from the children weighed at step start. A child
// whose draw comes back empty leaves the pool and the cumulative weights of
// the rest are rebuilt.
func (s *UnionMoveSelector) randomIterator() Iterator[move.Move] {
	rng := s.random()
	type candidate struct {
		next   func() (move.Move, bool)
		weight float64
	}
	var pool []candidate
	for i, c := range s.selectors {
		var w float64
		if i < len(s.weights) {
			w = s.weights[i]
		} else if weight, err := s.weigh(i, c); err == nil {
			w = weight
		}
		if w > 0 {
			pool = append(pool, candidate{next: randomDraw(c, rng), weight: w})
		}
	}
	var cumulative []float64
	rebuild := func() {
		weights := make([]float64, len(pool))
		for i, c := range pool {
			weights[i] = c.weight
		}
		cumulative = floats.CumSum(make([]float64, len(weights)), weights)
	}
	rebuild()
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		for len(pool) > 0 {
			r := rng.Float64() * cumulative[len(cumulative)-1]
			i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
			if i == len(pool) {
				i--
			}
			if m, ok := pool[i].next(); ok {
				return m, true
			}
			pool = append(pool[:i], pool[i+1:]...)
			rebuild()
		}
		return nil, false
	})
}

// CartesianMoveSelector combines one move of every child into a composite
// move. When ignoreEmpty is set a child without moves is left out of the
// combination; otherwise it empties the whole product.
type CartesianMoveSelector struct {
	lifecycle
	selectors   []MoveSelector
	order       SelectionOrder
	ignoreEmpty bool
}

func NewCartesianMoveSelector(children []MoveSelector, order SelectionOrder, ignoreEmpty bool) *CartesianMoveSelector {
	s := &CartesianMoveSelector{selectors: children, order: order, ignoreEmpty: ignoreEmpty}
	for _, c := range children {
		s.children = append(s.children, c)
	}
	return s
}

func (s *CartesianMoveSelector) CacheType() CacheType {
	types := make([]CacheType, len(s.selectors))
	for i, c := range s.selectors {
		types[i] = c.CacheType()
	}
	return minCacheType(types...)
}

func (s *CartesianMoveSelector) MaxCacheType() CacheType {
	types := make([]CacheType, len(s.selectors))
	for i, c := range s.selectors {
		types[i] = maxCacheType(c)
	}
	return minCacheType(types...)
}

func (s *CartesianMoveSelector) IsCountable() bool {
	for _, c := range s.selectors {
		if !c.IsCountable() {
			return false
		}
	}
	return true
}

func (s *CartesianMoveSelector) IsNeverEnding() bool {
	if s.order == Random {
		return true
	}
	for _, c := range s.selectors {
		if c.IsNeverEnding() {
			return true
		}
	}
	return false
}

func (s *CartesianMoveSelector) Size() int64 {
	n := int64(1)
	counted := false
	for _, c := range s.selectors {
		size := c.Size()
		if size == 0 && s.ignoreEmpty {
			continue
		}
		n *= size
		counted = true
	}
	if !counted {
		return 0
	}
	return n
}

// combine wraps the picked moves, leaving a single move unwrapped.
func combine(moves []move.Move) move.Move {
	if len(moves) == 1 {
		return moves[0]
	}
	return move.NewComposite(moves...)
}

func (s *CartesianMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		return s.randomIterator()
	}
	// Children that have no moves at all are detected up front so an
	// ignored empty child does not hide the others.
	var active []MoveSelector
	for _, c := range s.selectors {
		if _, ok := c.Iterator().Next(); !ok {
			if s.ignoreEmpty {
				continue
			}
			return SliceIterator[move.Move](nil)
		}
		active = append(active, c)
	}
	if len(active) == 0 {
		return SliceIterator[move.Move](nil)
	}
	its := make([]Iterator[move.Move], len(active))
	picked := make([]move.Move, len(active))
	started := false
	// advance moves the odometer at position i, restarting every position
	// to its right.
	var advance func(i int) bool
	advance = func(i int) bool {
		if i < 0 {
			return false
		}
		if m, ok := its[i].Next(); ok {
			picked[i] = m
			return true
		}
		if !advance(i - 1) {
			return false
		}
		its[i] = active[i].Iterator()
		m, ok := its[i].Next()
		if !ok {
			return false
		}
		picked[i] = m
		return true
	}
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		if !started {
			started = true
			for i, c := range active {
				its[i] = c.Iterator()
				m, ok := its[i].Next()
				if !ok {
					return nil, false
				}
				picked[i] = m
			}
		} else if !advance(len(active) - 1) {
			return nil, false
		}
		return combine(append([]move.Move(nil), picked...)), true
	})
}

func (s *CartesianMoveSelector) randomIterator() Iterator[move.Move] {
	rng := s.random()
	draws := make([]func() (move.Move, bool), len(s.selectors))
	for i, c := range s.selectors {
		draws[i] = randomDraw(c, rng)
	}
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		var moves []move.Move
		for _, draw := range draws {
			m, ok := draw()
			if !ok {
				if s.ignoreEmpty {
					continue
				}
				return nil, false
			}
			moves = append(moves, m)
		}
		if len(moves) == 0 {
			return nil, false
		}
		return combine(moves), true
	})
}
