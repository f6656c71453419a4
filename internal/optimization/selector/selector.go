// Package selector builds the pipelines that produce candidate entities,
// values and moves for local search. Leaf selectors read the working
// solution; decorators cache, shuffle, weight or filter what a child
// produces; union and cartesian selectors combine several children.
package selector

import (
	"errors"
	"math/rand"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
)

var (
	// ErrIllegalCacheType is returned when a decorator's cache type cannot
	// work with its child.
	ErrIllegalCacheType = errors.New("illegal cache type")
	// ErrIllegalWeight is returned for a negative, NaN or infinite
	// selection weight.
	ErrIllegalWeight = errors.New("illegal selection weight")
	// ErrIllegalSize is returned for inconsistent size bounds.
	ErrIllegalSize = errors.New("illegal selection size")
)

// CacheType says how long a selector's items stay valid. Coarser types
// are greater.
type CacheType int

const (
	// JustInTime selectors produce items lazily from the live solution.
	JustInTime CacheType = iota
	// StepCache items are built when a step starts and dropped when it ends.
	StepCache
	// PhaseCache items live for a whole phase.
	PhaseCache
	// SolverCache items live for the whole solve.
	SolverCache
)

func (c CacheType) String() string {
	switch c {
	case JustInTime:
		return "just_in_time"
	case StepCache:
		return "step"
	case PhaseCache:
		return "phase"
	case SolverCache:
		return "solver"
	}
	return "unknown"
}

// IsCached reports whether items are built ahead of iteration.
func (c CacheType) IsCached() bool { return c > JustInTime }

// SelectionOrder says in which order a leaf or move selector iterates.
type SelectionOrder int

const (
	// Original iterates every item once in a deterministic order.
	Original SelectionOrder = iota
	// Random draws items uniformly with replacement, forever.
	Random
)

func (o SelectionOrder) String() string {
	if o == Random {
		return "random"
	}
	return "original"
}

// Iterator yields items until it returns false.
type Iterator[T any] interface {
	Next() (T, bool)
}

// Selector produces items of type T for one step at a time.
type Selector[T any] interface {
	scope.Listener
	// CacheType is the coarsest lifetime over which items stay valid.
	CacheType() CacheType
	// IsCountable reports whether Size is meaningful.
	IsCountable() bool
	// IsNeverEnding reports whether iterators never run out.
	IsNeverEnding() bool
	// Size is the number of distinct items, valid for countable
	// selectors during a step.
	Size() int64
	Iterator() Iterator[T]
}

// IteratorFunc adapts a function to Iterator.
type IteratorFunc[T any] func() (T, bool)

func (f IteratorFunc[T]) Next() (T, bool) { return f() }

type sliceIterator[T any] struct {
	items []T
	pos   int
}

func (it *sliceIterator[T]) Next() (T, bool) {
	if it.pos >= len(it.items) {
		var zero T
		return zero, false
	}
	item := it.items[it.pos]
	it.pos++
	return item, true
}

// SliceIterator iterates over items in order.
func SliceIterator[T any](items []T) Iterator[T] {
	return &sliceIterator[T]{items: items}
}

// randomIterator draws uniformly from items forever. It is empty when items
// is empty.
func randomIterator[T any](items []T, rng *rand.Rand) Iterator[T] {
	return IteratorFunc[T](func() (T, bool) {
		if len(items) == 0 {
			var zero T
			return zero, false
		}
		return items[rng.Intn(len(items))], true
	})
}

// Collect drains at most limit items from an iterator. A negative limit
// drains everything, which never returns for never-ending iterators.
func Collect[T any](it Iterator[T], limit int) []T {
	var out []T
	for limit < 0 || len(out) < limit {
		item, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out
}

// phaseState remembers the running phase so leaf selectors can reach the
// working solution and the shared random source.
type phaseState struct {
	scope.NoopListener
	phase *scope.Phase
}

func (s *phaseState) PhaseStarted(p *scope.Phase) error {
	s.phase = p
	return nil
}

func (s *phaseState) PhaseEnded(*scope.Phase) { s.phase = nil }

func (s *phaseState) director() *director.ScoreDirector { return s.phase.Director() }

func (s *phaseState) solution() *domain.Solution { return s.phase.Director().WorkingSolution() }

func (s *phaseState) random() *rand.Rand { return s.phase.Random() }

// lifecycle forwards every event to child selectors.
type lifecycle struct {
	phaseState
	children scope.Listeners
}

func (l *lifecycle) SolvingStarted(s *scope.Solver) error { return l.children.SolvingStarted(s) }

func (l *lifecycle) PhaseStarted(p *scope.Phase) error {
	l.phase = p
	return l.children.PhaseStarted(p)
}

func (l *lifecycle) StepStarted(st *scope.Step) error { return l.children.StepStarted(st) }
func (l *lifecycle) StepEnded(st *scope.Step)         { l.children.StepEnded(st) }

func (l *lifecycle) PhaseEnded(p *scope.Phase) {
	l.children.PhaseEnded(p)
	l.phase = nil
}

func (l *lifecycle) SolvingEnded(s *scope.Solver) { l.children.SolvingEnded(s) }

// cacheBounded is implemented by selectors whose items refer to positions
// in the live solution. Such items go stale once a step changes the
// solution, so they must not be cached longer than MaxCacheType.
type cacheBounded interface {
	MaxCacheType() CacheType
}

// maxCacheType is the coarsest cache type at which s's items stay valid.
func maxCacheType(s any) CacheType {
	if b, ok := s.(cacheBounded); ok {
		return b.MaxCacheType()
	}
	return SolverCache
}

func minCacheType(types ...CacheType) CacheType {
	out := SolverCache
	for _, t := range types {
		if t < out {
			out = t
		}
	}
	return out
}
