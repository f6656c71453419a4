package selector

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
)

// position is a slot in one entity's list.
type position struct {
	entity domain.ID
	index  int
}

// ListChangeMoveSelector moves assigned elements to another position and
// assigns unassigned elements. With unassigning enabled it also offers to
// take each assigned element out of its list.
type ListChangeMoveSelector struct {
	phaseState
	variable    *domain.Variable
	order       SelectionOrder
	unassigning bool
}

func NewListChangeMoveSelector(v *domain.Variable, order SelectionOrder, unassigning bool) *ListChangeMoveSelector {
	return &ListChangeMoveSelector{variable: v, order: order, unassigning: unassigning}
}

func (s *ListChangeMoveSelector) CacheType() CacheType { return JustInTime }
func (s *ListChangeMoveSelector) IsCountable() bool    { return true }
func (s *ListChangeMoveSelector) IsNeverEnding() bool  { return s.order == Random }

// MaxCacheType is StepCache: list moves address elements by index.
func (s *ListChangeMoveSelector) MaxCacheType() CacheType { return StepCache }

// Size counts every (element, destination) pair, where a destination is any
// index of any list after the element has been removed, other than the
// element's own position.
func (s *ListChangeMoveSelector) Size() int64 {
	sol := s.solution()
	entities := sol.ObjectsOf(s.variable.Class)
	assigned := int64(0)
	for _, e := range entities {
		assigned += int64(len(sol.Seq(e, s.variable)))
	}
	unassigned := int64(len(sol.ObjectsOf(s.variable.ElementClass()))) - assigned
	slots := assigned + int64(len(entities))
	n := assigned*(slots-2) + unassigned*slots
	if s.unassigning {
		n += assigned
	}
	return n
}

// sources lists the positions of assigned elements followed by unassigned
// elements, which have entity None.
func (s *ListChangeMoveSelector) sources() ([]position, []domain.ID) {
	sol := s.solution()
	var out []position
	for _, e := range sol.ObjectsOf(s.variable.Class) {
		for i := range sol.Seq(e, s.variable) {
			out = append(out, position{entity: e, index: i})
		}
	}
	return out, s.director().UnassignedElements(s.variable)
}

// destinations lists every insertion point, given the length each list will
// have when the destination index is used.
func (s *ListChangeMoveSelector) destinations(src position) []position {
	sol := s.solution()
	var out []position
	for _, e := range sol.ObjectsOf(s.variable.Class) {
		n := len(sol.Seq(e, s.variable))
		if src.entity == e {
			n--
		}
		for i := 0; i <= n; i++ {
			if src.entity == e && src.index == i {
				continue
			}
			out = append(out, position{entity: e, index: i})
		}
	}
	return out
}

func (s *ListChangeMoveSelector) Iterator() Iterator[move.Move] {
	sol := s.solution()
	if s.order == Random {
		return s.randomIterator()
	}
	assigned, unassigned := s.sources()
	var queue []move.Move
	srcIndex, elemIndex := 0, 0
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		for len(queue) == 0 {
			switch {
			case srcIndex < len(assigned):
				src := assigned[srcIndex]
				srcIndex++
				for _, dst := range s.destinations(src) {
					queue = append(queue, move.NewListChange(sol, s.variable, src.entity, src.index, dst.entity, dst.index))
				}
				if s.unassigning {
					el := sol.Seq(src.entity, s.variable)[src.index]
					queue = append(queue, &move.ListUnassign{Variable: s.variable, Source: src.entity, Index: src.index, Element: el})
				}
			case elemIndex < len(unassigned):
				el := unassigned[elemIndex]
				elemIndex++
				for _, dst := range s.destinations(position{entity: domain.None}) {
					queue = append(queue, &move.ListAssign{Variable: s.variable, Element: el, Destination: dst.entity, Index: dst.index})
				}
			default:
				return nil, false
			}
		}
		m := queue[0]
		queue = queue[1:]
		return m, true
	})
}

func (s *ListChangeMoveSelector) randomIterator() Iterator[move.Move] {
	sol := s.solution()
	rng := s.random()
	assigned, unassigned := s.sources()
	total := len(assigned) + len(unassigned)
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		if total == 0 {
			return nil, false
		}
		pick := rng.Intn(total)
		if pick >= len(assigned) {
			el := unassigned[pick-len(assigned)]
			dsts := s.destinations(position{entity: domain.None})
			if len(dsts) == 0 {
				return nil, false
			}
			dst := dsts[rng.Intn(len(dsts))]
			return &move.ListAssign{Variable: s.variable, Element: el, Destination: dst.entity, Index: dst.index}, true
		}
		src := assigned[pick]
		dsts := s.destinations(src)
		if s.unassigning && rng.Intn(len(dsts)+1) == len(dsts) {
			el := sol.Seq(src.entity, s.variable)[src.index]
			return &move.ListUnassign{Variable: s.variable, Source: src.entity, Index: src.index, Element: el}, true
		}
		if len(dsts) == 0 {
			return nil, false
		}
		dst := dsts[rng.Intn(len(dsts))]
		return move.NewListChange(sol, s.variable, src.entity, src.index, dst.entity, dst.index), true
	})
}

// ListSwapMoveSelector swaps two assigned elements.
type ListSwapMoveSelector struct {
	phaseState
	variable *domain.Variable
	order    SelectionOrder
}

func NewListSwapMoveSelector(v *domain.Variable, order SelectionOrder) *ListSwapMoveSelector {
	return &ListSwapMoveSelector{variable: v, order: order}
}

func (s *ListSwapMoveSelector) CacheType() CacheType { return JustInTime }
func (s *ListSwapMoveSelector) IsCountable() bool    { return true }
func (s *ListSwapMoveSelector) IsNeverEnding() bool  { return s.order == Random }

func (s *ListSwapMoveSelector) MaxCacheType() CacheType { return StepCache }

func (s *ListSwapMoveSelector) positions() []position {
	sol := s.solution()
	var out []position
	for _, e := range sol.ObjectsOf(s.variable.Class) {
		for i := range sol.Seq(e, s.variable) {
			out = append(out, position{entity: e, index: i})
		}
	}
	return out
}

func (s *ListSwapMoveSelector) Size() int64 {
	n := int64(len(s.positions()))
	return n * (n - 1) / 2
}

func (s *ListSwapMoveSelector) newMove(a, b position) move.Move {
	return move.NewListSwap(s.solution(), s.variable, a.entity, a.index, b.entity, b.index)
}

func (s *ListSwapMoveSelector) Iterator() Iterator[move.Move] {
	items := s.positions()
	if s.order == Random {
		rng := s.random()
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			if len(items) < 2 {
				return nil, false
			}
			i := rng.Intn(len(items))
			j := rng.Intn(len(items) - 1)
			if j >= i {
				j++
			}
			return s.newMove(items[i], items[j]), true
		})
	}
	all := &fixed[position]{items: items}
	pairs := pairIterator[position](all, all, true)
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		p, ok := pairs.Next()
		if !ok {
			return nil, false
		}
		return s.newMove(p[0], p[1]), true
	})
}

// SubListChangeMoveSelector moves runs of consecutive elements to another
// position, optionally reversed.
type SubListChangeMoveSelector struct {
	phaseState
	variable  *domain.Variable
	order     SelectionOrder
	bounds    SizeBounds
	reversing bool
}

func NewSubListChangeMoveSelector(v *domain.Variable, order SelectionOrder, bounds SizeBounds, reversing bool) (*SubListChangeMoveSelector, error) {
	if err := bounds.Validate("SubListChangeMoveSelector"); err != nil {
		return nil, err
	}
	return &SubListChangeMoveSelector{variable: v, order: order, bounds: bounds, reversing: reversing}, nil
}

func (s *SubListChangeMoveSelector) CacheType() CacheType { return JustInTime }
func (s *SubListChangeMoveSelector) IsCountable() bool    { return true }
func (s *SubListChangeMoveSelector) IsNeverEnding() bool  { return s.order == Random }

func (s *SubListChangeMoveSelector) MaxCacheType() CacheType { return StepCache }

func (s *SubListChangeMoveSelector) Size() int64 {
	return int64(len(s.all()))
}

type subList struct {
	entity        domain.ID
	index, length int
}

func (s *SubListChangeMoveSelector) subLists() []subList {
	sol := s.solution()
	var out []subList
	for _, e := range sol.ObjectsOf(s.variable.Class) {
		n := len(sol.Seq(e, s.variable))
		for from := 0; from < n; from++ {
			for l := s.bounds.Min; from+l <= n && l <= s.bounds.upper(n); l++ {
				out = append(out, subList{entity: e, index: from, length: l})
			}
		}
	}
	return out
}

// all enumerates every move in original order.
func (s *SubListChangeMoveSelector) all() []move.Move {
	sol := s.solution()
	entities := sol.ObjectsOf(s.variable.Class)
	var out []move.Move
	for _, sub := range s.subLists() {
		for _, e := range entities {
			n := len(sol.Seq(e, s.variable))
			if e == sub.entity {
				n -= sub.length
			}
			for i := 0; i <= n; i++ {
				m := move.NewSubListChange(sol, s.variable, sub.entity, sub.index, sub.length, e, i, false)
				if !(e == sub.entity && i == sub.index) {
					out = append(out, m)
				}
				if s.reversing && (sub.length > 1 || e != sub.entity || i != sub.index) {
					r := *m
					r.Reverse = true
					out = append(out, &r)
				}
			}
		}
	}
	return out
}

func (s *SubListChangeMoveSelector) Iterator() Iterator[move.Move] {
	if s.order != Random {
		return SliceIterator(s.all())
	}
	sol := s.solution()
	rng := s.random()
	subs := s.subLists()
	entities := sol.ObjectsOf(s.variable.Class)
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		if len(subs) == 0 || len(entities) == 0 {
			return nil, false
		}
		sub := subs[rng.Intn(len(subs))]
		e := entities[rng.Intn(len(entities))]
		n := len(sol.Seq(e, s.variable))
		if e == sub.entity {
			n -= sub.length
		}
		return move.NewSubListChange(sol, s.variable, sub.entity, sub.index, sub.length,
			e, rng.Intn(n+1), s.reversing && rng.Intn(2) == 1), true
	})
}

// fixed is a finite selector over a precomputed slice.
type fixed[T any] struct {
	scope.NoopListener
	items []T
}

func (f *fixed[T]) CacheType() CacheType  { return SolverCache }
func (f *fixed[T]) IsCountable() bool     { return true }
func (f *fixed[T]) IsNeverEnding() bool   { return false }
func (f *fixed[T]) Size() int64           { return int64(len(f.items)) }
func (f *fixed[T]) Iterator() Iterator[T] { return SliceIterator(f.items) }

// Fixed returns a selector over a constant list of items, mainly for
// composing selectors in tests and custom pipelines.
func Fixed[T any](items ...T) Selector[T] {
	return &fixed[T]{items: items}
}
