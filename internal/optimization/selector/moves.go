package selector

import (
	"math/rand"

	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
)

// MoveSelector is a selector of moves.
type MoveSelector = Selector[move.Move]

// randomDraw returns a function drawing a uniformly random item of sel. A
// never-ending child is already random and is simply advanced; a finite one
// is collected once.
func randomDraw[T any](sel Selector[T], rng *rand.Rand) func() (T, bool) {
	if sel.IsNeverEnding() {
		it := sel.Iterator()
		return it.Next
	}
	items := Collect(sel.Iterator(), -1)
	return randomIterator(items, rng).Next
}

func listeners(sels ...scope.Listener) scope.Listeners {
	var out scope.Listeners
	for _, s := range sels {
		dup := false
		for _, o := range out {
			if o == s {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// pairIterator yields every pair of a from left and b from right. When both
// come from the same selector only pairs with a before b are produced.
func pairIterator[T any](left, right Selector[T], same bool) Iterator[[2]T] {
	if same {
		items := Collect(left.Iterator(), -1)
		i, j := 0, 0
		return IteratorFunc[[2]T](func() ([2]T, bool) {
			j++
			if j >= len(items) {
				i++
				j = i + 1
			}
			if j >= len(items) {
				return [2]T{}, false
			}
			return [2]T{items[i], items[j]}, true
		})
	}
	outer := left.Iterator()
	var inner Iterator[T]
	var a T
	return IteratorFunc[[2]T](func() ([2]T, bool) {
		for {
			if inner == nil {
				var ok bool
				if a, ok = outer.Next(); !ok {
					return [2]T{}, false
				}
				inner = right.Iterator()
			}
			b, ok := inner.Next()
			if !ok {
				inner = nil
				continue
			}
			return [2]T{a, b}, true
		}
	})
}

// ChangeMoveSelector combines entities with values of one variable. Chained
// variables get chained change moves.
type ChangeMoveSelector struct {
	lifecycle
	entities Selector[domain.ID]
	values   Selector[domain.ID]
	variable *domain.Variable
	order    SelectionOrder
}

func NewChangeMoveSelector(entities Selector[domain.ID], v *domain.Variable, values Selector[domain.ID], order SelectionOrder) *ChangeMoveSelector {
	s := &ChangeMoveSelector{entities: entities, values: values, variable: v, order: order}
	s.children = listeners(entities, values)
	return s
}

func (s *ChangeMoveSelector) CacheType() CacheType {
	return minCacheType(s.entities.CacheType(), s.values.CacheType())
}

func (s *ChangeMoveSelector) IsCountable() bool {
	return s.entities.IsCountable() && s.values.IsCountable()
}

func (s *ChangeMoveSelector) IsNeverEnding() bool {
	return s.order == Random || s.entities.IsNeverEnding() || s.values.IsNeverEnding()
}

func (s *ChangeMoveSelector) Size() int64 { return s.entities.Size() * s.values.Size() }

func (s *ChangeMoveSelector) newMove(e, value domain.ID) move.Move {
	if s.variable.Kind == domain.Chained {
		return &move.ChainedChange{Entity: e, Variable: s.variable, To: value}
	}
	return &move.Change{Entity: e, Variable: s.variable, To: value}
}

func (s *ChangeMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		nextEntity := randomDraw(s.entities, s.random())
		nextValue := randomDraw(s.values, s.random())
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			e, ok := nextEntity()
			if !ok {
				return nil, false
			}
			v, ok := nextValue()
			if !ok {
				return nil, false
			}
			return s.newMove(e, v), true
		})
	}
	pairs := pairIterator(s.entities, s.values, false)
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		p, ok := pairs.Next()
		if !ok {
			return nil, false
		}
		return s.newMove(p[0], p[1]), true
	})
}

// SwapMoveSelector pairs entities and swaps their values. Chained variables
// get chained swap moves on the first variable.
type SwapMoveSelector struct {
	lifecycle
	left, right Selector[domain.ID]
	variables   []*domain.Variable
	order       SelectionOrder
}

// NewSwapMoveSelector swaps the given variables. Passing the same selector
// twice avoids producing both a swap and its mirror.
func NewSwapMoveSelector(left, right Selector[domain.ID], vars []*domain.Variable, order SelectionOrder) *SwapMoveSelector {
	s := &SwapMoveSelector{left: left, right: right, variables: vars, order: order}
	s.children = listeners(left, right)
	return s
}

func (s *SwapMoveSelector) CacheType() CacheType {
	return minCacheType(s.left.CacheType(), s.right.CacheType())
}

func (s *SwapMoveSelector) IsCountable() bool {
	return s.left.IsCountable() && s.right.IsCountable()
}

func (s *SwapMoveSelector) IsNeverEnding() bool {
	return s.order == Random || s.left.IsNeverEnding() || s.right.IsNeverEnding()
}

func (s *SwapMoveSelector) Size() int64 {
	if s.sameChild() {
		n := s.left.Size()
		return n * (n - 1) / 2
	}
	return s.left.Size() * s.right.Size()
}

func (s *SwapMoveSelector) sameChild() bool {
	return s.left == s.right
}

func (s *SwapMoveSelector) newMove(a, b domain.ID) move.Move {
	if len(s.variables) > 0 && s.variables[0].Kind == domain.Chained {
		return &move.ChainedSwap{Left: a, Right: b, Variable: s.variables[0]}
	}
	return &move.Swap{Left: a, Right: b, Variables: s.variables}
}

func (s *SwapMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		nextLeft := randomDraw(s.left, s.random())
		nextRight := randomDraw(s.right, s.random())
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			a, ok := nextLeft()
			if !ok {
				return nil, false
			}
			b, ok := nextRight()
			if !ok {
				return nil, false
			}
			return s.newMove(a, b), true
		})
	}
	pairs := pairIterator(s.left, s.right, s.sameChild())
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		p, ok := pairs.Next()
		if !ok {
			return nil, false
		}
		return s.newMove(p[0], p[1]), true
	})
}

// PillarChangeMoveSelector moves whole pillars to a new value.
type PillarChangeMoveSelector struct {
	lifecycle
	pillars  Selector[[]domain.ID]
	values   Selector[domain.ID]
	variable *domain.Variable
	order    SelectionOrder
}

func NewPillarChangeMoveSelector(pillars Selector[[]domain.ID], v *domain.Variable, values Selector[domain.ID], order SelectionOrder) *PillarChangeMoveSelector {
	s := &PillarChangeMoveSelector{pillars: pillars, values: values, variable: v, order: order}
	s.children = listeners(pillars, values)
	return s
}

func (s *PillarChangeMoveSelector) CacheType() CacheType {
	return minCacheType(s.pillars.CacheType(), s.values.CacheType())
}

func (s *PillarChangeMoveSelector) IsCountable() bool {
	return s.pillars.IsCountable() && s.values.IsCountable()
}

func (s *PillarChangeMoveSelector) IsNeverEnding() bool {
	return s.order == Random || s.pillars.IsNeverEnding() || s.values.IsNeverEnding()
}

func (s *PillarChangeMoveSelector) Size() int64 { return s.pillars.Size() * s.values.Size() }

func (s *PillarChangeMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		nextPillar := randomDraw(s.pillars, s.random())
		nextValue := randomDraw(s.values, s.random())
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			p, ok := nextPillar()
			if !ok {
				return nil, false
			}
			v, ok := nextValue()
			if !ok {
				return nil, false
			}
			return &move.PillarChange{Pillar: p, Variable: s.variable, To: v}, true
		})
	}
	outer := s.pillars.Iterator()
	var inner Iterator[domain.ID]
	var pillar []domain.ID
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		for {
			if inner == nil {
				var ok bool
				if pillar, ok = outer.Next(); !ok {
					return nil, false
				}
				inner = s.values.Iterator()
			}
			v, ok := inner.Next()
			if !ok {
				inner = nil
				continue
			}
			return &move.PillarChange{Pillar: pillar, Variable: s.variable, To: v}, true
		}
	})
}

// PillarSwapMoveSelector swaps the values of two pillars.
type PillarSwapMoveSelector struct {
	lifecycle
	pillars   Selector[[]domain.ID]
	variables []*domain.Variable
	order     SelectionOrder
}

func NewPillarSwapMoveSelector(pillars Selector[[]domain.ID], vars []*domain.Variable, order SelectionOrder) *PillarSwapMoveSelector {
	s := &PillarSwapMoveSelector{pillars: pillars, variables: vars, order: order}
	s.children = listeners(pillars)
	return s
}

func (s *PillarSwapMoveSelector) CacheType() CacheType { return s.pillars.CacheType() }
func (s *PillarSwapMoveSelector) IsCountable() bool    { return s.pillars.IsCountable() }

func (s *PillarSwapMoveSelector) IsNeverEnding() bool {
	return s.order == Random || s.pillars.IsNeverEnding()
}

func (s *PillarSwapMoveSelector) Size() int64 {
	n := s.pillars.Size()
	return n * (n - 1) / 2
}

func (s *PillarSwapMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		next := randomDraw(s.pillars, s.random())
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			a, ok := next()
			if !ok {
				return nil, false
			}
			b, ok := next()
			if !ok {
				return nil, false
			}
			return &move.PillarSwap{Left: a, Right: b, Variables: s.variables}, true
		})
	}
	pairs := pairIterator(s.pillars, s.pillars, true)
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		p, ok := pairs.Next()
		if !ok {
			return nil, false
		}
		return &move.PillarSwap{Left: p[0], Right: p[1], Variables: s.variables}, true
	})
}

// SubChainChangeMoveSelector moves sub-chains after a new value. With
// reversing enabled every sub-chain is also offered reversed.
type SubChainChangeMoveSelector struct {
	lifecycle
	subChains Selector[[]domain.ID]
	values    Selector[domain.ID]
	variable  *domain.Variable
	order     SelectionOrder
	reversing bool
}

func NewSubChainChangeMoveSelector(subChains Selector[[]domain.ID], v *domain.Variable, values Selector[domain.ID], order SelectionOrder, reversing bool) *SubChainChangeMoveSelector {
	s := &SubChainChangeMoveSelector{subChains: subChains, values: values, variable: v, order: order, reversing: reversing}
	s.children = listeners(subChains, values)
	return s
}

func (s *SubChainChangeMoveSelector) CacheType() CacheType {
	return minCacheType(s.subChains.CacheType(), s.values.CacheType())
}

func (s *SubChainChangeMoveSelector) MaxCacheType() CacheType { return maxCacheType(s.subChains) }

func (s *SubChainChangeMoveSelector) IsCountable() bool {
	return s.subChains.IsCountable() && s.values.IsCountable()
}

func (s *SubChainChangeMoveSelector) IsNeverEnding() bool {
	return s.order == Random || s.subChains.IsNeverEnding() || s.values.IsNeverEnding()
}

func (s *SubChainChangeMoveSelector) Size() int64 {
	n := s.subChains.Size() * s.values.Size()
	if s.reversing {
		n *= 2
	}
	return n
}

func (s *SubChainChangeMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		rng := s.random()
		nextSub := randomDraw(s.subChains, rng)
		nextValue := randomDraw(s.values, rng)
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			sub, ok := nextSub()
			if !ok {
				return nil, false
			}
			v, ok := nextValue()
			if !ok {
				return nil, false
			}
			reverse := s.reversing && rng.Intn(2) == 1
			return &move.SubChainChange{SubChain: sub, Variable: s.variable, To: v, Reverse: reverse}, true
		})
	}
	outer := s.subChains.Iterator()
	var inner Iterator[domain.ID]
	var sub []domain.ID
	var pending move.Move
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		if pending != nil {
			m := pending
			pending = nil
			return m, true
		}
		for {
			if inner == nil {
				var ok bool
				if sub, ok = outer.Next(); !ok {
					return nil, false
				}
				inner = s.values.Iterator()
			}
			v, ok := inner.Next()
			if !ok {
				inner = nil
				continue
			}
			if s.reversing {
				pending = &move.SubChainChange{SubChain: sub, Variable: s.variable, To: v, Reverse: true}
			}
			return &move.SubChainChange{SubChain: sub, Variable: s.variable, To: v}, true
		}
	})
}

// SubChainSwapMoveSelector swaps two sub-chains of the same selector.
type SubChainSwapMoveSelector struct {
	lifecycle
	subChains Selector[[]domain.ID]
	variable  *domain.Variable
	order     SelectionOrder
	reversing bool
}

func NewSubChainSwapMoveSelector(subChains Selector[[]domain.ID], v *domain.Variable, order SelectionOrder, reversing bool) *SubChainSwapMoveSelector {
	s := &SubChainSwapMoveSelector{subChains: subChains, variable: v, order: order, reversing: reversing}
	s.children = listeners(subChains)
	return s
}

func (s *SubChainSwapMoveSelector) CacheType() CacheType { return s.subChains.CacheType() }
func (s *SubChainSwapMoveSelector) IsCountable() bool    { return s.subChains.IsCountable() }

func (s *SubChainSwapMoveSelector) MaxCacheType() CacheType { return maxCacheType(s.subChains) }

func (s *SubChainSwapMoveSelector) IsNeverEnding() bool {
	return s.order == Random || s.subChains.IsNeverEnding()
}

func (s *SubChainSwapMoveSelector) Size() int64 {
	n := s.subChains.Size()
	n = n * (n - 1) / 2
	if s.reversing {
		n *= 2
	}
	return n
}

func (s *SubChainSwapMoveSelector) Iterator() Iterator[move.Move] {
	if s.order == Random {
		rng := s.random()
		next := randomDraw(s.subChains, rng)
		return IteratorFunc[move.Move](func() (move.Move, bool) {
			a, ok := next()
			if !ok {
				return nil, false
			}
			b, ok := next()
			if !ok {
				return nil, false
			}
			reverse := s.reversing && rng.Intn(2) == 1
			return &move.SubChainSwap{Left: a, Right: b, Variable: s.variable, Reverse: reverse}, true
		})
	}
	pairs := pairIterator(s.subChains, s.subChains, true)
	var pending move.Move
	return IteratorFunc[move.Move](func() (move.Move, bool) {
		if pending != nil {
			m := pending
			pending = nil
			return m, true
		}
		p, ok := pairs.Next()
		if !ok {
			return nil, false
		}
		if s.reversing {
			pending = &move.SubChainSwap{Left: p[0], Right: p[1], Variable: s.variable, Reverse: true}
		}
		return &move.SubChainSwap{Left: p[0], Right: p[1], Variable: s.variable}, true
	})
}
