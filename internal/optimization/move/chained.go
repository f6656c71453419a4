package move

import (
	"fmt"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// ChainedChange moves one entity of a chain to directly after To, which is
// another entity or an anchor. The entity that followed it is relinked to
// its old predecessor and the entity that followed To is relinked to it.
type ChainedChange struct {
	Entity   domain.ID
	Variable *domain.Variable
	To       domain.ID
}

func (m *ChainedChange) IsDoable(sd *director.ScoreDirector) bool {
	return m.To != m.Entity && m.To != domain.None &&
		sd.WorkingSolution().Ref(m.Entity, m.Variable) != m.To
}

func (m *ChainedChange) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	oldPrev := sd.WorkingSolution().Ref(m.Entity, v)
	oldNext := sd.NextInChain(v, m.Entity)
	newNext := sd.NextInChain(v, m.To)

	if oldNext != domain.None {
		sd.ChangeVariable(oldNext, v, oldPrev)
	}
	sd.ChangeVariable(m.Entity, v, m.To)
	if newNext != domain.None {
		sd.ChangeVariable(newNext, v, m.Entity)
	}
	return &ChainedChange{Entity: m.Entity, Variable: v, To: oldPrev}
}

func (m *ChainedChange) PlanningEntities() []domain.ID { return []domain.ID{m.Entity} }
func (m *ChainedChange) PlanningValues() []domain.ID   { return []domain.ID{m.To} }

func (m *ChainedChange) Key() string {
	return fmt.Sprintf("chainedChange:%d:%s:%d", m.Entity, m.Variable, m.To)
}

func (m *ChainedChange) String() string {
	return fmt.Sprintf("%d.%s -> after %d", m.Entity, m.Variable.Name, m.To)
}

// ChainedSwap exchanges the positions of two chained entities, possibly in
// different chains. It is its own undo.
type ChainedSwap struct {
	Left, Right domain.ID
	Variable    *domain.Variable
}

func (m *ChainedSwap) IsDoable(*director.ScoreDirector) bool {
	return m.Left != m.Right
}

func (m *ChainedSwap) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	sol := sd.WorkingSolution()
	left, right := m.Left, m.Right
	switch {
	case sol.Ref(right, v) == left:
		(&ChainedChange{Entity: left, Variable: v, To: right}).Do(sd)
	case sol.Ref(left, v) == right:
		(&ChainedChange{Entity: right, Variable: v, To: left}).Do(sd)
	default:
		leftPrev, rightPrev := sol.Ref(left, v), sol.Ref(right, v)
		leftNext, rightNext := sd.NextInChain(v, left), sd.NextInChain(v, right)
		sd.ChangeVariable(left, v, rightPrev)
		sd.ChangeVariable(right, v, leftPrev)
		if leftNext != domain.None {
			sd.ChangeVariable(leftNext, v, right)
		}
		if rightNext != domain.None {
			sd.ChangeVariable(rightNext, v, left)
		}
	}
	return &ChainedSwap{Left: m.Left, Right: m.Right, Variable: v}
}

func (m *ChainedSwap) PlanningEntities() []domain.ID { return []domain.ID{m.Left, m.Right} }
func (m *ChainedSwap) PlanningValues() []domain.ID   { return nil }

func (m *ChainedSwap) Key() string {
	a, b := m.Left, m.Right
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("chainedSwap:%d:%d:%s", a, b, m.Variable)
}

func (m *ChainedSwap) String() string {
	return fmt.Sprintf("%d <-> %d (%s)", m.Left, m.Right, m.Variable.Name)
}

// SubChainChange moves a contiguous run of chained entities, listed in chain
// order, to directly after To. With Reverse set the run is inserted in
// reverse order; To may then be the run's current predecessor, reversing it
// in place.
type SubChainChange struct {
	SubChain []domain.ID
	Variable *domain.Variable
	To       domain.ID
	Reverse  bool
}

// IsDoable also checks that SubChain is still a contiguous run of the live
// chain.
func (m *SubChainChange) IsDoable(sd *director.ScoreDirector) bool {
	if len(m.SubChain) == 0 || m.To == domain.None || contains(m.SubChain, m.To) {
		return false
	}
	sol := sd.WorkingSolution()
	if !linked(sol, m.Variable, m.SubChain) {
		return false
	}
	if sol.Ref(m.SubChain[0], m.Variable) == m.To {
		return m.Reverse && len(m.SubChain) > 1
	}
	return true
}

func (m *SubChainChange) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	first, last := m.SubChain[0], m.SubChain[len(m.SubChain)-1]
	oldPrev := sd.WorkingSolution().Ref(first, v)
	oldNext := sd.NextInChain(v, last)
	newNext := sd.NextInChain(v, m.To)
	inPlace := newNext == first
	if inPlace {
		newNext = oldNext
	} else if oldNext != domain.None {
		sd.ChangeVariable(oldNext, v, oldPrev)
	}

	moved := m.SubChain
	if m.Reverse {
		moved = reversed(m.SubChain)
		for i := len(m.SubChain) - 1; i > 0; i-- {
			sd.ChangeVariable(m.SubChain[i-1], v, m.SubChain[i])
		}
	}
	head, tail := moved[0], moved[len(moved)-1]
	sd.ChangeVariable(head, v, m.To)
	if newNext != domain.None {
		sd.ChangeVariable(newNext, v, tail)
	}
	return &SubChainChange{SubChain: moved, Variable: v, To: oldPrev, Reverse: m.Reverse}
}

func (m *SubChainChange) PlanningEntities() []domain.ID { return m.SubChain }
func (m *SubChainChange) PlanningValues() []domain.ID   { return []domain.ID{m.To} }

func (m *SubChainChange) Key() string {
	return fmt.Sprintf("subChainChange:%s:%s:%d:%t", idList(m.SubChain), m.Variable, m.To, m.Reverse)
}

func (m *SubChainChange) String() string {
	s := fmt.Sprintf("[%s].%s -> after %d", idList(m.SubChain), m.Variable.Name, m.To)
	if m.Reverse {
		s += " reversed"
	}
	return s
}

// SubChainSwap exchanges two non-overlapping runs of chained entities,
// each listed in chain order. With Reverse set both runs are reversed.
type SubChainSwap struct {
	Left, Right []domain.ID
	Variable    *domain.Variable
	Reverse     bool
}

func (m *SubChainSwap) IsDoable(sd *director.ScoreDirector) bool {
	if len(m.Left) == 0 || len(m.Right) == 0 {
		return false
	}
	for _, e := range m.Left {
		if contains(m.Right, e) {
			return false
		}
	}
	sol := sd.WorkingSolution()
	return linked(sol, m.Variable, m.Left) && linked(sol, m.Variable, m.Right)
}

func (m *SubChainSwap) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	sol := sd.WorkingSolution()
	left, right := m.Left, m.Right
	if sol.Ref(left[0], v) == right[len(right)-1] {
		left, right = right, left
	}
	leftPrev := sol.Ref(left[0], v)
	rightPrev := sol.Ref(right[0], v)
	adjacent := rightPrev == left[len(left)-1]

	// Right goes where left was; left then goes where right was. When the
	// runs are adjacent the first step already swaps them.
	(&SubChainChange{SubChain: right, Variable: v, To: leftPrev, Reverse: m.Reverse}).Do(sd)
	newLeft, newRight := m.Left, m.Right
	if m.Reverse {
		newLeft, newRight = reversed(m.Left), reversed(m.Right)
	}
	if adjacent {
		if m.Reverse {
			to := sol.Ref(left[0], v)
			(&SubChainChange{SubChain: left, Variable: v, To: to, Reverse: true}).Do(sd)
		}
	} else {
		(&SubChainChange{SubChain: left, Variable: v, To: rightPrev, Reverse: m.Reverse}).Do(sd)
	}
	return &SubChainSwap{Left: newLeft, Right: newRight, Variable: v, Reverse: m.Reverse}
}

func (m *SubChainSwap) PlanningEntities() []domain.ID {
	return unique(append(append([]domain.ID(nil), m.Left...), m.Right...))
}

func (m *SubChainSwap) PlanningValues() []domain.ID { return nil }

func (m *SubChainSwap) Key() string {
	a, b := idList(m.Left), idList(m.Right)
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("subChainSwap:%s:%s:%s:%t", a, b, m.Variable, m.Reverse)
}

func (m *SubChainSwap) String() string {
	s := fmt.Sprintf("[%s] <-> [%s] (%s)", idList(m.Left), idList(m.Right), m.Variable.Name)
	if m.Reverse {
		s += " reversed"
	}
	return s
}

// linked reports whether run is a contiguous run of its chain, in chain
// order.
func linked(sol *domain.Solution, v *domain.Variable, run []domain.ID) bool {
	for i := 1; i < len(run); i++ {
		if sol.Ref(run[i], v) != run[i-1] {
			return false
		}
	}
	return true
}

func contains(ids []domain.ID, id domain.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func reversed(ids []domain.ID) []domain.ID {
	out := make([]domain.ID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
