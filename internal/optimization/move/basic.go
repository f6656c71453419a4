package move

import (
	"fmt"
	"sort"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// Change assigns a new value to one basic variable of one entity.
type Change struct {
	Entity   domain.ID
	Variable *domain.Variable
	To       domain.ID
}

func (m *Change) IsDoable(sd *director.ScoreDirector) bool {
	return sd.WorkingSolution().Ref(m.Entity, m.Variable) != m.To
}

func (m *Change) Do(sd *director.ScoreDirector) Move {
	from := sd.WorkingSolution().Ref(m.Entity, m.Variable)
	sd.ChangeVariable(m.Entity, m.Variable, m.To)
	return &Change{Entity: m.Entity, Variable: m.Variable, To: from}
}

func (m *Change) PlanningEntities() []domain.ID { return []domain.ID{m.Entity} }
func (m *Change) PlanningValues() []domain.ID   { return []domain.ID{m.To} }

func (m *Change) Key() string {
	return fmt.Sprintf("change:%d:%s:%d", m.Entity, m.Variable, m.To)
}

func (m *Change) String() string {
	return fmt.Sprintf("%d.%s -> %d", m.Entity, m.Variable.Name, m.To)
}

// Swap exchanges the values of the given basic variables between two
// entities of the same class. It is its own undo.
type Swap struct {
	Left, Right domain.ID
	Variables   []*domain.Variable
}

func (m *Swap) IsDoable(sd *director.ScoreDirector) bool {
	if m.Left == m.Right {
		return false
	}
	sol := sd.WorkingSolution()
	for _, v := range m.Variables {
		if sol.Ref(m.Left, v) != sol.Ref(m.Right, v) {
			return true
		}
	}
	return false
}

func (m *Swap) Do(sd *director.ScoreDirector) Move {
	sol := sd.WorkingSolution()
	for _, v := range m.Variables {
		l, r := sol.Ref(m.Left, v), sol.Ref(m.Right, v)
		if l == r {
			continue
		}
		sd.ChangeVariable(m.Left, v, r)
		sd.ChangeVariable(m.Right, v, l)
	}
	return &Swap{Left: m.Left, Right: m.Right, Variables: m.Variables}
}

func (m *Swap) PlanningEntities() []domain.ID { return []domain.ID{m.Left, m.Right} }

// PlanningValues is empty: a swap assigns no value that was not already
// assigned before.
func (m *Swap) PlanningValues() []domain.ID { return nil }

func (m *Swap) Key() string {
	a, b := m.Left, m.Right
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("swap:%d:%d:%s", a, b, varNames(m.Variables))
}

func (m *Swap) String() string {
	return fmt.Sprintf("%d <-> %d", m.Left, m.Right)
}

// PillarChange assigns a new value to every entity of a pillar. A pillar is a
// set of entities sharing the same value of a basic variable.
type PillarChange struct {
	Pillar   []domain.ID
	Variable *domain.Variable
	To       domain.ID
}

func (m *PillarChange) IsDoable(sd *director.ScoreDirector) bool {
	if len(m.Pillar) == 0 {
		return false
	}
	sol := sd.WorkingSolution()
	for _, e := range m.Pillar {
		if sol.Ref(e, m.Variable) != m.To {
			return true
		}
	}
	return false
}

func (m *PillarChange) Do(sd *director.ScoreDirector) Move {
	from := sd.WorkingSolution().Ref(m.Pillar[0], m.Variable)
	for _, e := range m.Pillar {
		sd.ChangeVariable(e, m.Variable, m.To)
	}
	return &PillarChange{Pillar: m.Pillar, Variable: m.Variable, To: from}
}

func (m *PillarChange) PlanningEntities() []domain.ID { return m.Pillar }
func (m *PillarChange) PlanningValues() []domain.ID   { return []domain.ID{m.To} }

func (m *PillarChange) Key() string {
	return fmt.Sprintf("pillarChange:%s:%s:%d", idList(sortedCopy(m.Pillar)), m.Variable, m.To)
}

func (m *PillarChange) String() string {
	return fmt.Sprintf("[%s].%s -> %d", idList(m.Pillar), m.Variable.Name, m.To)
}

// PillarSwap exchanges the values of two pillars. It is its own undo.
type PillarSwap struct {
	Left, Right []domain.ID
	Variables   []*domain.Variable
}

func (m *PillarSwap) IsDoable(sd *director.ScoreDirector) bool {
	if len(m.Left) == 0 || len(m.Right) == 0 {
		return false
	}
	sol := sd.WorkingSolution()
	for _, v := range m.Variables {
		if sol.Ref(m.Left[0], v) != sol.Ref(m.Right[0], v) {
			return true
		}
	}
	return false
}

func (m *PillarSwap) Do(sd *director.ScoreDirector) Move {
	sol := sd.WorkingSolution()
	for _, v := range m.Variables {
		l, r := sol.Ref(m.Left[0], v), sol.Ref(m.Right[0], v)
		if l == r {
			continue
		}
		for _, e := range m.Left {
			sd.ChangeVariable(e, v, r)
		}
		for _, e := range m.Right {
			sd.ChangeVariable(e, v, l)
		}
	}
	return &PillarSwap{Left: m.Left, Right: m.Right, Variables: m.Variables}
}

func (m *PillarSwap) PlanningEntities() []domain.ID {
	return unique(append(append([]domain.ID(nil), m.Left...), m.Right...))
}

func (m *PillarSwap) PlanningValues() []domain.ID { return nil }

func (m *PillarSwap) Key() string {
	a, b := idList(sortedCopy(m.Left)), idList(sortedCopy(m.Right))
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("pillarSwap:%s:%s:%s", a, b, varNames(m.Variables))
}

func (m *PillarSwap) String() string {
	return fmt.Sprintf("[%s] <-> [%s]", idList(m.Left), idList(m.Right))
}

func sortedCopy(ids []domain.ID) []domain.ID {
	out := append([]domain.ID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func varNames(vars []*domain.Variable) string {
	s := ""
	for i, v := range vars {
		if i > 0 {
			s += ","
		}
		s += v.Name
	}
	return s
}
