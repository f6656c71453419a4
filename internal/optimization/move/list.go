package move

import (
	"fmt"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// ListChange moves one element from SourceIndex of Source's list to
// DestinationIndex of Destination's list. DestinationIndex is the position
// the element has after it was removed from its source.
type ListChange struct {
	Variable         *domain.Variable
	Source           domain.ID
	SourceIndex      int
	Destination      domain.ID
	DestinationIndex int
	// Element is the moved element, recorded for tabu and logging.
	Element domain.ID
}

// NewListChange builds a list change, reading the moved element from sol.
func NewListChange(sol *domain.Solution, v *domain.Variable, src domain.ID, srcIndex int, dst domain.ID, dstIndex int) *ListChange {
	return &ListChange{
		Variable:         v,
		Source:           src,
		SourceIndex:      srcIndex,
		Destination:      dst,
		DestinationIndex: dstIndex,
		Element:          sol.Seq(src, v)[srcIndex],
	}
}

// IsDoable also checks that Element is still at SourceIndex and that
// DestinationIndex fits the live destination list.
func (m *ListChange) IsDoable(sd *director.ScoreDirector) bool {
	if m.Source == m.Destination && m.SourceIndex == m.DestinationIndex {
		return false
	}
	sol := sd.WorkingSolution()
	if !elementsAt(sol.Seq(m.Source, m.Variable), m.SourceIndex, m.Element) {
		return false
	}
	room := len(sol.Seq(m.Destination, m.Variable))
	if m.Source == m.Destination {
		room--
	}
	return m.DestinationIndex >= 0 && m.DestinationIndex <= room
}

func (m *ListChange) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	i, j := m.SourceIndex, m.DestinationIndex
	if m.Source == m.Destination {
		lo, hi := minInt(i, j), maxInt(i, j)+1
		sd.BeforeListVariableChanged(m.Source, v, lo, hi)
		el := sd.ListRemove(m.Source, v, i, 1)
		sd.ListInsert(m.Source, v, j, el...)
		sd.AfterListVariableChanged(m.Source, v, lo, hi)
	} else {
		sd.BeforeListVariableChanged(m.Source, v, i, i+1)
		el := sd.ListRemove(m.Source, v, i, 1)
		sd.AfterListVariableChanged(m.Source, v, i, i)
		sd.BeforeListVariableChanged(m.Destination, v, j, j)
		sd.ListInsert(m.Destination, v, j, el...)
		sd.AfterListVariableChanged(m.Destination, v, j, j+1)
	}
	return &ListChange{
		Variable:         v,
		Source:           m.Destination,
		SourceIndex:      j,
		Destination:      m.Source,
		DestinationIndex: i,
		Element:          m.Element,
	}
}

func (m *ListChange) PlanningEntities() []domain.ID {
	return unique([]domain.ID{m.Source, m.Destination})
}

func (m *ListChange) PlanningValues() []domain.ID { return []domain.ID{m.Element} }

func (m *ListChange) Key() string {
	return fmt.Sprintf("listChange:%s:%d[%d]:%d[%d]", m.Variable, m.Source, m.SourceIndex, m.Destination, m.DestinationIndex)
}

func (m *ListChange) String() string {
	return fmt.Sprintf("%d {%d[%d] -> %d[%d]}", m.Element, m.Source, m.SourceIndex, m.Destination, m.DestinationIndex)
}

// ListSwap exchanges two list elements, in the same or different lists. It
// is its own undo.
type ListSwap struct {
	Variable   *domain.Variable
	Left       domain.ID
	LeftIndex  int
	Right      domain.ID
	RightIndex int
	// LeftElement and RightElement are the swapped elements.
	LeftElement  domain.ID
	RightElement domain.ID
}

// NewListSwap builds a list swap, reading both elements from sol.
func NewListSwap(sol *domain.Solution, v *domain.Variable, left domain.ID, leftIndex int, right domain.ID, rightIndex int) *ListSwap {
	return &ListSwap{
		Variable:     v,
		Left:         left,
		LeftIndex:    leftIndex,
		Right:        right,
		RightIndex:   rightIndex,
		LeftElement:  sol.Seq(left, v)[leftIndex],
		RightElement: sol.Seq(right, v)[rightIndex],
	}
}

func (m *ListSwap) IsDoable(sd *director.ScoreDirector) bool {
	if m.Left == m.Right && m.LeftIndex == m.RightIndex {
		return false
	}
	sol := sd.WorkingSolution()
	return elementsAt(sol.Seq(m.Left, m.Variable), m.LeftIndex, m.LeftElement) &&
		elementsAt(sol.Seq(m.Right, m.Variable), m.RightIndex, m.RightElement)
}

func (m *ListSwap) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	sol := sd.WorkingSolution()
	l := sol.Seq(m.Left, v)[m.LeftIndex]
	r := sol.Seq(m.Right, v)[m.RightIndex]
	if m.Left == m.Right {
		lo, hi := minInt(m.LeftIndex, m.RightIndex), maxInt(m.LeftIndex, m.RightIndex)+1
		sd.BeforeListVariableChanged(m.Left, v, lo, hi)
		sd.ListSet(m.Left, v, m.LeftIndex, r)
		sd.ListSet(m.Left, v, m.RightIndex, l)
		sd.AfterListVariableChanged(m.Left, v, lo, hi)
	} else {
		sd.BeforeListVariableChanged(m.Left, v, m.LeftIndex, m.LeftIndex+1)
		sd.BeforeListVariableChanged(m.Right, v, m.RightIndex, m.RightIndex+1)
		sd.ListSet(m.Left, v, m.LeftIndex, r)
		sd.ListSet(m.Right, v, m.RightIndex, l)
		sd.AfterListVariableChanged(m.Left, v, m.LeftIndex, m.LeftIndex+1)
		sd.AfterListVariableChanged(m.Right, v, m.RightIndex, m.RightIndex+1)
	}
	return &ListSwap{Variable: v, Left: m.Left, LeftIndex: m.LeftIndex, Right: m.Right, RightIndex: m.RightIndex,
		LeftElement: r, RightElement: l}
}

func (m *ListSwap) PlanningEntities() []domain.ID {
	return unique([]domain.ID{m.Left, m.Right})
}

func (m *ListSwap) PlanningValues() []domain.ID {
	return unique([]domain.ID{m.LeftElement, m.RightElement})
}

func (m *ListSwap) Key() string {
	a := fmt.Sprintf("%d[%d]", m.Left, m.LeftIndex)
	b := fmt.Sprintf("%d[%d]", m.Right, m.RightIndex)
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("listSwap:%s:%s:%s", m.Variable, a, b)
}

func (m *ListSwap) String() string {
	return fmt.Sprintf("%d[%d] <-> %d[%d]", m.Left, m.LeftIndex, m.Right, m.RightIndex)
}

// ListAssign inserts an unassigned element into a list.
type ListAssign struct {
	Variable    *domain.Variable
	Element     domain.ID
	Destination domain.ID
	Index       int
}

func (m *ListAssign) IsDoable(sd *director.ScoreDirector) bool {
	_, _, assigned := sd.ElementLocation(m.Variable, m.Element)
	return !assigned && m.Index >= 0 && m.Index <= len(sd.WorkingSolution().Seq(m.Destination, m.Variable))
}

func (m *ListAssign) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	sd.BeforeListVariableChanged(m.Destination, v, m.Index, m.Index)
	sd.ListInsert(m.Destination, v, m.Index, m.Element)
	sd.AfterListVariableChanged(m.Destination, v, m.Index, m.Index+1)
	return &ListUnassign{Variable: v, Source: m.Destination, Index: m.Index, Element: m.Element}
}

func (m *ListAssign) PlanningEntities() []domain.ID { return []domain.ID{m.Destination} }
func (m *ListAssign) PlanningValues() []domain.ID   { return []domain.ID{m.Element} }

func (m *ListAssign) Key() string {
	return fmt.Sprintf("listAssign:%s:%d:%d[%d]", m.Variable, m.Element, m.Destination, m.Index)
}

func (m *ListAssign) String() string {
	return fmt.Sprintf("%d {null -> %d[%d]}", m.Element, m.Destination, m.Index)
}

// ListUnassign removes an element from its list, leaving it unassigned.
type ListUnassign struct {
	Variable *domain.Variable
	Source   domain.ID
	Index    int
	Element  domain.ID
}

func (m *ListUnassign) IsDoable(sd *director.ScoreDirector) bool {
	return elementsAt(sd.WorkingSolution().Seq(m.Source, m.Variable), m.Index, m.Element)
}

func (m *ListUnassign) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	sd.BeforeListVariableChanged(m.Source, v, m.Index, m.Index+1)
	sd.ListRemove(m.Source, v, m.Index, 1)
	sd.AfterListVariableChanged(m.Source, v, m.Index, m.Index)
	sd.AfterListElementUnassigned(v, m.Element)
	return &ListAssign{Variable: v, Element: m.Element, Destination: m.Source, Index: m.Index}
}

func (m *ListUnassign) PlanningEntities() []domain.ID { return []domain.ID{m.Source} }
func (m *ListUnassign) PlanningValues() []domain.ID   { return []domain.ID{m.Element} }

func (m *ListUnassign) Key() string {
	return fmt.Sprintf("listUnassign:%s:%d:%d[%d]", m.Variable, m.Element, m.Source, m.Index)
}

func (m *ListUnassign) String() string {
	return fmt.Sprintf("%d {%d[%d] -> null}", m.Element, m.Source, m.Index)
}

// SubListChange moves Length consecutive elements starting at SourceIndex
// to DestinationIndex of Destination's list, optionally reversing them.
// DestinationIndex is the position after removal from the source.
type SubListChange struct {
	Variable         *domain.Variable
	Source           domain.ID
	SourceIndex      int
	Length           int
	Destination      domain.ID
	DestinationIndex int
	Reverse          bool
	// Elements is the moved run in source order.
	Elements []domain.ID
}

// NewSubListChange builds a sub-list change, reading the run from sol.
func NewSubListChange(sol *domain.Solution, v *domain.Variable, src domain.ID, srcIndex, length int, dst domain.ID, dstIndex int, reverse bool) *SubListChange {
	run := sol.Seq(src, v)[srcIndex : srcIndex+length]
	return &SubListChange{
		Variable:         v,
		Source:           src,
		SourceIndex:      srcIndex,
		Length:           length,
		Destination:      dst,
		DestinationIndex: dstIndex,
		Reverse:          reverse,
		Elements:         append([]domain.ID(nil), run...),
	}
}

func (m *SubListChange) IsDoable(sd *director.ScoreDirector) bool {
	if m.Length <= 0 || len(m.Elements) != m.Length {
		return false
	}
	if m.Source == m.Destination && m.SourceIndex == m.DestinationIndex && !(m.Reverse && m.Length > 1) {
		return false
	}
	sol := sd.WorkingSolution()
	if !elementsAt(sol.Seq(m.Source, m.Variable), m.SourceIndex, m.Elements...) {
		return false
	}
	room := len(sol.Seq(m.Destination, m.Variable))
	if m.Source == m.Destination {
		room -= m.Length
	}
	return m.DestinationIndex >= 0 && m.DestinationIndex <= room
}

func (m *SubListChange) Do(sd *director.ScoreDirector) Move {
	v := m.Variable
	i, j, n := m.SourceIndex, m.DestinationIndex, m.Length
	var moved []domain.ID
	if m.Source == m.Destination {
		lo, hi := minInt(i, j), maxInt(i, j)+n
		sd.BeforeListVariableChanged(m.Source, v, lo, hi)
		moved = sd.ListRemove(m.Source, v, i, n)
		if m.Reverse {
			moved = reversed(moved)
		}
		sd.ListInsert(m.Source, v, j, moved...)
		sd.AfterListVariableChanged(m.Source, v, lo, hi)
	} else {
		sd.BeforeListVariableChanged(m.Source, v, i, i+n)
		moved = sd.ListRemove(m.Source, v, i, n)
		sd.AfterListVariableChanged(m.Source, v, i, i)
		if m.Reverse {
			moved = reversed(moved)
		}
		sd.BeforeListVariableChanged(m.Destination, v, j, j)
		sd.ListInsert(m.Destination, v, j, moved...)
		sd.AfterListVariableChanged(m.Destination, v, j, j+n)
	}
	return &SubListChange{
		Variable:         v,
		Source:           m.Destination,
		SourceIndex:      j,
		Length:           n,
		Destination:      m.Source,
		DestinationIndex: i,
		Reverse:          m.Reverse,
		Elements:         append([]domain.ID(nil), moved...),
	}
}

func (m *SubListChange) PlanningEntities() []domain.ID {
	return unique([]domain.ID{m.Source, m.Destination})
}

func (m *SubListChange) PlanningValues() []domain.ID { return m.Elements }

func (m *SubListChange) Key() string {
	return fmt.Sprintf("subListChange:%s:%d[%d+%d]:%d[%d]:%t", m.Variable,
		m.Source, m.SourceIndex, m.Length, m.Destination, m.DestinationIndex, m.Reverse)
}

func (m *SubListChange) String() string {
	s := fmt.Sprintf("%d[%d..%d] -> %d[%d]", m.Source, m.SourceIndex, m.SourceIndex+m.Length, m.Destination, m.DestinationIndex)
	if m.Reverse {
		s += " reversed"
	}
	return s
}

// elementsAt reports whether seq holds want starting at index.
func elementsAt(seq []domain.ID, index int, want ...domain.ID) bool {
	if index < 0 || index+len(want) > len(seq) {
		return false
	}
	for k, id := range want {
		if seq[index+k] != id {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
