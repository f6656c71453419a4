package acceptor

import (
	"fmt"
	"math"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
)

// TabuKind says which part of a step becomes tabu.
type TabuKind string

const (
	// EntityTabu makes the entities a step changed tabu.
	EntityTabu TabuKind = "entity"
	// ValueTabu makes the values a step assigned tabu.
	ValueTabu TabuKind = "value"
	// MoveTabu makes the moves taken tabu.
	MoveTabu TabuKind = "move"
	// UndoMoveTabu makes the undo of every move taken tabu, so a step is not
	// reverted soon after.
	UndoMoveTabu TabuKind = "undo_move"
)

// SizeStrategy determines a tabu size for the current working solution.
type SizeStrategy interface {
	Size(sol *domain.Solution) int
}

// FixedSize is a constant tabu size.
type FixedSize int

func (s FixedSize) Size(*domain.Solution) int { return int(s) }

// EntityRatio sizes the tabu list as a fraction of the entity count.
type EntityRatio float64

func (r EntityRatio) Size(sol *domain.Solution) int { return ratioSize(float64(r), sol.EntityCount()) }

// ValueRatio sizes the tabu list as a fraction of the value count.
type ValueRatio float64

func (r ValueRatio) Size(sol *domain.Solution) int { return ratioSize(float64(r), sol.ValueCount()) }

// ratioSize rounds ratio*count and clamps it so at least one item stays
// tabu and at least one stays selectable.
func ratioSize(ratio float64, count int) int {
	n := int(math.Round(ratio * float64(count)))
	if n > count-1 {
		n = count - 1
	}
	if n < 1 {
		n = 1
	}
	return n
}

type tabuEntry struct {
	key  string
	step int
}

// Tabu rejects candidates touching an item used within the last Size
// steps. With a fading size, items stay partially tabu for that many more
// steps, with an accept chance growing linearly as they age. Aspiration lets
// any candidate through that beats the best score.
type Tabu struct {
	scope.NoopListener
	kind       TabuKind
	size       SizeStrategy
	fading     SizeStrategy
	aspiration bool

	workingSize   int
	workingFading int
	// last holds the most recent step that used each item; fifo holds the
	// same entries in step order so they expire oldest first.
	last map[string]int
	fifo []tabuEntry
}

// NewTabu creates a tabu acceptor. A nil fading strategy disables fading.
func NewTabu(kind TabuKind, size, fading SizeStrategy, aspiration bool) *Tabu {
	return &Tabu{kind: kind, size: size, fading: fading, aspiration: aspiration}
}

func (a *Tabu) resize(sol *domain.Solution) error {
	a.workingSize = a.size.Size(sol)
	if a.workingSize < 1 {
		return optimization.ConfigError(ErrIllegalSize, "Tabu", "PhaseStarted",
			"%s tabu size %d must be at least 1", a.kind, a.workingSize)
	}
	a.workingFading = 0
	if a.fading != nil {
		a.workingFading = a.fading.Size(sol)
		if a.workingFading < 0 {
			return optimization.ConfigError(ErrIllegalSize, "Tabu", "PhaseStarted",
				"%s fading tabu size %d must not be negative", a.kind, a.workingFading)
		}
	}
	return nil
}

func (a *Tabu) PhaseStarted(p *scope.Phase) error {
	a.last = make(map[string]int)
	a.fifo = nil
	return a.resize(p.Director().WorkingSolution())
}

func (a *Tabu) StepStarted(st *scope.Step) error {
	return a.resize(st.Phase.Director().WorkingSolution())
}

func (a *Tabu) PhaseEnded(*scope.Phase) {
	a.last = nil
	a.fifo = nil
}

// candidateItems lists the items of a candidate checked against the list.
func (a *Tabu) candidateItems(m move.Move) []string {
	switch a.kind {
	case EntityTabu:
		return idKeys(m.PlanningEntities())
	case ValueTabu:
		return idKeys(m.PlanningValues())
	default:
		return []string{m.Key()}
	}
}

// stepItems lists the items a completed step makes tabu.
func (a *Tabu) stepItems(st *scope.Step) []string {
	switch a.kind {
	case MoveTabu:
		return []string{st.Move.Key()}
	case UndoMoveTabu:
		if st.Undo == nil {
			return nil
		}
		return []string{st.Undo.Key()}
	default:
		return a.candidateItems(st.Move)
	}
}

func idKeys(ids []domain.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprint(int(id))
	}
	return out
}

func (a *Tabu) IsAccepted(ms *scope.MoveScope) bool {
	youngest := -1
	for _, key := range a.candidateItems(ms.Move) {
		step, ok := a.last[key]
		if !ok {
			continue
		}
		if age := ms.Step.Index - step; youngest < 0 || age < youngest {
			youngest = age
		}
	}
	if youngest < 0 || youngest > a.workingSize+a.workingFading {
		return true
	}
	if a.aspiration {
		best := ms.Step.Phase.BestScore()
		if best.IsSet() && ms.Score.Better(best) {
			return true
		}
	}
	if youngest <= a.workingSize {
		return false
	}
	// Fading: step age workingSize+1 gets the lowest chance.
	chance := float64(youngest-a.workingSize) / float64(a.workingFading+1)
	return ms.Step.Phase.Random().Float64() < chance
}

func (a *Tabu) StepEnded(st *scope.Step) {
	if st.Move == nil {
		return
	}
	for _, key := range a.stepItems(st) {
		a.last[key] = st.Index
		a.fifo = append(a.fifo, tabuEntry{key: key, step: st.Index})
	}
	// Entries become irrelevant once the next step is too far from them.
	horizon := a.workingSize + a.workingFading
	for len(a.fifo) > 0 && st.Index-a.fifo[0].step >= horizon {
		e := a.fifo[0]
		a.fifo = a.fifo[1:]
		if a.last[e.key] == e.step {
			delete(a.last, e.key)
		}
	}
}
