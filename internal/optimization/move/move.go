// Package move defines the atomic changes local search applies to a working
// solution. Every move mutates only through the score director and returns
// an undo move that restores the previous state exactly.
package move

import (
	"fmt"
	"sort"
	"strings"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// Move is a reversible change to the working solution.
type Move interface {
	// IsDoable reports whether doing the move would change anything.
	// Non-doable moves are never evaluated.
	IsDoable(sd *director.ScoreDirector) bool
	// Do applies the move with before/after notifications and returns the
	// move that undoes it. Listeners are not triggered.
	Do(sd *director.ScoreDirector) Move
	// PlanningEntities returns the entities the move changes.
	PlanningEntities() []domain.ID
	// PlanningValues returns the values the move assigns.
	PlanningValues() []domain.ID
	// Key identifies the move for tabu comparisons. Two moves with the same
	// key have the same effect on any solution.
	Key() string
	String() string
}

// DoScored applies a move, triggers listeners and calculates the score. It
// returns the undo move even when scoring fails.
func DoScored(sd *director.ScoreDirector, m Move) (Move, score.Score, error) {
	undo := m.Do(sd)
	s, err := sd.CalculateScore()
	if err != nil {
		return undo, score.Score{}, err
	}
	return undo, s, nil
}

// Composite applies its children in order, triggering listeners between
// them so later children see consistent shadow variables. Children that are
// not doable when their turn comes are skipped.
type Composite struct {
	Moves []Move
}

// NewComposite flattens nested composites.
func NewComposite(moves ...Move) *Composite {
	c := &Composite{}
	for _, m := range moves {
		if inner, ok := m.(*Composite); ok {
			c.Moves = append(c.Moves, inner.Moves...)
			continue
		}
		c.Moves = append(c.Moves, m)
	}
	return c
}

// IsDoable reports whether any child is doable.
func (c *Composite) IsDoable(sd *director.ScoreDirector) bool {
	for _, m := range c.Moves {
		if m.IsDoable(sd) {
			return true
		}
	}
	return false
}

// Do applies the children and returns a composite of their undos in reverse
// order.
func (c *Composite) Do(sd *director.ScoreDirector) Move {
	undos := make([]Move, 0, len(c.Moves))
	for i, m := range c.Moves {
		if i > 0 {
			// The sticky director error surfaces at the next CalculateScore.
			_ = sd.TriggerVariableListeners()
		}
		if !m.IsDoable(sd) {
			continue
		}
		undos = append(undos, m.Do(sd))
	}
	for i, j := 0, len(undos)-1; i < j; i, j = i+1, j-1 {
		undos[i], undos[j] = undos[j], undos[i]
	}
	return &Composite{Moves: undos}
}

func (c *Composite) PlanningEntities() []domain.ID {
	var ids []domain.ID
	for _, m := range c.Moves {
		ids = append(ids, m.PlanningEntities()...)
	}
	return unique(ids)
}

func (c *Composite) PlanningValues() []domain.ID {
	var ids []domain.ID
	for _, m := range c.Moves {
		ids = append(ids, m.PlanningValues()...)
	}
	return unique(ids)
}

func (c *Composite) Key() string {
	keys := make([]string, len(c.Moves))
	for i, m := range c.Moves {
		keys[i] = m.Key()
	}
	return "composite(" + strings.Join(keys, ",") + ")"
}

func (c *Composite) String() string {
	parts := make([]string, len(c.Moves))
	for i, m := range c.Moves {
		parts[i] = m.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// unique sorts and deduplicates IDs.
func unique(ids []domain.ID) []domain.ID {
	if len(ids) < 2 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

func idList(ids []domain.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(int(id))
	}
	return strings.Join(parts, ",")
}
