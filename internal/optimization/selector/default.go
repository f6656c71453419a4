package selector

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// Default builds the move selector used when none is configured: a union
// of change and swap moves for every genuine variable of the model. Basic
// variables get change and swap moves, chained variables chained change and
// chained swap moves, list variables list change and list swap moves.
func Default(m *domain.Model, order SelectionOrder) (MoveSelector, error) {
	var children []MoveSelector
	for _, v := range m.GenuineVariables() {
		switch v.Kind {
		case domain.Basic, domain.Chained:
			entities := NewEntitySelector(v.Class, order)
			children = append(children,
				NewChangeMoveSelector(entities, v, NewValueSelector(v, order), order),
				NewSwapMoveSelector(entities, entities, []*domain.Variable{v}, order))
		case domain.List:
			children = append(children,
				NewListChangeMoveSelector(v, order, false),
				NewListSwapMoveSelector(v, order))
		}
	}
	if len(children) == 0 {
		return nil, optimization.NewError("the model declares no genuine variables").
			WithComponent("selector").WithOperation("Default")
	}
	if len(children) == 1 {
		return children[0], nil
	}
	union, err := NewUnionMoveSelector(children, order)
	if err != nil {
		return nil, err
	}
	return union, nil
}
