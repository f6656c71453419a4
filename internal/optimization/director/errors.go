package director

import "errors"

var (
	// ErrCyclicShadowSources is returned when shadow variables declare
	// sources that depend on each other in a cycle.
	ErrCyclicShadowSources = errors.New("cyclic shadow variable sources")
	// ErrEntityStillLinked is reported when an entity is removed while other
	// entities' chain or list state still refers to it.
	ErrEntityStillLinked = errors.New("entity still linked")
	// ErrShadowCorruption is reported when a shadow variable differs from
	// the value recomputed from the genuine variables.
	ErrShadowCorruption = errors.New("shadow variable corruption")
	// ErrListenerLoop is reported when listeners keep notifying each other
	// past the depth of the listener graph.
	ErrListenerLoop = errors.New("variable listeners did not settle")
	// ErrForeignSolution is returned when a solution belongs to another model.
	ErrForeignSolution = errors.New("solution belongs to a different model")
)
