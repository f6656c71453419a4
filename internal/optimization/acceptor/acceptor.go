// Package acceptor decides whether a scored candidate move may become the
// next step of a local search phase.
//
// Acceptors are stateful: they see every lifecycle event of the phase and
// may keep history between steps. StepEnded is called while the phase's
// LastCompletedStep still refers to the step before the one that ended.
package acceptor

import (
	"errors"

	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

var (
	// ErrIllegalSize is returned when a tabu, late acceptance or step
	// counting size is not positive.
	ErrIllegalSize = errors.New("illegal acceptor size")
	// ErrIllegalParameter is returned for a negative temperature, rate or
	// increment.
	ErrIllegalParameter = errors.New("illegal acceptor parameter")
)

// Acceptor accepts or rejects candidate moves.
type Acceptor interface {
	scope.Listener
	// IsAccepted reports whether the scored candidate may be picked. It may
	// be called several times for the same candidate.
	IsAccepted(ms *scope.MoveScope) bool
}

// lastStepScore is the score of the most recent completed step.
func lastStepScore(ms *scope.MoveScope) score.Score {
	return ms.Step.Phase.LastCompletedStep.Score
}

// HillClimbing accepts candidates that are at least as good as the last
// step.
type HillClimbing struct {
	scope.NoopListener
}

func NewHillClimbing() *HillClimbing { return &HillClimbing{} }

func (a *HillClimbing) IsAccepted(ms *scope.MoveScope) bool {
	return ms.Score.AtLeast(lastStepScore(ms))
}

// Composite accepts a candidate only when every acceptor accepts it.
type Composite struct {
	scope.Listeners
	acceptors []Acceptor
}

func NewComposite(acceptors ...Acceptor) *Composite {
	c := &Composite{acceptors: acceptors}
	for _, a := range acceptors {
		c.Listeners = append(c.Listeners, a)
	}
	return c
}

func (c *Composite) IsAccepted(ms *scope.MoveScope) bool {
	for _, a := range c.acceptors {
		if !a.IsAccepted(ms) {
			return false
		}
	}
	return true
}
