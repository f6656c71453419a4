package acceptor

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// LateAcceptance compares candidates with the step score of size steps
// ago, kept in a circular buffer. With hill climbing enabled a candidate at
// least as good as the last step is accepted too.
type LateAcceptance struct {
	scope.NoopListener
	size         int
	hillClimbing bool

	previous []score.Score
	index    int
}

func NewLateAcceptance(size int, hillClimbing bool) *LateAcceptance {
	return &LateAcceptance{size: size, hillClimbing: hillClimbing}
}

// PhaseStarted fills the buffer with the last completed step score.
func (a *LateAcceptance) PhaseStarted(p *scope.Phase) error {
	if a.size < 1 {
		return optimization.ConfigError(ErrIllegalSize, "LateAcceptance", "PhaseStarted",
			"late acceptance size %d must be at least 1", a.size)
	}
	a.previous = make([]score.Score, a.size)
	for i := range a.previous {
		a.previous[i] = p.LastCompletedStep.Score
	}
	a.index = 0
	return nil
}

func (a *LateAcceptance) IsAccepted(ms *scope.MoveScope) bool {
	if ms.Score.AtLeast(a.previous[a.index]) {
		return true
	}
	return a.hillClimbing && ms.Score.AtLeast(lastStepScore(ms))
}

// StepEnded records the step score in the slot just compared against,
// unless that would lower the slot.
func (a *LateAcceptance) StepEnded(st *scope.Step) {
	if st.Score.Better(a.previous[a.index]) {
		a.previous[a.index] = st.Score
	}
	a.index = (a.index + 1) % a.size
}

func (a *LateAcceptance) PhaseEnded(*scope.Phase) {
	a.previous = nil
	a.index = 0
}
