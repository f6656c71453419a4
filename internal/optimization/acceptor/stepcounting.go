package acceptor

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// StepCountingType says what advances the step counting window.
type StepCountingType string

const (
	CountSelectedMove         StepCountingType = "selected_move"
	CountAcceptedMove         StepCountingType = "accepted_move"
	CountStep                 StepCountingType = "step"
	CountEqualOrImprovingStep StepCountingType = "equal_or_improving_step"
	CountImprovingStep        StepCountingType = "improving_step"
)

// ThresholdMode says which score becomes the threshold when a window
// closes.
type ThresholdMode string

const (
	// WindowBest uses the best step score seen during the window.
	WindowBest ThresholdMode = "window_best"
	// LastStep uses the score of the step that closed the window.
	LastStep ThresholdMode = "last_step"
)

// StepCounting is step counting hill climbing: candidates must reach a
// threshold that is only raised every size counted events, or be at least
// as good as the last step.
type StepCounting struct {
	scope.NoopListener
	size     int
	counting StepCountingType
	mode     ThresholdMode

	threshold  score.Score
	count      int
	windowBest score.Score
}

func NewStepCounting(size int, counting StepCountingType, mode ThresholdMode) *StepCounting {
	if counting == "" {
		counting = CountStep
	}
	if mode == "" {
		mode = WindowBest
	}
	return &StepCounting{size: size, counting: counting, mode: mode}
}

func (a *StepCounting) PhaseStarted(p *scope.Phase) error {
	if a.size < 1 {
		return optimization.ConfigError(ErrIllegalSize, "StepCounting", "PhaseStarted",
			"step counting size %d must be at least 1", a.size)
	}
	switch a.counting {
	case CountSelectedMove, CountAcceptedMove, CountStep, CountEqualOrImprovingStep, CountImprovingStep:
	default:
		return optimization.ConfigError(ErrIllegalParameter, "StepCounting", "PhaseStarted",
			"unknown step counting type %q", a.counting)
	}
	if a.mode != WindowBest && a.mode != LastStep {
		return optimization.ConfigError(ErrIllegalParameter, "StepCounting", "PhaseStarted",
			"unknown threshold mode %q", a.mode)
	}
	a.threshold = p.LastCompletedStep.Score
	a.count = 0
	a.windowBest = score.Score{}
	return nil
}

// Threshold returns the current threshold score.
func (a *StepCounting) Threshold() score.Score { return a.threshold }

func (a *StepCounting) IsAccepted(ms *scope.MoveScope) bool {
	if a.counting == CountSelectedMove {
		a.count++
	}
	accepted := ms.Score.AtLeast(lastStepScore(ms)) || ms.Score.AtLeast(a.threshold)
	if accepted && a.counting == CountAcceptedMove {
		a.count++
	}
	return accepted
}

func (a *StepCounting) StepEnded(st *scope.Step) {
	last := st.Phase.LastCompletedStep.Score
	switch a.counting {
	case CountStep:
		a.count++
	case CountEqualOrImprovingStep:
		if st.Score.AtLeast(last) {
			a.count++
		}
	case CountImprovingStep:
		if st.Score.Better(last) {
			a.count++
		}
	}
	if !a.windowBest.IsSet() || st.Score.Better(a.windowBest) {
		a.windowBest = st.Score
	}
	if a.count < a.size {
		return
	}
	if a.mode == LastStep {
		a.threshold = st.Score
	} else {
		a.threshold = a.windowBest
	}
	a.count = 0
	a.windowBest = score.Score{}
}
