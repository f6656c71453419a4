package localsearch

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// PickEarlyType says whether a step may stop evaluating moves before the
// accepted count limit is reached.
type PickEarlyType string

const (
	// PickEarlyNever evaluates moves until the limit or the selector runs out.
	PickEarlyNever PickEarlyType = "never"
	// PickEarlyFirstBestScoreImproving picks the first accepted move that
	// beats the best score.
	PickEarlyFirstBestScoreImproving PickEarlyType = "first_best_score_improving"
	// PickEarlyFirstLastStepScoreImproving picks the first accepted move that
	// beats the last step's score.
	PickEarlyFirstLastStepScoreImproving PickEarlyType = "first_last_step_score_improving"
)

// Forager collects the accepted moves of a step and picks the one that
// becomes the step. Among the accepted moves with the highest score it
// picks one at random.
type Forager struct {
	scope.NoopListener
	// acceptedCountLimit of zero means no limit.
	acceptedCountLimit int
	pickEarly          PickEarlyType

	selectedCount int64
	acceptedCount int64
	finalists     []*scope.MoveScope
	highest       score.Score
	earlyPicked   *scope.MoveScope
}

func NewForager(acceptedCountLimit int, pickEarly PickEarlyType) *Forager {
	if pickEarly == "" {
		pickEarly = PickEarlyNever
	}
	return &Forager{acceptedCountLimit: acceptedCountLimit, pickEarly: pickEarly}
}

// SupportsNeverEndingSelector reports whether the forager ever stops
// asking for moves on its own.
func (f *Forager) SupportsNeverEndingSelector() bool {
	return f.acceptedCountLimit > 0
}

func (f *Forager) StepStarted(*scope.Step) error {
	f.selectedCount = 0
	f.acceptedCount = 0
	f.finalists = f.finalists[:0]
	f.highest = score.Score{}
	f.earlyPicked = nil
	return nil
}

func (f *Forager) PhaseEnded(*scope.Phase) {
	f.finalists = nil
	f.earlyPicked = nil
}

// AddMove records an evaluated move.
func (f *Forager) AddMove(ms *scope.MoveScope) {
	f.selectedCount++
	if !ms.Accepted {
		return
	}
	f.acceptedCount++
	switch f.pickEarly {
	case PickEarlyFirstBestScoreImproving:
		if best := ms.Step.Phase.BestScore(); best.IsSet() && ms.Score.Better(best) {
			f.earlyPicked = ms
			return
		}
	case PickEarlyFirstLastStepScoreImproving:
		if ms.Score.Better(ms.Step.Phase.LastCompletedStep.Score) {
			f.earlyPicked = ms
			return
		}
	}
	switch {
	case !f.highest.IsSet() || ms.Score.Better(f.highest):
		f.highest = ms.Score
		f.finalists = append(f.finalists[:0], ms)
	case ms.Score.Equal(f.highest):
		f.finalists = append(f.finalists, ms)
	}
}

// IsQuitEarly reports whether the step has seen enough moves.
func (f *Forager) IsQuitEarly() bool {
	if f.earlyPicked != nil {
		return true
	}
	return f.acceptedCountLimit > 0 && f.acceptedCount >= int64(f.acceptedCountLimit)
}

// PickMove returns the move that becomes the step, or nil when no move was
// accepted. The step's selected and accepted counts are updated.
func (f *Forager) PickMove(st *scope.Step) *scope.MoveScope {
	st.SelectedMoveCount = f.selectedCount
	st.AcceptedMoveCount = f.acceptedCount
	if f.earlyPicked != nil {
		return f.earlyPicked
	}
	switch len(f.finalists) {
	case 0:
		return nil
	case 1:
		return f.finalists[0]
	default:
		return f.finalists[st.Phase.Random().Intn(len(f.finalists))]
	}
}
