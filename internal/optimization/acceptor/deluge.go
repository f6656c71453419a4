package acceptor

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// DefaultWaterLevelIncrementRatio is used when neither an increment score
// nor a ratio is configured.
const DefaultWaterLevelIncrementRatio = 0.00000005

// GreatDeluge accepts candidates at or above a water level that rises after
// every step, by a fixed score or by a ratio of its own magnitude. A
// candidate improving on the last step is always accepted.
type GreatDeluge struct {
	scope.NoopListener
	// StartingLevel defaults to the phase's best score.
	StartingLevel score.Score
	// Increment raises the level by a fixed score per step. When unset the
	// level rises by IncrementRatio of its absolute value.
	Increment      score.Score
	IncrementRatio float64
	// UpperBoundRate caps the level at the best score multiplied by it.
	// Zero disables the cap.
	UpperBoundRate float64

	level score.Score
}

func (a *GreatDeluge) PhaseStarted(p *scope.Phase) error {
	if a.IncrementRatio < 0 || a.UpperBoundRate < 0 {
		return optimization.ConfigError(ErrIllegalParameter, "GreatDeluge", "PhaseStarted",
			"increment ratio %v and upper bound rate %v must not be negative", a.IncrementRatio, a.UpperBoundRate)
	}
	if a.Increment.IsSet() {
		for _, l := range a.Increment.Levels() {
			if l < 0 {
				return optimization.ConfigError(ErrIllegalParameter, "GreatDeluge", "PhaseStarted",
					"water level increment %s has a negative level", a.Increment)
			}
		}
	}
	switch {
	case a.StartingLevel.IsSet():
		a.level = a.StartingLevel
	case p.BestScore().IsSet():
		a.level = p.BestScore()
	default:
		a.level = p.LastCompletedStep.Score
	}
	return nil
}

// Level returns the current water level.
func (a *GreatDeluge) Level() score.Score { return a.level }

func (a *GreatDeluge) IsAccepted(ms *scope.MoveScope) bool {
	return ms.Score.AtLeast(a.level) || ms.Score.Better(lastStepScore(ms))
}

func (a *GreatDeluge) StepEnded(st *scope.Step) {
	switch {
	case a.Increment.IsSet():
		a.level = a.level.Add(a.Increment)
	default:
		ratio := a.IncrementRatio
		if ratio == 0 {
			ratio = DefaultWaterLevelIncrementRatio
		}
		a.level = a.level.Add(rise(a.level, ratio))
	}
	if a.UpperBoundRate > 0 {
		if best := st.Phase.BestScore(); best.IsSet() {
			a.level = score.Min(a.level, best.Multiply(a.UpperBoundRate))
		}
	}
}

// rise is |level| * ratio rounded up per level, so every non-zero level
// rises by at least one unit however small the ratio.
func rise(level score.Score, ratio float64) score.Score {
	return level.Abs().Negate().Multiply(ratio).Negate()
}
