package localsearch

import (
	"math"
	"time"

	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// Termination decides when a phase stops. It is polled between steps and
// between evaluated moves, never while a move is applied.
type Termination interface {
	IsTerminated(p *scope.Phase) bool
	// TimeGradient is the fraction of the budget spent, in [0, 1].
	TimeGradient(p *scope.Phase) float64
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// StepCount stops a phase after Limit completed steps.
type StepCount struct {
	Limit int
}

func completed(p *scope.Phase) int {
	return p.LastCompletedStep.Index + 1
}

func (t StepCount) IsTerminated(p *scope.Phase) bool {
	return completed(p) >= t.Limit
}

func (t StepCount) TimeGradient(p *scope.Phase) float64 {
	return clamp01(float64(completed(p)) / float64(t.Limit))
}

// TimeSpent stops a phase after Limit of wall time on the solver clock.
type TimeSpent struct {
	Limit time.Duration
}

func (t TimeSpent) IsTerminated(p *scope.Phase) bool {
	return p.Elapsed() >= t.Limit
}

func (t TimeSpent) TimeGradient(p *scope.Phase) float64 {
	return clamp01(float64(p.Elapsed()) / float64(t.Limit))
}

// UnimprovedStepCount stops a phase once Limit steps in a row failed to
// improve the best score.
type UnimprovedStepCount struct {
	Limit int
}

func unimproved(p *scope.Phase) int {
	return p.LastCompletedStep.Index - p.BestSolutionStepIndex
}

func (t UnimprovedStepCount) IsTerminated(p *scope.Phase) bool {
	return unimproved(p) >= t.Limit
}

func (t UnimprovedStepCount) TimeGradient(p *scope.Phase) float64 {
	return clamp01(float64(unimproved(p)) / float64(t.Limit))
}

// BestScoreLimit stops a phase once the best score reaches Limit.
type BestScoreLimit struct {
	Limit score.Score
}

func (t BestScoreLimit) IsTerminated(p *scope.Phase) bool {
	best := p.BestScore()
	return best.IsSet() && best.AtLeast(t.Limit)
}

// TimeGradient measures progress on the most significant level that still
// separates the best score from the limit.
func (t BestScoreLimit) TimeGradient(p *scope.Phase) float64 {
	best := p.BestScore()
	if !best.IsSet() || !p.StartingScore.IsSet() {
		return 0
	}
	if best.AtLeast(t.Limit) {
		return 1
	}
	start, now, limit := p.StartingScore.LevelFloats(), best.LevelFloats(), t.Limit.LevelFloats()
	for i := range limit {
		if now[i] == limit[i] {
			continue
		}
		if limit[i] <= start[i] {
			return 0
		}
		return clamp01((now[i] - start[i]) / (limit[i] - start[i]))
	}
	return 1
}

// Or stops as soon as any of its terminations does.
type Or []Termination

func (ts Or) IsTerminated(p *scope.Phase) bool {
	for _, t := range ts {
		if t.IsTerminated(p) {
			return true
		}
	}
	return false
}

func (ts Or) TimeGradient(p *scope.Phase) float64 {
	g := 0.0
	for _, t := range ts {
		g = math.Max(g, t.TimeGradient(p))
	}
	return g
}

// And stops only when all of its terminations do.
type And []Termination

func (ts And) IsTerminated(p *scope.Phase) bool {
	for _, t := range ts {
		if !t.IsTerminated(p) {
			return false
		}
	}
	return len(ts) > 0
}

func (ts And) TimeGradient(p *scope.Phase) float64 {
	if len(ts) == 0 {
		return 0
	}
	g := 1.0
	for _, t := range ts {
		g = math.Min(g, t.TimeGradient(p))
	}
	return g
}
