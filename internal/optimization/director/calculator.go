package director

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// IncrementalScoreCalculator receives every variable and entity change the
// score director sees, genuine and shadow alike, and keeps a running score.
// CalculateScore must not depend on problem size beyond the changes seen
// since the previous call.
type IncrementalScoreCalculator interface {
	// ResetWorkingSolution recomputes all internal state from scratch.
	ResetWorkingSolution(sol *domain.Solution)
	BeforeVariableChanged(obj domain.ID, v *domain.Variable)
	AfterVariableChanged(obj domain.ID, v *domain.Variable)
	BeforeListVariableChanged(entity domain.ID, v *domain.Variable, from, to int)
	AfterListVariableChanged(entity domain.ID, v *domain.Variable, from, to int)
	BeforeEntityAdded(obj domain.ID)
	AfterEntityAdded(obj domain.ID)
	BeforeEntityRemoved(obj domain.ID)
	AfterEntityRemoved(obj domain.ID)
	CalculateScore() score.Score
}

// EasyScoreCalculator computes the score of a whole solution at once.
type EasyScoreCalculator interface {
	CalculateScore(sol *domain.Solution) score.Score
}

// EasyScoreCalculatorFunc adapts a function to EasyScoreCalculator.
type EasyScoreCalculatorFunc func(sol *domain.Solution) score.Score

// CalculateScore implements EasyScoreCalculator.
func (f EasyScoreCalculatorFunc) CalculateScore(sol *domain.Solution) score.Score {
	return f(sol)
}

// Easy wraps an EasyScoreCalculator so a score director can drive it. Every
// CalculateScore call rescans the whole working solution.
func Easy(calc EasyScoreCalculator) IncrementalScoreCalculator {
	return &easyAdapter{calc: calc}
}

type easyAdapter struct {
	NoopCalculatorEvents
	calc EasyScoreCalculator
	sol  *domain.Solution
}

func (a *easyAdapter) ResetWorkingSolution(sol *domain.Solution) { a.sol = sol }

func (a *easyAdapter) CalculateScore() score.Score { return a.calc.CalculateScore(a.sol) }

// NoopCalculatorEvents implements every change callback of
// IncrementalScoreCalculator as a no-op. Embed it to override only the
// callbacks a calculator cares about.
type NoopCalculatorEvents struct{}

func (NoopCalculatorEvents) BeforeVariableChanged(domain.ID, *domain.Variable)               {}
func (NoopCalculatorEvents) AfterVariableChanged(domain.ID, *domain.Variable)                {}
func (NoopCalculatorEvents) BeforeListVariableChanged(domain.ID, *domain.Variable, int, int) {}
func (NoopCalculatorEvents) AfterListVariableChanged(domain.ID, *domain.Variable, int, int)  {}
func (NoopCalculatorEvents) BeforeEntityAdded(domain.ID)                                     {}
func (NoopCalculatorEvents) AfterEntityAdded(domain.ID)                                      {}
func (NoopCalculatorEvents) BeforeEntityRemoved(domain.ID)                                   {}
func (NoopCalculatorEvents) AfterEntityRemoved(domain.ID)                                    {}
