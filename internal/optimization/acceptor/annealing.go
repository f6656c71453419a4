package acceptor

import (
	"math"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// minTemperature keeps cooled levels strictly positive.
const minTemperature = 1e-100

// SimulatedAnnealing accepts every candidate at least as good as the last
// step, and a worse candidate with probability exp(diff/temperature) per
// score level. Temperatures cool linearly with the step's time gradient.
type SimulatedAnnealing struct {
	scope.NoopListener
	starting     score.Score
	temperatures []float64
}

func NewSimulatedAnnealing(starting score.Score) *SimulatedAnnealing {
	return &SimulatedAnnealing{starting: starting}
}

func (a *SimulatedAnnealing) PhaseStarted(*scope.Phase) error {
	if !a.starting.IsSet() {
		return optimization.ConfigError(ErrIllegalParameter, "SimulatedAnnealing", "PhaseStarted",
			"starting temperature is not set")
	}
	for _, l := range a.starting.Levels() {
		if l < 0 {
			return optimization.ConfigError(ErrIllegalParameter, "SimulatedAnnealing", "PhaseStarted",
				"starting temperature %s has a negative level", a.starting)
		}
	}
	a.cool(0)
	return nil
}

func (a *SimulatedAnnealing) StepStarted(st *scope.Step) error {
	a.cool(st.TimeGradient)
	return nil
}

func (a *SimulatedAnnealing) cool(gradient float64) {
	start := a.starting.LevelFloats()
	a.temperatures = make([]float64, len(start))
	for i, t := range start {
		a.temperatures[i] = math.Max(t*(1-gradient), minTemperature)
	}
}

// Temperatures returns the current temperature of every level.
func (a *SimulatedAnnealing) Temperatures() []float64 {
	return append([]float64(nil), a.temperatures...)
}

func (a *SimulatedAnnealing) IsAccepted(ms *scope.MoveScope) bool {
	last := lastStepScore(ms)
	if ms.Score.AtLeast(last) {
		return true
	}
	diff := ms.Score.Subtract(last).LevelFloats()
	chance := 1.0
	for i, d := range diff {
		if d < 0 && i < len(a.temperatures) {
			chance *= math.Exp(d / a.temperatures[i])
		}
	}
	return ms.Step.Phase.Random().Float64() < chance
}
