// Package scope holds the nested solver, phase, step and move scopes of a
// local search run, and the lifecycle contract every stateful component
// follows.
package scope

import (
	"math/rand"
	"time"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// Solver spans one solve call.
type Solver struct {
	RunID     string
	Director  *director.ScoreDirector
	Random    *rand.Rand
	Mode      optimization.EnvironmentMode
	StartTime time.Time

	// BestScore and BestSolution track the best solution seen so far.
	// BestSolution is a deep clone, never the working solution.
	BestScore    score.Score
	BestSolution *domain.Solution
	// StartingScore is the score of the working solution when solving began.
	StartingScore score.Score

	now func() time.Time
}

// NewSolver creates a solver scope. A nil clock defaults to time.Now.
func NewSolver(runID string, sd *director.ScoreDirector, rng *rand.Rand, mode optimization.EnvironmentMode, now func() time.Time) *Solver {
	if now == nil {
		now = time.Now
	}
	return &Solver{
		RunID:     runID,
		Director:  sd,
		Random:    rng,
		Mode:      mode,
		StartTime: now(),
		now:       now,
	}
}

// Now returns the current time on the solver's clock.
func (s *Solver) Now() time.Time { return s.now() }

// Elapsed returns the time spent since solving started.
func (s *Solver) Elapsed() time.Duration { return s.now().Sub(s.StartTime) }

// WorkingSolution returns the director's working solution.
func (s *Solver) WorkingSolution() *domain.Solution { return s.Director.WorkingSolution() }

// Phase spans one local search phase.
type Phase struct {
	Solver    *Solver
	Index     int
	StartTime time.Time

	// StartingScore is the working score when the phase started.
	StartingScore score.Score
	// LastCompletedStep is the most recent step whose move was applied, or
	// a synthetic step -1 holding the starting score.
	LastCompletedStep *Step
	// BestSolutionStepIndex is the index of the step that last improved the
	// best score, or -1.
	BestSolutionStepIndex int
	// NextStepIndex is the index the next step will get.
	NextStepIndex int
}

// NewPhase creates a phase scope whose last completed step carries the
// starting score.
func NewPhase(s *Solver, index int, starting score.Score) *Phase {
	p := &Phase{
		Solver:                s,
		Index:                 index,
		StartTime:             s.Now(),
		StartingScore:         starting,
		BestSolutionStepIndex: -1,
	}
	p.LastCompletedStep = &Step{Phase: p, Index: -1, Score: starting}
	return p
}

// Elapsed returns the time spent in the phase.
func (p *Phase) Elapsed() time.Duration { return p.Solver.Now().Sub(p.StartTime) }

// BestScore returns the solver's best score.
func (p *Phase) BestScore() score.Score { return p.Solver.BestScore }

// Random returns the shared random source.
func (p *Phase) Random() *rand.Rand { return p.Solver.Random }

// Director returns the score director.
func (p *Phase) Director() *director.ScoreDirector { return p.Solver.Director }

// Step spans one step: selecting, evaluating and applying one move.
type Step struct {
	Phase *Phase
	Index int

	// TimeGradient is the fraction of the phase's termination budget
	// spent when the step started, in [0, 1].
	TimeGradient float64

	// Move is the move picked for this step and Undo its undo; both are nil
	// until the step is decided.
	Move  move.Move
	Undo  move.Move
	Score score.Score
	// BestScoreImproved is set when the step's score beat the best score.
	BestScoreImproved bool

	SelectedMoveCount int64
	AcceptedMoveCount int64
}

// NewStep creates the next step of a phase.
func NewStep(p *Phase) *Step {
	st := &Step{Phase: p, Index: p.NextStepIndex}
	p.NextStepIndex++
	return st
}

// MoveScope holds one evaluated candidate.
type MoveScope struct {
	Step  *Step
	Index int
	Move  move.Move
	// Undo restores the solution from after Move; nil until evaluated.
	Undo  move.Move
	Score score.Score
	// Accepted is set by the decider once the acceptor approved the move.
	Accepted bool
}
