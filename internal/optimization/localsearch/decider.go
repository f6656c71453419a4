package localsearch

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	perrors "github.com/copyleftdev/tundr-planner/internal/errors"
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/acceptor"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/move"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
	"github.com/copyleftdev/tundr-planner/internal/optimization/selector"
)

// EndReason says why a phase stopped.
type EndReason string

const (
	// ReasonTerminated means the phase's termination fired.
	ReasonTerminated EndReason = "terminated"
	// ReasonNoMoveAccepted means a step evaluated every move it was offered
	// and accepted none. This is not an error.
	ReasonNoMoveAccepted EndReason = "no_move_accepted"
	// ReasonCancelled means the solve's context was cancelled.
	ReasonCancelled EndReason = "cancelled"
)

// PhaseResult summarizes a finished phase.
type PhaseResult struct {
	Index  int       `json:"index"`
	Reason EndReason `json:"reason"`
	Steps  int       `json:"steps"`

	StartingScore score.Score `json:"starting_score"`
	EndingScore   score.Score `json:"ending_score"`
	BestScore     score.Score `json:"best_score"`

	SelectedMoveCount int64         `json:"selected_move_count"`
	AcceptedMoveCount int64         `json:"accepted_move_count"`
	Duration          time.Duration `json:"duration"`

	// MeanStepDelta is the mean score change per step for every level.
	MeanStepDelta []float64 `json:"mean_step_delta,omitempty"`
}

// Phase is one local search phase: a move selector feeding candidates to an
// acceptor, a forager picking the step and a termination ending the phase.
type Phase struct {
	Selector    selector.MoveSelector
	Acceptor    acceptor.Acceptor
	Forager     *Forager
	Termination Termination
}

// NewPhase checks that the parts of a phase work together.
func NewPhase(sel selector.MoveSelector, acc acceptor.Acceptor, forager *Forager, term Termination) (*Phase, error) {
	if sel == nil || acc == nil || forager == nil {
		return nil, optimization.NewError("phase needs a move selector, an acceptor and a forager").
			WithComponent("localsearch").WithOperation("NewPhase")
	}
	if term == nil {
		return nil, optimization.ConfigError(ErrNoTermination, "localsearch", "NewPhase",
			"phase has no termination")
	}
	if sel.IsNeverEnding() && !forager.SupportsNeverEndingSelector() {
		return nil, optimization.ConfigError(ErrIllegalForager, "localsearch", "NewPhase",
			"move selector never ends but the forager has no accepted count limit")
	}
	return &Phase{Selector: sel, Acceptor: acc, Forager: forager, Termination: term}, nil
}

func (ph *Phase) listeners() scope.Listeners {
	return scope.Listeners{ph.Selector, ph.Acceptor, ph.Forager}
}

// maxSkippedMoves bounds the run of non-doable moves a step tolerates.
const maxSkippedMoves = 100000

// decider runs one phase against a solver scope.
type decider struct {
	*Phase
	logger *zap.Logger
	tracer trace.Tracer
	// improved is called after every step that beats the best score.
	improved func(st *scope.Step)
}

func (d *decider) run(ctx context.Context, sc *scope.Solver, index int) (PhaseResult, error) {
	ctx, span := d.tracer.Start(ctx, "localsearch.Phase",
		trace.WithAttributes(attribute.Int("phase.index", index)))
	defer span.End()

	res := PhaseResult{Index: index}
	starting, err := sc.Director.CalculateScore()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	p := scope.NewPhase(sc, index, starting)
	res.StartingScore = starting

	listeners := d.listeners()
	if err := listeners.PhaseStarted(p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	d.logger.Info("Local search phase started",
		zap.Int("phase", index), zap.Stringer("starting_score", starting))

	deltas := make([][]float64, starting.LevelCount())
	res.Reason = ReasonTerminated
	for {
		if ctx.Err() != nil {
			res.Reason = ReasonCancelled
			break
		}
		if d.Termination.IsTerminated(p) {
			break
		}
		previous := p.LastCompletedStep.Score
		st, err := d.step(ctx, p)
		if st != nil {
			res.SelectedMoveCount += st.SelectedMoveCount
			res.AcceptedMoveCount += st.AcceptedMoveCount
		}
		if err != nil {
			listeners.PhaseEnded(p)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, optimization.WrapErrorf(err, "phase %d step %d failed", index, p.NextStepIndex-1).
				WithComponent("localsearch").WithOperation("Step")
		}
		if st.Move == nil {
			switch {
			case ctx.Err() != nil:
				res.Reason = ReasonCancelled
			case d.Termination.IsTerminated(p):
			default:
				res.Reason = ReasonNoMoveAccepted
				d.logger.Info("No move accepted, ending phase early",
					zap.Int("phase", index), zap.Int("step", st.Index),
					zap.Int64("selected_moves", st.SelectedMoveCount))
			}
			break
		}
		for i, diff := range st.Score.Subtract(previous).LevelFloats() {
			deltas[i] = append(deltas[i], diff)
		}
	}
	listeners.PhaseEnded(p)

	res.Steps = p.LastCompletedStep.Index + 1
	res.EndingScore = p.LastCompletedStep.Score
	res.BestScore = sc.BestScore
	res.Duration = p.Elapsed()
	if res.Steps > 0 {
		res.MeanStepDelta = make([]float64, len(deltas))
		for i, level := range deltas {
			res.MeanStepDelta[i] = stat.Mean(level, nil)
		}
	}
	phaseDuration.WithLabelValues(string(res.Reason)).Observe(res.Duration.Seconds())
	span.SetAttributes(
		attribute.String("phase.reason", string(res.Reason)),
		attribute.Int("phase.steps", res.Steps),
		attribute.String("phase.best_score", res.BestScore.String()),
	)
	span.SetStatus(codes.Ok, "")
	d.logger.Info("Local search phase ended",
		zap.Int("phase", index),
		zap.String("reason", string(res.Reason)),
		zap.Int("steps", res.Steps),
		zap.Stringer("best_score", res.BestScore),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// step selects, evaluates and applies one move. The returned step has a nil
// Move when nothing was accepted; in that case the step never ends and
// listeners see no StepEnded for it.
func (d *decider) step(ctx context.Context, p *scope.Phase) (*scope.Step, error) {
	st := scope.NewStep(p)
	st.TimeGradient = d.Termination.TimeGradient(p)
	listeners := d.listeners()
	if err := listeners.StepStarted(st); err != nil {
		return nil, err
	}

	sd := p.Director()
	it := d.Selector.Iterator()
	// Termination and ctx are also polled after every evaluated move, so a
	// step can end before its selector runs out.
	for index, skipped := 0, 0; ; {
		m, ok := it.Next()
		if !ok {
			break
		}
		if !m.IsDoable(sd) {
			// A never-ending selector over a solution without doable moves
			// would otherwise spin forever.
			if skipped++; skipped >= maxSkippedMoves {
				break
			}
			continue
		}
		skipped = 0
		ms := &scope.MoveScope{Step: st, Index: index, Move: m}
		index++
		if err := d.evaluate(ms); err != nil {
			return st, err
		}
		d.Forager.AddMove(ms)
		if d.Forager.IsQuitEarly() || d.Termination.IsTerminated(p) || ctx.Err() != nil {
			break
		}
	}

	picked := d.Forager.PickMove(st)
	movesEvaluatedTotal.Add(float64(st.SelectedMoveCount))
	movesAcceptedTotal.Add(float64(st.AcceptedMoveCount))
	if picked == nil {
		return st, nil
	}

	undo, s, err := move.DoScored(sd, picked.Move)
	if err != nil {
		return st, err
	}
	if p.Solver.Mode.IsAsserted() && !s.Equal(picked.Score) {
		return st, perrors.Wrapf(ErrScoreCorruption, "step move %s scored %s, but %s when evaluated",
			picked.Move, s, picked.Score)
	}
	st.Move, st.Undo, st.Score = picked.Move, undo, s

	if st.Score.Better(p.Solver.BestScore) {
		p.Solver.BestScore = st.Score
		p.Solver.BestSolution = sd.CloneWorkingSolution()
		p.BestSolutionStepIndex = st.Index
		st.BestScoreImproved = true
		if d.improved != nil {
			d.improved(st)
		}
	}
	// Listeners see the ended step while the phase still points at the step
	// before it.
	listeners.StepEnded(st)
	p.LastCompletedStep = st
	stepsTotal.Inc()

	d.logger.Debug("Step ended",
		zap.Int("phase", p.Index),
		zap.Int("step", st.Index),
		zap.Float64("time_gradient", st.TimeGradient),
		zap.Stringer("score", st.Score),
		zap.Bool("best_improved", st.BestScoreImproved),
		zap.Int64("accepted_moves", st.AcceptedMoveCount),
		zap.Int64("selected_moves", st.SelectedMoveCount),
		zap.Stringer("move", st.Move))
	return st, nil
}

// evaluate does the move, asks the acceptor about its score and undoes it.
// The asserting environment modes check that the undo restored the
// solution exactly.
func (d *decider) evaluate(ms *scope.MoveScope) error {
	p := ms.Step.Phase
	sd := p.Director()
	mode := p.Solver.Mode

	var snapshot *domain.Solution
	var fingerprint uint64
	if mode.IsFullyAsserted() {
		snapshot = sd.CloneWorkingSolution()
		fingerprint = domain.Fingerprint(snapshot)
	}

	undo, s, err := move.DoScored(sd, ms.Move)
	ms.Undo = undo
	if err != nil {
		return err
	}
	ms.Score = s
	if mode.IsAsserted() {
		scratch, err := sd.CalculateScoreFromScratch()
		if err != nil {
			return err
		}
		if !scratch.Equal(s) {
			return perrors.Wrapf(ErrScoreCorruption, "move %s scored %s incrementally but %s from scratch (entities %s)",
				ms.Move, s, scratch, entityNames(sd, ms.Move))
		}
	}
	ms.Accepted = d.Acceptor.IsAccepted(ms)

	undo.Do(sd)
	if err := sd.TriggerVariableListeners(); err != nil {
		return err
	}
	if !mode.IsAsserted() {
		return nil
	}
	want := p.LastCompletedStep.Score
	got, err := sd.CalculateScoreFromScratch()
	if err != nil {
		return err
	}
	if !got.Equal(want) {
		return perrors.Wrapf(ErrUndoCorruption, "undo %s of move %s left score %s, expected %s (entities %s)",
			undo, ms.Move, got, want, entityNames(sd, ms.Move))
	}
	if !mode.IsFullyAsserted() {
		return nil
	}
	if domain.Fingerprint(sd.WorkingSolution()) != fingerprint {
		changed := domain.DiffGenuine(snapshot, sd.WorkingSolution())
		return perrors.Wrapf(ErrUndoCorruption, "undo %s of move %s left genuine variables of %s changed",
			undo, ms.Move, names(sd.WorkingSolution(), changed))
	}
	return sd.VerifyShadows()
}

func entityNames(sd *director.ScoreDirector, m move.Move) string {
	return names(sd.WorkingSolution(), m.PlanningEntities())
}

func names(sol *domain.Solution, ids []domain.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = sol.Name(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
