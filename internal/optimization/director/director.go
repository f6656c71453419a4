// Package director implements the score director: the single gateway through
// which the working solution is mutated. It brackets every genuine change
// with before/after notifications, keeps shadow variables consistent through
// a topologically ordered listener graph, and produces the score.
package director

import (
	"go.uber.org/zap"

	perrors "github.com/copyleftdev/tundr-planner/internal/errors"
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// VariableListener computes a custom shadow variable. It is called with the
// object whose source variable changed. AfterVariableChanged runs when the
// director flushes, after all listeners it depends on, and writes the shadow
// through ScoreDirector.ChangeNum.
type VariableListener interface {
	BeforeVariableChanged(sd *ScoreDirector, obj domain.ID)
	AfterVariableChanged(sd *ScoreDirector, obj domain.ID)
}

// Option configures a ScoreDirector.
type Option func(*options)

type options struct {
	custom map[*domain.Variable]VariableListener
	logger *zap.Logger
}

// WithCustomListener registers the listener computing a custom shadow.
func WithCustomListener(shadow *domain.Variable, l VariableListener) Option {
	return func(o *options) { o.custom[shadow] = l }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ScoreDirector owns the working solution for one solving session. It is not
// safe for concurrent use.
type ScoreDirector struct {
	model     *domain.Model
	calc      IncrementalScoreCalculator
	logger    *zap.Logger
	nodes     []*node
	consumers map[*domain.Variable][]*node
	sol       *domain.Solution

	chains map[*domain.Variable]*chainSupply
	lists  map[*domain.Variable]*listSupply

	// live is false while a working solution is being adopted, so the
	// calculator only sees changes made after its reset.
	live bool
	err  error
}

// New validates the model, orders its shadow variables and returns a
// director without a working solution.
func New(model *domain.Model, calc IncrementalScoreCalculator, opts ...Option) (*ScoreDirector, error) {
	o := options{custom: make(map[*domain.Variable]VariableListener), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if calc == nil {
		return nil, optimization.NewError("score calculator is required").
			WithComponent("director").WithOperation("New")
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	nodes, consumers, err := buildGraph(model, o.custom)
	if err != nil {
		return nil, err
	}

	sd := &ScoreDirector{
		model:     model,
		calc:      calc,
		logger:    o.logger,
		nodes:     nodes,
		consumers: consumers,
		chains:    make(map[*domain.Variable]*chainSupply),
		lists:     make(map[*domain.Variable]*listSupply),
	}
	for _, v := range model.GenuineVariables() {
		switch v.Kind {
		case domain.Chained:
			sd.chains[v] = newChainSupply()
		case domain.List:
			sd.lists[v] = newListSupply()
		}
	}
	return sd, nil
}

// Model returns the model the director was built for.
func (sd *ScoreDirector) Model() *domain.Model { return sd.model }

// WorkingSolution returns the live solution. Callers must mutate it only
// through the director.
func (sd *ScoreDirector) WorkingSolution() *domain.Solution { return sd.sol }

// Err returns the first contract violation seen since the working solution
// was set.
func (sd *ScoreDirector) Err() error { return sd.err }

// ShadowOrder returns the shadow variables in the order their listeners run.
func (sd *ScoreDirector) ShadowOrder() []*domain.Variable {
	out := make([]*domain.Variable, len(sd.nodes))
	for i, n := range sd.nodes {
		out[i] = n.shadow
	}
	return out
}

// SetWorkingSolution replaces the working solution. All supplies and built-in
// shadow variables are rebuilt from the genuine variables, custom listeners
// are run for every object, and the cached score is cleared.
func (sd *ScoreDirector) SetWorkingSolution(sol *domain.Solution) error {
	if sol.Model != sd.model {
		return optimization.ConfigError(ErrForeignSolution, "director", "SetWorkingSolution",
			"cannot adopt solution")
	}
	sd.sol = sol
	sd.err = nil
	sd.live = false
	for _, n := range sd.nodes {
		n.drain()
	}
	for v, c := range sd.chains {
		c.rebuild(sol, v)
	}
	for v, l := range sd.lists {
		l.rebuild(sol, v)
	}
	sd.recomputeShadows(true)
	for _, n := range sd.nodes {
		if _, ok := n.impl.(*customUpdater); !ok {
			continue
		}
		for _, src := range n.shadow.Sources {
			for _, id := range sol.ObjectsOf(src.Class) {
				n.enqueueAfter(notification{kind: variableChanged, obj: id})
			}
		}
	}
	if err := sd.TriggerVariableListeners(); err != nil {
		return err
	}
	sd.calc.ResetWorkingSolution(sol)
	sd.live = true
	sol.Score = score.Score{}
	sd.logger.Debug("working solution set",
		zap.Int("objects", sol.Len()),
		zap.Int("shadowListeners", len(sd.nodes)))
	return nil
}

// BeforeVariableChanged must precede every change of a reference or numeric
// variable.
func (sd *ScoreDirector) BeforeVariableChanged(obj domain.ID, v *domain.Variable) {
	if sd.live {
		sd.calc.BeforeVariableChanged(obj, v)
	}
	sd.retract(obj, v)
}

// retract takes the current value of a variable out of the supplies and
// queues its consumers.
func (sd *ScoreDirector) retract(obj domain.ID, v *domain.Variable) {
	if v.Kind == domain.Chained {
		sd.chains[v].unlink(obj, sd.sol.Ref(obj, v))
	}
	for _, n := range sd.consumers[v] {
		n.enqueue(sd, notification{kind: variableChanged, obj: obj})
	}
}

// AfterVariableChanged must follow every change of a reference or numeric
// variable. Listener after callbacks are deferred to the next flush.
func (sd *ScoreDirector) AfterVariableChanged(obj domain.ID, v *domain.Variable) {
	if v.Kind == domain.Chained {
		sd.chains[v].link(obj, sd.sol.Ref(obj, v))
	}
	if sd.live {
		sd.calc.AfterVariableChanged(obj, v)
	}
}

// ChangeVariable sets a reference variable, bracketed by notifications.
func (sd *ScoreDirector) ChangeVariable(obj domain.ID, v *domain.Variable, value domain.ID) {
	sd.BeforeVariableChanged(obj, v)
	sd.sol.SetRef(obj, v, value)
	sd.AfterVariableChanged(obj, v)
}

// ChangeNum sets a numeric variable, bracketed by notifications. Custom
// listeners use it to write their shadow.
func (sd *ScoreDirector) ChangeNum(obj domain.ID, v *domain.Variable, value int64) {
	sd.BeforeVariableChanged(obj, v)
	sd.sol.SetNum(obj, v, value)
	sd.AfterVariableChanged(obj, v)
}

// BeforeListVariableChanged must precede a change of elements [from, to) of
// an entity's list.
func (sd *ScoreDirector) BeforeListVariableChanged(entity domain.ID, v *domain.Variable, from, to int) {
	sd.lists[v].forget(sd.sol, entity, v, from, to)
	if sd.live {
		sd.calc.BeforeListVariableChanged(entity, v, from, to)
	}
	for _, n := range sd.consumers[v] {
		if _, ok := n.impl.(*customUpdater); ok {
			n.enqueue(sd, notification{kind: variableChanged, obj: entity})
		}
	}
}

// AfterListVariableChanged must follow the change; to is the end of the
// changed range after the change.
func (sd *ScoreDirector) AfterListVariableChanged(entity domain.ID, v *domain.Variable, from, to int) {
	sd.lists[v].index(sd.sol, entity, v, from)
	if sd.live {
		sd.calc.AfterListVariableChanged(entity, v, from, to)
	}
	for _, n := range sd.consumers[v] {
		if _, ok := n.impl.(*customUpdater); !ok {
			n.enqueueAfter(notification{kind: listChanged, obj: entity, from: from, to: to})
		}
	}
}

// AfterListElementUnassigned reports an element that left every list.
func (sd *ScoreDirector) AfterListElementUnassigned(v *domain.Variable, element domain.ID) {
	for _, n := range sd.consumers[v] {
		if _, ok := n.impl.(*customUpdater); ok {
			continue
		}
		n.enqueue(sd, notification{kind: elementUnassigned, obj: element})
	}
}

// BeforeEntityAdded must be called once the object exists in the arena and
// before any of its variables are linked.
func (sd *ScoreDirector) BeforeEntityAdded(obj domain.ID) {
	if sd.live {
		sd.calc.BeforeEntityAdded(obj)
	}
}

// AfterEntityAdded links the entity's genuine variables into the supplies and
// queues its shadow initialization.
func (sd *ScoreDirector) AfterEntityAdded(obj domain.ID) {
	o := sd.sol.Object(obj)
	for _, v := range o.Class.GenuineVariables() {
		switch v.Kind {
		case domain.Chained:
			sd.chains[v].link(obj, sd.sol.Ref(obj, v))
		case domain.List:
			sd.lists[v].index(sd.sol, obj, v, 0)
		}
		for _, n := range sd.consumers[v] {
			notif := notification{kind: variableChanged, obj: obj}
			if v.Kind == domain.List {
				if _, ok := n.impl.(*customUpdater); !ok {
					notif = notification{kind: listChanged, obj: obj, from: 0, to: len(sd.sol.Seq(obj, v))}
				}
			}
			n.enqueueAfter(notif)
		}
	}
	if sd.live {
		sd.calc.AfterEntityAdded(obj)
	}
}

// BeforeEntityRemoved detaches the entity. Removing an entity that another
// entity's chain still points at, that sits in a list, or that still owns
// list elements is a contract violation recorded on the director.
func (sd *ScoreDirector) BeforeEntityRemoved(obj domain.ID) {
	for v, c := range sd.chains {
		if trailing := c.next(obj); trailing != domain.None {
			sd.fail(perrors.Wrapf(ErrEntityStillLinked,
				"cannot remove %s: %s still follows it in chain %s",
				sd.sol.Name(obj), sd.sol.Name(trailing), v))
			return
		}
	}
	for v, l := range sd.lists {
		if owner, _, ok := l.locate(obj); ok {
			sd.fail(perrors.Wrapf(ErrEntityStillLinked,
				"cannot remove %s: it is an element of %s in %s", sd.sol.Name(obj), sd.sol.Name(owner), v))
			return
		}
	}
	o := sd.sol.Object(obj)
	for _, v := range o.Class.GenuineVariables() {
		if v.Kind == domain.List {
			if len(sd.sol.Seq(obj, v)) > 0 {
				sd.fail(perrors.Wrapf(ErrEntityStillLinked,
					"cannot remove %s: its list %s is not empty", sd.sol.Name(obj), v))
				return
			}
			continue
		}
		sd.retract(obj, v)
	}
	if sd.live {
		sd.calc.BeforeEntityRemoved(obj)
	}
}

// AfterEntityRemoved drops the entity from the arena if the caller has not
// done so already.
func (sd *ScoreDirector) AfterEntityRemoved(obj domain.ID) {
	if sd.sol.Contains(obj) {
		sd.sol.Remove(obj)
	}
	if sd.live {
		sd.calc.AfterEntityRemoved(obj)
	}
}

// TriggerVariableListeners flushes every deferred listener callback in
// topological order and returns the first contract violation, if any.
func (sd *ScoreDirector) TriggerVariableListeners() error {
	for pass := 0; ; pass++ {
		if pass > len(sd.nodes) {
			sd.fail(perrors.Wrap(ErrListenerLoop, "listener notifications kept cascading"))
			break
		}
		progressed := false
		for _, n := range sd.nodes {
			if len(n.pending) == 0 {
				continue
			}
			progressed = true
			for _, notif := range n.drain() {
				n.impl.after(sd, notif)
			}
		}
		if !progressed {
			break
		}
	}
	return sd.err
}

// CalculateScore flushes pending listeners and returns the working score.
func (sd *ScoreDirector) CalculateScore() (score.Score, error) {
	if err := sd.TriggerVariableListeners(); err != nil {
		return score.Score{}, err
	}
	s := sd.calc.CalculateScore()
	sd.sol.Score = s
	return s, nil
}

// CalculateScoreFromScratch makes the calculator forget its incremental
// state and rescore the whole working solution.
func (sd *ScoreDirector) CalculateScoreFromScratch() (score.Score, error) {
	if err := sd.TriggerVariableListeners(); err != nil {
		return score.Score{}, err
	}
	sd.calc.ResetWorkingSolution(sd.sol)
	s := sd.calc.CalculateScore()
	sd.sol.Score = s
	return s, nil
}

// CloneWorkingSolution returns a deep copy of the working solution.
func (sd *ScoreDirector) CloneWorkingSolution() *domain.Solution {
	return sd.sol.Clone()
}

func (sd *ScoreDirector) fail(err error) {
	if sd.err == nil {
		sd.err = err
		sd.logger.Error("score director contract violated", zap.Error(err))
	}
}

// setShadowRef writes a reference shadow when its value differs, notifying
// downstream listeners.
func (sd *ScoreDirector) setShadowRef(obj domain.ID, v *domain.Variable, value domain.ID) bool {
	if sd.sol.Ref(obj, v) == value {
		return false
	}
	sd.BeforeVariableChanged(obj, v)
	sd.sol.SetRef(obj, v, value)
	sd.AfterVariableChanged(obj, v)
	return true
}

func (sd *ScoreDirector) setShadowNum(obj domain.ID, v *domain.Variable, value int64) bool {
	if sd.sol.Num(obj, v) == value {
		return false
	}
	sd.ChangeNum(obj, v, value)
	return true
}

func (sd *ScoreDirector) setShadowSeq(obj domain.ID, v *domain.Variable, seq []domain.ID) {
	sd.BeforeVariableChanged(obj, v)
	sd.sol.SetSeq(obj, v, seq)
	sd.AfterVariableChanged(obj, v)
}
