package localsearch

import (
	"time"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/acceptor"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
	"github.com/copyleftdev/tundr-planner/internal/optimization/selector"
)

// Default accepted count limits for random selection.
const (
	DefaultAcceptedCountLimit     = 1
	DefaultTabuAcceptedCountLimit = 1000
)

// Config configures a solver.
type Config struct {
	// RandomSeed seeds the single random source of a solve. Equal seeds give
	// equal move sequences.
	RandomSeed      int64                        `yaml:"random_seed"`
	EnvironmentMode optimization.EnvironmentMode `yaml:"environment_mode"`
	// Termination applies to every phase that has none of its own.
	Termination TerminationConfig `yaml:"termination"`
	// Phases run in order. An empty list runs one default phase.
	Phases []PhaseConfig `yaml:"phases"`
}

// PhaseConfig configures one local search phase.
type PhaseConfig struct {
	// SelectionOrder is "random" (the default) or "original".
	SelectionOrder string            `yaml:"selection_order"`
	Acceptor       acceptor.Config   `yaml:"acceptor"`
	Forager        ForagerConfig     `yaml:"forager"`
	Termination    TerminationConfig `yaml:"termination"`
}

// ForagerConfig configures how a step picks its move.
type ForagerConfig struct {
	// AcceptedCountLimit stops a step after this many accepted moves. Zero
	// picks a default: 1 for random selection (1000 with a tabu acceptor)
	// and no limit for original selection.
	AcceptedCountLimit int           `yaml:"accepted_count_limit" env:"ACCEPTED_COUNT_LIMIT"`
	PickEarlyType      PickEarlyType `yaml:"pick_early_type" env:"PICK_EARLY_TYPE"`
}

// TerminationConfig lists the limits that end a phase. Unset limits are
// ignored; several limits are combined with Composition, "or" by default.
type TerminationConfig struct {
	StepCountLimit           int           `yaml:"step_count_limit" env:"STEP_COUNT_LIMIT"`
	TimeSpentLimit           time.Duration `yaml:"time_spent_limit" env:"TIME_SPENT_LIMIT"`
	UnimprovedStepCountLimit int           `yaml:"unimproved_step_count_limit" env:"UNIMPROVED_STEP_COUNT_LIMIT"`
	BestScoreLimit           string        `yaml:"best_score_limit" env:"BEST_SCORE_LIMIT"`
	Composition              string        `yaml:"composition" env:"COMPOSITION"`
}

func configError(sentinel error, format string, args ...interface{}) error {
	return optimization.ConfigError(sentinel, "localsearch.Config", "Validate", format, args...)
}

// IsZero reports whether no limit is set.
func (c TerminationConfig) IsZero() bool {
	return c.StepCountLimit == 0 && c.TimeSpentLimit == 0 && c.UnimprovedStepCountLimit == 0 && c.BestScoreLimit == ""
}

// Validate checks the limits.
func (c TerminationConfig) Validate() error {
	if c.StepCountLimit < 0 || c.TimeSpentLimit < 0 || c.UnimprovedStepCountLimit < 0 {
		return configError(ErrIllegalTermination, "termination limits must not be negative")
	}
	switch c.Composition {
	case "", "or", "and":
	default:
		return configError(ErrIllegalTermination, "unknown termination composition %q", c.Composition)
	}
	if c.BestScoreLimit != "" {
		if _, err := score.Parse(c.BestScoreLimit); err != nil {
			return optimization.WrapErrorf(err, "best score limit").
				WithComponent("localsearch.Config").WithOperation("Validate")
		}
	}
	return nil
}

// Build creates the termination, or nil when no limit is set.
func (c TerminationConfig) Build() (Termination, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var ts []Termination
	if c.StepCountLimit > 0 {
		ts = append(ts, StepCount{Limit: c.StepCountLimit})
	}
	if c.TimeSpentLimit > 0 {
		ts = append(ts, TimeSpent{Limit: c.TimeSpentLimit})
	}
	if c.UnimprovedStepCountLimit > 0 {
		ts = append(ts, UnimprovedStepCount{Limit: c.UnimprovedStepCountLimit})
	}
	if c.BestScoreLimit != "" {
		limit, _ := score.Parse(c.BestScoreLimit)
		ts = append(ts, BestScoreLimit{Limit: limit})
	}
	switch {
	case len(ts) == 0:
		return nil, nil
	case len(ts) == 1:
		return ts[0], nil
	case c.Composition == "and":
		return And(ts), nil
	default:
		return Or(ts), nil
	}
}

func (c PhaseConfig) order() (selector.SelectionOrder, error) {
	switch c.SelectionOrder {
	case "", "random":
		return selector.Random, nil
	case "original":
		return selector.Original, nil
	}
	return 0, configError(ErrIllegalForager, "unknown selection order %q", c.SelectionOrder)
}

// acceptedCountLimit resolves the forager's limit for the phase.
func (c PhaseConfig) acceptedCountLimit() int {
	if c.Forager.AcceptedCountLimit > 0 {
		return c.Forager.AcceptedCountLimit
	}
	if order, _ := c.order(); order == selector.Original {
		return 0
	}
	for _, t := range c.Acceptor.ResolvedTypes() {
		switch t {
		case acceptor.TypeEntityTabu, acceptor.TypeValueTabu, acceptor.TypeMoveTabu, acceptor.TypeUndoMoveTabu:
			return DefaultTabuAcceptedCountLimit
		}
	}
	return DefaultAcceptedCountLimit
}

func (c PhaseConfig) validate() error {
	if _, err := c.order(); err != nil {
		return err
	}
	if err := c.Acceptor.Validate(); err != nil {
		return err
	}
	if c.Forager.AcceptedCountLimit < 0 {
		return configError(ErrIllegalForager, "accepted count limit %d must not be negative", c.Forager.AcceptedCountLimit)
	}
	switch c.Forager.PickEarlyType {
	case "", PickEarlyNever, PickEarlyFirstBestScoreImproving, PickEarlyFirstLastStepScoreImproving:
	default:
		return configError(ErrIllegalForager, "unknown pick early type %q", c.Forager.PickEarlyType)
	}
	return c.Termination.Validate()
}

// phases returns the configured phases, or one default phase.
func (c Config) phases() []PhaseConfig {
	if len(c.Phases) == 0 {
		return []PhaseConfig{{}}
	}
	return c.Phases
}

// Validate checks the whole configuration. Every phase needs a
// termination, its own or the solver-wide one.
func (c Config) Validate() error {
	if _, err := optimization.ParseEnvironmentMode(string(c.EnvironmentMode)); err != nil {
		return err
	}
	if err := c.Termination.Validate(); err != nil {
		return err
	}
	for i, ph := range c.phases() {
		if err := ph.validate(); err != nil {
			return optimization.WrapErrorf(err, "phase %d", i).
				WithComponent("localsearch.Config").WithOperation("Validate")
		}
		if ph.Termination.IsZero() && c.Termination.IsZero() {
			return configError(ErrNoTermination, "phase %d has no termination", i)
		}
	}
	return nil
}
