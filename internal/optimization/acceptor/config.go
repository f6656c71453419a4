package acceptor

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// Acceptor type names accepted in Config.Types.
const (
	TypeHillClimbing       = "hill_climbing"
	TypeEntityTabu         = "entity_tabu"
	TypeValueTabu          = "value_tabu"
	TypeMoveTabu           = "move_tabu"
	TypeUndoMoveTabu       = "undo_move_tabu"
	TypeSimulatedAnnealing = "simulated_annealing"
	TypeLateAcceptance     = "late_acceptance"
	TypeGreatDeluge        = "great_deluge"
	TypeStepCounting       = "step_counting_hill_climbing"
)

// Defaults used when a type is listed explicitly without its size.
const (
	DefaultTabuSize           = 7
	DefaultLateAcceptanceSize = 400
	DefaultStepCountingSize   = 400
)

// Config selects and parameterizes acceptors. When Types is empty the
// acceptors are inferred from the parameters that are set; when nothing is
// set the result is hill climbing. Several acceptors are combined with AND.
//
// Zero sizes, ratios and rates mean unset, so an explicit zero is the same
// as leaving the field out: a listed type then gets its default size.
type Config struct {
	Types []string `yaml:"types" env:"TYPES" envSeparator:","`

	EntityTabuSize         int     `yaml:"entity_tabu_size" env:"ENTITY_TABU_SIZE"`
	EntityTabuRatio        float64 `yaml:"entity_tabu_ratio" env:"ENTITY_TABU_RATIO"`
	FadingEntityTabuSize   int     `yaml:"fading_entity_tabu_size" env:"FADING_ENTITY_TABU_SIZE"`
	FadingEntityTabuRatio  float64 `yaml:"fading_entity_tabu_ratio" env:"FADING_ENTITY_TABU_RATIO"`
	ValueTabuSize          int     `yaml:"value_tabu_size" env:"VALUE_TABU_SIZE"`
	ValueTabuRatio         float64 `yaml:"value_tabu_ratio" env:"VALUE_TABU_RATIO"`
	FadingValueTabuSize    int     `yaml:"fading_value_tabu_size" env:"FADING_VALUE_TABU_SIZE"`
	FadingValueTabuRatio   float64 `yaml:"fading_value_tabu_ratio" env:"FADING_VALUE_TABU_RATIO"`
	MoveTabuSize           int     `yaml:"move_tabu_size" env:"MOVE_TABU_SIZE"`
	FadingMoveTabuSize     int     `yaml:"fading_move_tabu_size" env:"FADING_MOVE_TABU_SIZE"`
	UndoMoveTabuSize       int     `yaml:"undo_move_tabu_size" env:"UNDO_MOVE_TABU_SIZE"`
	FadingUndoMoveTabuSize int     `yaml:"fading_undo_move_tabu_size" env:"FADING_UNDO_MOVE_TABU_SIZE"`
	AspirationDisabled     bool    `yaml:"aspiration_disabled" env:"ASPIRATION_DISABLED"`

	// SimulatedAnnealingStartingTemperature is a score such as "0hard/400soft".
	SimulatedAnnealingStartingTemperature string `yaml:"simulated_annealing_starting_temperature" env:"SA_STARTING_TEMPERATURE"`

	LateAcceptanceSize         int  `yaml:"late_acceptance_size" env:"LATE_ACCEPTANCE_SIZE"`
	LateAcceptanceHillClimbing bool `yaml:"late_acceptance_hill_climbing" env:"LATE_ACCEPTANCE_HILL_CLIMBING"`

	GreatDelugeStartingWaterLevel       string  `yaml:"great_deluge_starting_water_level" env:"GD_STARTING_WATER_LEVEL"`
	GreatDelugeWaterLevelIncrementScore string  `yaml:"great_deluge_water_level_increment_score" env:"GD_WATER_LEVEL_INCREMENT_SCORE"`
	GreatDelugeWaterLevelIncrementRatio float64 `yaml:"great_deluge_water_level_increment_ratio" env:"GD_WATER_LEVEL_INCREMENT_RATIO"`
	GreatDelugeUpperBoundRate           float64 `yaml:"great_deluge_upper_bound_rate" env:"GD_UPPER_BOUND_RATE"`

	StepCountingSize int              `yaml:"step_counting_size" env:"STEP_COUNTING_SIZE"`
	StepCountingType StepCountingType `yaml:"step_counting_type" env:"STEP_COUNTING_TYPE"`
	StepCountingMode ThresholdMode    `yaml:"step_counting_mode" env:"STEP_COUNTING_MODE"`
}

func configError(sentinel error, format string, args ...interface{}) error {
	return optimization.ConfigError(sentinel, "acceptor.Config", "Validate", format, args...)
}

// Validate reports parameters that can never work. Sizes that are zero are
// treated as unset; the acceptors themselves reject non-positive sizes when
// a phase starts.
func (c Config) Validate() error {
	for _, t := range c.Types {
		switch t {
		case TypeHillClimbing, TypeEntityTabu, TypeValueTabu, TypeMoveTabu, TypeUndoMoveTabu,
			TypeSimulatedAnnealing, TypeLateAcceptance, TypeGreatDeluge, TypeStepCounting:
		default:
			return configError(ErrIllegalParameter, "unknown acceptor type %q", t)
		}
	}
	pairs := []struct {
		name  string
		size  int
		ratio float64
	}{
		{"entity tabu", c.EntityTabuSize, c.EntityTabuRatio},
		{"fading entity tabu", c.FadingEntityTabuSize, c.FadingEntityTabuRatio},
		{"value tabu", c.ValueTabuSize, c.ValueTabuRatio},
		{"fading value tabu", c.FadingValueTabuSize, c.FadingValueTabuRatio},
	}
	for _, p := range pairs {
		if p.size != 0 && p.ratio != 0 {
			return configError(ErrIllegalSize, "%s size %d and ratio %v are mutually exclusive", p.name, p.size, p.ratio)
		}
		if p.ratio < 0 || p.ratio >= 1 {
			return configError(ErrIllegalSize, "%s ratio %v must be in (0, 1)", p.name, p.ratio)
		}
	}
	for name, size := range map[string]int{
		"entity tabu": c.EntityTabuSize, "fading entity tabu": c.FadingEntityTabuSize,
		"value tabu": c.ValueTabuSize, "fading value tabu": c.FadingValueTabuSize,
		"move tabu": c.MoveTabuSize, "fading move tabu": c.FadingMoveTabuSize,
		"undo move tabu": c.UndoMoveTabuSize, "fading undo move tabu": c.FadingUndoMoveTabuSize,
		"late acceptance": c.LateAcceptanceSize, "step counting": c.StepCountingSize,
	} {
		if size < 0 {
			return configError(ErrIllegalSize, "%s size %d must not be negative", name, size)
		}
	}
	if _, err := parseOptional(c.SimulatedAnnealingStartingTemperature); err != nil {
		return err
	}
	if _, err := parseOptional(c.GreatDelugeStartingWaterLevel); err != nil {
		return err
	}
	if _, err := parseOptional(c.GreatDelugeWaterLevelIncrementScore); err != nil {
		return err
	}
	if c.GreatDelugeWaterLevelIncrementScore != "" && c.GreatDelugeWaterLevelIncrementRatio != 0 {
		return configError(ErrIllegalParameter, "great deluge increment score and ratio are mutually exclusive")
	}
	if c.GreatDelugeWaterLevelIncrementRatio < 0 || c.GreatDelugeUpperBoundRate < 0 {
		return configError(ErrIllegalParameter, "great deluge rates must not be negative")
	}
	return nil
}

func parseOptional(text string) (score.Score, error) {
	if text == "" {
		return score.Score{}, nil
	}
	return score.Parse(text)
}

// ResolvedTypes returns Types, or when it is empty the acceptors whose
// parameters are set.
func (c Config) ResolvedTypes() []string {
	if len(c.Types) > 0 {
		return c.Types
	}
	var out []string
	if c.EntityTabuSize != 0 || c.EntityTabuRatio != 0 {
		out = append(out, TypeEntityTabu)
	}
	if c.ValueTabuSize != 0 || c.ValueTabuRatio != 0 {
		out = append(out, TypeValueTabu)
	}
	if c.MoveTabuSize != 0 {
		out = append(out, TypeMoveTabu)
	}
	if c.UndoMoveTabuSize != 0 {
		out = append(out, TypeUndoMoveTabu)
	}
	if c.SimulatedAnnealingStartingTemperature != "" {
		out = append(out, TypeSimulatedAnnealing)
	}
	if c.LateAcceptanceSize != 0 {
		out = append(out, TypeLateAcceptance)
	}
	if c.GreatDelugeStartingWaterLevel != "" || c.GreatDelugeWaterLevelIncrementScore != "" ||
		c.GreatDelugeWaterLevelIncrementRatio != 0 || c.GreatDelugeUpperBoundRate != 0 {
		out = append(out, TypeGreatDeluge)
	}
	if c.StepCountingSize != 0 {
		out = append(out, TypeStepCounting)
	}
	if len(out) == 0 {
		out = append(out, TypeHillClimbing)
	}
	return out
}

func sizeStrategy(size int, ratio float64, kind func(float64) SizeStrategy, fallback int) SizeStrategy {
	switch {
	case ratio != 0:
		return kind(ratio)
	case size != 0:
		return FixedSize(size)
	default:
		return FixedSize(fallback)
	}
}

func optionalStrategy(size int, ratio float64, kind func(float64) SizeStrategy) SizeStrategy {
	if size == 0 && ratio == 0 {
		return nil
	}
	return sizeStrategy(size, ratio, kind, 0)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Build validates the configuration and creates its acceptor.
func Build(c Config) (Acceptor, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	types := c.ResolvedTypes()
	entityRatio := func(r float64) SizeStrategy { return EntityRatio(r) }
	valueRatio := func(r float64) SizeStrategy { return ValueRatio(r) }
	noRatio := func(r float64) SizeStrategy { return FixedSize(0) }
	aspiration := !c.AspirationDisabled

	var acceptors []Acceptor
	for _, t := range types {
		switch t {
		case TypeHillClimbing:
			acceptors = append(acceptors, NewHillClimbing())
		case TypeEntityTabu:
			acceptors = append(acceptors, NewTabu(EntityTabu,
				sizeStrategy(c.EntityTabuSize, c.EntityTabuRatio, entityRatio, DefaultTabuSize),
				optionalStrategy(c.FadingEntityTabuSize, c.FadingEntityTabuRatio, entityRatio), aspiration))
		case TypeValueTabu:
			acceptors = append(acceptors, NewTabu(ValueTabu,
				sizeStrategy(c.ValueTabuSize, c.ValueTabuRatio, valueRatio, DefaultTabuSize),
				optionalStrategy(c.FadingValueTabuSize, c.FadingValueTabuRatio, valueRatio), aspiration))
		case TypeMoveTabu:
			acceptors = append(acceptors, NewTabu(MoveTabu,
				sizeStrategy(c.MoveTabuSize, 0, noRatio, DefaultTabuSize),
				optionalStrategy(c.FadingMoveTabuSize, 0, noRatio), aspiration))
		case TypeUndoMoveTabu:
			acceptors = append(acceptors, NewTabu(UndoMoveTabu,
				sizeStrategy(c.UndoMoveTabuSize, 0, noRatio, DefaultTabuSize),
				optionalStrategy(c.FadingUndoMoveTabuSize, 0, noRatio), aspiration))
		case TypeSimulatedAnnealing:
			if c.SimulatedAnnealingStartingTemperature == "" {
				return nil, configError(ErrIllegalParameter, "simulated annealing needs a starting temperature")
			}
			temperature, _ := score.Parse(c.SimulatedAnnealingStartingTemperature)
			acceptors = append(acceptors, NewSimulatedAnnealing(temperature))
		case TypeLateAcceptance:
			acceptors = append(acceptors, NewLateAcceptance(
				orDefault(c.LateAcceptanceSize, DefaultLateAcceptanceSize), c.LateAcceptanceHillClimbing))
		case TypeGreatDeluge:
			starting, _ := parseOptional(c.GreatDelugeStartingWaterLevel)
			increment, _ := parseOptional(c.GreatDelugeWaterLevelIncrementScore)
			acceptors = append(acceptors, &GreatDeluge{
				StartingLevel:  starting,
				Increment:      increment,
				IncrementRatio: c.GreatDelugeWaterLevelIncrementRatio,
				UpperBoundRate: c.GreatDelugeUpperBoundRate,
			})
		case TypeStepCounting:
			acceptors = append(acceptors, NewStepCounting(
				orDefault(c.StepCountingSize, DefaultStepCountingSize), c.StepCountingType, c.StepCountingMode))
		}
	}
	if len(acceptors) == 1 {
		return acceptors[0], nil
	}
	return NewComposite(acceptors...), nil
}
