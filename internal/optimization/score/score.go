// Package score implements the multi-level score that the solver maximizes.
//
// A Score is an ordered tuple of signed levels compared lexicographically,
// most significant level first. The leading hard levels decide feasibility.
package score

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
)

// Kind identifies the textual layout of a score.
type Kind int

const (
	// KindSimple is a single unnamed level.
	KindSimple Kind = iota
	// KindHardSoft has one hard and one soft level.
	KindHardSoft
	// KindHardMediumSoft has one hard, one medium and one soft level.
	KindHardMediumSoft
	// KindBendable has any number of hard and soft levels.
	KindBendable
)

// Score is an immutable multi-level score. The zero value is the empty score,
// which reports IsSet false and must not be compared with a set score.
type Score struct {
	levels     []int64
	hardLevels int
	kind       Kind
}

// Simple returns a single-level score.
func Simple(v int64) Score {
	return Score{levels: []int64{v}, kind: KindSimple}
}

// HardSoft returns a score with one hard and one soft level.
func HardSoft(hard, soft int64) Score {
	return Score{levels: []int64{hard, soft}, hardLevels: 1, kind: KindHardSoft}
}

// HardMediumSoft returns a score with hard, medium and soft levels.
// Only the hard level counts towards feasibility.
func HardMediumSoft(hard, medium, soft int64) Score {
	return Score{levels: []int64{hard, medium, soft}, hardLevels: 1, kind: KindHardMediumSoft}
}

// Bendable returns a score with the given hard and soft levels.
func Bendable(hard, soft []int64) Score {
	levels := make([]int64, 0, len(hard)+len(soft))
	levels = append(levels, hard...)
	levels = append(levels, soft...)
	return Score{levels: levels, hardLevels: len(hard), kind: KindBendable}
}

// IsSet reports whether the score carries any level.
func (s Score) IsSet() bool {
	return len(s.levels) > 0
}

// Kind returns the layout of the score.
func (s Score) Kind() Kind {
	return s.kind
}

// LevelCount returns the number of levels.
func (s Score) LevelCount() int {
	return len(s.levels)
}

// HardLevelCount returns the number of leading levels that decide feasibility.
func (s Score) HardLevelCount() int {
	return s.hardLevels
}

// Level returns the value of level i.
func (s Score) Level(i int) int64 {
	return s.levels[i]
}

// Levels returns a copy of all levels.
func (s Score) Levels() []int64 {
	out := make([]int64, len(s.levels))
	copy(out, s.levels)
	return out
}

// LevelFloats returns all levels as float64, most significant first.
func (s Score) LevelFloats() []float64 {
	out := make([]float64, len(s.levels))
	for i, l := range s.levels {
		out[i] = float64(l)
	}
	return out
}

// IsFeasible reports whether every hard level is non-negative.
func (s Score) IsFeasible() bool {
	for i := 0; i < s.hardLevels; i++ {
		if s.levels[i] < 0 {
			return false
		}
	}
	return true
}

// Zero returns a score of the same shape with every level set to zero.
func (s Score) Zero() Score {
	return s.withLevels(make([]int64, len(s.levels)))
}

// IsZero reports whether every level is zero.
func (s Score) IsZero() bool {
	for _, l := range s.levels {
		if l != 0 {
			return false
		}
	}
	return true
}

// SameShape reports whether two scores have the same level layout.
func (s Score) SameShape(o Score) bool {
	return len(s.levels) == len(o.levels) && s.hardLevels == o.hardLevels
}

// Compare returns -1, 0 or 1 comparing s with o lexicographically.
// It panics when the scores have different shapes.
func (s Score) Compare(o Score) int {
	s.mustMatch(o, "Compare")
	for i := range s.levels {
		switch {
		case s.levels[i] < o.levels[i]:
			return -1
		case s.levels[i] > o.levels[i]:
			return 1
		}
	}
	return 0
}

// Better reports whether s is strictly better than o.
func (s Score) Better(o Score) bool { return s.Compare(o) > 0 }

// AtLeast reports whether s is better than or equal to o.
func (s Score) AtLeast(o Score) bool { return s.Compare(o) >= 0 }

// Equal reports whether both scores have the same shape and levels.
func (s Score) Equal(o Score) bool {
	if !s.SameShape(o) {
		return false
	}
	for i := range s.levels {
		if s.levels[i] != o.levels[i] {
			return false
		}
	}
	return true
}

// Add returns s + o level by level.
func (s Score) Add(o Score) Score {
	s.mustMatch(o, "Add")
	out := make([]int64, len(s.levels))
	for i := range s.levels {
		out[i] = s.levels[i] + o.levels[i]
	}
	return s.withLevels(out)
}

// Subtract returns s - o level by level.
func (s Score) Subtract(o Score) Score {
	s.mustMatch(o, "Subtract")
	out := make([]int64, len(s.levels))
	for i := range s.levels {
		out[i] = s.levels[i] - o.levels[i]
	}
	return s.withLevels(out)
}

// Multiply returns every level multiplied by f and rounded down.
func (s Score) Multiply(f float64) Score {
	out := make([]int64, len(s.levels))
	for i, l := range s.levels {
		out[i] = int64(math.Floor(float64(l) * f))
	}
	return s.withLevels(out)
}

// Negate returns -s.
func (s Score) Negate() Score {
	out := make([]int64, len(s.levels))
	for i, l := range s.levels {
		out[i] = -l
	}
	return s.withLevels(out)
}

// Abs returns the score with every level made non-negative.
func (s Score) Abs() Score {
	out := make([]int64, len(s.levels))
	for i, l := range s.levels {
		if l < 0 {
			l = -l
		}
		out[i] = l
	}
	return s.withLevels(out)
}

// Max returns the better of two scores.
func Max(a, b Score) Score {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// Min returns the worse of two scores.
func Min(a, b Score) Score {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// String formats the score the way Parse reads it.
func (s Score) String() string {
	if !s.IsSet() {
		return "<unset>"
	}
	switch s.kind {
	case KindSimple:
		return strconv.FormatInt(s.levels[0], 10)
	case KindHardSoft:
		return fmt.Sprintf("%dhard/%dsoft", s.levels[0], s.levels[1])
	case KindHardMediumSoft:
		return fmt.Sprintf("%dhard/%dmedium/%dsoft", s.levels[0], s.levels[1], s.levels[2])
	default:
		return fmt.Sprintf("[%s]hard/[%s]soft",
			joinLevels(s.levels[:s.hardLevels]), joinLevels(s.levels[s.hardLevels:]))
	}
}

// MarshalText implements encoding.TextMarshaler. An unset score marshals
// to an empty text.
func (s Score) MarshalText() ([]byte, error) {
	if !s.IsSet() {
		return []byte{}, nil
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields an
// unset score.
func (s *Score) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = Score{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Score) withLevels(levels []int64) Score {
	return Score{levels: levels, hardLevels: s.hardLevels, kind: s.kind}
}

func (s Score) mustMatch(o Score, op string) {
	if !s.SameShape(o) {
		panic(optimization.NewErrorf("score shape mismatch between %s and %s", s, o).
			WithComponent("score").WithOperation(op))
	}
}

func joinLevels(levels []int64) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = strconv.FormatInt(l, 10)
	}
	return strings.Join(parts, "/")
}
