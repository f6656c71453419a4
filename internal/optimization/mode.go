package optimization

import "strings"

// EnvironmentMode controls how much self-checking the solver does while it
// runs. The asserting modes are slow and meant for development.
type EnvironmentMode string

const (
	// Reproducible runs without extra checks. Runs with the same seed
	// produce the same move sequence.
	Reproducible EnvironmentMode = "reproducible"
	// NonIntrusiveFullAssert recalculates the score from scratch after every
	// undo and compares it with the score before the move.
	NonIntrusiveFullAssert EnvironmentMode = "non_intrusive_full_assert"
	// FullAssert additionally compares the genuine variables before a move and
	// after its undo, and verifies every built-in shadow variable.
	FullAssert EnvironmentMode = "full_assert"
)

// ParseEnvironmentMode parses a mode name. An empty string yields Reproducible.
func ParseEnvironmentMode(s string) (EnvironmentMode, error) {
	switch m := EnvironmentMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Reproducible, nil
	case Reproducible, NonIntrusiveFullAssert, FullAssert:
		return m, nil
	default:
		return "", NewErrorf("unknown environment mode %q", s).WithOperation("ParseEnvironmentMode")
	}
}

// IsAsserted reports whether the mode recalculates scores after undo.
func (m EnvironmentMode) IsAsserted() bool {
	return m == NonIntrusiveFullAssert || m == FullAssert
}

// IsFullyAsserted reports whether the mode also checks genuine and shadow state.
func (m EnvironmentMode) IsFullyAsserted() bool {
	return m == FullAssert
}

// String implements fmt.Stringer.
func (m EnvironmentMode) String() string {
	if m == "" {
		return string(Reproducible)
	}
	return string(m)
}
