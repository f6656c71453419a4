package score

import (
	"strconv"
	"strings"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
)

// Parse reads a score in one of the layouts produced by String:
//
//	-7
//	-1hard/-20soft
//	0hard/-3medium/-20soft
//	[0/-1]hard/[-2/-3/-4]soft
func Parse(text string) (Score, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Score{}, parseError(text, "empty score")
	}
	if strings.HasPrefix(t, "[") {
		return parseBendable(text, t)
	}
	if !strings.HasSuffix(t, "soft") {
		v, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return Score{}, parseError(text, err.Error())
		}
		return Simple(v), nil
	}

	parts := strings.Split(t, "/")
	switch len(parts) {
	case 2:
		hard, err := parseLevel(text, parts[0], "hard")
		if err != nil {
			return Score{}, err
		}
		soft, err := parseLevel(text, parts[1], "soft")
		if err != nil {
			return Score{}, err
		}
		return HardSoft(hard, soft), nil
	case 3:
		hard, err := parseLevel(text, parts[0], "hard")
		if err != nil {
			return Score{}, err
		}
		medium, err := parseLevel(text, parts[1], "medium")
		if err != nil {
			return Score{}, err
		}
		soft, err := parseLevel(text, parts[2], "soft")
		if err != nil {
			return Score{}, err
		}
		return HardMediumSoft(hard, medium, soft), nil
	default:
		return Score{}, parseError(text, "expected 2 or 3 levels")
	}
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constant fixtures.
func MustParse(text string) Score {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

func parseBendable(original, t string) (Score, error) {
	hardPart, softPart, ok := strings.Cut(t, "]hard/")
	if !ok || !strings.HasSuffix(softPart, "]soft") || !strings.HasPrefix(softPart, "[") {
		return Score{}, parseError(original, "malformed bendable score")
	}
	hard, err := parseLevelList(original, strings.TrimPrefix(hardPart, "["))
	if err != nil {
		return Score{}, err
	}
	soft, err := parseLevelList(original, strings.TrimSuffix(strings.TrimPrefix(softPart, "["), "]soft"))
	if err != nil {
		return Score{}, err
	}
	return Bendable(hard, soft), nil
}

func parseLevelList(original, list string) ([]int64, error) {
	if list == "" {
		return nil, nil
	}
	fields := strings.Split(list, "/")
	out := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, parseError(original, err.Error())
		}
		out[i] = v
	}
	return out, nil
}

func parseLevel(original, part, suffix string) (int64, error) {
	if !strings.HasSuffix(part, suffix) {
		return 0, parseError(original, "level "+part+" lacks suffix "+suffix)
	}
	v, err := strconv.ParseInt(strings.TrimSuffix(part, suffix), 10, 64)
	if err != nil {
		return 0, parseError(original, err.Error())
	}
	return v, nil
}

func parseError(text, reason string) error {
	return optimization.NewErrorf("cannot parse score %q: %s", text, reason).
		WithComponent("score").WithOperation("Parse")
}
