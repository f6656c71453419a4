package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Score
		want int
	}{
		{"hard dominates soft", HardSoft(0, -100), HardSoft(-1, 0), 1},
		{"soft breaks tie", HardSoft(-1, -5), HardSoft(-1, -4), -1},
		{"equal", HardMediumSoft(0, -1, -2), HardMediumSoft(0, -1, -2), 0},
		{"simple", Simple(3), Simple(-3), 1},
		{"bendable second hard level", Bendable([]int64{0, -1}, []int64{5}), Bendable([]int64{0, 0}, []int64{-5}), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestCompareShapeMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { Simple(1).Compare(HardSoft(0, 1)) })
}

func TestArithmetic(t *testing.T) {
	a := HardSoft(-2, -30)
	b := HardSoft(1, 10)

	assert.Equal(t, "-1hard/-20soft", a.Add(b).String())
	assert.Equal(t, "-3hard/-40soft", a.Subtract(b).String())
	assert.Equal(t, "2hard/30soft", a.Abs().String())
	assert.Equal(t, "2hard/30soft", a.Negate().String())
	assert.Equal(t, "-1hard/-15soft", a.Multiply(0.5).String())
	assert.Equal(t, "-1hard/-4soft", HardSoft(-1, -7).Multiply(0.5).String(), "multiply rounds down")
	assert.True(t, a.Zero().IsZero())
	assert.True(t, Max(a, b).Equal(b))
	assert.True(t, Min(a, b).Equal(a))
}

func TestFeasibility(t *testing.T) {
	assert.True(t, HardSoft(0, -100).IsFeasible())
	assert.False(t, HardSoft(-1, 100).IsFeasible())
	assert.True(t, HardMediumSoft(0, -5, -5).IsFeasible())
	assert.False(t, Bendable([]int64{0, -1}, []int64{0}).IsFeasible())
	assert.True(t, Simple(-10).IsFeasible())
}

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		"-7",
		"0hard/-20soft",
		"-1hard/0medium/-3soft",
		"[0/-1]hard/[-2/-3/-4]soft",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			s, err := Parse(text)
			require.NoError(t, err)
			assert.Equal(t, text, s.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"abc",
		"1hard/2",
		"1hard/2medium/3soft/4soft",
		"[1/2]hard/3soft",
		"xhard/1soft",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			assert.Error(t, err)
		})
	}
}

func TestTextMarshalling(t *testing.T) {
	var s Score
	require.NoError(t, s.UnmarshalText([]byte("-3hard/-4soft")))
	assert.Equal(t, HardSoft(-3, -4), s)

	out, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "-3hard/-4soft", string(out))

	out, err = Score{}.MarshalText()
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, s.UnmarshalText(nil))
	assert.False(t, s.IsSet())
}
