package director

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQualityScoreClamping(t *testing.T) {
	require.Equal(t, 0.0, NewQualityScore(-5).Value())
	require.Equal(t, 100.0, NewQualityScore(150).Value())
	require.Equal(t, 72.5, NewQualityScore(72.5).Value())
}

func TestQualityScoreGrades(t *testing.T) {
	tests := []struct {
		value float64
		grade string
	}{
		{95, "A"}, {90, "A"},
		{85, "B"}, {80, "B"},
		{75, "C"}, {70, "C"},
		{65, "D"}, {60, "D"},
		{59.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.grade, NewQualityScore(tt.value).Grade(), "value %v", tt.value)
	}
}

func TestQualityScoreAcceptable(t *testing.T) {
	require.True(t, NewQualityScore(70).IsAcceptable())
	require.False(t, NewQualityScore(69.9).IsAcceptable())
}

func TestBreakdownIsCopied(t *testing.T) {
	breakdown := map[string]float64{"base": 70}
	s := NewQualityScoreWithBreakdown(80, breakdown)

	breakdown["base"] = 0
	require.Equal(t, 70.0, s.Breakdown()["base"])

	s.Breakdown()["base"] = 0
	require.Equal(t, 70.0, s.Breakdown()["base"])
}
