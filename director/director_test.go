package director

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExcitementScoring(t *testing.T) {
	a := FrameAnalysis{
		KillLog:         true,
		KillCount:       3,
		ActionIntensity: IntensityHigh,
		MatchStatus:     MatchClutch,
		EnemyVisible:    true,
		EnemyCount:      3,
		Confidence:      1.0,
	}
	// 25 + 15 + 18 + 20 + 10 + 5, confidence multiplier 1.0
	require.Equal(t, 93.0, excitement(a))
}

func TestExcitementScoringComponents(t *testing.T) {
	tests := []struct {
		name     string
		analysis FrameAnalysis
		expected float64
	}{
		{"empty frame", FrameAnalysis{ActionIntensity: IntensityLow}, 0},
		{"single kill", FrameAnalysis{KillLog: true, KillCount: 1, ActionIntensity: IntensityLow}, 25},
		{"double kill", FrameAnalysis{KillLog: true, KillCount: 2, ActionIntensity: IntensityLow}, 33},
		{"very high action", FrameAnalysis{ActionIntensity: IntensityVeryHigh}, 25},
		{"medium action", FrameAnalysis{ActionIntensity: IntensityMedium}, 10},
		{"victory", FrameAnalysis{MatchStatus: MatchVictory, ActionIntensity: IntensityLow}, 10},
		{"overtime", FrameAnalysis{MatchStatus: MatchOvertime, ActionIntensity: IntensityLow}, 12},
		{"defeat floors below zero", FrameAnalysis{MatchStatus: MatchDefeat, ActionIntensity: IntensityLow}, -5},
		{"enemies visible", FrameAnalysis{EnemyVisible: true, EnemyCount: 2, ActionIntensity: IntensityLow}, 10},
		{"enemy squad", FrameAnalysis{EnemyVisible: true, EnemyCount: 3, ActionIntensity: IntensityLow}, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, excitement(tt.analysis))
		})
	}
}

func TestExcitementZeroConfidenceSkipsMultiplier(t *testing.T) {
	a := FrameAnalysis{KillLog: true, ActionIntensity: IntensityHigh}

	a.Confidence = 0
	require.Equal(t, 43.0, excitement(a))

	// any positive confidence applies the 0.5 + 0.5*c multiplier
	a.Confidence = 0.5
	require.Equal(t, 43.0*0.75, excitement(a))
}

func TestMergeTieBreak(t *testing.T) {
	a := Clip{ID: "a", TimeRange: TimeRange{Start: 10, End: 18}, Priority: 7, Type: ClipHighExcitement}
	b := Clip{ID: "b", TimeRange: TimeRange{Start: 15, End: 25}, Priority: 10, Type: ClipMultiKill}

	merged := mergeOverlapping([]Clip{a, b})
	require.Len(t, merged, 1)
	require.Equal(t, "b", merged[0].ID)
	require.Equal(t, TimeRange{Start: 10, End: 25}, merged[0].TimeRange)
}

func TestMergeProducesDisjointSortedClips(t *testing.T) {
	clips := []Clip{
		{ID: "a", TimeRange: TimeRange{Start: 40, End: 50}, Priority: 9},
		{ID: "b", TimeRange: TimeRange{Start: 0, End: 12}, Priority: 10},
		{ID: "c", TimeRange: TimeRange{Start: 10, End: 20}, Priority: 7},
		{ID: "d", TimeRange: TimeRange{Start: 18, End: 25}, Priority: 8},
		{ID: "e", TimeRange: TimeRange{Start: 60, End: 70}, Priority: 7},
	}

	merged := mergeOverlapping(clips)
	require.Len(t, merged, 3)
	for i := 1; i < len(merged); i++ {
		require.Greater(t, merged[i].TimeRange.Start, merged[i-1].TimeRange.End)
	}
	// the overlapping run 0-25 collapses into the highest priority clip
	require.Equal(t, "b", merged[0].ID)
	require.Equal(t, TimeRange{Start: 0, End: 25}, merged[0].TimeRange)
}

func TestTrimToTarget(t *testing.T) {
	d := New(Options{MinClipLength: 3, MaxClipLength: 15, TargetDuration: 10, PacingVariation: 0.5})
	clips := []Clip{
		{ID: "six", TimeRange: TimeRange{Start: 0, End: 6}, Score: NewQualityScore(90)},
		{ID: "five", TimeRange: TimeRange{Start: 20, End: 25}, Score: NewQualityScore(80)},
		{ID: "four", TimeRange: TimeRange{Start: 40, End: 44}, Score: NewQualityScore(70)},
	}

	admitted := d.composeAndTrim(clips, nil)
	require.Len(t, admitted, 2)
	require.Equal(t, "six", admitted[0].ID)
	require.Equal(t, 6.0, admitted[0].TimeRange.Duration())
	// the second clip only fits as a head-slice of the remaining 4 seconds
	require.Equal(t, "five", admitted[1].ID)
	require.Equal(t, TimeRange{Start: 20, End: 24}, admitted[1].TimeRange)
}

func TestTrimDropsOverflowBelowMinLength(t *testing.T) {
	d := New(Options{MinClipLength: 3, MaxClipLength: 15, TargetDuration: 10, PacingVariation: 0.5})
	clips := []Clip{
		{ID: "eight", TimeRange: TimeRange{Start: 0, End: 8}, Score: NewQualityScore(90)},
		{ID: "five", TimeRange: TimeRange{Start: 20, End: 25}, Score: NewQualityScore(80)},
	}

	// remaining budget after the first clip is 2s, below the minimum
	admitted := d.composeAndTrim(clips, nil)
	require.Len(t, admitted, 1)
	require.Equal(t, "eight", admitted[0].ID)
}

func TestComposeRescoresAgainstNearestAnalysis(t *testing.T) {
	d := New(DefaultOptions())
	analyses := []FrameAnalysis{
		{Timestamp: 5, ActionIntensity: IntensityLow},
		{Timestamp: 50, KillLog: true, ActionIntensity: IntensityVeryHigh, MatchStatus: MatchClutch},
	}
	clip := Clip{TimeRange: TimeRange{Start: 45, End: 55}, Score: NewQualityScore(70)}

	composed := d.compose(clip, analyses)
	// 70 + 10 kill log + 8 very_high + 7 clutch
	require.Equal(t, 95.0, composed.Score.Value())
	require.Equal(t, IntensityVeryHigh, composed.ActionIntensity)
	require.Equal(t, 10.0, composed.Score.Breakdown()["kill_log"])
}

func TestComposeLengthFixups(t *testing.T) {
	d := New(Options{MinClipLength: 3, MaxClipLength: 15, TargetDuration: 180, PacingVariation: 0.5})

	long := Clip{TimeRange: TimeRange{Start: 10, End: 40}, Score: NewQualityScore(70)}
	fixed := d.compose(long, nil)
	require.Equal(t, 15.0, fixed.TimeRange.Duration())
	require.Equal(t, 25.0, fixed.TimeRange.Midpoint())
	require.Equal(t, -2.0, fixed.Score.Breakdown()["length_penalty"])

	short := Clip{TimeRange: TimeRange{Start: 10, End: 11}, Score: NewQualityScore(70)}
	fixed = d.compose(short, nil)
	require.Equal(t, 3.0, fixed.TimeRange.Duration())
	require.Equal(t, 10.5, fixed.TimeRange.Midpoint())

	nearStart := Clip{TimeRange: TimeRange{Start: 0, End: 1}, Score: NewQualityScore(70)}
	fixed = d.compose(nearStart, nil)
	require.Equal(t, 0.0, fixed.TimeRange.Start)
}

func TestPacingReorder(t *testing.T) {
	clips := []Clip{
		{ID: "h1", ActionIntensity: IntensityHigh},
		{ID: "h2", ActionIntensity: IntensityHigh},
		{ID: "m1", ActionIntensity: IntensityMedium},
		{ID: "m2", ActionIntensity: IntensityMedium},
		{ID: "l1", ActionIntensity: IntensityLow},
	}

	ordered := pacingOrder(clips)
	ids := make([]string, len(ordered))
	for i, c := range ordered {
		ids[i] = c.ID
	}
	require.Equal(t, []string{"h1", "m1", "h2", "m2", "l1"}, ids)
}

func TestPacingReorderCapsLowClips(t *testing.T) {
	clips := []Clip{
		{ID: "h1", ActionIntensity: IntensityVeryHigh},
		{ID: "l1", ActionIntensity: IntensityLow},
		{ID: "l2", ActionIntensity: IntensityLow},
		{ID: "l3", ActionIntensity: IntensityLow},
	}

	ordered := pacingOrder(clips)
	require.Len(t, ordered, 3)
	require.Equal(t, "h1", ordered[0].ID)
}

func TestDirectEndToEnd(t *testing.T) {
	d := New(DefaultOptions())
	analyses := sampleAnalyses()

	plan := d.Direct(analyses)
	require.NotEmpty(t, plan.Clips)
	require.NotNil(t, plan.Hook)
	require.True(t, plan.Hook.IsHook())
	require.Equal(t, ClipHook, plan.Hook.Type)
	require.InDelta(t, 3.0, plan.Hook.TimeRange.Duration(), 0.001)

	require.NotEmpty(t, plan.MultiKills)
	require.NotEmpty(t, plan.ClutchMoments)
	require.Len(t, plan.ScoredAnalyses, len(analyses)-1) // one sentinel dropped

	for _, c := range plan.Clips {
		require.Greater(t, c.TimeRange.End, c.TimeRange.Start)
		require.GreaterOrEqual(t, c.TimeRange.Start, 0.0)
	}
}

func TestDirectIsPure(t *testing.T) {
	d := New(DefaultOptions())
	analyses := sampleAnalyses()

	first := d.Direct(analyses)
	second := d.Direct(analyses)
	require.Equal(t, first, second)
}

func TestDirectEmptyInput(t *testing.T) {
	d := New(DefaultOptions())
	plan := d.Direct(nil)
	require.Empty(t, plan.Clips)
	require.Nil(t, plan.Hook)
}

func sampleAnalyses() []FrameAnalysis {
	return []FrameAnalysis{
		{Timestamp: 0, ActionIntensity: IntensityLow, MatchStatus: MatchNormal, Confidence: 0.9},
		{Timestamp: 10, KillLog: true, KillCount: 1, ActionIntensity: IntensityHigh, MatchStatus: MatchNormal, EnemyVisible: true, EnemyCount: 1, Confidence: 0.9},
		{Timestamp: 20, KillLog: true, KillCount: 2, ActionIntensity: IntensityVeryHigh, MatchStatus: MatchNormal, EnemyVisible: true, EnemyCount: 2, Confidence: 0.95},
		{Timestamp: 30, ActionIntensity: IntensityMedium, MatchStatus: MatchNormal, Confidence: 0.8},
		{Timestamp: 40, ActionIntensity: IntensityLow, MatchStatus: MatchNormal, Confidence: 0.7},
		NewSentinelAnalysis(50, "model timed out"),
		{Timestamp: 60, MatchStatus: MatchClutch, ActionIntensity: IntensityHigh, EnemyVisible: true, EnemyCount: 3, Confidence: 0.9},
		{Timestamp: 70, MatchStatus: MatchVictory, ActionIntensity: IntensityMedium, Confidence: 0.85},
		{Timestamp: 80, ActionIntensity: IntensityLow, MatchStatus: MatchNormal, Confidence: 0.6},
	}
}
