package pipeline

import (
	"testing"
	"time"

	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/media"
	"github.com/stretchr/testify/require"
)

func TestOverallScore(t *testing.T) {
	analyses := []director.FrameAnalysis{
		{ExcitementScore: 40},
		{ExcitementScore: 20},
	}
	// avg excitement 30, uniform durations, two types:
	// 1.5*30 + 5*0 + min(15, 10) = 55
	require.Equal(t, 55.0, overallScore(analyses, []float64{10, 10}, 2))
}

func TestOverallScoreClamped(t *testing.T) {
	analyses := []director.FrameAnalysis{{ExcitementScore: 500}}
	require.Equal(t, 100.0, overallScore(analyses, []float64{5}, 3))

	require.Equal(t, 0.0, overallScore(nil, nil, 0))
}

func TestStdev(t *testing.T) {
	require.Equal(t, 0.0, stdev(nil))
	require.Equal(t, 0.0, stdev([]float64{4, 4, 4}))
	require.Equal(t, 2.0, stdev([]float64{2, 6}))
}

func TestBuildStats(t *testing.T) {
	plan := director.Plan{
		Suggestions:    []string{"tip"},
		Variety:        director.VarietyAnalysis{UniqueTypes: 2, Issues: []string{"uniform_clip_lengths"}},
		ScoredAnalyses: []director.FrameAnalysis{{ExcitementScore: 20}},
		Engagement:     director.EngagementCurve{AvgScore: 80},
	}
	clips := []director.Clip{
		{TimeRange: director.TimeRange{Start: 0, End: 10}, Type: director.ClipMultiKill},
		{TimeRange: director.TimeRange{Start: 20, End: 30}, Type: director.ClipClutch},
	}

	stats := buildStats(plan, clips, media.Blob{Bytes: []byte("12345")}, 2*time.Second)
	require.Equal(t, 2, stats.ClipCount)
	require.Equal(t, 20.0, stats.TotalDuration)
	require.Equal(t, 5, stats.OutputSize)
	require.Equal(t, 2*time.Second, stats.ProcessingTime)
	require.Equal(t, []string{"tip"}, stats.Suggestions)
	require.Equal(t, stats.Engagement.OverallScore, stats.QualityScore)
	require.Equal(t, 80.0, stats.Engagement.AvgScore)
	// 1.5*20 + 0 + min(15, 10) = 40
	require.Equal(t, 40.0, stats.QualityScore)

	require.Contains(t, stats.Warnings, "few highlights detected; the reel may feel short")
	require.Contains(t, stats.Warnings, "clips are all roughly the same length")
}

func TestWarningsQuietOnHealthyRun(t *testing.T) {
	clips := []director.Clip{
		{TimeRange: director.TimeRange{Start: 0, End: 10}},
		{TimeRange: director.TimeRange{Start: 20, End: 30}},
		{TimeRange: director.TimeRange{Start: 40, End: 55}},
	}
	require.Empty(t, warnings(clips, director.VarietyAnalysis{}))
}
