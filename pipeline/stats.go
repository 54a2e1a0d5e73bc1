package pipeline

import (
	"math"
	"time"

	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/media"
)

// Stats is the success record handed to the caller alongside the reel.
type Stats struct {
	ClipCount      int                      `json:"clip_count"`
	TotalDuration  float64                  `json:"total_duration"`
	QualityScore   float64                  `json:"quality_score"`
	OutputSize     int                      `json:"output_size"`
	ProcessingTime time.Duration            `json:"processing_time"`
	Suggestions    []string                 `json:"suggestions"`
	Warnings       []string                 `json:"warnings"`
	Engagement     Engagement               `json:"engagement"`
	Variety        director.VarietyAnalysis `json:"variety"`
}

// Engagement couples the director's curve with the run-level overall score.
type Engagement struct {
	director.EngagementCurve
	OverallScore float64 `json:"overall_score"`
}

func buildStats(plan director.Plan, clips []director.Clip, blob media.Blob, elapsed time.Duration) Stats {
	var totalDuration float64
	durations := make([]float64, len(clips))
	clipTypes := map[director.ClipType]bool{}
	for i, c := range clips {
		durations[i] = c.TimeRange.Duration()
		totalDuration += durations[i]
		clipTypes[c.Type] = true
	}

	engagement := Engagement{
		EngagementCurve: plan.Engagement,
		OverallScore:    overallScore(plan.ScoredAnalyses, durations, len(clipTypes)),
	}

	return Stats{
		ClipCount:      len(clips),
		TotalDuration:  totalDuration,
		QualityScore:   engagement.OverallScore,
		OutputSize:     len(blob.Bytes),
		ProcessingTime: elapsed,
		Suggestions:    plan.Suggestions,
		Warnings:       warnings(clips, plan.Variety),
		Engagement:     engagement,
		Variety:        plan.Variety,
	}
}

// overallScore grades the whole run: how exciting the footage was, how varied
// the cut lengths are, and how many kinds of moment made it in.
func overallScore(analyses []director.FrameAnalysis, clipDurations []float64, distinctTypes int) float64 {
	var avgExcitement float64
	if len(analyses) > 0 {
		for _, a := range analyses {
			avgExcitement += a.ExcitementScore
		}
		avgExcitement /= float64(len(analyses))
	}

	score := math.Round(1.5*avgExcitement + 5*stdev(clipDurations) + math.Min(15, 5*float64(distinctTypes)))
	return math.Max(0, math.Min(100, score))
}

func warnings(clips []director.Clip, variety director.VarietyAnalysis) []string {
	var out []string
	if len(clips) < 3 {
		out = append(out, "few highlights detected; the reel may feel short")
	}
	for _, issue := range variety.Issues {
		switch issue {
		case "low_type_variety":
			out = append(out, "highlights are all the same kind of moment")
		case "uniform_clip_lengths":
			out = append(out, "clips are all roughly the same length")
		}
	}
	return out
}

func stdev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)))
}
