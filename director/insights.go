package director

import (
	"fmt"
	"math"
)

// EngagementCurve summarises the shape of the assembled reel.
type EngagementCurve struct {
	AvgScore      float64
	ScoreVariance float64
	PeakIndex     int
	TotalDuration float64
	ClipCount     int
	PacingScore   float64
}

// VarietyAnalysis grades how varied the reel is across clip types and
// durations.
type VarietyAnalysis struct {
	VarietyScore     float64
	UniqueTypes      int
	DurationVariance float64
	Issues           []string
}

const (
	issueLowTypeVariety    = "low_type_variety"
	issueUniformClipLength = "uniform_clip_lengths"
)

func (d *Director) engagementCurve(clips []Clip) EngagementCurve {
	if len(clips) == 0 {
		return EngagementCurve{}
	}

	scores := make([]float64, len(clips))
	var totalDuration float64
	peak := 0
	for i, c := range clips {
		scores[i] = c.Score.Value()
		totalDuration += c.TimeRange.Duration()
		if scores[i] > scores[peak] {
			peak = i
		}
	}

	avgDuration := totalDuration / float64(len(clips))
	optimalPace := d.opts.PacingVariation * 10
	pacing := math.Max(0, 100-10*math.Abs(avgDuration-optimalPace))

	return EngagementCurve{
		AvgScore:      mean(scores),
		ScoreVariance: variance(scores),
		PeakIndex:     peak,
		TotalDuration: totalDuration,
		ClipCount:     len(clips),
		PacingScore:   pacing,
	}
}

func varietyAnalysis(clips []Clip) VarietyAnalysis {
	if len(clips) == 0 {
		return VarietyAnalysis{Issues: []string{issueLowTypeVariety}}
	}

	types := map[ClipType]bool{}
	durations := make([]float64, len(clips))
	for i, c := range clips {
		types[c.Type] = true
		durations[i] = c.TimeRange.Duration()
	}
	durVariance := variance(durations)

	va := VarietyAnalysis{
		UniqueTypes:      len(types),
		DurationVariance: durVariance,
		VarietyScore:     math.Min(100, 20*float64(len(types))+math.Min(30, 5*durVariance)),
	}
	if va.UniqueTypes < 2 {
		va.Issues = append(va.Issues, issueLowTypeVariety)
	}
	if durVariance < 2 {
		va.Issues = append(va.Issues, issueUniformClipLength)
	}
	return va
}

func (d *Director) suggestions(clips []Clip) []string {
	var out []string
	if len(clips) == 0 {
		return out
	}

	var total float64
	lowScore := 0
	types := map[ClipType]bool{}
	for _, c := range clips {
		total += c.TimeRange.Duration()
		if c.Score.Value() < 30 {
			lowScore++
		}
		types[c.Type] = true
	}

	if total > 300 {
		out = append(out, fmt.Sprintf("reel runs %.0fs; viewers drop off past five minutes, tighten the target duration", total))
	}
	if len(clips) > 15 {
		out = append(out, fmt.Sprintf("%d clips is a lot of cuts; raise the excitement threshold for a punchier reel", len(clips)))
	}
	if total < 30 {
		out = append(out, fmt.Sprintf("only %.0fs of highlights found; longer footage or a lower threshold would give more material", total))
	}
	if float64(lowScore) > 0.3*float64(len(clips)) {
		out = append(out, "over a third of the clips scored poorly; consider recording at higher quality")
	}
	if len(types) < 2 && len(clips) >= 4 {
		out = append(out, "all clips are the same kind of moment; mixing kill streaks with clutch rounds keeps viewers watching")
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}
