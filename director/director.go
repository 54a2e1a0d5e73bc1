package director

import (
	"fmt"
	"math"
	"sort"
)

// Options are the composition knobs. Durations are seconds.
type Options struct {
	MinClipLength   float64
	MaxClipLength   float64
	TargetDuration  float64
	PacingVariation float64 // [0,1]; scaled x10 it is the optimal clip length
}

func DefaultOptions() Options {
	return Options{
		MinClipLength:   3,
		MaxClipLength:   15,
		TargetDuration:  180,
		PacingVariation: 0.5,
	}
}

// Plan is everything the director derives from a batch of frame analyses: the
// ordered clip list for the assembler plus the advisory metrics.
type Plan struct {
	Clips          []Clip
	Hook           *Clip
	Engagement     EngagementCurve
	Variety        VarietyAnalysis
	Suggestions    []string
	MultiKills     []MultiKillEvent
	ClutchMoments  []ClutchMoment
	MomentumShifts []MomentumShift

	// input analyses with excitement scores written back; sentinels excluded
	ScoredAnalyses []FrameAnalysis
}

type Director struct {
	opts Options
}

func New(opts Options) *Director {
	return &Director{opts: opts}
}

// Direct turns frame analyses into an ordered highlight plan. It is a pure
// function of its input: all sorting is stable and no entropy source is used.
func (d *Director) Direct(analyses []FrameAnalysis) Plan {
	scored := d.scoreExcitement(analyses)

	multiKills := DetectMultiKills(scored)
	clutches := DetectClutchMoments(scored)

	candidates := d.proposeClips(scored, multiKills, clutches)
	merged := mergeOverlapping(candidates)
	admitted := d.composeAndTrim(merged, scored)
	ordered := pacingOrder(admitted)

	plan := Plan{
		Clips:          ordered,
		Hook:           d.makeHook(ordered),
		MultiKills:     multiKills,
		ClutchMoments:  clutches,
		MomentumShifts: DetectMomentumShifts(scored),
		ScoredAnalyses: scored,
	}
	plan.Engagement = d.engagementCurve(ordered)
	plan.Variety = varietyAnalysis(ordered)
	plan.Suggestions = d.suggestions(ordered)
	return plan
}

// Phase 1: bounded-additive excitement per analysis. Sentinel-failed frames
// are dropped here and never scored.
func (d *Director) scoreExcitement(analyses []FrameAnalysis) []FrameAnalysis {
	scored := make([]FrameAnalysis, 0, len(analyses))
	for _, a := range analyses {
		if a.Failed() {
			continue
		}
		a.ExcitementScore = excitement(a)
		scored = append(scored, a)
	}
	return scored
}

func excitement(a FrameAnalysis) float64 {
	var total float64
	if a.KillLog {
		total += 25
		if a.KillCount >= 3 {
			total += 15
		} else if a.KillCount >= 2 {
			total += 8
		}
	}
	switch a.ActionIntensity {
	case IntensityVeryHigh:
		total += 25
	case IntensityHigh:
		total += 18
	case IntensityMedium:
		total += 10
	}
	switch a.MatchStatus {
	case MatchVictory:
		total += 10
	case MatchClutch:
		total += 20
	case MatchOvertime:
		total += 12
	case MatchDefeat:
		total -= 5
	}
	if a.EnemyVisible {
		total += 10
		if a.EnemyCount >= 3 {
			total += 5
		}
	}
	// zero confidence means the model gave no signal either way; leave the raw
	// sum untouched rather than halving it
	if a.Confidence > 0 {
		total *= 0.5 + 0.5*a.Confidence
	}
	return total
}

const highExcitementThreshold = 25

// Phase 3: seed candidate clips from events and excitement peaks.
func (d *Director) proposeClips(analyses []FrameAnalysis, multiKills []MultiKillEvent, clutches []ClutchMoment) []Clip {
	var clips []Clip
	seq := 0
	nextID := func(t ClipType) string {
		seq++
		return fmt.Sprintf("%s_%d", t, seq)
	}

	for _, ev := range multiKills {
		clips = append(clips, Clip{
			ID:        nextID(ClipMultiKill),
			TimeRange: TimeRange{Start: math.Max(0, ev.Timestamp-3), End: ev.EndTimestamp + 3},
			Type:      ClipMultiKill,
			Label:     ev.Type,
			Reason:    fmt.Sprintf("%d kills within %vs", ev.KillCount, multiKillWindow),
			Priority:  10,
			Score:     NewQualityScore(90),
		})
	}
	for _, cm := range clutches {
		clips = append(clips, Clip{
			ID:        nextID(ClipClutch),
			TimeRange: TimeRange{Start: math.Max(0, cm.Timestamp-5), End: cm.Timestamp + 5},
			Type:      ClipClutch,
			Label:     "CLUTCH",
			Reason:    "clutch situation observed",
			Priority:  9,
			Score:     NewQualityScore(80),
		})
	}
	for _, a := range analyses {
		if a.ExcitementScore >= highExcitementThreshold {
			clips = append(clips, Clip{
				ID:        nextID(ClipHighExcitement),
				TimeRange: TimeRange{Start: math.Max(0, a.Timestamp-2), End: a.Timestamp + 3},
				Type:      ClipHighExcitement,
				Label:     "HIGHLIGHT",
				Reason:    fmt.Sprintf("excitement %.0f", a.ExcitementScore),
				Priority:  7,
				Score:     NewQualityScore(70),
			})
		}
	}
	return clips
}

// mergeOverlapping folds candidates into pairwise non-overlapping clips. When
// two clips collide, the higher-priority one survives over their union range.
func mergeOverlapping(clips []Clip) []Clip {
	if len(clips) == 0 {
		return nil
	}
	sorted := make([]Clip, len(clips))
	copy(sorted, clips)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeRange.Start < sorted[j].TimeRange.Start
	})

	merged := []Clip{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.TimeRange.Start <= last.TimeRange.End {
			union := TimeRange{
				Start: math.Min(last.TimeRange.Start, cur.TimeRange.Start),
				End:   math.Max(last.TimeRange.End, cur.TimeRange.End),
			}
			if cur.Priority > last.Priority {
				*last = cur
			}
			last.TimeRange = union
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}

// Phase 4: rescore each surviving clip against the analysis closest to its
// midpoint, fix up lengths, then greedily admit by score until the target
// duration is filled.
func (d *Director) composeAndTrim(clips []Clip, analyses []FrameAnalysis) []Clip {
	composed := make([]Clip, 0, len(clips))
	for _, c := range clips {
		composed = append(composed, d.compose(c, analyses))
	}

	sort.SliceStable(composed, func(i, j int) bool {
		return composed[i].Score.Value() > composed[j].Score.Value()
	})

	var admitted []Clip
	var total float64
	for _, c := range composed {
		dur := c.TimeRange.Duration()
		if total+dur <= d.opts.TargetDuration {
			admitted = append(admitted, c)
			total += dur
			continue
		}
		remaining := d.opts.TargetDuration - total
		if remaining >= d.opts.MinClipLength {
			head := c.WithRange(TimeRange{Start: c.TimeRange.Start, End: c.TimeRange.Start + remaining})
			admitted = append(admitted, head)
		}
		break
	}
	return admitted
}

func (d *Director) compose(c Clip, analyses []FrameAnalysis) Clip {
	breakdown := map[string]float64{"base": c.Score.Value()}
	delta := 0.0

	if nearest, ok := nearestAnalysis(analyses, c.TimeRange.Midpoint()); ok {
		if nearest.KillLog {
			breakdown["kill_log"] = 10
			delta += 10
		}
		intensityBonus := map[ActionIntensity]float64{
			IntensityVeryHigh: 8,
			IntensityHigh:     6,
			IntensityMedium:   4,
			IntensityLow:      2,
		}[nearest.ActionIntensity]
		breakdown["action_intensity"] = intensityBonus
		delta += intensityBonus
		switch nearest.MatchStatus {
		case MatchVictory:
			breakdown["match_status"] = 5
			delta += 5
		case MatchClutch:
			breakdown["match_status"] = 7
			delta += 7
		}
		c.ActionIntensity = nearest.ActionIntensity
	}

	dur := c.TimeRange.Duration()
	if dur > d.opts.MaxClipLength {
		breakdown["length_penalty"] = -2
		delta -= 2
	} else if dur < d.opts.MinClipLength {
		breakdown["length_penalty"] = -1
		delta -= 1
	}
	c.Score = NewQualityScoreWithBreakdown(c.Score.Value()+delta, breakdown)

	// length fixup: centre-truncate long clips, pad short ones
	if dur > d.opts.MaxClipLength {
		mid := c.TimeRange.Midpoint()
		start := math.Max(0, mid-d.opts.MaxClipLength/2)
		c.TimeRange = TimeRange{Start: start, End: start + d.opts.MaxClipLength}
	} else if dur < d.opts.MinClipLength {
		pad := (d.opts.MinClipLength - dur) / 2
		c.TimeRange = c.TimeRange.Extend(pad, pad)
	}
	return c
}

func nearestAnalysis(analyses []FrameAnalysis, timestamp float64) (FrameAnalysis, bool) {
	found := false
	var nearest FrameAnalysis
	best := math.Inf(1)
	for _, a := range analyses {
		dist := math.Abs(a.Timestamp - timestamp)
		if dist < best {
			best = dist
			nearest = a
			found = true
		}
	}
	return nearest, found
}

// Phase 5: reorder for pacing. Open on a high-intensity clip, alternate medium
// and high, close with at most two low-intensity clips.
func pacingOrder(clips []Clip) []Clip {
	var high, medium, low []Clip
	for _, c := range clips {
		switch c.ActionIntensity {
		case IntensityVeryHigh, IntensityHigh:
			high = append(high, c)
		case IntensityMedium:
			medium = append(medium, c)
		default:
			low = append(low, c)
		}
	}

	ordered := make([]Clip, 0, len(clips))
	if len(high) > 0 {
		ordered = append(ordered, high[0])
		high = high[1:]
	}
	for len(high) > 0 || len(medium) > 0 {
		if len(medium) > 0 {
			ordered = append(ordered, medium[0])
			medium = medium[1:]
		}
		if len(high) > 0 {
			ordered = append(ordered, high[0])
			high = high[1:]
		}
	}
	if len(low) > 2 {
		low = low[:2]
	}
	ordered = append(ordered, low...)
	return ordered
}

const hookDuration = 3.0

// Phase 6: the best clip, centred down to three seconds, becomes the intro
// hook.
func (d *Director) makeHook(clips []Clip) *Clip {
	if len(clips) == 0 {
		return nil
	}
	best := clips[0]
	for _, c := range clips[1:] {
		if c.Score.Value() > best.Score.Value() {
			best = c
		}
	}
	mid := best.TimeRange.Midpoint()
	hook := Clip{
		ID:              "hook_" + best.ID,
		TimeRange:       TimeRange{Start: math.Max(0, mid-hookDuration/2), End: mid + hookDuration/2},
		Type:            ClipHook,
		Label:           "HOOK",
		Reason:          "teaser cut from the top clip",
		Priority:        best.Priority,
		Score:           best.Score,
		ActionIntensity: best.ActionIntensity,
		Metadata:        map[string]string{"isHook": "true"},
	}
	return &hook
}
