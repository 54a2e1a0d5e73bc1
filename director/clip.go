package director

// ClipType classifies why a clip was proposed.
type ClipType string

const (
	ClipMultiKill      ClipType = "multi_kill"
	ClipClutch         ClipType = "clutch"
	ClipHighExcitement ClipType = "high_excitement"
	ClipHook           ClipType = "hook"
	ClipGeneric        ClipType = "generic"
)

// Clip is a candidate highlight interval together with its provenance and
// score. Clips handed to the assembler are pairwise non-overlapping and clamped
// to the real media duration; they keep the director's pacing order, not start
// order.
type Clip struct {
	ID              string
	TimeRange       TimeRange
	Type            ClipType
	Label           string
	Reason          string
	Priority        int
	Score           QualityScore
	ActionIntensity ActionIntensity
	Metadata        map[string]string
}

func (c Clip) IsHook() bool {
	return c.Metadata["isHook"] == "true"
}

// WithRange returns a copy of the clip over a different interval.
func (c Clip) WithRange(r TimeRange) Clip {
	c.TimeRange = r
	return c
}
