package vision

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/playcut/highlight-engine/director"
	"github.com/xeipuuv/gojsonschema"
)

// analysisSchema is the shape the model is asked to produce. Validation is
// about types, not presence: models routinely omit fields, and omissions get
// defaults during coercion.
const analysisSchema = `{
	"type": "object",
	"properties": {
		"kill_log":          {"type": "boolean"},
		"kill_count":        {"type": "integer", "minimum": 0},
		"match_status":      {"type": "string"},
		"action_intensity":  {"type": "string"},
		"enemy_visible":     {"type": "boolean"},
		"enemy_count":       {"type": "integer", "minimum": 0},
		"visual_quality":    {"type": "string"},
		"scene_description": {"type": "string"},
		"ui_elements":       {"type": "string"},
		"confidence":        {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(analysisSchema)

var (
	fencedJSONRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSONRegex   = regexp.MustCompile(`(?s)\{.*\}`)
)

type rawAnalysis struct {
	KillLog          bool    `json:"kill_log"`
	KillCount        int     `json:"kill_count"`
	MatchStatus      string  `json:"match_status"`
	ActionIntensity  string  `json:"action_intensity"`
	EnemyVisible     bool    `json:"enemy_visible"`
	EnemyCount       int     `json:"enemy_count"`
	VisualQuality    string  `json:"visual_quality"`
	SceneDescription string  `json:"scene_description"`
	UIElements       string  `json:"ui_elements"`
	Confidence       float64 `json:"confidence"`
}

// ParseAnalysis turns a model's free-form reply into a FrameAnalysis. An
// unparseable reply is not a transport failure: it degrades to a neutral
// analysis with no error marker.
func ParseAnalysis(text string, timestamp float64, model string) director.FrameAnalysis {
	payload, ok := extractJSON(text)
	if !ok {
		return director.NewDegradedAnalysis(timestamp, model)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil || !result.Valid() {
		return director.NewDegradedAnalysis(timestamp, model)
	}

	var raw rawAnalysis
	if err := json.Unmarshal(payload, &raw); err != nil {
		return director.NewDegradedAnalysis(timestamp, model)
	}

	return director.FrameAnalysis{
		Timestamp:        timestamp,
		KillLog:          raw.KillLog,
		KillCount:        maxInt(0, raw.KillCount),
		MatchStatus:      director.ParseMatchStatus(raw.MatchStatus),
		ActionIntensity:  director.ParseActionIntensity(raw.ActionIntensity),
		EnemyVisible:     raw.EnemyVisible,
		EnemyCount:       maxInt(0, raw.EnemyCount),
		VisualQuality:    director.ParseVisualQuality(raw.VisualQuality),
		SceneDescription: raw.SceneDescription,
		UIElements:       raw.UIElements,
		Confidence:       clamp01(raw.Confidence),
		ModelUsed:        model,
	}
}

// extractJSON recovers the JSON object from a reply, trying the whole body
// first, then a fenced code block, then the first brace-delimited span.
func extractJSON(text string) ([]byte, bool) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), true
	}
	if m := fencedJSONRegex.FindStringSubmatch(text); m != nil && json.Valid([]byte(m[1])) {
		return []byte(m[1]), true
	}
	if m := bareJSONRegex.FindString(text); m != "" && json.Valid([]byte(m)) {
		return []byte(m), true
	}
	return nil, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
