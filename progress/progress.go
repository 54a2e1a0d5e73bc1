package progress

import (
	"sync"
)

// Stage labels match the event schema consumed by callers; they are part of
// the external contract.
type Stage string

const (
	StageFrameExtraction Stage = "frame_extraction"
	StageAIAnalysis      Stage = "ai_analysis"
	StageClipDetection   Stage = "clip_detection"
	StageVideoGeneration Stage = "video_generation"
	StageCompleted       Stage = "completed"
)

type EventType string

const (
	EventProgress   EventType = "progress"
	EventError      EventType = "error"
	EventCompletion EventType = "completion"
)

// Event is the unified progress record pushed to the caller's callbacks.
type Event struct {
	Type     EventType `json:"type"`
	Stage    Stage     `json:"stage"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Send(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Send(e Event) {
	f(e)
}

type band struct {
	start, end int
}

// Each stage owns a fixed slice of the overall 0-100 scale.
var stageBands = map[Stage]band{
	StageFrameExtraction: {0, 25},
	StageAIAnalysis:      {25, 60},
	StageClipDetection:   {60, 75},
	StageVideoGeneration: {75, 100},
}

// Project linearly maps a stage's inner percent into the pipeline-wide scale.
func Project(stage Stage, innerPercent int) int {
	if innerPercent < 0 {
		innerPercent = 0
	}
	if innerPercent > 100 {
		innerPercent = 100
	}
	b, ok := stageBands[stage]
	if !ok {
		return innerPercent
	}
	return b.start + (b.end-b.start)*innerPercent/100
}

// Reporter projects stage progress into the unified scale and fans it into a
// sink. Overall progress never moves backwards within a run.
type Reporter struct {
	sink Sink

	mu   sync.Mutex
	last int
}

func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

func (r *Reporter) Report(stage Stage, innerPercent int, message string) {
	if r.sink == nil {
		return
	}
	overall := Project(stage, innerPercent)

	r.mu.Lock()
	if overall < r.last {
		r.mu.Unlock()
		return
	}
	r.last = overall
	r.mu.Unlock()

	r.sink.Send(Event{Type: EventProgress, Stage: stage, Progress: overall, Message: message})
}

func (r *Reporter) Error(stage Stage, errMsg string) {
	if r.sink == nil {
		return
	}
	r.sink.Send(Event{Type: EventError, Stage: stage, Progress: r.current(), Error: errMsg})
}

func (r *Reporter) Complete(message string) {
	if r.sink == nil {
		return
	}
	r.mu.Lock()
	r.last = 100
	r.mu.Unlock()
	r.sink.Send(Event{Type: EventCompletion, Stage: StageCompleted, Progress: 100, Message: message})
}

func (r *Reporter) current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
