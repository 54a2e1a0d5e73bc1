package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playcut/highlight-engine/cache"
	"github.com/playcut/highlight-engine/config"
	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/log"
	"github.com/playcut/highlight-engine/media"
	"github.com/playcut/highlight-engine/metrics"
	"github.com/playcut/highlight-engine/progress"
	"github.com/playcut/highlight-engine/sampler"
	"github.com/playcut/highlight-engine/vision"
)

// State is the run's position in the pipeline state machine.
type State string

const (
	StateIdle       State = "idle"
	StateSampling   State = "sampling"
	StateAnalyzing  State = "analyzing"
	StateDirecting  State = "directing"
	StateAssembling State = "assembling"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// Clips shorter than this after clamping carry no watchable content.
const minClampedClipSeconds = 0.5

// Component contracts, satisfied by the real sampler/vision/director/assembler
// and by stubs in tests.
type FrameSampler interface {
	Sample(ctx context.Context, requestID, sourcePath string, opts sampler.Options, onProgress func(sampler.Progress)) ([]media.Frame, media.Info, error)
}

type FrameAnalyzer interface {
	AnalyzeBatch(ctx context.Context, frames []media.Frame, onProgress func(vision.BatchProgress)) ([]director.FrameAnalysis, error)
}

type ClipDirector interface {
	Direct(analyses []director.FrameAnalysis) director.Plan
}

type ReelAssembler interface {
	Assemble(ctx context.Context, requestID, sourcePath string, clips []director.Clip, hook *director.Clip, onProgress func(percent int)) (media.Blob, error)
}

// Callbacks is the observable surface of a run. All callbacks are optional
// and must not block.
type Callbacks struct {
	OnProgress func(progress.Event)
	OnLog      func(string)
	OnComplete func(media.Blob, Stats)
	OnError    func(string)
}

// JobInfo is the state of one pipeline run, owned by the coordinator for the
// run's lifetime.
type JobInfo struct {
	RequestID  string
	SourceFile string

	mu        sync.Mutex
	state     State
	startTime time.Time
	cancel    context.CancelFunc
	result    chan bool
}

func (j *JobInfo) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *JobInfo) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Cancel stops the run at its next suspension point. Safe to call more than
// once and after completion.
func (j *JobInfo) Cancel() {
	j.cancel()
}

// Result blocks until the run reaches a terminal state, reporting success.
func (j *JobInfo) Result() bool {
	return <-j.result
}

// Coordinator drives the four pipeline stages as a cancellable state machine
// and owns every run-scoped object. Nothing survives a run.
type Coordinator struct {
	sampler     FrameSampler
	analyzer    FrameAnalyzer
	director    ClipDirector
	assembler   ReelAssembler
	samplerOpts sampler.Options

	Jobs *cache.Cache[*JobInfo]
}

func NewCoordinator(frameSampler FrameSampler, analyzer FrameAnalyzer, clipDirector ClipDirector, reelAssembler ReelAssembler, samplerOpts sampler.Options) (*Coordinator, error) {
	if frameSampler == nil || clipDirector == nil || reelAssembler == nil {
		return nil, fmt.Errorf("coordinator requires all pipeline components")
	}
	if analyzer == nil {
		return nil, errors.Unretriable(errors.ErrAuthMissing)
	}
	return &Coordinator{
		sampler:     frameSampler,
		analyzer:    analyzer,
		director:    clipDirector,
		assembler:   reelAssembler,
		samplerOpts: samplerOpts,
		Jobs:        cache.New[*JobInfo](),
	}, nil
}

// StartRun schedules a run in the background and returns its JobInfo handle.
func (c *Coordinator) StartRun(ctx context.Context, sourcePath string, cb Callbacks) *JobInfo {
	runCtx, cancel := context.WithCancel(ctx)
	job := &JobInfo{
		RequestID:  uuid.New().String(),
		SourceFile: sourcePath,
		state:      StateIdle,
		startTime:  time.Now(),
		cancel:     cancel,
		result:     make(chan bool, 1),
	}
	c.Jobs.Store(job.RequestID, job)
	metrics.Metrics.RunsInFlight.Set(float64(len(c.Jobs.GetKeys())))
	log.AddContext(job.RequestID, "source", sourcePath)

	go func() {
		defer cancel()
		_, _, err := recovered(func() (media.Blob, Stats, error) {
			return c.run(runCtx, job, cb)
		})
		c.finishJob(job, err, cb)
	}()
	return job
}

// Run executes a pipeline synchronously. Used by callers that do not need the
// background handle.
func (c *Coordinator) Run(ctx context.Context, sourcePath string, cb Callbacks) (media.Blob, Stats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job := &JobInfo{
		RequestID:  uuid.New().String(),
		SourceFile: sourcePath,
		state:      StateIdle,
		startTime:  time.Now(),
		cancel:     cancel,
		result:     make(chan bool, 1),
	}
	c.Jobs.Store(job.RequestID, job)
	metrics.Metrics.RunsInFlight.Set(float64(len(c.Jobs.GetKeys())))

	blob, stats, err := recovered(func() (media.Blob, Stats, error) {
		return c.run(runCtx, job, cb)
	})
	c.finishJob(job, err, cb)
	return blob, stats, err
}

func (c *Coordinator) run(ctx context.Context, job *JobInfo, cb Callbacks) (media.Blob, Stats, error) {
	reporter := progress.NewReporter(sinkFor(cb))
	logf := func(msg string, keyvals ...interface{}) {
		log.Log(job.RequestID, msg, keyvals...)
		if cb.OnLog != nil {
			cb.OnLog(msg)
		}
	}

	// SAMPLING
	job.setState(StateSampling)
	logf("extracting frames")
	stageStart := time.Now()
	frames, info, err := c.sampler.Sample(ctx, job.RequestID, job.SourceFile, c.samplerOpts, func(p sampler.Progress) {
		reporter.Report(progress.StageFrameExtraction, p.Percent, fmt.Sprintf("frame %d/%d", p.Current, p.Total))
	})
	if err != nil {
		return media.Blob{}, Stats{}, err
	}
	if len(frames) == 0 {
		return media.Blob{}, Stats{}, errors.Unretriable(errors.ErrNoFrames)
	}
	metrics.Metrics.HighlightPipeline.StageDuration.WithLabelValues(string(StateSampling)).Observe(time.Since(stageStart).Seconds())
	metrics.Metrics.HighlightPipeline.SourceSeconds.Observe(info.Duration)
	logf(fmt.Sprintf("sampled %d frames from %.0fs of footage", len(frames), info.Duration))

	// ANALYZING
	job.setState(StateAnalyzing)
	stageStart = time.Now()
	analyses, err := c.analyzer.AnalyzeBatch(ctx, frames, func(p vision.BatchProgress) {
		reporter.Report(progress.StageAIAnalysis, p.Percent, fmt.Sprintf("analyzed %d/%d frames", p.Current, p.Total))
	})
	if err != nil {
		return media.Blob{}, Stats{}, err
	}
	if firstError, allFailed := allAnalysesFailed(analyses); allFailed {
		return media.Blob{}, Stats{}, errors.NewAnalysesFailedError(firstError)
	}
	metrics.Metrics.HighlightPipeline.StageDuration.WithLabelValues(string(StateAnalyzing)).Observe(time.Since(stageStart).Seconds())

	// DIRECTING
	job.setState(StateDirecting)
	reporter.Report(progress.StageClipDetection, 0, "detecting highlights")
	stageStart = time.Now()
	plan := c.director.Direct(analyses)
	reporter.Report(progress.StageClipDetection, 100, fmt.Sprintf("%d highlights proposed", len(plan.Clips)))
	metrics.Metrics.HighlightPipeline.StageDuration.WithLabelValues(string(StateDirecting)).Observe(time.Since(stageStart).Seconds())

	clips := clampClips(plan.Clips, info.Duration)
	hook := clampHook(plan.Hook, info.Duration)
	if len(clips) == 0 {
		return media.Blob{}, Stats{}, errors.Unretriable(errors.ErrNoHighlights)
	}
	logf(fmt.Sprintf("%d highlights survive clamping to %.0fs", len(clips), info.Duration))

	// ASSEMBLING
	job.setState(StateAssembling)
	stageStart = time.Now()
	blob, err := c.assembler.Assemble(ctx, job.RequestID, job.SourceFile, clips, hook, func(percent int) {
		reporter.Report(progress.StageVideoGeneration, percent, "cutting reel")
	})
	if err != nil {
		return media.Blob{}, Stats{}, err
	}
	metrics.Metrics.HighlightPipeline.StageDuration.WithLabelValues(string(StateAssembling)).Observe(time.Since(stageStart).Seconds())

	stats := buildStats(plan, clips, blob, time.Since(job.startTime))
	metrics.Metrics.HighlightPipeline.OutputClips.Observe(float64(stats.ClipCount))
	metrics.Metrics.HighlightPipeline.OutputBytes.Observe(float64(stats.OutputSize))

	job.setState(StateDone)
	reporter.Complete(fmt.Sprintf("reel assembled: %d clips, %.0fs", stats.ClipCount, stats.TotalDuration))
	if cb.OnComplete != nil {
		cb.OnComplete(blob, stats)
	}
	return blob, stats, nil
}

func (c *Coordinator) finishJob(job *JobInfo, err error, cb Callbacks) {
	defer close(job.result)

	switch {
	case err == nil:
		// state already set to done by the happy path
	case errors.IsCancelled(err):
		job.setState(StateCancelled)
		log.Log(job.RequestID, "run cancelled")
	default:
		job.setState(StateFailed)
		log.LogError(job.RequestID, "run failed", err)
		if cb.OnError != nil {
			cb.OnError(err.Error())
		}
	}

	c.Jobs.Remove(job.RequestID)
	metrics.Metrics.RunsInFlight.Set(float64(len(c.Jobs.GetKeys())))
	metrics.Metrics.HighlightPipeline.Count.
		WithLabelValues("file", string(job.State()), config.Version).
		Inc()
	metrics.Metrics.HighlightPipeline.Duration.
		WithLabelValues("file", string(job.State()), config.Version).
		Observe(time.Since(job.startTime).Seconds())

	job.result <- err == nil
}

func sinkFor(cb Callbacks) progress.Sink {
	if cb.OnProgress == nil {
		return nil
	}
	return progress.SinkFunc(cb.OnProgress)
}

// allAnalysesFailed reports whether every analysis is a sentinel, returning
// the first recorded error for the user-facing message.
func allAnalysesFailed(analyses []director.FrameAnalysis) (string, bool) {
	firstError := ""
	for _, a := range analyses {
		if !a.Failed() {
			return "", false
		}
		if firstError == "" {
			firstError = a.FailureReason()
		}
	}
	return firstError, len(analyses) > 0
}

// clampClips intersects every clip with the true media bounds, dropping
// remnants too short to watch.
func clampClips(clips []director.Clip, mediaDuration float64) []director.Clip {
	bounds := director.TimeRange{Start: 0, End: mediaDuration}
	var out []director.Clip
	for _, c := range clips {
		clamped, ok := c.TimeRange.Intersect(bounds)
		if !ok || clamped.Duration() < minClampedClipSeconds {
			continue
		}
		out = append(out, c.WithRange(clamped))
	}
	return out
}

// clampHook applies the same treatment to the hook; the hook may not survive.
func clampHook(hook *director.Clip, mediaDuration float64) *director.Clip {
	if hook == nil {
		return nil
	}
	clamped := clampClips([]director.Clip{*hook}, mediaDuration)
	if len(clamped) == 0 {
		return nil
	}
	return &clamped[0]
}

func recovered(f func() (media.Blob, Stats, error)) (blob media.Blob, stats Stats, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in pipeline run, recovering", "panic", fmt.Sprint(rec), "trace", string(debug.Stack()))
			err = fmt.Errorf("panic in pipeline run: %v", rec)
		}
	}()
	return f()
}
