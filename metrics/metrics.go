package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type VisionClientMetrics struct {
	RequestCount    *prometheus.CounterVec
	ModelRotations  prometheus.Counter
	ColdStartWaits  prometheus.Counter
	RoundBackoffs   prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

type HighlightPipelineMetrics struct {
	Count         *prometheus.CounterVec
	Duration      *prometheus.SummaryVec
	StageDuration *prometheus.SummaryVec
	SourceSeconds prometheus.Summary
	OutputClips   prometheus.Summary
	OutputBytes   prometheus.Summary
}

type EngineMetrics struct {
	Version       *prometheus.CounterVec
	RunsInFlight  prometheus.Gauge
	FramesSampled prometheus.Counter

	VisionClient      VisionClientMetrics
	HighlightPipeline HighlightPipelineMetrics
}

var runLabels = []string{"source_format", "state", "version"}

func NewMetrics() *EngineMetrics {
	m := &EngineMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "version",
			Help: "Highlight engine version counter",
		}, []string{"app", "version"}),

		RunsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runs_in_flight",
			Help: "Number of pipeline runs currently in flight",
		}),

		FramesSampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "frames_sampled_total",
			Help: "Total number of keyframes sampled from source media",
		}),

		VisionClient: VisionClientMetrics{
			RequestCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "vision_requests_total",
				Help: "Vision API requests by model and outcome",
			}, []string{"model", "outcome"}),
			ModelRotations: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vision_model_rotations_total",
				Help: "Times the client rotated to the next fallback model",
			}),
			ColdStartWaits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vision_cold_start_waits_total",
				Help: "Times the client waited for a warming model",
			}),
			RoundBackoffs: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vision_round_backoffs_total",
				Help: "Times every fallback model was rate limited in one round",
			}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "vision_request_duration_seconds",
				Help: "Vision API request duration by model",
			}, []string{"model"}),
		},

		HighlightPipeline: HighlightPipelineMetrics{
			Count: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "highlight_pipeline_total",
				Help: "Number of pipeline runs by terminal state",
			}, runLabels),
			Duration: promauto.NewSummaryVec(prometheus.SummaryOpts{
				Name: "highlight_pipeline_duration_seconds",
				Help: "End to end pipeline duration",
			}, runLabels),
			StageDuration: promauto.NewSummaryVec(prometheus.SummaryOpts{
				Name: "highlight_pipeline_stage_duration_seconds",
				Help: "Per stage pipeline duration",
			}, []string{"stage"}),
			SourceSeconds: promauto.NewSummary(prometheus.SummaryOpts{
				Name: "highlight_pipeline_source_seconds",
				Help: "Duration of source media fed into the pipeline",
			}),
			OutputClips: promauto.NewSummary(prometheus.SummaryOpts{
				Name: "highlight_pipeline_output_clips",
				Help: "Number of clips in the assembled reel",
			}),
			OutputBytes: promauto.NewSummary(prometheus.SummaryOpts{
				Name: "highlight_pipeline_output_bytes",
				Help: "Size of the assembled reel",
			}),
		},
	}
	return m
}

var Metrics = NewMetrics()
