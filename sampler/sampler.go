package sampler

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/log"
	"github.com/playcut/highlight-engine/media"
	"github.com/playcut/highlight-engine/metrics"
)

// Options control frame density and encoding.
type Options struct {
	IntervalSeconds float64
	MaxFrames       int
	JPEGQuality     float64 // [0,1]
	MaxWidth        int64   // proportional downscale cap in pixels
}

func DefaultOptions() Options {
	return Options{
		IntervalSeconds: 10,
		MaxFrames:       60,
		JPEGQuality:     0.85,
		MaxWidth:        1280,
	}
}

// Progress is emitted after every successfully sampled frame.
type Progress struct {
	Current   int
	Total     int
	Percent   int
	Timestamp float64
}

// Sampler extracts uniformly spaced keyframes from a local video file.
type Sampler struct {
	probe     media.Prober
	toolchain media.Toolchain
}

func New(probe media.Prober, toolchain media.Toolchain) *Sampler {
	return &Sampler{probe: probe, toolchain: toolchain}
}

// FrameTimestamps plans the seek points for a file of the given duration:
// uniform spacing, capped at MaxFrames, never past the end of the media.
func FrameTimestamps(duration float64, opts Options) []float64 {
	if duration <= 0 || opts.IntervalSeconds <= 0 {
		return nil
	}
	n := int(math.Floor(duration/opts.IntervalSeconds)) + 1
	if n > opts.MaxFrames {
		n = opts.MaxFrames
	}
	timestamps := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		ts := float64(i) * opts.IntervalSeconds
		if ts > duration {
			break
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps
}

// Sample probes the source and renders one JPEG per planned timestamp. The
// temp directory holding intermediate frames is released on every exit path.
func (s *Sampler) Sample(ctx context.Context, requestID, sourcePath string, opts Options, onProgress func(Progress)) ([]media.Frame, media.Info, error) {
	info, err := s.probe.ProbeFile(ctx, requestID, sourcePath)
	if err != nil {
		return nil, media.Info{}, fmt.Errorf("%w: %s", errors.ErrMetadataUnavailable, err)
	}

	timestamps := FrameTimestamps(info.Duration, opts)
	log.Log(requestID, "sampling frames", "duration", info.Duration, "planned_frames", len(timestamps))
	if len(timestamps) == 0 {
		return nil, info, nil
	}

	tempDir, err := os.MkdirTemp(os.TempDir(), "frames-*")
	if err != nil {
		return nil, info, fmt.Errorf("failed to make temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	frameOpts := media.FrameOpts{JPEGQuality: opts.JPEGQuality, MaxWidth: opts.MaxWidth}
	frames := make([]media.Frame, 0, len(timestamps))
	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, info, err
		}

		out := filepath.Join(tempDir, fmt.Sprintf("frame_%d.jpg", i))
		if err := s.toolchain.ExtractFrame(ctx, requestID, sourcePath, ts, frameOpts, out); err != nil {
			return nil, info, errors.NewSeekError(ts, err)
		}
		image, err := os.ReadFile(out)
		if err != nil || len(image) == 0 {
			return nil, info, errors.NewSeekError(ts, fmt.Errorf("no frame rendered: %v", err))
		}

		frames = append(frames, media.Frame{Timestamp: ts, Image: image})
		metrics.Metrics.FramesSampled.Inc()
		if onProgress != nil {
			onProgress(Progress{
				Current:   i + 1,
				Total:     len(timestamps),
				Percent:   int(math.Round(100 * float64(i+1) / float64(len(timestamps)))),
				Timestamp: ts,
			})
		}
	}
	return frames, info, nil
}
