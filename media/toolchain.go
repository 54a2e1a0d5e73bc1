package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"time"

	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const commandTimeout = 10 * time.Minute

// Maximum stderr bytes carried into an error. ffmpeg is chatty and the useful
// part is at the end.
const stderrTailBytes = 1000

// FrameOpts controls how a single frame is rendered to JPEG.
type FrameOpts struct {
	JPEGQuality float64 // [0,1], 1 = best
	MaxWidth    int64   // proportional downscale cap, 0 = no scaling
}

// Toolchain is the command surface of the media toolchain. The production
// implementation shells out to ffmpeg; tests swap in a stub.
type Toolchain interface {
	ExtractFrame(ctx context.Context, requestID, src string, timestamp float64, opts FrameOpts, out string) error
	Cut(ctx context.Context, requestID, src string, start, duration float64, out string) error
	Concat(ctx context.Context, requestID, manifest, out string) error
}

// FFmpeg runs the real ffmpeg binary. Construct with NewFFmpeg so missing
// binaries surface as ErrAssemblerUnavailable before any work is scheduled.
type FFmpeg struct{}

func NewFFmpeg() (FFmpeg, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return FFmpeg{}, fmt.Errorf("%w: %s", errors.ErrAssemblerUnavailable, err)
	}
	return FFmpeg{}, nil
}

// format time in secs to be compatible with ffmpeg's expected time syntax
func formatTime(timeSeconds float64) string {
	timeMillis := int64(timeSeconds * 1000)
	duration := time.Duration(timeMillis) * time.Millisecond
	formattedTime := time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(duration)
	return formattedTime.Format("15:04:05.000")
}

// FrameArgs builds the argv for decoding one frame at the given timestamp into
// a scaled JPEG. Seek is placed before the input for fast keyframe seeking.
func FrameArgs(src string, timestamp float64, opts FrameOpts, out string) []string {
	outputArgs := ffmpeg.KwArgs{
		"vframes": "1",
		"q:v":     fmt.Sprintf("%d", jpegQScale(opts.JPEGQuality)),
	}
	if opts.MaxWidth > 0 {
		// only ever downscale, preserving aspect ratio
		outputArgs["vf"] = fmt.Sprintf("scale=min(%d\\,iw):-2", opts.MaxWidth)
	}
	return ffmpeg.
		Input(src, ffmpeg.KwArgs{"ss": formatTime(timestamp)}).
		Output(out, outputArgs).
		OverWriteOutput().
		GetArgs()
}

// CutArgs builds the argv for a stream-copy extraction of
// [start, start+duration) from src. No re-encoding happens on this path.
func CutArgs(src string, start, duration float64, out string) []string {
	return ffmpeg.
		Input(src, ffmpeg.KwArgs{"ss": formatTime(start)}).
		Output(out, ffmpeg.KwArgs{
			"t":                 formatTime(duration),
			"c":                 "copy", // Don't accidentally transcode
			"avoid_negative_ts": "make_zero",
		}).
		OverWriteOutput().
		GetArgs()
}

// ConcatArgs builds the argv for a concat-demuxer stream-copy join of the
// files listed in the manifest.
func ConcatArgs(manifest, out string) []string {
	return ffmpeg.
		Input(manifest, ffmpeg.KwArgs{
			"f":    "concat",
			"safe": "0", // manifest entries are relative paths
		}).
		Output(out, ffmpeg.KwArgs{
			"c": "copy", // Don't accidentally transcode
		}).
		OverWriteOutput().
		GetArgs()
}

func (f FFmpeg) ExtractFrame(ctx context.Context, requestID, src string, timestamp float64, opts FrameOpts, out string) error {
	return f.run(ctx, requestID, FrameArgs(src, timestamp, opts, out))
}

func (f FFmpeg) Cut(ctx context.Context, requestID, src string, start, duration float64, out string) error {
	return f.run(ctx, requestID, CutArgs(src, start, duration, out))
}

func (f FFmpeg) Concat(ctx context.Context, requestID, manifest, out string) error {
	return f.run(ctx, requestID, ConcatArgs(manifest, out))
}

func (f FFmpeg) run(ctx context.Context, requestID string, args []string) error {
	timeout, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(timeout, "ffmpeg", args...)

	log.Log(requestID, "running media toolchain", "compiled-command", fmt.Sprintf("ffmpeg %s", args))

	var outputBuf bytes.Buffer
	var stdErr bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &stdErr
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("ffmpeg failed [%s]: %w", StderrTail(stdErr.String()), err)
	}
	return nil
}

// StderrTail returns the last portion of a stderr dump, enough to carry the
// actual failure reason without flooding logs or callbacks.
func StderrTail(stderr string) string {
	cut := int(math.Max(0, float64(len(stderr)-stderrTailBytes)))
	return stderr[cut:]
}

// jpegQScale maps a [0,1] quality knob onto ffmpeg's inverted 2..31 -q:v scale.
func jpegQScale(quality float64) int {
	if quality <= 0 {
		return 31
	}
	if quality >= 1 {
		return 2
	}
	return int(math.Round(31 - quality*29))
}
