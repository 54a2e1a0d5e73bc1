package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/playcut/highlight-engine/errors"
	"gopkg.in/vansante/go-ffprobe.v2"
)

type Prober interface {
	ProbeFile(ctx context.Context, requestID, path string) (Info, error)
}

type Probe struct{}

func (p Probe) ProbeFile(ctx context.Context, requestID string, path string) (Info, error) {
	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(ctx, 60*time.Second)
		defer probeCancel()
		var err error
		data, err = ffprobe.ProbeURL(probeCtx, path, "-loglevel", "error")
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // don't impose a timeout as part of the retries
	err := backoff.Retry(operation, backoff.WithMaxRetries(backOff, 3))
	if err != nil {
		return Info{}, fmt.Errorf("error probing %s: %w", path, err)
	}
	return parseProbeOutput(data)
}

func parseProbeOutput(probeData *ffprobe.ProbeData) (Info, error) {
	videoStream := probeData.FirstVideoStream()
	if videoStream == nil {
		return Info{}, errors.Unretriable(fmt.Errorf("%w: no video stream found", errors.ErrMetadataUnavailable))
	}
	if probeData.Format == nil {
		return Info{}, errors.Unretriable(fmt.Errorf("%w: format information missing", errors.ErrMetadataUnavailable))
	}

	duration, err := strconv.ParseFloat(videoStream.Duration, 64)
	if err != nil {
		duration = probeData.Format.DurationSeconds
	}
	if duration <= 0 || math.IsInf(duration, 0) || math.IsNaN(duration) {
		return Info{}, errors.Unretriable(fmt.Errorf("%w: duration undeterminable", errors.ErrMetadataUnavailable))
	}

	size, _ := strconv.ParseInt(probeData.Format.Size, 10, 64)

	return Info{
		Duration:  duration,
		Width:     int64(videoStream.Width),
		Height:    int64(videoStream.Height),
		Format:    probeData.Format.FormatName,
		SizeBytes: size,
	}, nil
}
