package assembler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/media"
	"github.com/stretchr/testify/require"
)

type cutCall struct {
	start    float64
	duration float64
	out      string
}

type stubToolchain struct {
	cuts       []cutCall
	manifest   string
	cutErr     error
	concatErr  error
	concatOut  string
	concatSize int
}

func (s *stubToolchain) ExtractFrame(ctx context.Context, requestID, src string, timestamp float64, opts media.FrameOpts, out string) error {
	return nil
}

func (s *stubToolchain) Cut(ctx context.Context, requestID, src string, start, duration float64, out string) error {
	if s.cutErr != nil {
		return s.cutErr
	}
	s.cuts = append(s.cuts, cutCall{start: start, duration: duration, out: out})
	return os.WriteFile(out, []byte("segment"), 0644)
}

func (s *stubToolchain) Concat(ctx context.Context, requestID, manifest, out string) error {
	if s.concatErr != nil {
		return s.concatErr
	}
	bs, err := os.ReadFile(manifest)
	if err != nil {
		return err
	}
	s.manifest = string(bs)
	s.concatOut = out
	payload := []byte("assembled-reel")
	s.concatSize = len(payload)
	return os.WriteFile(out, payload, 0644)
}

func clipAt(start, end float64, clipType director.ClipType) director.Clip {
	return director.Clip{
		TimeRange: director.TimeRange{Start: start, End: end},
		Type:      clipType,
	}
}

func TestAssembleOrdersHookFirst(t *testing.T) {
	tc := &stubToolchain{}
	a := New(tc)
	clips := []director.Clip{
		clipAt(40, 50, director.ClipMultiKill),
		clipAt(100, 110, director.ClipClutch),
	}
	hook := clipAt(43, 46, director.ClipHook)

	blob, err := a.Assemble(context.Background(), "req", "/tmp/source.mp4", clips, &hook, nil)
	require.NoError(t, err)
	require.Equal(t, "video/mp4", blob.MIME)
	require.Equal(t, []byte("assembled-reel"), blob.Bytes)

	require.Len(t, tc.cuts, 3)
	require.Equal(t, 43.0, tc.cuts[0].start)
	require.Equal(t, 3.0, tc.cuts[0].duration)
	require.Equal(t, 40.0, tc.cuts[1].start)
	require.Equal(t, 100.0, tc.cuts[2].start)

	require.Equal(t, "file 'clip_0.mp4'\nfile 'clip_1.mp4'\nfile 'clip_2.mp4'\n", tc.manifest)
}

func TestAssembleWithoutHook(t *testing.T) {
	tc := &stubToolchain{}
	a := New(tc)

	_, err := a.Assemble(context.Background(), "req", "/tmp/source.mkv", []director.Clip{clipAt(0, 5, director.ClipGeneric)}, nil, nil)
	require.NoError(t, err)
	require.Len(t, tc.cuts, 1)
	require.True(t, strings.HasSuffix(tc.cuts[0].out, "clip_0.mkv"))
}

func TestAssembleKeepsSourceContainer(t *testing.T) {
	tc := &stubToolchain{}
	a := New(tc)

	blob, err := a.Assemble(context.Background(), "req", "/tmp/source.webm", []director.Clip{clipAt(0, 5, director.ClipGeneric)}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "video/webm", blob.MIME)
	require.True(t, strings.HasSuffix(tc.concatOut, "output.webm"))
}

func TestAssembleRequiresClips(t *testing.T) {
	a := New(&stubToolchain{})
	_, err := a.Assemble(context.Background(), "req", "/tmp/source.mp4", nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrNoHighlights)
}

func TestAssembleCutFailure(t *testing.T) {
	tc := &stubToolchain{cutErr: fmt.Errorf("ffmpeg failed [Invalid data found]: exit status 1")}
	a := New(tc)

	_, err := a.Assemble(context.Background(), "req", "/tmp/source.mp4", []director.Clip{clipAt(0, 5, director.ClipGeneric)}, nil, nil)
	var ae errors.AssemblyError
	require.ErrorAs(t, err, &ae)
	require.Contains(t, ae.Detail, "Invalid data found")
	require.True(t, errors.IsUnretriable(err))
}

func TestAssembleConcatFailure(t *testing.T) {
	tc := &stubToolchain{concatErr: fmt.Errorf("ffmpeg failed [unsafe file name]: exit status 1")}
	a := New(tc)

	_, err := a.Assemble(context.Background(), "req", "/tmp/source.mp4", []director.Clip{clipAt(0, 5, director.ClipGeneric)}, nil, nil)
	var ae errors.AssemblyError
	require.ErrorAs(t, err, &ae)
	require.Contains(t, ae.Detail, "unsafe file name")
}

func TestAssembleProgressBands(t *testing.T) {
	tc := &stubToolchain{}
	a := New(tc)
	clips := []director.Clip{
		clipAt(0, 5, director.ClipGeneric),
		clipAt(10, 15, director.ClipGeneric),
	}

	var percents []int
	_, err := a.Assemble(context.Background(), "req", "/tmp/source.mp4", clips, nil, func(p int) {
		percents = append(percents, p)
	})
	require.NoError(t, err)
	require.Equal(t, []int{40, 80, 95, 100}, percents)
}

func TestAssembleCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(&stubToolchain{})
	_, err := a.Assemble(ctx, "req", "/tmp/source.mp4", []director.Clip{clipAt(0, 5, director.ClipGeneric)}, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
