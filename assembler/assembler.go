package assembler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/log"
	"github.com/playcut/highlight-engine/media"
)

// Progress bands: clip extraction fills 0-80, concat 80-95, readback the rest.
const (
	extractBandEnd = 80
	concatBandEnd  = 95
)

// Assembler cuts each chosen interval out of the source by stream-copy and
// concatenates them into one reel. The input codec is never touched.
type Assembler struct {
	toolchain media.Toolchain
}

func New(toolchain media.Toolchain) *Assembler {
	return &Assembler{toolchain: toolchain}
}

// Assemble extracts every clip (hook first when present) into a sandbox dir,
// joins them through the concat demuxer, and returns the result as a blob.
// The sandbox is removed on every exit path; cleanup failures never fail the
// run.
func (a *Assembler) Assemble(ctx context.Context, requestID, sourcePath string, clips []director.Clip, hook *director.Clip, onProgress func(percent int)) (media.Blob, error) {
	if len(clips) == 0 {
		return media.Blob{}, errors.Unretriable(errors.ErrNoHighlights)
	}

	ext := filepath.Ext(sourcePath)
	if ext == "" {
		ext = ".mp4"
	}

	sandbox, err := os.MkdirTemp(os.TempDir(), "reel-*")
	if err != nil {
		return media.Blob{}, fmt.Errorf("failed to make sandbox dir: %w", err)
	}
	defer os.RemoveAll(sandbox)

	report := func(percent int) {
		if onProgress != nil {
			onProgress(percent)
		}
	}

	ordered := make([]director.Clip, 0, len(clips)+1)
	if hook != nil {
		ordered = append(ordered, *hook)
	}
	ordered = append(ordered, clips...)

	var segments []string
	for i, clip := range ordered {
		if err := ctx.Err(); err != nil {
			return media.Blob{}, err
		}

		segment := fmt.Sprintf("clip_%d%s", i, ext)
		out := filepath.Join(sandbox, segment)
		log.Log(requestID, "extracting clip", "index", i, "type", string(clip.Type),
			"start", clip.TimeRange.Start, "duration", clip.TimeRange.Duration())
		if err := a.toolchain.Cut(ctx, requestID, sourcePath, clip.TimeRange.Start, clip.TimeRange.Duration(), out); err != nil {
			return media.Blob{}, errors.NewAssemblyError(err.Error(), err)
		}
		segments = append(segments, segment)
		report(extractBandEnd * (i + 1) / len(ordered))
	}

	if err := ctx.Err(); err != nil {
		return media.Blob{}, err
	}

	manifest, err := writeManifest(sandbox, segments)
	if err != nil {
		return media.Blob{}, err
	}

	outFile := filepath.Join(sandbox, "output"+ext)
	if err := a.toolchain.Concat(ctx, requestID, manifest, outFile); err != nil {
		return media.Blob{}, errors.NewAssemblyError(err.Error(), err)
	}
	report(concatBandEnd)

	reel, err := os.ReadFile(outFile)
	if err != nil {
		return media.Blob{}, errors.NewAssemblyError(fmt.Sprintf("failed to read assembled output: %s", err), err)
	}
	report(100)

	return media.Blob{Bytes: reel, MIME: media.MIMEForExtension(ext)}, nil
}

// writeManifest produces the concat-demuxer file list. Entries are bare
// filenames; the demuxer resolves them relative to the manifest itself.
func writeManifest(dir string, segments []string) (string, error) {
	manifestPath := filepath.Join(dir, "concat.txt")
	f, err := os.Create(manifestPath)
	if err != nil {
		return "", fmt.Errorf("error creating concat manifest: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, segment := range segments {
		if _, err := fmt.Fprintf(w, "file '%s'\n", segment); err != nil {
			return "", fmt.Errorf("error writing concat manifest: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("error flushing concat manifest: %w", err)
	}
	return manifestPath, nil
}
