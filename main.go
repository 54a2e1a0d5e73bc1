package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/playcut/highlight-engine/assembler"
	"github.com/playcut/highlight-engine/config"
	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/log"
	"github.com/playcut/highlight-engine/media"
	"github.com/playcut/highlight-engine/pipeline"
	"github.com/playcut/highlight-engine/progress"
	"github.com/playcut/highlight-engine/sampler"
	"github.com/playcut/highlight-engine/vision"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	fs := flag.NewFlagSet("highlight-engine", flag.ExitOnError)
	cli := &config.Cli{}
	cli.RegisterFlags(fs)
	version := fs.Bool("version", false, "print application version")

	err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("HIGHLIGHT"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *version {
		fmt.Printf("highlight-engine %s\n", config.Version)
		return
	}
	if err := cli.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cli); err != nil {
		if errors.IsCancelled(err) {
			log.LogNoRequestID("run cancelled")
			os.Exit(130)
		}
		log.LogNoRequestID("run failed", "err", err.Error())
		os.Exit(1)
	}
}

func run(cli *config.Cli) error {
	apiKey, err := cli.ResolveAPIKey()
	if err != nil {
		return err
	}
	if apiKey == "" {
		return errors.ErrAuthMissing
	}

	if cli.PromAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cli.PromAddr, mux); err != nil {
				log.LogNoRequestID("metrics listener stopped", "err", err.Error())
			}
		}()
	}

	toolchain, err := media.NewFFmpeg()
	if err != nil {
		return err
	}

	visionOpts := vision.DefaultOptions(cli.ModelList()...)
	visionOpts.Concurrency = cli.Concurrency
	visionOpts.RequestDelay = cli.RequestDelay
	visionOpts.ColdStartTimeout = cli.ColdStartTimeout
	visionOpts.ColdStartRetryDelay = cli.ColdStartRetryDelay
	visionOpts.AllModelsBackoff = cli.AllModelsBackoff
	visionOpts.InitialBackoff = cli.InitialBackoff
	visionOpts.MaxRetries = cli.MaxRetries
	if cli.BaseURL != "" {
		visionOpts.BaseURL = cli.BaseURL
	}

	samplerOpts := sampler.Options{
		IntervalSeconds: cli.FrameInterval.Seconds(),
		MaxFrames:       cli.MaxFrames,
		JPEGQuality:     cli.JPEGQuality,
		MaxWidth:        cli.MaxWidth,
	}
	directorOpts := director.Options{
		MinClipLength:   cli.MinClipLength.Seconds(),
		MaxClipLength:   cli.MaxClipLength.Seconds(),
		TargetDuration:  cli.TargetDuration.Seconds(),
		PacingVariation: cli.PacingVariation,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visionClient, err := vision.NewClient("cli", apiKey, visionOpts)
	if err != nil {
		return err
	}
	coordinator, err := pipeline.NewCoordinator(
		sampler.New(media.Probe{}, toolchain),
		visionClient,
		director.New(directorOpts),
		assembler.New(toolchain),
		samplerOpts,
	)
	if err != nil {
		return err
	}

	blob, stats, err := coordinator.Run(ctx, cli.InputFile, pipeline.Callbacks{
		OnProgress: func(e progress.Event) {
			if e.Type == progress.EventProgress {
				fmt.Fprintf(os.Stderr, "\r[%3d%%] %-16s %s", e.Progress, e.Stage, e.Message)
			}
		},
		OnLog: func(msg string) {
			fmt.Fprintf(os.Stderr, "\n%s\n", msg)
		},
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	outPath := cli.OutputFile
	if outPath == "" {
		ext := filepath.Ext(cli.InputFile)
		outPath = strings.TrimSuffix(cli.InputFile, ext) + "_highlights" + ext
	}
	if err := os.WriteFile(outPath, blob.Bytes, 0644); err != nil {
		return fmt.Errorf("failed to write reel: %w", err)
	}

	summary, err := json.MarshalIndent(statsSummary(stats, outPath), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(summary))
	return nil
}

func statsSummary(stats pipeline.Stats, outPath string) map[string]interface{} {
	return map[string]interface{}{
		"output":          outPath,
		"clip_count":      stats.ClipCount,
		"total_duration":  fmt.Sprintf("%.1fs", stats.TotalDuration),
		"quality_score":   stats.QualityScore,
		"output_size":     stats.OutputSize,
		"processing_time": stats.ProcessingTime.Round(time.Millisecond).String(),
		"suggestions":     stats.Suggestions,
		"warnings":        stats.Warnings,
	}
}
