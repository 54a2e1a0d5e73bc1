package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Cli is everything the binary can be told from flags or HIGHLIGHT_* env
// vars. The credential itself additionally falls back to the HF_API_KEY env
// var or a key file, and is never logged.
type Cli struct {
	InputFile  string
	OutputFile string
	PromAddr   string

	APIKey     string
	APIKeyFile string
	BaseURL    string
	Models     string // comma separated fallback list, first is preferred

	// sampler
	FrameInterval time.Duration
	MaxFrames     int
	JPEGQuality   float64
	MaxWidth      int64

	// vision scheduling
	Concurrency         int
	RequestDelay        time.Duration
	ColdStartTimeout    time.Duration
	ColdStartRetryDelay time.Duration
	AllModelsBackoff    time.Duration
	InitialBackoff      time.Duration
	MaxRetries          int

	// director
	MinClipLength   time.Duration
	MaxClipLength   time.Duration
	TargetDuration  time.Duration
	PacingVariation float64
}

func (cli *Cli) ModelList() []string {
	var models []string
	for _, m := range strings.Split(cli.Models, ",") {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	return models
}

// ResolveAPIKey picks the credential from the flag, the key file, or the
// HF_API_KEY env var, in that order.
func (cli *Cli) ResolveAPIKey() (string, error) {
	if cli.APIKey != "" {
		return cli.APIKey, nil
	}
	if cli.APIKeyFile != "" {
		bs, err := os.ReadFile(cli.APIKeyFile)
		if err != nil {
			return "", fmt.Errorf("cannot read api key file: %w", err)
		}
		return strings.TrimSpace(string(bs)), nil
	}
	return os.Getenv("HF_API_KEY"), nil
}

// RegisterFlags binds every knob onto the flag set with its default.
func (cli *Cli) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cli.InputFile, "input", "", "Path to the gameplay recording to process")
	fs.StringVar(&cli.OutputFile, "output", "", "Where to write the highlight reel (defaults next to the input)")
	fs.StringVar(&cli.PromAddr, "prom-addr", "", "Address to serve Prometheus metrics on while running, e.g. 127.0.0.1:2112")

	fs.StringVar(&cli.APIKey, "api-key", "", "Vision API bearer credential (prefer -api-key-file or HF_API_KEY)")
	fs.StringVar(&cli.APIKeyFile, "api-key-file", "", "File holding the vision API credential")
	fs.StringVar(&cli.BaseURL, "base-url", "", "Override the vision API base URL")
	fs.StringVar(&cli.Models, "models", "Qwen/Qwen2.5-VL-7B-Instruct,meta-llama/Llama-3.2-11B-Vision-Instruct", "Comma separated vision model fallback list")

	fs.DurationVar(&cli.FrameInterval, "frame-interval", 10*time.Second, "Spacing between sampled frames")
	fs.IntVar(&cli.MaxFrames, "max-frames", 60, "Hard cap on sampled frames")
	fs.Float64Var(&cli.JPEGQuality, "jpeg-quality", 0.85, "JPEG quality for sampled frames, 0-1")
	fs.Int64Var(&cli.MaxWidth, "max-width", 1280, "Downscale sampled frames to at most this width")

	fs.IntVar(&cli.Concurrency, "concurrency", 1, "Max in-flight vision requests")
	fs.DurationVar(&cli.RequestDelay, "request-delay", 2*time.Second, "Minimum spacing between vision request starts")
	fs.DurationVar(&cli.ColdStartTimeout, "cold-start-timeout", 120*time.Second, "Per-request deadline")
	fs.DurationVar(&cli.ColdStartRetryDelay, "cold-start-retry-delay", 20*time.Second, "Wait after a model-warming signal")
	fs.DurationVar(&cli.AllModelsBackoff, "all-models-backoff", 60*time.Second, "Wait when every model was rate limited in one round")
	fs.DurationVar(&cli.InitialBackoff, "initial-backoff", 2*time.Second, "Base backoff for transport errors")
	fs.IntVar(&cli.MaxRetries, "max-retries", 3, "Retry budget per model")

	fs.DurationVar(&cli.MinClipLength, "min-clip", 3*time.Second, "Shortest admissible highlight clip")
	fs.DurationVar(&cli.MaxClipLength, "max-clip", 15*time.Second, "Longest admissible highlight clip")
	fs.DurationVar(&cli.TargetDuration, "target-duration", 180*time.Second, "Target length of the assembled reel")
	fs.Float64Var(&cli.PacingVariation, "pacing-variation", 0.5, "Pacing knob, 0-1; x10 is the optimal clip length")
}

func (cli *Cli) Validate() error {
	if cli.InputFile == "" {
		return fmt.Errorf("-input is required")
	}
	if len(cli.ModelList()) == 0 {
		return fmt.Errorf("-models must name at least one vision model")
	}
	if cli.JPEGQuality < 0 || cli.JPEGQuality > 1 {
		return fmt.Errorf("-jpeg-quality must be within [0,1]")
	}
	if cli.PacingVariation < 0 || cli.PacingVariation > 1 {
		return fmt.Errorf("-pacing-variation must be within [0,1]")
	}
	return nil
}
