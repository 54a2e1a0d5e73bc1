package vision

import (
	"context"
	"encoding/base64"
	goerrors "errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/playcut/highlight-engine/director"
	"github.com/playcut/highlight-engine/errors"
	"github.com/playcut/highlight-engine/log"
	"github.com/playcut/highlight-engine/media"
	"github.com/playcut/highlight-engine/metrics"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the OpenAI-compatible router in front of the hosted
// vision models. The path is vendor routing, not contract; any
// chat-completions endpoint works.
const DefaultBaseURL = "https://router.huggingface.co/v1"

// Options enumerate every knob of the client's scheduling model.
type Options struct {
	Models              []string      // ordered fallback list, length >= 1
	Concurrency         int           // max in-flight requests
	RequestDelay        time.Duration // min spacing between request starts, global
	ColdStartTimeout    time.Duration // per-request deadline
	ColdStartRetryDelay time.Duration // wait after a model-warming signal
	AllModelsBackoff    time.Duration // wait when a whole round was rate limited
	InitialBackoff      time.Duration // base for transport-error backoff
	MaxRetries          int           // per model
	BaseURL             string
}

func DefaultOptions(models ...string) Options {
	return Options{
		Models:              models,
		Concurrency:         1,
		RequestDelay:        2 * time.Second,
		ColdStartTimeout:    120 * time.Second,
		ColdStartRetryDelay: 20 * time.Second,
		AllModelsBackoff:    60 * time.Second,
		InitialBackoff:      2 * time.Second,
		MaxRetries:          3,
		BaseURL:             DefaultBaseURL,
	}
}

// BatchProgress reports how far through a frame batch the client is.
type BatchProgress struct {
	Current int
	Total   int
	Percent int
}

// ChatClient is the slice of the upstream API the client needs; tests swap in
// a scripted stub.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client drives the vision API with bounded concurrency, global request
// pacing, and per-response model rotation.
type Client struct {
	opts      Options
	api       ChatClient
	clock     clock.Clock
	requestID string

	// sleep is a seam for tests; the default blocks on the injected clock
	sleep func(ctx context.Context, d time.Duration) error

	paceMu    sync.Mutex
	nextStart time.Time
}

func NewClient(requestID, apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.Unretriable(errors.ErrAuthMissing)
	}
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return newClient(requestID, openai.NewClientWithConfig(cfg), opts, clock.New())
}

func newClient(requestID string, api ChatClient, opts Options, clk clock.Clock) (*Client, error) {
	if len(opts.Models) == 0 {
		return nil, fmt.Errorf("vision client requires at least one model")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	c := &Client{
		opts:      opts,
		api:       api,
		clock:     clk,
		requestID: requestID,
	}
	c.sleep = c.clockSleep
	return c, nil
}

// Analyze sends one frame through the rotation state machine and parses the
// reply.
func (c *Client) Analyze(ctx context.Context, frame media.Frame) (director.FrameAnalysis, error) {
	text, model, err := c.complete(ctx, frame)
	if err != nil {
		return director.FrameAnalysis{}, err
	}
	return ParseAnalysis(text, frame.Timestamp, model), nil
}

// AnalyzeBatch analyzes all frames, preserving input order and length. A
// frame whose retry budget is exhausted becomes a sentinel analysis in its
// slot; only auth failures and cancellation abort the whole batch.
func (c *Client) AnalyzeBatch(ctx context.Context, frames []media.Frame, onProgress func(BatchProgress)) ([]director.FrameAnalysis, error) {
	results := make([]director.FrameAnalysis, len(frames))

	var progressMu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analysis, err := c.Analyze(gctx, frame)
			switch {
			case err == nil:
				results[i] = analysis
			case goerrors.Is(err, errors.ErrAuthInvalid), gctx.Err() != nil:
				return err
			default:
				log.LogError(c.requestID, "frame analysis failed, recording sentinel", err, "timestamp", frame.Timestamp)
				results[i] = director.NewSentinelAnalysis(frame.Timestamp, err.Error())
			}

			progressMu.Lock()
			completed++
			if onProgress != nil {
				onProgress(BatchProgress{
					Current: completed,
					Total:   len(frames),
					Percent: int(math.Round(100 * float64(completed) / float64(len(frames)))),
				})
			}
			progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// complete runs the per-request state machine: rotate on 429/timeout, wait on
// 503, back off on other transport errors, fail fast on 401.
func (c *Client) complete(ctx context.Context, frame media.Frame) (string, string, error) {
	models := c.opts.Models
	maxAttempts := c.opts.MaxRetries * len(models)
	modelIdx := 0
	triedInRound := 0
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		if err := c.pace(ctx); err != nil {
			return "", "", err
		}

		model := models[modelIdx]
		reqCtx, cancel := context.WithTimeout(ctx, c.opts.ColdStartTimeout)
		started := time.Now()
		resp, err := c.api.CreateChatCompletion(reqCtx, c.request(model, frame))
		cancel()
		metrics.Metrics.VisionClient.RequestDuration.WithLabelValues(model).Observe(time.Since(started).Seconds())

		if err == nil {
			content := ""
			if len(resp.Choices) > 0 {
				content = resp.Choices[0].Message.Content
			}
			if content != "" {
				metrics.Metrics.VisionClient.RequestCount.WithLabelValues(model, "ok").Inc()
				return content, model, nil
			}
			err = fmt.Errorf("empty completion from %s", model)
		}
		lastErr = err

		switch classify(ctx, err) {
		case failureAuth:
			metrics.Metrics.VisionClient.RequestCount.WithLabelValues(model, "auth").Inc()
			return "", "", errors.Unretriable(fmt.Errorf("%w: %s", errors.ErrAuthInvalid, err))
		case failureRateLimited:
			metrics.Metrics.VisionClient.RequestCount.WithLabelValues(model, "rate_limited").Inc()
			triedInRound++
			if triedInRound >= len(models) {
				log.Log(c.requestID, "every model rate limited, backing off", "backoff", c.opts.AllModelsBackoff)
				metrics.Metrics.VisionClient.RoundBackoffs.Inc()
				if err := c.sleep(ctx, c.opts.AllModelsBackoff); err != nil {
					return "", "", err
				}
				triedInRound = 0
			}
			modelIdx = c.rotate(modelIdx)
		case failureColdStart:
			metrics.Metrics.VisionClient.RequestCount.WithLabelValues(model, "cold_start").Inc()
			metrics.Metrics.VisionClient.ColdStartWaits.Inc()
			log.Log(c.requestID, "model warming up, waiting", "model", model, "delay", c.opts.ColdStartRetryDelay)
			if err := c.sleep(ctx, c.opts.ColdStartRetryDelay); err != nil {
				return "", "", err
			}
		case failureTimeout:
			metrics.Metrics.VisionClient.RequestCount.WithLabelValues(model, "timeout").Inc()
			modelIdx = c.rotate(modelIdx)
		case failureCancelled:
			return "", "", ctx.Err()
		default:
			metrics.Metrics.VisionClient.RequestCount.WithLabelValues(model, "error").Inc()
			backoff := time.Duration(float64(c.opts.InitialBackoff) * math.Pow(2, float64(attempt/len(models))))
			if err := c.sleep(ctx, backoff); err != nil {
				return "", "", err
			}
		}
	}
	return "", "", fmt.Errorf("all models exhausted after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) rotate(modelIdx int) int {
	metrics.Metrics.VisionClient.ModelRotations.Inc()
	return (modelIdx + 1) % len(c.opts.Models)
}

type failureKind int

const (
	failureOther failureKind = iota
	failureAuth
	failureRateLimited
	failureColdStart
	failureTimeout
	failureCancelled
)

func classify(ctx context.Context, err error) failureKind {
	if ctx.Err() != nil {
		return failureCancelled
	}

	var apiErr *openai.APIError
	if goerrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return failureAuth
		case 429:
			return failureRateLimited
		case 503:
			return failureColdStart
		}
		return failureOther
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	return failureOther
}

// pace reserves the next request start slot, enforcing the global minimum
// spacing between starts.
func (c *Client) pace(ctx context.Context) error {
	c.paceMu.Lock()
	now := c.clock.Now()
	wait := c.nextStart.Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.nextStart = now.Add(wait + c.opts.RequestDelay)
	c.paceMu.Unlock()

	if wait > 0 {
		return c.sleep(ctx, wait)
	}
	return nil
}

func (c *Client) clockSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := c.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) request(model string, frame media.Frame) openai.ChatCompletionRequest {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame.Image)
	return openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 500,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analysisPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    imageURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
	}
}
