package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// Special wrapper for errors that should terminate the pipeline run instead of
// being retried. Also marks the error permanent for backoff.Retry loops.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{backoff.Permanent(err)}
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

// Returns whether the given error is an unretriable error.
func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

// Terminal pipeline error kinds. Each maps to one row of the run's error
// surface; user-visible messages are derived from these.
var (
	ErrAuthMissing          = errors.New("vision API credential not set")
	ErrAuthInvalid          = errors.New("vision API credential rejected")
	ErrMetadataUnavailable  = errors.New("cannot read video metadata")
	ErrNoFrames             = errors.New("no frames extractable from video")
	ErrNoHighlights         = errors.New("no highlights detected")
	ErrAssemblerUnavailable = errors.New("media toolchain unavailable")
	ErrCancelled            = errors.New("pipeline cancelled")
)

// SeekError reports a frame seek that never produced a decoded frame.
type SeekError struct {
	Timestamp float64
	cause     error
}

func NewSeekError(timestamp float64, cause error) error {
	return Unretriable(SeekError{Timestamp: timestamp, cause: cause})
}

func (e SeekError) Error() string {
	return fmt.Sprintf("seek failed at %.2fs: %s", e.Timestamp, e.cause)
}

func (e SeekError) Unwrap() error {
	return e.cause
}

// AnalysesFailedError is raised when every sampled frame produced a sentinel
// analysis. It carries the first per-frame error for the user-facing message.
type AnalysesFailedError struct {
	First string
}

func NewAnalysesFailedError(first string) error {
	return Unretriable(AnalysesFailedError{First: first})
}

func (e AnalysesFailedError) Error() string {
	return fmt.Sprintf("all frame analyses failed: %s", e.First)
}

// AssemblyError wraps a non-zero toolchain exit, keeping the stderr tail.
type AssemblyError struct {
	Detail string
	cause  error
}

func NewAssemblyError(detail string, cause error) error {
	return Unretriable(AssemblyError{Detail: detail, cause: cause})
}

func (e AssemblyError) Error() string {
	return fmt.Sprintf("assembly failed: %s", e.Detail)
}

func (e AssemblyError) Unwrap() error {
	return e.cause
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
