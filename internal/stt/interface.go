package stt

import (
	"context"
	"encoding/json"
	"io"
)

// Provider defines the interface for speech-to-text providers.
type Provider interface {
	// Name returns the name of the provider (e.g., "deepgram", "assemblyai").
	Name() string

	// Configured reports whether credentials are present. Transcribe on an
	// unconfigured provider fails with a provider error.
	Configured() bool

	// Transcribe submits the audio and returns the canonical result.
	Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error)
}

// Checker is implemented by providers that can verify their credentials
// without transcribing anything.
type Checker interface {
	Check(ctx context.Context) (*CheckResult, error)
}

// Audio is one uploaded file handed to a provider.
type Audio struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// Options are the per-request recognition settings. Empty Model and
// Language fall back to the provider defaults.
type Options struct {
	Model       string
	Language    string
	Punctuate   bool
	Diarize     bool
	SmartFormat bool
}

// DefaultOptions returns the options used when a request sets none.
func DefaultOptions() Options {
	return Options{Punctuate: true, SmartFormat: true}
}

// CheckResult is returned by a successful credential check.
type CheckResult struct {
	Message  string          `json:"message"`
	Projects json.RawMessage `json:"projects"`
}
