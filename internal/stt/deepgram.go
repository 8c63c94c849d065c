package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"audioscribe/internal/apperr"
)

const (
	deepgramURL      = "https://api.deepgram.com"
	deepgramModel    = "nova-2"
	deepgramLanguage = "en"
)

// Deepgram implements Provider with Deepgram's pre-recorded audio API.
// One request carries the audio and returns the transcript inline.
type Deepgram struct {
	apiKey string
	settings
}

var (
	_ Provider = (*Deepgram)(nil)
	_ Checker  = (*Deepgram)(nil)
)

// NewDeepgram creates a Deepgram provider. An empty apiKey yields an
// unconfigured provider.
func NewDeepgram(apiKey string, opts ...Option) *Deepgram {
	return &Deepgram{
		apiKey:   apiKey,
		settings: newSettings(NameDeepgram, deepgramURL, deepgramModel, deepgramLanguage, opts),
	}
}

func (p *Deepgram) Name() string { return NameDeepgram }

func (p *Deepgram) Configured() bool { return p.apiKey != "" }

// Transcribe sends audio to /v1/listen and returns the best alternative of
// the first channel.
func (p *Deepgram) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	if !p.Configured() {
		return nil, apperr.Provider(NameDeepgram, "missing credentials")
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.listenURL(opts), audio.Body)
	if err != nil {
		return nil, apperr.Provider(NameDeepgram, "failed to create request").WithCause(err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", audio.ContentType)
	if audio.Size > 0 {
		req.ContentLength = audio.Size
	}

	p.logger.Info().
		Str("filename", audio.Filename).
		Int64("size", audio.Size).
		Str("content_type", audio.ContentType).
		Msg("sending audio")

	body, err := p.send(NameDeepgram, req)
	if err != nil {
		return nil, err
	}

	res, err := Normalize(NameDeepgram, body)
	if err != nil {
		return nil, err
	}
	if res.Language == "" {
		res.Language = p.languageFor(opts)
	}

	p.logger.Info().
		Float64("confidence", res.Confidence).
		Int("length", len(res.Text)).
		Dur("duration", time.Since(start)).
		Msg("transcription successful")
	return res, nil
}

func (p *Deepgram) listenURL(opts Options) string {
	model := opts.Model
	if model == "" {
		model = p.model
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("language", p.languageFor(opts))
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("diarize", strconv.FormatBool(opts.Diarize))
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	if opts.Diarize {
		q.Set("utterances", "true")
	}
	return p.baseURL + "/v1/listen?" + q.Encode()
}

func (p *Deepgram) languageFor(opts Options) string {
	if opts.Language != "" {
		return opts.Language
	}
	return p.language
}

// Check lists the projects visible to the API key.
func (p *Deepgram) Check(ctx context.Context) (*CheckResult, error) {
	if !p.Configured() {
		return nil, apperr.Configuration("DEEPGRAM_API_KEY is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/projects", nil)
	if err != nil {
		return nil, apperr.Provider(NameDeepgram, "failed to create request").WithCause(err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)

	body, err := p.send(NameDeepgram, req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Projects json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.Normalization(NameDeepgram, "malformed projects response").WithCause(err)
	}
	projects := resp.Projects
	if len(bytes.TrimSpace(projects)) == 0 {
		projects = json.RawMessage("[]")
	}
	return &CheckResult{Message: "Deepgram API key is valid", Projects: projects}, nil
}
