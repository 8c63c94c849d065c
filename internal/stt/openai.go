package stt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"audioscribe/internal/apperr"
)

const (
	openAIURL   = "https://api.openai.com/v1"
	openAIModel = openai.Whisper1
)

// OpenAI implements Provider with the OpenAI audio transcription API.
type OpenAI struct {
	apiKey string
	client *openai.Client
	settings
}

var (
	_ Provider = (*OpenAI)(nil)
	_ Checker  = (*OpenAI)(nil)
)

// NewOpenAI creates a Whisper provider backed by go-openai.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	s := newSettings(NameOpenAI, openAIURL, openAIModel, "", opts)
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = s.baseURL
	cfg.HTTPClient = s.httpClient
	return &OpenAI{
		apiKey:   apiKey,
		client:   openai.NewClientWithConfig(cfg),
		settings: s,
	}
}

func (p *OpenAI) Name() string { return NameOpenAI }

func (p *OpenAI) Configured() bool { return p.apiKey != "" }

func (p *OpenAI) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	if !p.Configured() {
		return nil, apperr.Provider(NameOpenAI, "missing credentials")
	}
	start := time.Now()

	model := opts.Model
	if model == "" {
		model = p.model
	}
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: audio.Filename,
		Reader:   audio.Body,
		Language: lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, openAIError(err)
	}

	// Route the typed response through the same normalizer as raw payloads.
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, apperr.Normalization(NameOpenAI, "malformed response").WithCause(err)
	}
	res, err := Normalize(NameOpenAI, raw)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("model", model).
		Int("length", len(res.Text)).
		Dur("duration", time.Since(start)).
		Msg("transcription successful")
	return res, nil
}

// Check lists the models available to the key.
func (p *OpenAI) Check(ctx context.Context) (*CheckResult, error) {
	if !p.Configured() {
		return nil, apperr.Configuration("OPENAI_API_KEY is not set")
	}
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, openAIError(err)
	}
	ids := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		ids = append(ids, m.ID)
	}
	projects, _ := json.Marshal(ids)
	return &CheckResult{Message: "OpenAI API key is valid", Projects: projects}, nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperr.ProviderStatus(NameOpenAI, apiErr.HTTPStatusCode, apiErr.Message).WithCause(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return apperr.ProviderStatus(NameOpenAI, reqErr.HTTPStatusCode, msg).WithCause(err)
	}
	return apperr.Provider(NameOpenAI, "request failed").WithCause(err)
}
