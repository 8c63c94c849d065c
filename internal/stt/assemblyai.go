package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"audioscribe/internal/apperr"
)

const assemblyAIURL = "https://api.assemblyai.com"

// JobState is the lifecycle state of a remote transcription job.
type JobState string

const (
	JobSubmitted JobState = "SUBMITTED"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
)

// Terminal reports whether polling stops at this state.
func (s JobState) Terminal() bool { return s == JobCompleted || s == JobFailed }

// assemblyAIState maps AssemblyAI status strings onto JobState.
func assemblyAIState(status string) JobState {
	switch status {
	case "completed":
		return JobCompleted
	case "error":
		return JobFailed
	case "processing":
		return JobRunning
	default:
		return JobSubmitted
	}
}

var errJobPending = errors.New("transcription job not finished")

// AssemblyAI implements Provider with AssemblyAI's asynchronous API: upload
// the audio, create a job, then poll until the job is terminal.
type AssemblyAI struct {
	apiKey string
	settings
}

var (
	_ Provider = (*AssemblyAI)(nil)
	_ Checker  = (*AssemblyAI)(nil)
)

// NewAssemblyAI creates an AssemblyAI provider. Polling is bounded by
// WithPollInterval and WithMaxPolls.
func NewAssemblyAI(apiKey string, opts ...Option) *AssemblyAI {
	return &AssemblyAI{
		apiKey:   apiKey,
		settings: newSettings(NameAssemblyAI, assemblyAIURL, "", "", opts),
	}
}

func (p *AssemblyAI) Name() string { return NameAssemblyAI }

func (p *AssemblyAI) Configured() bool { return p.apiKey != "" }

func (p *AssemblyAI) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	if !p.Configured() {
		return nil, apperr.Provider(NameAssemblyAI, "missing credentials")
	}
	start := time.Now()

	uploadURL, err := p.upload(ctx, audio)
	if err != nil {
		return nil, err
	}

	job, err := p.submit(ctx, uploadURL, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("job_id", job.ID).Str("state", string(assemblyAIState(job.Status))).Msg("job submitted")

	raw, err := p.poll(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	res, err := Normalize(NameAssemblyAI, raw)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("job_id", job.ID).
		Float64("confidence", res.Confidence).
		Int("length", len(res.Text)).
		Dur("duration", time.Since(start)).
		Msg("transcription successful")
	return res, nil
}

func (p *AssemblyAI) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, r)
	if err != nil {
		return nil, apperr.Provider(NameAssemblyAI, "failed to create request").WithCause(err)
	}
	req.Header.Set("Authorization", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (p *AssemblyAI) upload(ctx context.Context, audio Audio) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/upload", audio.Body)
	if err != nil {
		return "", apperr.Provider(NameAssemblyAI, "failed to create request").WithCause(err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	if audio.Size > 0 {
		req.ContentLength = audio.Size
	}

	body, err := p.send(NameAssemblyAI, req)
	if err != nil {
		return "", err
	}
	var resp struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.UploadURL == "" {
		return "", apperr.Provider(NameAssemblyAI, "upload returned no url").WithCause(err)
	}
	return resp.UploadURL, nil
}

type assemblyAIJobRequest struct {
	AudioURL      string `json:"audio_url"`
	LanguageCode  string `json:"language_code,omitempty"`
	Punctuate     bool   `json:"punctuate"`
	FormatText    bool   `json:"format_text"`
	SpeakerLabels bool   `json:"speaker_labels"`
	SpeechModel   string `json:"speech_model,omitempty"`
}

func (p *AssemblyAI) submit(ctx context.Context, uploadURL string, opts Options) (*assemblyAITranscript, error) {
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	model := opts.Model
	if model == "" {
		model = p.model
	}
	payload, err := json.Marshal(assemblyAIJobRequest{
		AudioURL:      uploadURL,
		LanguageCode:  lang,
		Punctuate:     opts.Punctuate,
		FormatText:    opts.SmartFormat,
		SpeakerLabels: opts.Diarize,
		SpeechModel:   model,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/v2/transcript", payload)
	if err != nil {
		return nil, err
	}
	body, err := p.send(NameAssemblyAI, req)
	if err != nil {
		return nil, err
	}

	var job assemblyAITranscript
	if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
		return nil, apperr.Provider(NameAssemblyAI, "job submission returned no id").WithCause(err)
	}
	return &job, nil
}

// poll checks the job until it is terminal and returns the raw completed
// transcript. The first check happens immediately.
func (p *AssemblyAI) poll(ctx context.Context, id string) ([]byte, error) {
	checks := 0
	op := func() ([]byte, error) {
		checks++
		req, err := p.newRequest(ctx, http.MethodGet, "/v2/transcript/"+id, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		body, err := p.send(NameAssemblyAI, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			if ae, ok := apperr.As(err); ok {
				if status, ok := ae.Details["status"].(int); ok && !retryableStatus(status) {
					return nil, backoff.Permanent(err)
				}
			}
			p.logger.Warn().Err(err).Str("job_id", id).Int("check", checks).Msg("status check failed, retrying")
			return nil, err
		}

		var job assemblyAITranscript
		if err := json.Unmarshal(body, &job); err != nil {
			return nil, backoff.Permanent(apperr.Normalization(NameAssemblyAI, "malformed job status").WithCause(err))
		}

		state := assemblyAIState(job.Status)
		p.logger.Debug().Str("job_id", id).Int("check", checks).Str("state", string(state)).Msg("job status")
		switch {
		case !state.Terminal():
			return nil, errJobPending
		case state == JobCompleted:
			return body, nil
		default:
			e := apperr.Provider(NameAssemblyAI, "job failed").WithDetail("job_id", id)
			if job.Error != "" {
				e.WithDetail("message", job.Error)
			}
			return nil, backoff.Permanent(e)
		}
	}

	raw, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.pollInterval)),
		backoff.WithMaxTries(uint(p.maxPolls)),
		backoff.WithMaxElapsedTime(time.Duration(p.maxPolls)*p.pollInterval+p.httpClient.Timeout),
	)
	if err == nil {
		return raw, nil
	}
	if ctx.Err() != nil {
		return nil, apperr.Provider(NameAssemblyAI, "polling cancelled").
			WithDetail("job_id", id).
			WithCause(ctx.Err())
	}
	if _, ok := apperr.As(err); ok {
		return nil, err
	}
	if errors.Is(err, errJobPending) {
		p.logger.Warn().Str("job_id", id).Int("checks", checks).Msg("job did not finish within poll limit")
		return nil, apperr.Provider(NameAssemblyAI, "polling timed out").
			WithDetail("job_id", id).
			WithDetail("checks", checks)
	}
	return nil, apperr.Provider(NameAssemblyAI, "polling failed").WithDetail("job_id", id).WithCause(err)
}

// retryableStatus reports whether a failed status check is worth repeating.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Check lists the most recent transcript to verify the API key.
func (p *AssemblyAI) Check(ctx context.Context) (*CheckResult, error) {
	if !p.Configured() {
		return nil, apperr.Configuration("ASSEMBLYAI_API_KEY is not set")
	}
	req, err := p.newRequest(ctx, http.MethodGet, "/v2/transcript?limit=1", nil)
	if err != nil {
		return nil, err
	}
	if _, err := p.send(NameAssemblyAI, req); err != nil {
		return nil, err
	}
	return &CheckResult{Message: "AssemblyAI API key is valid", Projects: json.RawMessage("[]")}, nil
}
