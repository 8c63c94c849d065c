package stt

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audioscribe/internal/apperr"
)

const (
	defaultTimeout      = 10 * time.Minute
	defaultPollInterval = time.Second
	defaultMaxPolls     = 600
	previewLimit        = 500
)

// Option configures a provider. Options that do not apply to a provider
// are ignored by it.
type Option func(*settings)

type settings struct {
	baseURL      string
	model        string
	language     string
	httpClient   *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration
	maxPolls     int
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithLanguage sets the default language tag.
func WithLanguage(language string) Option {
	return func(s *settings) {
		if language != "" {
			s.language = language
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithPollInterval sets the delay between job status checks.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxPolls bounds the number of job status checks.
func WithMaxPolls(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxPolls = n
		}
	}
}

func newSettings(name, baseURL, model, language string, opts []Option) settings {
	s := settings{
		baseURL:      baseURL,
		model:        model,
		language:     language,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		logger:       zerolog.Nop(),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, o := range opts {
		o(&s)
	}
	s.logger = s.logger.With().Str("provider", name).Logger()
	return s
}

// send executes req and returns the body of a 2xx response. Transport
// failures and non-2xx statuses become provider errors.
func (s settings) send(provider string, req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Provider(provider, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Provider(provider, "failed to read response body").WithCause(err)
	}

	s.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("preview", preview(body)).
		Msg("provider response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := upstreamMessage(body)
		s.logger.Warn().Int("status", resp.StatusCode).Str("message", msg).Msg("provider returned error status")
		return nil, apperr.ProviderStatus(provider, resp.StatusCode, msg).
			WithCause(fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode))
	}
	return body, nil
}

func preview(body []byte) string {
	if len(body) > previewLimit {
		return string(body[:previewLimit]) + "..."
	}
	return string(body)
}

// upstreamMessage pulls a human-readable message out of an error body.
// Providers disagree on the field name.
func upstreamMessage(body []byte) string {
	var fields struct {
		ErrMsg  string          `json:"err_msg"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		switch {
		case fields.ErrMsg != "":
			return fields.ErrMsg
		case len(fields.Error) > 0:
			var s string
			if json.Unmarshal(fields.Error, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(fields.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if fields.Message != "" {
			return fields.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
