package stt

import (
	"context"

	"github.com/rs/zerolog"

	"audioscribe/internal/config"
)

// NewRegistryFromConfig creates every supported provider from configuration.
// Providers without credentials are registered unconfigured so requests for
// them fail with a configuration error instead of "unknown provider".
func NewRegistryFromConfig(ctx context.Context, cfg config.STTConfig, logger zerolog.Logger) (*Registry, error) {
	common := []Option{
		WithTimeout(cfg.Timeout),
		WithLogger(logger.With().Str("component", "stt").Logger()),
	}
	with := func(extra ...Option) []Option {
		return append(append([]Option{}, common...), extra...)
	}

	deepgram := NewDeepgram(cfg.DeepgramAPIKey, with(
		WithBaseURL(cfg.DeepgramURL),
		WithModel(cfg.DeepgramModel),
		WithLanguage(cfg.DeepgramLanguage),
	)...)

	assembly := NewAssemblyAI(cfg.AssemblyAIAPIKey, with(
		WithBaseURL(cfg.AssemblyAIURL),
		WithPollInterval(cfg.PollInterval),
		WithMaxPolls(cfg.PollMaxAttempts),
	)...)

	whisper := NewOpenAI(cfg.OpenAIAPIKey, with(
		WithBaseURL(cfg.OpenAIURL),
		WithModel(cfg.OpenAIModel),
	)...)

	google, err := NewGoogle(ctx, cfg.GoogleProjectID, cfg.GoogleKeyFile, common...)
	if err != nil {
		return nil, err
	}

	for _, p := range []Provider{deepgram, assembly, whisper, google} {
		logger.Info().Str("provider", p.Name()).Bool("configured", p.Configured()).Msg("stt provider registered")
	}

	return NewRegistry(cfg.Provider, deepgram, assembly, whisper, google)
}
