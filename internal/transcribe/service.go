// Package transcribe implements the upload-to-record pipeline: validate the
// upload, run it through a speech provider and persist the transcript.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"audioscribe/internal/apperr"
	"audioscribe/internal/model"
	"audioscribe/internal/observe"
	"audioscribe/internal/repository"
	"audioscribe/internal/stt"
)

// Providers resolves a provider by name; empty selects the default.
type Providers interface {
	Get(name string) (stt.Provider, error)
}

// Limits bounds accepted uploads.
type Limits struct {
	MaxSize           int64
	AllowedExtensions []string
}

// Request carries the per-call provider selection and options.
type Request struct {
	Provider string
	Options  stt.Options
}

// Outcome is the result of a successful transcription. Record is nil when
// persistence failed.
type Outcome struct {
	Result      *stt.Result
	Record      *model.Transcription
	Provider    string
	Saved       bool
	ContentType string
	Elapsed     time.Duration
}

// Service runs transcription requests.
type Service struct {
	providers Providers
	store     repository.Store
	metrics   *observe.Metrics
	limits    Limits
	allowed   map[string]struct{}
	logger    zerolog.Logger
}

// NewService wires the pipeline. All dependencies are required.
func NewService(providers Providers, store repository.Store, metrics *observe.Metrics, limits Limits, logger zerolog.Logger) *Service {
	allowed := make(map[string]struct{}, len(limits.AllowedExtensions))
	for _, ext := range limits.AllowedExtensions {
		allowed[Extension("x."+ext)] = struct{}{}
	}
	return &Service{
		providers: providers,
		store:     store,
		metrics:   metrics,
		limits:    limits,
		allowed:   allowed,
		logger:    logger.With().Str("component", "transcribe").Logger(),
	}
}

// Validate runs the upload checks in order; the first failure wins. It
// makes no network calls.
func (s *Service) Validate(up Upload, providerName string) (stt.Provider, error) {
	if up == nil {
		return nil, apperr.Validation("no file")
	}
	if up.Size() > s.limits.MaxSize {
		return nil, apperr.TooLarge(up.Size(), s.limits.MaxSize)
	}
	ext := Extension(up.Filename())
	if _, ok := s.allowed[ext]; !ok {
		return nil, apperr.Validation("unsupported format").
			WithDetail("extension", ext).
			WithDetail("allowed", s.limits.AllowedExtensions)
	}

	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	if !p.Configured() {
		return nil, apperr.Configuration(fmt.Sprintf("%s credentials are not configured", p.Name())).
			WithDetail("provider", p.Name())
	}
	return p, nil
}

// Handle validates the upload, transcribes it and stores the transcript.
// A store failure does not fail the call; it is reported through
// Outcome.Saved, the log and the store failure metric.
func (s *Service) Handle(ctx context.Context, up Upload, req Request) (*Outcome, error) {
	provider, err := s.Validate(up, req.Provider)
	if err != nil {
		return nil, err
	}

	f, err := up.Open()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	resolved := ContentTypeFor(Extension(up.Filename()))
	storedType := fileType(up.ContentType(), f, resolved)

	log := s.logger.With().
		Str("provider", provider.Name()).
		Str("filename", up.Filename()).
		Int64("size", up.Size()).
		Logger()
	log.Info().Str("content_type", resolved).Msg("transcription started")

	start := time.Now()
	res, err := provider.Transcribe(ctx, stt.Audio{
		Body:        f,
		Size:        up.Size(),
		ContentType: resolved,
		Filename:    up.Filename(),
	}, req.Options)
	elapsed := time.Since(start)

	if err != nil {
		code := string(apperr.CodeInternal)
		if ae, ok := apperr.As(err); ok {
			code = string(ae.Code)
		}
		s.metrics.RecordProviderCall(ctx, provider.Name(), elapsed.Seconds(), code)
		s.metrics.RecordTranscription(ctx, provider.Name(), "failed")
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("transcription failed")
		return nil, err
	}
	s.metrics.RecordProviderCall(ctx, provider.Name(), elapsed.Seconds(), "")

	out := &Outcome{
		Result:      res,
		Provider:    provider.Name(),
		ContentType: storedType,
		Elapsed:     elapsed,
	}

	size := up.Size()
	ms := elapsed.Milliseconds()
	// Persist even if the client has disconnected meanwhile.
	rec, err := s.store.Create(context.WithoutCancel(ctx), model.TranscriptionInput{
		Filename:         up.Filename(),
		OriginalText:     res.Text,
		FileSize:         &size,
		FileType:         &storedType,
		ProcessingTimeMs: &ms,
	})
	if err != nil {
		s.metrics.RecordStoreFailure(ctx, s.store.Driver(), "create")
		s.metrics.RecordTranscription(ctx, provider.Name(), "unsaved")
		log.Warn().Err(err).Str("driver", s.store.Driver()).Msg("transcription not saved")
		return out, nil
	}

	out.Record = rec
	out.Saved = true
	s.metrics.RecordTranscription(ctx, provider.Name(), "saved")
	log.Info().
		Str("transcription_id", rec.ID).
		Dur("elapsed", elapsed).
		Int("length", len(res.Text)).
		Msg("transcription saved")
	return out, nil
}
