package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"audioscribe/internal/apperr"
)

const (
	googleURL      = "https://speech.googleapis.com"
	googleModel    = "latest_long"
	googleLanguage = "en-US"
	googleScope    = "https://www.googleapis.com/auth/cloud-platform"
)

// Google implements Provider with the Cloud Speech-to-Text v1 REST API.
type Google struct {
	projectID string
	apiKey    string
	oauth     bool
	settings
}

var _ Provider = (*Google)(nil)

// IsGoogleAPIKey reports whether keyData looks like an API key rather than
// service account credentials.
func IsGoogleAPIKey(keyData string) bool {
	k := strings.TrimSpace(keyData)
	return len(k) == 39 && strings.HasPrefix(k, "AIzaSy")
}

// NewGoogle creates a Google provider. keyData can be either:
//   - an API key (39 characters, starts with "AIzaSy")
//   - a path to a service account JSON key file
//   - the service account JSON itself
//
// Empty keyData yields an unconfigured provider.
func NewGoogle(ctx context.Context, projectID, keyData string, opts ...Option) (*Google, error) {
	s := newSettings(NameGoogle, googleURL, googleModel, googleLanguage, opts)
	p := &Google{projectID: projectID, settings: s}

	keyData = strings.TrimSpace(keyData)
	switch {
	case keyData == "":
		return p, nil
	case IsGoogleAPIKey(keyData):
		p.apiKey = keyData
		s.logger.Info().Msg("using API key authentication")
		return p, nil
	}

	jsonData := []byte(keyData)
	if !strings.HasPrefix(keyData, "{") {
		data, err := os.ReadFile(keyData)
		if err != nil {
			return nil, fmt.Errorf("stt: read google key file %q: %w", keyData, err)
		}
		jsonData = data
	}

	creds, err := google.CredentialsFromJSON(ctx, jsonData, googleScope)
	if err != nil {
		return nil, fmt.Errorf("stt: google credentials: %w", err)
	}
	if p.projectID == "" {
		p.projectID = creds.ProjectID
	}

	// The oauth2 transport wraps the configured client's transport.
	base := s.httpClient
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), creds.TokenSource)
	client.Timeout = base.Timeout
	p.httpClient = client
	p.oauth = true
	s.logger.Info().Str("project", p.projectID).Msg("using service account authentication")
	return p, nil
}

func (p *Google) Name() string { return NameGoogle }

func (p *Google) Configured() bool { return p.apiKey != "" || p.oauth }

type googleRequest struct {
	Config googleConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type googleConfig struct {
	Encoding                   string             `json:"encoding"`
	SampleRateHertz            int                `json:"sampleRateHertz,omitempty"`
	LanguageCode               string             `json:"languageCode"`
	EnableAutomaticPunctuation bool               `json:"enableAutomaticPunctuation"`
	EnableWordTimeOffsets      bool               `json:"enableWordTimeOffsets"`
	EnableWordConfidence       bool               `json:"enableWordConfidence"`
	Model                      string             `json:"model,omitempty"`
	DiarizationConfig          *googleDiarization `json:"diarizationConfig,omitempty"`
}

type googleDiarization struct {
	EnableSpeakerDiarization bool `json:"enableSpeakerDiarization"`
}

// Transcribe sends the audio inline (base64) to speech:recognize.
func (p *Google) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	if !p.Configured() {
		return nil, apperr.Provider(NameGoogle, "missing credentials")
	}
	start := time.Now()

	audioBytes, err := io.ReadAll(audio.Body)
	if err != nil {
		return nil, apperr.Provider(NameGoogle, "failed to read audio").WithCause(err)
	}

	encoding, sampleRate := googleAudioConfig(filepath.Ext(audio.Filename))
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	model := opts.Model
	if model == "" {
		model = p.model
	}

	var body googleRequest
	body.Config = googleConfig{
		Encoding:                   encoding,
		SampleRateHertz:            sampleRate,
		LanguageCode:               lang,
		EnableAutomaticPunctuation: opts.Punctuate,
		EnableWordTimeOffsets:      true,
		EnableWordConfidence:       true,
		Model:                      model,
	}
	if opts.Diarize {
		body.Config.DiarizationConfig = &googleDiarization{EnableSpeakerDiarization: true}
	}
	body.Audio.Content = base64.StdEncoding.EncodeToString(audioBytes)

	reqJSON, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	apiURL := p.baseURL + "/v1/speech:recognize"
	if p.apiKey != "" {
		apiURL += "?key=" + url.QueryEscape(p.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, apperr.Provider(NameGoogle, "failed to create request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.oauth && p.projectID != "" {
		req.Header.Set("x-goog-user-project", p.projectID)
	}

	p.logger.Info().
		Str("filename", audio.Filename).
		Int("size", len(audioBytes)).
		Str("encoding", encoding).
		Msg("calling speech:recognize")

	respBody, err := p.send(NameGoogle, req)
	if err != nil {
		return nil, err
	}

	res, err := Normalize(NameGoogle, respBody)
	if err != nil {
		return nil, err
	}
	if res.Language == "" {
		res.Language = lang
	}

	p.logger.Info().
		Float64("confidence", res.Confidence).
		Int("length", len(res.Text)).
		Dur("duration", time.Since(start)).
		Msg("transcription successful")
	return res, nil
}

// googleAudioConfig determines encoding and sample rate from the file
// extension. Zero sample rate lets the API read it from the header.
func googleAudioConfig(fileExt string) (string, int) {
	switch strings.ToLower(fileExt) {
	case ".wav":
		return "LINEAR16", 0
	case ".mp3":
		return "MP3", 44100
	case ".ogg":
		return "OGG_OPUS", 48000
	case ".webm":
		return "WEBM_OPUS", 48000
	case ".flac":
		return "FLAC", 0
	default:
		return "ENCODING_UNSPECIFIED", 0
	}
}
