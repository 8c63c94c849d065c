package stt

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"audioscribe/internal/apperr"
)

// Provider names accepted by Normalize and the registry.
const (
	NameDeepgram   = "deepgram"
	NameAssemblyAI = "assemblyai"
	NameOpenAI     = "openai"
	NameGoogle     = "google"
)

// Normalize converts a raw provider response into a Result. The transcript
// text is mandatory; every other field defaults to empty when absent.
func Normalize(provider string, raw []byte) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch provider {
	case NameDeepgram:
		res, err = normalizeDeepgram(raw)
	case NameAssemblyAI:
		res, err = normalizeAssemblyAI(raw)
	case NameOpenAI:
		res, err = normalizeWhisper(raw)
	case NameGoogle:
		res, err = normalizeGoogle(raw)
	default:
		return nil, apperr.Normalization(provider, "unknown provider")
	}
	if err != nil {
		return nil, err
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return nil, apperr.Normalization(provider, "transcript text missing")
	}
	if res.Words == nil {
		res.Words = []Word{}
	}
	res.Provider = provider
	return res, nil
}

func decode(provider string, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Normalization(provider, "malformed response").WithCause(err)
	}
	return nil
}

// rawOrNil drops JSON null so absent passthrough fields stay nil.
func rawOrNil(m json.RawMessage) json.RawMessage {
	if len(m) == 0 || bytes.Equal(bytes.TrimSpace(m), []byte("null")) {
		return nil
	}
	return m
}

type deepgramResponse struct {
	Metadata struct {
		Duration *float64 `json:"duration"`
	} `json:"metadata"`
	Results *struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word           string  `json:"word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Confidence     float64 `json:"confidence"`
					Speaker        *int    `json:"speaker"`
					PunctuatedWord string  `json:"punctuated_word"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances json.RawMessage `json:"utterances"`
	} `json:"results"`
}

func normalizeDeepgram(raw []byte) (*Result, error) {
	var resp deepgramResponse
	if err := decode(NameDeepgram, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil || len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, apperr.Provider(NameDeepgram, "no alternatives")
	}

	ch := resp.Results.Channels[0]
	best := ch.Alternatives[0]
	words := make([]Word, 0, len(best.Words))
	for _, w := range best.Words {
		word := Word{
			Word:           w.Word,
			Start:          w.Start,
			End:            w.End,
			Confidence:     w.Confidence,
			PunctuatedWord: w.PunctuatedWord,
		}
		if w.Speaker != nil {
			word.Speaker = strconv.Itoa(*w.Speaker)
		}
		words = append(words, word)
	}

	return &Result{
		Text:       best.Transcript,
		Confidence: best.Confidence,
		Words:      words,
		Language:   ch.DetectedLanguage,
		Duration:   resp.Metadata.Duration,
		Utterances: rawOrNil(resp.Results.Utterances),
	}, nil
}

// assemblyAITranscript is the transcript resource returned by both the
// submit and poll endpoints.
type assemblyAITranscript struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Error         string          `json:"error"`
	Text          *string         `json:"text"`
	Confidence    *float64        `json:"confidence"`
	LanguageCode  string          `json:"language_code"`
	AudioDuration *float64        `json:"audio_duration"`
	Utterances    json.RawMessage `json:"utterances"`
	SpeakerLabels json.RawMessage `json:"speaker_labels"`
	Words         []struct {
		Text       string  `json:"text"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Confidence float64 `json:"confidence"`
		Speaker    *string `json:"speaker"`
	} `json:"words"`
}

func normalizeAssemblyAI(raw []byte) (*Result, error) {
	var t assemblyAITranscript
	if err := decode(NameAssemblyAI, raw, &t); err != nil {
		return nil, err
	}

	res := &Result{
		Language:      t.LanguageCode,
		Duration:      t.AudioDuration,
		Utterances:    rawOrNil(t.Utterances),
		SpeakerLabels: rawOrNil(t.SpeakerLabels),
		Words:         make([]Word, 0, len(t.Words)),
	}
	if t.Text != nil {
		res.Text = *t.Text
	}
	if t.Confidence != nil {
		res.Confidence = *t.Confidence
	}
	// Word timings are reported in milliseconds.
	for _, w := range t.Words {
		word := Word{
			Word:       w.Text,
			Start:      float64(w.Start) / 1000,
			End:        float64(w.End) / 1000,
			Confidence: w.Confidence,
		}
		if w.Speaker != nil {
			word.Speaker = *w.Speaker
		}
		res.Words = append(res.Words, word)
	}
	return res, nil
}

type whisperResponse struct {
	Language string   `json:"language"`
	Duration *float64 `json:"duration"`
	Text     string   `json:"text"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func normalizeWhisper(raw []byte) (*Result, error) {
	var resp whisperResponse
	if err := decode(NameOpenAI, raw, &resp); err != nil {
		return nil, err
	}

	res := &Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Words:    make([]Word, 0, len(resp.Words)),
	}
	for _, w := range resp.Words {
		res.Words = append(res.Words, Word{Word: w.Word, Start: w.Start, End: w.End})
	}

	// Whisper reports no confidence; derive one from segment log-probabilities.
	if len(resp.Segments) > 0 {
		var sum float64
		for _, s := range resp.Segments {
			sum += math.Exp(s.AvgLogprob)
		}
		res.Confidence = math.Min(1, sum/float64(len(resp.Segments)))
	}
	return res, nil
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				StartTime  string  `json:"startTime"`
				EndTime    string  `json:"endTime"`
				Confidence float64 `json:"confidence"`
				SpeakerTag int     `json:"speakerTag"`
			} `json:"words"`
		} `json:"alternatives"`
		LanguageCode  string `json:"languageCode"`
		ResultEndTime string `json:"resultEndTime"`
	} `json:"results"`
	TotalBilledTime string `json:"totalBilledTime"`
}

func normalizeGoogle(raw []byte) (*Result, error) {
	var resp googleResponse
	if err := decode(NameGoogle, raw, &resp); err != nil {
		return nil, err
	}

	res := &Result{Words: []Word{}}
	var (
		parts    []string
		confSum  float64
		confSeen int
	)
	// Long audio is split into consecutive results; join their best alternatives.
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			parts = append(parts, t)
		}
		if alt.Confidence > 0 {
			confSum += alt.Confidence
			confSeen++
		}
		for _, w := range alt.Words {
			word := Word{
				Word:       w.Word,
				Start:      googleSeconds(w.StartTime),
				End:        googleSeconds(w.EndTime),
				Confidence: w.Confidence,
			}
			if w.SpeakerTag > 0 {
				word.Speaker = strconv.Itoa(w.SpeakerTag)
			}
			res.Words = append(res.Words, word)
		}
		if res.Language == "" {
			res.Language = r.LanguageCode
		}
		if end := googleSeconds(r.ResultEndTime); end > 0 {
			res.Duration = &end
		}
	}

	res.Text = strings.Join(parts, " ")
	if confSeen > 0 {
		res.Confidence = confSum / float64(confSeen)
	}
	return res, nil
}

// googleSeconds parses protobuf duration strings such as "1.500s".
func googleSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d.Seconds()
}
