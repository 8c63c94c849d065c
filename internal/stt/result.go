package stt

import "encoding/json"

// Result is the canonical transcription shape, independent of provider.
type Result struct {
	Text          string          `json:"text"`
	Confidence    float64         `json:"confidence"`
	Words         []Word          `json:"words"`
	Language      string          `json:"language"`
	Duration      *float64        `json:"duration"`
	Utterances    json.RawMessage `json:"utterances"`
	SpeakerLabels json.RawMessage `json:"speaker_labels"`
	Provider      string          `json:"provider"`
}

// Word is per-word timing metadata. Times are in seconds.
type Word struct {
	Word           string  `json:"word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence,omitempty"`
	Speaker        string  `json:"speaker,omitempty"`
	PunctuatedWord string  `json:"punctuated_word,omitempty"`
}
