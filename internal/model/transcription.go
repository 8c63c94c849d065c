package model

import "time"

// Transcription represents a persisted transcription record.
type Transcription struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalText     string    `json:"original_text"`
	FileSize         *int64    `json:"file_size,omitempty"`
	FileType         *string   `json:"file_type,omitempty"`
	ProcessingTimeMs *int64    `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TranscriptionInput is the payload for creating a record.
type TranscriptionInput struct {
	Filename         string  `json:"filename" binding:"required"`
	OriginalText     string  `json:"original_text" binding:"required"`
	FileSize         *int64  `json:"file_size,omitempty" binding:"omitempty,min=0"`
	FileType         *string `json:"file_type,omitempty"`
	ProcessingTimeMs *int64  `json:"processing_time_ms,omitempty" binding:"omitempty,min=0"`
}

// TranscriptionPatch carries the fields of an update. Nil fields are left
// unchanged.
type TranscriptionPatch struct {
	Filename         *string `json:"filename,omitempty" binding:"omitempty,min=1"`
	OriginalText     *string `json:"original_text,omitempty" binding:"omitempty,min=1"`
	FileSize         *int64  `json:"file_size,omitempty" binding:"omitempty,min=0"`
	FileType         *string `json:"file_type,omitempty"`
	ProcessingTimeMs *int64  `json:"processing_time_ms,omitempty" binding:"omitempty,min=0"`
}

// Apply copies the provided fields onto t.
func (p TranscriptionPatch) Apply(t *Transcription) {
	if p.Filename != nil {
		t.Filename = *p.Filename
	}
	if p.OriginalText != nil {
		t.OriginalText = *p.OriginalText
	}
	if p.FileSize != nil {
		t.FileSize = p.FileSize
	}
	if p.FileType != nil {
		t.FileType = p.FileType
	}
	if p.ProcessingTimeMs != nil {
		t.ProcessingTimeMs = p.ProcessingTimeMs
	}
}
