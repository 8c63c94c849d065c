package model

import "testing"

func TestTranscriptionPatch_ApplyOnlyProvidedFields(t *testing.T) {
	size := int64(10)
	rec := Transcription{ID: "1", Filename: "a.wav", OriginalText: "hello", FileSize: &size}

	text := "hello world"
	TranscriptionPatch{OriginalText: &text}.Apply(&rec)

	if rec.OriginalText != "hello world" {
		t.Errorf("original_text = %q", rec.OriginalText)
	}
	if rec.Filename != "a.wav" {
		t.Errorf("filename changed to %q", rec.Filename)
	}
	if rec.FileSize == nil || *rec.FileSize != 10 {
		t.Errorf("file_size changed to %v", rec.FileSize)
	}
}
