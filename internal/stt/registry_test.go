package stt

import (
	"context"
	"testing"

	"audioscribe/internal/apperr"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string     { return s.name }
func (s stubProvider) Configured() bool { return true }
func (s stubProvider) Transcribe(context.Context, Audio, Options) (*Result, error) {
	return &Result{Text: "ok", Provider: s.name}, nil
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry("Deepgram", stubProvider{NameDeepgram}, stubProvider{NameAssemblyAI})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Default() != NameDeepgram {
		t.Errorf("Default = %s", r.Default())
	}

	p, err := r.Get("")
	if err != nil || p.Name() != NameDeepgram {
		t.Errorf("Get(\"\") = %v, %v", p, err)
	}
	p, err = r.Get(" AssemblyAI ")
	if err != nil || p.Name() != NameAssemblyAI {
		t.Errorf("Get(AssemblyAI) = %v, %v", p, err)
	}

	_, err = r.Get("fpt")
	if !apperr.HasCode(err, apperr.CodeValidation) {
		t.Errorf("unknown provider err = %v", err)
	}
	if got := r.Names(); len(got) != 2 || got[0] != NameAssemblyAI {
		t.Errorf("Names = %v", got)
	}
}

func TestNewRegistry_UnknownDefault(t *testing.T) {
	if _, err := NewRegistry("google", stubProvider{NameDeepgram}); err == nil {
		t.Fatal("expected error")
	}
}
