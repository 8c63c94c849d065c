package stt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"audioscribe/internal/apperr"
)

// fakeAssemblyAI serves upload and submit, then answers status checks
// from statuses in order (repeating the last one).
type fakeAssemblyAI struct {
	t        *testing.T
	statuses []string
	final    string
	polls    atomic.Int32
	submit   assemblyAIJobRequest
}

func (f *fakeAssemblyAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "aai-key" {
		f.t.Errorf("%s %s: Authorization = %q", r.Method, r.URL.Path, r.Header.Get("Authorization"))
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
		body, _ := io.ReadAll(r.Body)
		if string(body) != "audio-bytes" {
			f.t.Errorf("upload body = %q", body)
		}
		_, _ = io.WriteString(w, `{"upload_url":"https://cdn.example/upload/1"}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
		if err := json.NewDecoder(r.Body).Decode(&f.submit); err != nil {
			f.t.Errorf("decode submit: %v", err)
		}
		_, _ = io.WriteString(w, `{"id":"job-1","status":"queued"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/job-1":
		n := int(f.polls.Add(1))
		status := f.statuses[min(n, len(f.statuses))-1]
		switch status {
		case "completed":
			_, _ = io.WriteString(w, f.final)
		case "error":
			_, _ = io.WriteString(w, `{"id":"job-1","status":"error","error":"audio too short"}`)
		case "http-429", "http-503", "http-404":
			code, _ := strconv.Atoi(strings.TrimPrefix(status, "http-"))
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"error":"upstream hiccup"}`)
		default:
			_, _ = io.WriteString(w, `{"id":"job-1","status":"`+status+`"}`)
		}
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

const assemblyCompleted = `{"id":"job-1","status":"completed","text":"hello world","confidence":0.95,"language_code":"en_us","words":[]}`

func newTestAssemblyAI(t *testing.T, f *fakeAssemblyAI, opts ...Option) *AssemblyAI {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithPollInterval(time.Millisecond)}, opts...)
	return NewAssemblyAI("aai-key", opts...)
}

func TestAssemblyAI_PollsUntilCompleted(t *testing.T) {
	f := &fakeAssemblyAI{statuses: []string{"processing", "completed"}, final: assemblyCompleted}
	p := newTestAssemblyAI(t, f)

	opts := DefaultOptions()
	opts.Diarize = true
	res, err := p.Transcribe(context.Background(), testAudio("audio-bytes"), opts)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Confidence != 0.95 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := f.polls.Load(); got != 2 {
		t.Errorf("status checks = %d, want 2", got)
	}
	if f.submit.AudioURL != "https://cdn.example/upload/1" || !f.submit.SpeakerLabels || !f.submit.Punctuate {
		t.Errorf("submit body = %+v", f.submit)
	}
}

func TestAssemblyAI_JobFailed(t *testing.T) {
	f := &fakeAssemblyAI{statuses: []string{"processing", "error"}}
	p := newTestAssemblyAI(t, f)

	_, err := p.Transcribe(context.Background(), testAudio("audio-bytes"), DefaultOptions())
	e, ok := apperr.As(err)
	if !ok || e.Code != apperr.CodeProvider || e.Message != "job failed" {
		t.Fatalf("err = %v, want PROVIDER_ERROR job failed", err)
	}
	if e.Details["message"] != "audio too short" {
		t.Errorf("details = %v", e.Details)
	}
	if got := f.polls.Load(); got != 2 {
		t.Errorf("status checks = %d, want 2", got)
	}
}

func TestAssemblyAI_PollLimit(t *testing.T) {
	f := &fakeAssemblyAI{statuses: []string{"processing"}}
	p := newTestAssemblyAI(t, f, WithMaxPolls(3))

	_, err := p.Transcribe(context.Background(), testAudio("audio-bytes"), DefaultOptions())
	e, ok := apperr.As(err)
	if !ok || e.Message != "polling timed out" {
		t.Fatalf("err = %v, want polling timed out", err)
	}
	if got := f.polls.Load(); got != 3 {
		t.Errorf("status checks = %d, want 3", got)
	}
}

func TestAssemblyAI_CancelStopsPolling(t *testing.T) {
	f := &fakeAssemblyAI{statuses: []string{"queued"}}
	p := newTestAssemblyAI(t, f, WithPollInterval(20*time.Millisecond), WithMaxPolls(1000))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Transcribe(ctx, testAudio("audio-bytes"), DefaultOptions())
	if !apperr.HasCode(err, apperr.CodeProvider) {
		t.Fatalf("err = %v, want PROVIDER_ERROR", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("polling did not stop on cancellation (took %v)", elapsed)
	}
	if got := f.polls.Load(); got >= 1000 {
		t.Errorf("status checks = %d", got)
	}
}

func TestAssemblyAI_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Authentication error, API token missing/invalid"}`)
	}))
	defer srv.Close()

	_, err := NewAssemblyAI("bad", WithBaseURL(srv.URL)).Transcribe(context.Background(), testAudio("x"), DefaultOptions())
	e, ok := apperr.As(err)
	if !ok || e.Message != "invalid credentials" {
		t.Fatalf("err = %v", err)
	}
	if e.Details["message"] != "Authentication error, API token missing/invalid" {
		t.Errorf("upstream message not kept: %v", e.Details)
	}
}

func TestAssemblyAI_StatusCheckErrors(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []string
		wantErr   string
		wantPolls int32
	}{
		{name: "rate limited then completed", statuses: []string{"http-429", "processing", "completed"}, wantPolls: 3},
		{name: "server error then completed", statuses: []string{"http-503", "http-503", "completed"}, wantPolls: 3},
		{name: "not found is permanent", statuses: []string{"http-404", "completed"}, wantErr: "upstream hiccup", wantPolls: 1},
		{name: "server errors exhaust budget", statuses: []string{"http-503"}, wantErr: "upstream hiccup", wantPolls: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAssemblyAI{statuses: tt.statuses, final: assemblyCompleted}
			p := newTestAssemblyAI(t, f, WithMaxPolls(4))

			res, err := p.Transcribe(context.Background(), testAudio("audio-bytes"), DefaultOptions())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Transcribe: %v", err)
				}
				if res.Text != "hello world" {
					t.Errorf("text = %q", res.Text)
				}
			} else {
				e, ok := apperr.As(err)
				if !ok || e.Code != apperr.CodeProvider || e.Message != tt.wantErr {
					t.Fatalf("err = %v, want PROVIDER_ERROR %q", err, tt.wantErr)
				}
			}
			if got := f.polls.Load(); got != tt.wantPolls {
				t.Errorf("status checks = %d, want %d", got, tt.wantPolls)
			}
		})
	}
}

func TestJobState(t *testing.T) {
	tests := []struct {
		status   string
		want     JobState
		terminal bool
	}{
		{"queued", JobSubmitted, false},
		{"processing", JobRunning, false},
		{"completed", JobCompleted, true},
		{"error", JobFailed, true},
	}
	for _, tt := range tests {
		got := assemblyAIState(tt.status)
		if got != tt.want || got.Terminal() != tt.terminal {
			t.Errorf("%s -> %s (terminal %v)", tt.status, got, got.Terminal())
		}
	}
}
