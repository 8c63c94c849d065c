package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"audioscribe/internal/model"
)

type memoryEntry struct {
	rec model.Transcription
	seq uint64
}

// MemoryStore keeps records in process memory. Used for local development
// and tests; contents are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryEntry
	seq     uint64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) Create(_ context.Context, in model.TranscriptionInput) (*model.Transcription, error) {
	now := s.now().UTC()
	rec := model.Transcription{
		ID:               uuid.New().String(),
		Filename:         in.Filename,
		OriginalText:     in.OriginalText,
		FileSize:         in.FileSize,
		FileType:         in.FileType,
		ProcessingTimeMs: in.ProcessingTimeMs,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	rec = cloneRecord(rec)

	s.mu.Lock()
	s.seq++
	s.records[rec.ID] = &memoryEntry{rec: rec, seq: s.seq}
	s.mu.Unlock()

	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Transcription, error) {
	s.mu.Lock()
	entries := make([]memoryEntry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, *e)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].rec.CreatedAt.Equal(entries[j].rec.CreatedAt) {
			return entries[i].rec.CreatedAt.After(entries[j].rec.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	out := make([]model.Transcription, len(entries))
	for i, e := range entries {
		out[i] = cloneRecord(e.rec)
	}
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec := cloneRecord(e.rec)
	return &rec, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch model.TranscriptionPatch) (*model.Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(&e.rec)
	e.rec = cloneRecord(e.rec)
	e.rec.UpdatedAt = s.now().UTC()
	rec := cloneRecord(e.rec)
	return &rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

// cloneRecord copies rec including the values behind its optional fields,
// so records handed out never alias stored state.
func cloneRecord(rec model.Transcription) model.Transcription {
	rec.FileSize = clonePtr(rec.FileSize)
	rec.FileType = clonePtr(rec.FileType)
	rec.ProcessingTimeMs = clonePtr(rec.ProcessingTimeMs)
	return rec
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
