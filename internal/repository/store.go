package repository

import (
	"context"
	"errors"

	"audioscribe/internal/model"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("transcription not found")

// Store is the row store holding the transcriptions table. Implementations
// assign ids and timestamps; callers never do.
type Store interface {
	// Create inserts a new record and returns it with id and timestamps set.
	Create(ctx context.Context, in model.TranscriptionInput) (*model.Transcription, error)

	// List returns all records ordered by created_at descending.
	List(ctx context.Context) ([]model.Transcription, error)

	// GetByID returns one record or ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Transcription, error)

	// Update applies the patch, refreshes updated_at and returns the new
	// state, or ErrNotFound.
	Update(ctx context.Context, id string, patch model.TranscriptionPatch) (*model.Transcription, error)

	// Delete removes a record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Driver names the backing implementation (memory, postgres, supabase).
	Driver() string
}
