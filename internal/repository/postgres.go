package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"audioscribe/internal/model"
)

// Schema is the DDL for the transcriptions table. Apply it with
// [PostgresStore.Migrate] or during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    filename           TEXT NOT NULL CHECK (filename <> ''),
    original_text      TEXT NOT NULL CHECK (original_text <> ''),
    file_size          BIGINT,
    file_type          TEXT,
    processing_time_ms BIGINT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at DESC);
`

const selectColumns = `id::text, filename, original_text, file_size, file_type, processing_time_ms, created_at, updated_at`

// DB is the subset of pgx used by [PostgresStore]. *pgxpool.Pool and
// *pgx.Conn both satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on top of the given pool or connection.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Driver() string { return "postgres" }

// Migrate creates the transcriptions table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, in model.TranscriptionInput) (*model.Transcription, error) {
	query := `
		INSERT INTO transcriptions (filename, original_text, file_size, file_type, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + selectColumns

	rec, err := scanTranscription(s.db.QueryRow(ctx, query,
		in.Filename, in.OriginalText, in.FileSize, in.FileType, in.ProcessingTimeMs,
	))
	if err != nil {
		return nil, fmt.Errorf("repository: create transcription: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Transcription, error) {
	query := `SELECT ` + selectColumns + ` FROM transcriptions ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: list transcriptions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Transcription, 0)
	for rows.Next() {
		rec, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: scan transcription: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate transcriptions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.Transcription, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + selectColumns + ` FROM transcriptions WHERE id = $1`

	rec, err := scanTranscription(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get transcription: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch model.TranscriptionPatch) (*model.Transcription, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `
		UPDATE transcriptions
		SET
			filename = COALESCE($2, filename),
			original_text = COALESCE($3, original_text),
			file_size = COALESCE($4, file_size),
			file_type = COALESCE($5, file_type),
			processing_time_ms = COALESCE($6, processing_time_ms),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + selectColumns

	rec, err := scanTranscription(s.db.QueryRow(ctx, query,
		id, patch.Filename, patch.OriginalText, patch.FileSize, patch.FileType, patch.ProcessingTimeMs,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: update transcription: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	// Malformed ids cannot match a row; report success like a missing id.
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM transcriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("repository: delete transcription: %w", err)
	}
	return nil
}

func scanTranscription(row pgx.Row) (*model.Transcription, error) {
	var rec model.Transcription
	err := row.Scan(
		&rec.ID, &rec.Filename, &rec.OriginalText,
		&rec.FileSize, &rec.FileType, &rec.ProcessingTimeMs,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
