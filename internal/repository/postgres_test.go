package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"audioscribe/internal/model"
)

// ---------------------------------------------------------------------------
// Mock DB types
// ---------------------------------------------------------------------------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return r.data[r.idx-1], nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return assign(r.data[r.idx-1], dest)
}

type mockDB struct {
	queryRowFunc func(sql string, args ...any) pgx.Row
	queryFunc    func(sql string, args ...any) (pgx.Rows, error)
	execFunc     func(sql string, args ...any) (pgconn.CommandTag, error)

	lastSQL  string
	lastArgs []any
}

func (m *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL, m.lastArgs = sql, args
	return m.queryRowFunc(sql, args...)
}

func (m *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.lastSQL, m.lastArgs = sql, args
	return m.queryFunc(sql, args...)
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.lastSQL, m.lastArgs = sql, args
	return m.execFunc(sql, args...)
}

// assign copies row values into scan destinations of matching types.
func assign(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case **int64:
			if v == nil {
				*d = nil
			} else {
				n := v.(int64)
				*d = &n
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

const testUUID = "7b1f3c1e-8f0e-4c1e-9a55-3c2a4f9e0b11"

func sampleRow(id, filename string, created time.Time) []any {
	return []any{id, filename, "hello world", int64(10240), "audio/wav", nil, created, created}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPostgresStore_Migrate(t *testing.T) {
	db := &mockDB{execFunc: func(string, ...any) (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }}
	if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(db.lastSQL, "CREATE TABLE IF NOT EXISTS transcriptions") {
		t.Errorf("unexpected DDL: %s", db.lastSQL)
	}
}

func TestPostgresStore_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &mockDB{queryRowFunc: func(string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(dest ...any) error {
			return assign(sampleRow(testUUID, "sample.wav", now), dest)
		}}
	}}

	size := int64(10240)
	rec, err := NewPostgresStore(db).Create(context.Background(), model.TranscriptionInput{
		Filename: "sample.wav", OriginalText: "hello world", FileSize: &size,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != testUUID {
		t.Errorf("id = %s", rec.ID)
	}
	if rec.ProcessingTimeMs != nil {
		t.Errorf("expected nil processing_time_ms, got %v", *rec.ProcessingTimeMs)
	}
	if !strings.Contains(db.lastSQL, "INSERT INTO transcriptions") || !strings.Contains(db.lastSQL, "RETURNING") {
		t.Errorf("unexpected SQL: %s", db.lastSQL)
	}
	if db.lastArgs[0] != "sample.wav" || db.lastArgs[1] != "hello world" {
		t.Errorf("unexpected args %v", db.lastArgs)
	}
}

func TestPostgresStore_List(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := &mockRows{data: [][]any{
		sampleRow(testUUID, "b.wav", t1.Add(time.Minute)),
		sampleRow(testUUID, "a.wav", t1),
	}}
	db := &mockDB{queryFunc: func(string, ...any) (pgx.Rows, error) { return rows, nil }}

	list, err := NewPostgresStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Filename != "b.wav" {
		t.Errorf("unexpected list %+v", list)
	}
	if !strings.Contains(db.lastSQL, "ORDER BY created_at DESC") {
		t.Errorf("list must order by created_at desc: %s", db.lastSQL)
	}
	if !rows.closed {
		t.Error("rows were not closed")
	}
}

func TestPostgresStore_ListEmptyIsNotNil(t *testing.T) {
	db := &mockDB{queryFunc: func(string, ...any) (pgx.Rows, error) { return &mockRows{}, nil }}
	list, err := NewPostgresStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestPostgresStore_ListIterationError(t *testing.T) {
	db := &mockDB{queryFunc: func(string, ...any) (pgx.Rows, error) {
		return &mockRows{err: errors.New("conn reset")}, nil
	}}
	if _, err := NewPostgresStore(db).List(context.Background()); err == nil {
		t.Fatal("expected iteration error")
	}
}

func TestPostgresStore_GetByID_NotFound(t *testing.T) {
	db := &mockDB{queryRowFunc: func(string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
	}}
	_, err := NewPostgresStore(db).GetByID(context.Background(), testUUID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_MalformedIDSkipsQuery(t *testing.T) {
	db := &mockDB{}
	s := NewPostgresStore(db)
	ctx := context.Background()

	if _, err := s.GetByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID err = %v", err)
	}
	if _, err := s.Update(ctx, "not-a-uuid", model.TranscriptionPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update err = %v", err)
	}
	if err := s.Delete(ctx, "not-a-uuid"); err != nil {
		t.Errorf("Delete err = %v", err)
	}
	if db.lastSQL != "" {
		t.Errorf("no query expected, got %s", db.lastSQL)
	}
}

func TestPostgresStore_UpdatePassesNilForUnsetFields(t *testing.T) {
	now := time.Now().UTC()
	db := &mockDB{queryRowFunc: func(string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(dest ...any) error {
			return assign(sampleRow(testUUID, "renamed.wav", now), dest)
		}}
	}}

	name := "renamed.wav"
	rec, err := NewPostgresStore(db).Update(context.Background(), testUUID, model.TranscriptionPatch{Filename: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Filename != "renamed.wav" {
		t.Errorf("filename = %s", rec.Filename)
	}
	if !strings.Contains(db.lastSQL, "updated_at = now()") {
		t.Errorf("update must refresh updated_at: %s", db.lastSQL)
	}
	if p, ok := db.lastArgs[2].(*string); !ok || p != nil {
		t.Errorf("original_text arg = %#v, want nil *string", db.lastArgs[2])
	}
}

func TestPostgresStore_DeleteWrapsError(t *testing.T) {
	db := &mockDB{execFunc: func(string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("boom")
	}}
	err := NewPostgresStore(db).Delete(context.Background(), testUUID)
	if err == nil || !strings.Contains(err.Error(), "delete transcription") {
		t.Errorf("unexpected err %v", err)
	}
}
