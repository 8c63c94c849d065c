package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"audioscribe/internal/model"
)

// SupabaseConfig holds the settings of the hosted Postgres REST API.
type SupabaseConfig struct {
	// URL is the project URL (e.g. https://xyz.supabase.co).
	URL string
	// Key is the service-role or anon key, sent as apikey and Bearer token.
	Key string
	// Table defaults to "transcriptions".
	Table string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// SupabaseStore implements [Store] over the PostgREST API exposed by Supabase.
type SupabaseStore struct {
	endpoint   string
	key        string
	httpClient *http.Client
	now        func() time.Time
}

var _ Store = (*SupabaseStore)(nil)

// NewSupabaseStore creates a REST-backed store.
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	var errs []error
	if cfg.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if cfg.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("repository: invalid supabase config: %w", errors.Join(errs...))
	}
	if cfg.Table == "" {
		cfg.Table = "transcriptions"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/rest/v1/" + cfg.Table,
		key:        cfg.Key,
		httpClient: cfg.HTTPClient,
		now:        time.Now,
	}, nil
}

func (s *SupabaseStore) Driver() string { return "supabase" }

// restID accepts both numeric and string primary keys.
type restID string

func (id *restID) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*id = restID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("unsupported id %s", string(b))
	}
	*id = restID(num.String())
	return nil
}

type restRow struct {
	ID               restID    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalText     string    `json:"original_text"`
	FileSize         *int64    `json:"file_size"`
	FileType         *string   `json:"file_type"`
	ProcessingTimeMs *int64    `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (r restRow) toModel() model.Transcription {
	return model.Transcription{
		ID:               string(r.ID),
		Filename:         r.Filename,
		OriginalText:     r.OriginalText,
		FileSize:         r.FileSize,
		FileType:         r.FileType,
		ProcessingTimeMs: r.ProcessingTimeMs,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// restError is the PostgREST error body.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// invalidTextRepresentation is raised when the id is not a valid key
// (e.g. a malformed uuid); such ids cannot exist.
const invalidTextRepresentation = "22P02"

type statusError struct {
	op     string
	status int
	body   restError
	raw    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("repository: supabase %s failed (status %d): %s", e.op, e.status, e.raw)
}

func (s *SupabaseStore) Create(ctx context.Context, in model.TranscriptionInput) (*model.Transcription, error) {
	rows, err := s.do(ctx, "create", http.MethodPost, nil, in)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("repository: supabase create returned no rows")
	}
	rec := rows[0].toModel()
	return &rec, nil
}

func (s *SupabaseStore) List(ctx context.Context) ([]model.Transcription, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	rows, err := s.do(ctx, "list", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Transcription, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*model.Transcription, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)

	rows, err := s.do(ctx, "get", http.MethodGet, q, nil)
	if isInvalidID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := rows[0].toModel()
	return &rec, nil
}

func (s *SupabaseStore) Update(ctx context.Context, id string, patch model.TranscriptionPatch) (*model.Transcription, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)

	body := struct {
		model.TranscriptionPatch
		UpdatedAt time.Time `json:"updated_at"`
	}{patch, s.now().UTC()}

	rows, err := s.do(ctx, "update", http.MethodPatch, q, body)
	if isInvalidID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := rows[0].toModel()
	return &rec, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	_, err := s.do(ctx, "delete", http.MethodDelete, q, nil)
	if isInvalidID(err) {
		return nil
	}
	return err
}

func (s *SupabaseStore) do(ctx context.Context, op, method string, query url.Values, payload any) ([]restRow, error) {
	u := s.endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("repository: supabase marshal %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("repository: supabase create request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repository: supabase %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("repository: supabase read %s response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		se := &statusError{op: op, status: resp.StatusCode, raw: string(raw)}
		_ = json.Unmarshal(raw, &se.body)
		return nil, se
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var rows []restRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("repository: supabase decode %s response: %w", op, err)
	}
	return rows, nil
}

func isInvalidID(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.body.Code == invalidTextRepresentation
}
