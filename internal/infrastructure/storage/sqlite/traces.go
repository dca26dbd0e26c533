package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

var _ output.TraceStore = (*TraceStore)(nil)

const (
	defaultListLimit = 50
	// Fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// TraceStore archives one row per conversation; saving again replaces it.
type TraceStore struct {
	db *sql.DB
}

func NewTraceStore(dbPath string) (*TraceStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &TraceStore{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TraceStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *TraceStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS traces (
			conversation_id TEXT PRIMARY KEY,
			page_url TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			entry_count INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_updated ON traces(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *TraceStore) Save(ctx context.Context, rec entity.TraceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO traces (conversation_id, page_url, started_at, updated_at, entry_count, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			page_url = excluded.page_url,
			updated_at = excluded.updated_at,
			entry_count = excluded.entry_count,
			payload = excluded.payload`,
		rec.ConversationID,
		rec.PageURL,
		formatTime(rec.StartedAt),
		formatTime(rec.UpdatedAt),
		rec.EntryCount,
		rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("save trace %s: %w", rec.ConversationID, err)
	}
	return nil
}

func (s *TraceStore) Get(ctx context.Context, id string) (*entity.TraceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, page_url, started_at, updated_at, entry_count, payload
		FROM traces WHERE conversation_id = ?`, id)

	rec, err := scanRecord(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrTraceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", id, err)
	}
	return rec, nil
}

// List returns the most recently updated traces first, without payloads.
func (s *TraceStore) List(ctx context.Context, limit int) ([]entity.TraceRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, page_url, started_at, updated_at, entry_count
		FROM traces ORDER BY updated_at DESC, conversation_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []entity.TraceRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan, false)
		if err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *TraceStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRecord(scan func(dest ...any) error, withPayload bool) (*entity.TraceRecord, error) {
	var (
		rec              entity.TraceRecord
		started, updated string
	)
	dest := []any{&rec.ConversationID, &rec.PageURL, &started, &updated, &rec.EntryCount}
	if withPayload {
		dest = append(dest, &rec.Payload)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
