package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed-width so that created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the durable entry store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at DESC);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, e Entry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries(id, title, content, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		e.ID, e.Title, e.Content, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return expectRow(res, ErrExists)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at
		 FROM entries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, e Entry) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Content, formatTime(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return expectRow(res, ErrNotFound)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return expectRow(res, ErrNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var created, updated string
	if err := sc.Scan(&e.ID, &e.Title, &e.Content, &created, &updated); err != nil {
		return Entry{}, err
	}
	var err error
	if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Entry{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return Entry{}, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func expectRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
