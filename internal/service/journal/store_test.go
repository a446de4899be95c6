package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return openSQLite(t) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("crud", func(t *testing.T) { testStoreCRUD(t, open(t)) })
			t.Run("list order", func(t *testing.T) { testStoreListOrder(t, open(t)) })
			t.Run("missing", func(t *testing.T) { testStoreMissing(t, open(t)) })
		})
	}
}

func testStoreCRUD(t *testing.T, s Store) {
	ctx := context.Background()
	created := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.UTC)
	e := Entry{ID: "e1", Title: "October 16th, 2026", Content: "Hello there.", CreatedAt: created, UpdatedAt: created}

	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, e); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create() = %v, want ErrExists", err)
	}

	got, err := s.Get(ctx, "e1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != e.Title || got.Content != e.Content || !got.CreatedAt.Equal(created) {
		t.Errorf("Get() = %+v, want %+v", got, e)
	}

	e.Title = "Renamed"
	e.Content = "Edited."
	e.UpdatedAt = created.Add(time.Hour)
	if err := s.Update(ctx, e); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = s.Get(ctx, "e1")
	if got.Title != "Renamed" || got.Content != "Edited." || !got.UpdatedAt.Equal(e.UpdatedAt) {
		t.Errorf("after update: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("update must not touch createdAt: %v", got.CreatedAt)
	}

	if err := s.Delete(ctx, "e1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func testStoreListOrder(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	// Sub-second offsets check that ordering is chronological, not textual.
	offsets := []time.Duration{0, 500 * time.Millisecond, 2 * time.Second}
	ids := []string{"oldest", "middle", "newest"}
	for i, id := range ids {
		ts := base.Add(offsets[i])
		if err := s.Create(ctx, Entry{ID: id, Content: id, CreatedAt: ts, UpdatedAt: ts}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	if len(entries) != len(want) {
		t.Fatalf("List() returned %d entries", len(entries))
	}
	for i, id := range want {
		if entries[i].ID != id {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].ID, id)
		}
	}
}

func testStoreMissing(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.Update(ctx, Entry{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() = %v, want ErrNotFound", err)
	}
	entries, err := s.List(ctx)
	if err != nil || len(entries) != 0 {
		t.Errorf("List() on empty store = %v, %v", entries, err)
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	now := time.Now().UTC()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, Entry{ID: "kept", Content: "persisted", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "kept")
	if err != nil || got.Content != "persisted" {
		t.Errorf("Get() after reopen = %+v, %v", got, err)
	}
}
