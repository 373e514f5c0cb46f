package storage

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
)

func entry(t *testing.T, kind core.Kind, category, title, amount, date string) core.Entry {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	e, err := core.NewEntry(kind, category, title, decimal.RequireFromString(amount), d)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "finbot.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_EmptyLoad(t *testing.T) {
	repo := newRepo(t)
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Entries) != 0 || len(snap.Categories) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	want := core.Snapshot{
		Entries: map[core.UserID][]core.Entry{
			42: {
				entry(t, core.Income, "other", "salary", "1000", "2024-01-05"),
				entry(t, core.Expense, "Food", "lunch", "12.50", "2024-01-03"),
			},
			-7: {
				entry(t, core.Expense, "utilities", "power bill", "0.1", "2023-12-31"),
			},
		},
		Categories: []string{"food", "transportation", "entertainment", "utilities", "other", "books"},
	}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for id, entries := range want.Entries {
		if !core.EqualEntries(got.Entries[id], entries) {
			t.Errorf("user %d: got %v, want %v", id, got.Entries[id], entries)
		}
	}
	if !slices.Equal(got.Categories, want.Categories) {
		t.Errorf("categories = %v, want %v", got.Categories, want.Categories)
	}
}

func TestSQLiteRepository_SaveReplaces(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	first := core.Snapshot{Entries: map[core.UserID][]core.Entry{
		1: {entry(t, core.Expense, "food", "a", "1", "2024-01-01")},
		2: {entry(t, core.Expense, "food", "b", "2", "2024-01-01")},
	}}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := core.Snapshot{Entries: map[core.UserID][]core.Entry{
		1: {},
	}}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 0 {
		t.Fatalf("expected no entries after replace, got %v", got.Entries)
	}
}

func TestSQLiteRepository_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finbot.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	snap := core.Snapshot{Entries: map[core.UserID][]core.Entry{
		9: {entry(t, core.Income, "other", "gift", "25", "2024-02-29")},
	}}
	if err := repo.Save(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if err := repo.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Load() after Close error = %v, want ErrClosed", err)
	}

	reopened, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !core.EqualEntries(got.Entries[9], snap.Entries[9]) {
		t.Fatalf("got %v after reopen", got.Entries)
	}

	v, dirty, err := SchemaVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("SchemaVersion() = %d, %v, %v", v, dirty, err)
	}
}
