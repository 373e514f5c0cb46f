package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	insertEntrySQL = `INSERT INTO entries (user_id, position, money_type, category, title, value, date)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	selectEntriesSQL = `SELECT user_id, money_type, category, title, value, date
FROM entries ORDER BY user_id, position`
	insertCategorySQL = `INSERT INTO categories (position, name) VALUES (?, ?)`
	selectCategorySQL = `SELECT name FROM categories ORDER BY position`
	deleteEntriesSQL  = `DELETE FROM entries`
	deleteCategorySQL = `DELETE FROM categories`
)

// SQLiteRepository stores ledger snapshots in a SQLite database. Entry order
// per user is kept in the position column so positions survive a reload.
type SQLiteRepository struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.db == nil {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

// Load implements Store.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.Snapshot{}, ErrClosed
	}

	rows, err := r.db.QueryContext(ctx, selectEntriesSQL)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	snap := core.Snapshot{Entries: make(map[core.UserID][]core.Entry)}
	for rows.Next() {
		var userID int64
		var moneyType, category, title, value, dt string
		if err := rows.Scan(&userID, &moneyType, &category, &title, &value, &dt); err != nil {
			return core.Snapshot{}, fmt.Errorf("scan entry: %w", err)
		}
		e, err := rowToEntry(moneyType, category, title, value, dt)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("user %d: %w", userID, err)
		}
		id := core.UserID(userID)
		snap.Entries[id] = append(snap.Entries[id], e)
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate entries: %w", err)
	}

	cats, err := r.loadCategories(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap.Categories = cats

	return snap, nil
}

func (r *SQLiteRepository) loadCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, selectCategorySQL)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// Save implements Store. The previous contents are replaced in a single
// transaction, so a failed save leaves the last good snapshot in place.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteEntriesSQL); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteCategorySQL); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}

	insertEntry, err := tx.PrepareContext(ctx, insertEntrySQL)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer insertEntry.Close()

	count := 0
	for user, entries := range snap.Entries {
		for i, e := range entries {
			_, err := insertEntry.ExecContext(ctx, int64(user), i,
				e.Kind.String(), e.Category, e.Title, e.Amount.String(), e.Date.String())
			if err != nil {
				return fmt.Errorf("insert entry %d for user %s: %w", i+1, user, err)
			}
			count++
		}
	}

	for i, name := range snap.Categories {
		if _, err := tx.ExecContext(ctx, insertCategorySQL, i, name); err != nil {
			return fmt.Errorf("insert category %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"users", len(snap.Entries),
		"entries", count,
		"categories", len(snap.Categories))
	return nil
}

// Path returns the database file backing the repository.
func (r *SQLiteRepository) Path() string {
	return r.path
}

func rowToEntry(moneyType, category, title, value, date string) (core.Entry, error) {
	kind, err := core.ParseKind(moneyType)
	if err != nil {
		return core.Entry{}, err
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, value)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Entry{}, err
	}
	return core.NewEntry(kind, category, title, amount, d)
}
