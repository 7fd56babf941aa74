// Package store persists assembled entries in SQLite so ids can be resolved
// across packages without re-reading the source tree.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	path     TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	id       TEXT NOT NULL,
	root     TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	revision TEXT NOT NULL,
	record   JSON,
	PRIMARY KEY (path, seq)
);
CREATE INDEX IF NOT EXISTS idx_entries_id ON entries(id, priority);
CREATE INDEX IF NOT EXISTS idx_entries_root ON entries(root);
`

// Entry is one stored row. Path is the content path the entry came from;
// Seq orders several entries of the same path.
type Entry struct {
	Path     string
	Seq      int
	ID       string
	Root     string
	Priority int
	Revision string
	Record   json.RawMessage
}

// Index is the SQLite-backed entry index. It is safe for concurrent use.
type Index struct {
	db  *sql.DB
	log *slog.Logger
	mu  sync.Mutex
}

// Open opens (or creates) the index at dbPath. ":memory:" gives a private
// in-memory database. A nil logger discards output.
func Open(dbPath string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Index{db: db, log: logger}, nil
}

// Close releases the database.
func (x *Index) Close() error { return x.db.Close() }

// ReplaceRoot swaps every entry of root for entries in one transaction.
// Entries are grouped by their Path.
func (x *Index) ReplaceRoot(ctx context.Context, root string, entries []Entry) error {
	return x.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE root = ?`, root); err != nil {
			return fmt.Errorf("clear root %s: %w", root, err)
		}
		seq := map[string]int{}
		for _, e := range entries {
			e.Root = root
			e.Seq = seq[e.Path]
			seq[e.Path]++
			if err := insertOne(ctx, tx, e); err != nil {
				return err
			}
		}
		x.log.Debug("root persisted", "root", root, "entries", len(entries))
		return nil
	})
}

// RemoveRoot deletes every entry of root.
func (x *Index) RemoveRoot(ctx context.Context, root string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, err := x.db.ExecContext(ctx, `DELETE FROM entries WHERE root = ?`, root); err != nil {
		return fmt.Errorf("remove root %s: %w", root, err)
	}
	return nil
}

// All yields every entry ordered by id, then priority ascending, so for a
// given id the winning (highest priority) entry comes last. Rows are read
// before the first yield, so the loop body may query the index again.
func (x *Index) All(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		entries, err := x.list(ctx)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (x *Index) list(ctx context.Context) ([]Entry, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT path, seq, id, root, priority, revision, record
		FROM entries ORDER BY id, priority ASC, path, seq`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Resolve returns the highest-priority entry for id. Ties go to the
// lexically last path.
func (x *Index) Resolve(ctx context.Context, id string) (Entry, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT path, seq, id, root, priority, revision, record
		FROM entries WHERE id = ?
		ORDER BY priority DESC, path DESC, seq DESC LIMIT 1`, id)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Count returns the number of stored entries.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (x *Index) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertOne(ctx context.Context, tx *sql.Tx, e Entry) error {
	var record any
	if len(e.Record) > 0 {
		record = string(e.Record)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries (path, seq, id, root, priority, revision, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Path, e.Seq, e.ID, e.Root, e.Priority, e.Revision, record)
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.Path, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Entry, error) {
	var e Entry
	var record sql.NullString
	if err := s.Scan(&e.Path, &e.Seq, &e.ID, &e.Root, &e.Priority, &e.Revision, &record); err != nil {
		return Entry{}, err
	}
	if record.Valid {
		e.Record = json.RawMessage(record.String)
	}
	return e, nil
}
