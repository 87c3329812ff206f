package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS generations (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	generation TEXT NOT NULL,
	url        TEXT NOT NULL,
	status     INTEGER NOT NULL,
	header     BLOB NOT NULL,
	body       BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	PRIMARY KEY (generation, url)
);`

// SQLiteStorage persists generations in a SQLite database so they survive
// restarts.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	// A single connection keeps writes serialized and makes ":memory:" usable.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: migrate sqlite: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Open returns the named generation, creating it on first use.
func (s *SQLiteStorage) Open(ctx context.Context, name string) (Generation, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO generations (name, created_at) VALUES (?, ?)`,
		name, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("cache: open generation %q: %w", name, err)
	}
	return &sqliteGeneration{db: s.db, name: name}, nil
}

// Has reports whether the named generation exists.
func (s *SQLiteStorage) Has(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM generations WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("cache: lookup generation %q: %w", name, err)
	}
	return n > 0, nil
}

// Names lists generation names in sorted order.
func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM generations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("cache: list generations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("cache: scan generation: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a generation and all of its entries in one transaction.
func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("cache: begin delete: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("cache: delete generation %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE generation = ?`, name); err != nil {
		return false, fmt.Errorf("cache: delete entries of %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("cache: commit delete: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

type sqliteGeneration struct {
	db   *sql.DB
	name string
}

func (g *sqliteGeneration) Name() string {
	return g.name
}

func (g *sqliteGeneration) Match(ctx context.Context, key string) (*Entry, bool) {
	var (
		status   int
		header   []byte
		body     []byte
		storedAt int64
	)
	err := g.db.QueryRowContext(ctx,
		`SELECT status, header, body, stored_at FROM entries WHERE generation = ? AND url = ?`,
		g.name, key).Scan(&status, &header, &body, &storedAt)
	if err != nil {
		return nil, false
	}

	h := make(http.Header)
	if err := json.Unmarshal(header, &h); err != nil {
		return nil, false
	}
	return &Entry{
		URL:      key,
		Status:   status,
		Header:   h,
		Body:     body,
		StoredAt: time.UnixMilli(storedAt),
	}, true
}

func (g *sqliteGeneration) Put(ctx context.Context, entry *Entry) error {
	return g.PutAll(ctx, []*Entry{entry})
}

func (g *sqliteGeneration) PutAll(ctx context.Context, entries []*Entry) error {
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return err
		}
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin put: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM generations WHERE name = ?`, g.name).Scan(&n); err != nil {
		return fmt.Errorf("cache: lookup generation %q: %w", g.name, err)
	}
	if n == 0 {
		return ErrGenerationDeleted
	}

	for _, entry := range entries {
		header, err := json.Marshal(entry.Header)
		if err != nil {
			return fmt.Errorf("cache: encode header for %s: %w", entry.URL, err)
		}
		body := entry.Body
		if body == nil {
			body = []byte{}
		}
		storedAt := entry.StoredAt
		if storedAt.IsZero() {
			storedAt = time.Now()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entries (generation, url, status, header, body, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			g.name, entry.URL, entry.Status, header, body, storedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("cache: put %s: %w", entry.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit put: %w", err)
	}
	return nil
}

func (g *sqliteGeneration) Delete(ctx context.Context, key string) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM entries WHERE generation = ? AND url = ?`, g.name, key)
	if err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

func (g *sqliteGeneration) Keys(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT url FROM entries WHERE generation = ? ORDER BY url`, g.name)
	if err != nil {
		return nil, fmt.Errorf("cache: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("cache: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Ensure SQLiteStorage implements Storage
var _ Storage = (*SQLiteStorage)(nil)
