// Package store caches file reports in SQLite so unchanged files are not
// parsed again on the next run.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the report cache.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS reports (
  path            TEXT PRIMARY KEY,
  hash            TEXT NOT NULL,
  imports         TEXT NOT NULL,
  calls           TEXT NOT NULL,
  analyzed_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);
`

// Lookup returns the cached report for path if it was stored for the same
// content hash. A miss returns (nil, nil).
func (s *Store) Lookup(path, hash string) (*Report, error) {
	var (
		r       Report
		imports string
		calls   string
		at      sql.NullTime
	)
	err := s.db.QueryRow(
		`SELECT path, hash, imports, calls, analyzed_at FROM reports WHERE path = ? AND hash = ?`,
		path, hash,
	).Scan(&r.Path, &r.Hash, &imports, &calls, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup report %s: %w", path, err)
	}
	r.Imports = unmarshalList(imports)
	r.Calls = unmarshalList(calls)
	if at.Valid {
		r.AnalyzedAt = at.Time
	}
	return &r, nil
}

// Save inserts or replaces the report for r.Path.
func (s *Store) Save(r *Report) error {
	if err := saveReport(s.db, r); err != nil {
		return fmt.Errorf("save report %s: %w", r.Path, err)
	}
	return nil
}

// Delete removes the cached report for path, if any.
func (s *Store) Delete(path string) error {
	if _, err := s.db.Exec(`DELETE FROM reports WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete report %s: %w", path, err)
	}
	return nil
}

// Purge removes every cached report. Metadata is kept.
func (s *Store) Purge() error {
	if _, err := s.db.Exec(`DELETE FROM reports`); err != nil {
		return fmt.Errorf("purge reports: %w", err)
	}
	return nil
}

// Count returns the number of cached reports.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// GetMetadata returns the value stored under key, or "" if unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveReport(db execer, r *Report) error {
	at := r.AnalyzedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.Exec(
		`INSERT INTO reports (path, hash, imports, calls, analyzed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   hash = excluded.hash, imports = excluded.imports,
		   calls = excluded.calls, analyzed_at = excluded.analyzed_at`,
		r.Path, r.Hash, marshalList(r.Imports), marshalList(r.Calls), at,
	)
	return err
}
