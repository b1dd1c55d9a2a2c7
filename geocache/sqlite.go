package geocache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
create table if not exists codes (
	code      text primary key,
	locator   text not null,
	latitude  real not null,
	longitude real not null
);
create table if not exists regions (
	region text primary key
);`

// SQLiteStore keeps entries in a single SQLite file. Each region is written
// in one transaction.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("geocache: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("geocache: ensure dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("geocache: open sqlite: %w", err)
	}
	// One connection keeps writes serialized without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"pragma journal_mode=WAL", "pragma busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("geocache: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("geocache: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get returns the entry for code. A missing code is (Entry{}, false, nil).
func (s *SQLiteStore) Get(code string) (Entry, bool, error) {
	if s.isClosed() {
		return Entry{}, false, ErrClosed
	}
	code = normalizeCode(code)
	if code == "" {
		return Entry{}, false, nil
	}
	e := Entry{Code: code}
	err := s.db.QueryRow(`select locator, latitude, longitude from codes where code = ?`, code).
		Scan(&e.Locator, &e.Latitude, &e.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("geocache: get %s: %w", code, err)
	}
	return e, true, nil
}

// RegionLoaded reports whether the region listing was stored before.
func (s *SQLiteStore) RegionLoaded(region Region) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	var one int
	err := s.db.QueryRow(`select 1 from regions where region = ?`, region.Key()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("geocache: region %s: %w", region.Key(), err)
	}
	return true, nil
}

// PutRegion stores every entry of a region plus its loaded marker.
func (s *SQLiteStore) PutRegion(region Region, entries []Entry) (err error) {
	if s.isClosed() {
		return ErrClosed
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("geocache: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.Prepare(`insert or replace into codes (code, locator, latitude, longitude) values (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("geocache: prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		code := normalizeCode(e.Code)
		if code == "" {
			continue
		}
		if _, err = stmt.Exec(code, e.Locator, e.Latitude, e.Longitude); err != nil {
			return fmt.Errorf("geocache: insert %s: %w", code, err)
		}
	}
	if _, err = tx.Exec(`insert or ignore into regions (region) values (?)`, region.Key()); err != nil {
		return fmt.Errorf("geocache: mark region %s: %w", region.Key(), err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("geocache: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored codes.
func (s *SQLiteStore) Count() (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	var n int64
	if err := s.db.QueryRow(`select count(*) from codes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("geocache: count: %w", err)
	}
	return n, nil
}

// Close closes the database. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
