// Package storage provides SQLite-backed persistence for the league blacklist.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a league is not on the blacklist.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// BlacklistEntry is one excluded league.
type BlacklistEntry struct {
	League  string
	AddedBy int64
	AddedAt time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/linewatch/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "linewatch", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blacklist (
			league   TEXT PRIMARY KEY,
			added_by INTEGER NOT NULL DEFAULT 0,
			added_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeLeague lowercases a league name and collapses its whitespace.
func NormalizeLeague(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Ban adds a league to the blacklist. Banning twice is not an error.
func (s *Storage) Ban(league string, addedBy int64) error {
	league = NormalizeLeague(league)
	if league == "" {
		return errors.New("league name must not be empty")
	}
	_, err := s.db.Exec(
		`INSERT INTO blacklist (league, added_by, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(league) DO NOTHING`,
		league, addedBy, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to ban %q: %w", league, err)
	}
	return nil
}

// Unban removes a league. It returns ErrNotFound if the league was not banned.
func (s *Storage) Unban(league string) error {
	league = NormalizeLeague(league)
	res, err := s.db.Exec(`DELETE FROM blacklist WHERE league = ?`, league)
	if err != nil {
		return fmt.Errorf("failed to unban %q: %w", league, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unban %q: %w", league, err)
	}
	if n == 0 {
		return fmt.Errorf("league %q: %w", league, ErrNotFound)
	}
	return nil
}

// IsBlacklisted reports whether the league is banned.
func (s *Storage) IsBlacklisted(league string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM blacklist WHERE league = ?`, NormalizeLeague(league)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return true, nil
}

// ListBlacklist returns all banned leagues sorted by name.
func (s *Storage) ListBlacklist() ([]BlacklistEntry, error) {
	rows, err := s.db.Query(`SELECT league, added_by, added_at FROM blacklist ORDER BY league`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var e BlacklistEntry
		var addedAt int64
		if err := rows.Scan(&e.League, &e.AddedBy, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist row: %w", err)
		}
		e.AddedAt = time.Unix(addedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearBlacklist removes every league and returns how many were removed.
func (s *Storage) ClearBlacklist() (int, error) {
	res, err := s.db.Exec(`DELETE FROM blacklist`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear blacklist: %w", err)
	}
	return int(n), nil
}

// ImportFile bans every league listed in a JSON array file, as kept by
// older deployments. A missing file is not an error.
func (s *Storage) ImportFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read blacklist file: %w", err)
	}

	var leagues []string
	if err := json.Unmarshal(data, &leagues); err != nil {
		return 0, fmt.Errorf("failed to parse blacklist file: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	imported := 0
	for _, l := range leagues {
		l = NormalizeLeague(l)
		if l == "" {
			continue
		}
		res, err := tx.Exec(
			`INSERT INTO blacklist (league, added_by, added_at) VALUES (?, 0, ?)
			 ON CONFLICT(league) DO NOTHING`,
			l, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to import %q: %w", l, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, nil
}
