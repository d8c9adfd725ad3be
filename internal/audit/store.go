package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed audit trail. Every register, dispose,
// provide, and process operation on an observed store appends one row.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		store TEXT NOT NULL,
		kind TEXT NOT NULL,
		hint TEXT,
		weight REAL NOT NULL DEFAULT 0,
		ok INTEGER NOT NULL DEFAULT 1,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_store ON events(store);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init audit schema: %w", err)
		}
	}

	return nil
}

func (s *Store) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, store, kind, hint, weight, ok, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Store, ev.Kind, ev.Hint, ev.Weight, boolToInt(ev.OK), ev.Error, ev.CreatedAt)

	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Recent returns the newest events, newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, store, kind, hint, weight, ok, error, created_at
		FROM events ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []Event

	for rows.Next() {
		var ev Event
		var hint, errMsg sql.NullString
		var ok int

		if err := rows.Scan(&ev.ID, &ev.Store, &ev.Kind, &hint, &ev.Weight, &ok, &errMsg, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		if hint.Valid {
			ev.Hint = hint.String
		}
		if errMsg.Valid {
			ev.Error = errMsg.String
		}
		ev.OK = ok != 0

		events = append(events, ev)
	}

	return events, rows.Err()
}

func (s *Store) GetStats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		ByKind:  make(map[string]int64),
		ByStore: make(map[string]int64),
	}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), 0) as misses
		FROM events
	`).Scan(&stats.Total, &stats.Misses)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("stats by kind: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind stat: %w", err)
		}
		stats.ByKind[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	storeRows, err := s.db.Query(`SELECT store, COUNT(*) FROM events GROUP BY store`)
	if err != nil {
		return nil, fmt.Errorf("stats by store: %w", err)
	}
	defer storeRows.Close()

	for storeRows.Next() {
		var store string
		var n int64
		if err := storeRows.Scan(&store, &n); err != nil {
			return nil, fmt.Errorf("scan store stat: %w", err)
		}
		stats.ByStore[store] = n
	}

	return stats, storeRows.Err()
}

// Purge removes events older than the retention window.
func (s *Store) Purge(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.Exec("DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

func (s *Store) Close() error {
	s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
