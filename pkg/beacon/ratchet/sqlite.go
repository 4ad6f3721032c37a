package ratchet

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists evaluator state and run history to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite-backed store.
// The path should be a file path (e.g., "./ratchet.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ratchet_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_tighten_ts TEXT NOT NULL,
			baseline_flipped INTEGER NOT NULL,
			change_log BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ratchet_runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			success INTEGER NOT NULL,
			metrics BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// LoadState implements Store.
func (s *SQLiteStore) LoadState() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return State{}, ErrStoreClosed
	}

	var (
		lastTighten string
		flipped     int
		changeLog   []byte
	)
	err := s.db.QueryRow(`
		SELECT last_tighten_ts, baseline_flipped, change_log
		FROM ratchet_state WHERE id = 1
	`).Scan(&lastTighten, &flipped, &changeLog)

	if err == sql.ErrNoRows {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}

	var st State
	if lastTighten != "" {
		st.LastTightenTs, err = time.Parse(time.RFC3339Nano, lastTighten)
		if err != nil {
			return State{}, fmt.Errorf("parse last tighten timestamp: %w", err)
		}
	}
	st.BaselineFlipped = flipped != 0
	if err := json.Unmarshal(changeLog, &st.ChangeLog); err != nil {
		return State{}, fmt.Errorf("decode change log: %w", err)
	}
	return st, nil
}

// SaveState implements Store.
func (s *SQLiteStore) SaveState(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	changeLog, err := json.Marshal(st.ChangeLog)
	if err != nil {
		return fmt.Errorf("encode change log: %w", err)
	}

	lastTighten := ""
	if !st.LastTightenTs.IsZero() {
		lastTighten = st.LastTightenTs.UTC().Format(time.RFC3339Nano)
	}
	flipped := 0
	if st.BaselineFlipped {
		flipped = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO ratchet_state (id, last_tighten_ts, baseline_flipped, change_log)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_tighten_ts = excluded.last_tighten_ts,
			baseline_flipped = excluded.baseline_flipped,
			change_log = excluded.change_log
	`, lastTighten, flipped, changeLog)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// AppendRun implements Store.
func (s *SQLiteStore) AppendRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	success := 0
	if run.Success {
		success = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO ratchet_runs (timestamp, success, metrics)
		VALUES (?, ?, ?)
	`, run.Timestamp.UTC().Format(time.RFC3339Nano), success, metrics)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `SELECT timestamp, success, metrics FROM ratchet_runs ORDER BY seq`
	var args []any
	if limit > 0 {
		// Take the newest rows, then restore oldest-first order.
		query = `
			SELECT timestamp, success, metrics FROM (
				SELECT seq, timestamp, success, metrics
				FROM ratchet_runs ORDER BY seq DESC LIMIT ?
			) ORDER BY seq
		`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			timestamp string
			success   int
			metrics   []byte
		)
		if err := rows.Scan(&timestamp, &success, &metrics); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		run.Success = success != 0
		if err := json.Unmarshal(metrics, &run.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
