// Package store persists session history, generated diagrams, and saved
// user instructions in a SQLite database under the user's data directory.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveInstructions replaces the saved user instructions.
func (s *Store) SaveInstructions(text string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO instructions (id, text, updated_at)
		VALUES (1, ?, ?)`, text, now)
	return err
}

// LoadInstructions returns the saved instructions, or "" when none exist.
func (s *Store) LoadInstructions() (string, error) {
	var text string
	err := s.db.QueryRow("SELECT text FROM instructions WHERE id = 1").Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return text, err
}

// SessionRecord is one finished or running session's usage summary.
type SessionRecord struct {
	SessionID string
	Mode      string // "chat" or "voice"
	Model     string
	StartedAt time.Time
	EndedAt   time.Time
	Cost      float64
	Tokens    int64

	// ByCategory is populated for voice sessions, where per-category
	// counts are tracked; chat sessions only carry totals.
	ByCategory map[config.Category]int64
}

// BeginSession records a new session row.
func (s *Store) BeginSession(sessionID, mode, model string, startedAt time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO sessions (session_id, mode, model, started_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, mode, model, startedAt.UTC().Format(time.RFC3339))
	return err
}

// FinishSession writes the final usage totals for a session.
func (s *Store) FinishSession(rec SessionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	endedAt := ""
	if !rec.EndedAt.IsZero() {
		endedAt = rec.EndedAt.UTC().Format(time.RFC3339)
	}
	if _, err := tx.Exec(`UPDATE sessions SET ended_at = ?, cost = ?, tokens = ?
		WHERE session_id = ?`,
		endedAt, rec.Cost, rec.Tokens, rec.SessionID); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM session_tokens WHERE session_id = ?", rec.SessionID); err != nil {
		return err
	}
	for _, c := range config.Categories {
		n := rec.ByCategory[c]
		if n == 0 {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO session_tokens (session_id, category, tokens)
			VALUES (?, ?, ?)`, rec.SessionID, string(c), n); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Sessions returns all recorded sessions, newest first.
func (s *Store) Sessions() ([]SessionRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, mode, model, started_at, ended_at, cost, tokens
		FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []SessionRecord
	idx := make(map[string]int)
	for rows.Next() {
		var rec SessionRecord
		var startStr string
		var endStr sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.Mode, &rec.Model, &startStr, &endStr, &rec.Cost, &rec.Tokens); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, startStr)
		if endStr.Valid && endStr.String != "" {
			rec.EndedAt, _ = time.Parse(time.RFC3339, endStr.String)
		}
		rec.ByCategory = make(map[config.Category]int64)
		idx[rec.SessionID] = len(recs)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tokenRows, err := s.db.Query("SELECT session_id, category, tokens FROM session_tokens")
	if err != nil {
		return nil, err
	}
	defer func() { _ = tokenRows.Close() }()

	for tokenRows.Next() {
		var sid, category string
		var tokens int64
		if err := tokenRows.Scan(&sid, &category, &tokens); err != nil {
			return nil, err
		}
		if i, ok := idx[sid]; ok {
			recs[i].ByCategory[config.Category(category)] = tokens
		}
	}
	return recs, tokenRows.Err()
}

// SaveDiagram appends a generated diagram to the history.
func (s *Store) SaveDiagram(sessionID string, st diagram.State) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT INTO diagrams (session_id, kind, source, created_at)
		VALUES (?, ?, ?, ?)`, sessionID, string(st.Kind), st.Source, now)
	return err
}

// DiagramRecord is one saved diagram.
type DiagramRecord struct {
	ID        int64
	SessionID string
	State     diagram.State
	CreatedAt time.Time
}

// Diagrams returns up to limit saved diagrams, newest first. A limit of
// zero or less returns everything.
func (s *Store) Diagrams(limit int) ([]DiagramRecord, error) {
	query := "SELECT id, session_id, kind, source, created_at FROM diagrams ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []DiagramRecord
	for rows.Next() {
		var rec DiagramRecord
		var sid sql.NullString
		var kind, createdStr string
		if err := rows.Scan(&rec.ID, &sid, &kind, &rec.State.Source, &createdStr); err != nil {
			return nil, err
		}
		if sid.Valid {
			rec.SessionID = sid.String
		}
		rec.State.Kind = diagram.Kind(kind)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SessionCount returns the number of recorded sessions.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}
