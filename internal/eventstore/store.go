// Package eventstore records the recording timeline and committed
// transcripts in SQLite.
package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/internal/types"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite-backed timeline. A Store opened with an empty path
// accepts writes and discards them.
type Store struct {
	db    *sql.DB
	cfg   config.EventStoreConfig
	clock func() time.Time
}

// Open initializes the event store according to config.
func Open(ctx context.Context, cfg config.EventStoreConfig) (*Store, error) {
	s := &Store{cfg: cfg, clock: time.Now}
	if cfg.Path == "" {
		return s, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the engine and dispatcher write from different goroutines.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.Prune(ctx); err != nil {
		slog.Warn("event store prune on start failed", "error", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS session_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recording_id TEXT NOT NULL,
    session_id TEXT,
    kind TEXT NOT NULL,
    detail TEXT,
    at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_recording ON session_events(recording_id, at_ms);
CREATE TABLE IF NOT EXISTS transcripts (
    id TEXT PRIMARY KEY,
    session_id TEXT,
    text TEXT NOT NULL,
    confidence REAL,
    route TEXT,
    created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, created_at_ms);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSessionEvent appends one lifecycle entry.
func (s *Store) RecordSessionEvent(ctx context.Context, ev types.SessionEvent) error {
	if s.db == nil {
		return nil
	}
	if ev.AtMs <= 0 {
		ev.AtMs = s.clock().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events(recording_id, session_id, kind, detail, at_ms) VALUES(?, ?, ?, ?, ?)`,
		ev.RecordingID, ev.SessionID, ev.Kind, ev.Detail, ev.AtMs)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// RecordTranscript stores a committed transcript.
func (s *Store) RecordTranscript(ctx context.Context, rec types.TranscriptRecord) error {
	if s.db == nil {
		return nil
	}
	if rec.CreatedAt <= 0 {
		rec.CreatedAt = s.clock().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts(id, session_id, text, confidence, route, created_at_ms)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.SessionID, rec.Text, rec.Confidence, rec.Route, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// ListSessionEvents returns a recording's timeline, oldest first.
func (s *Store) ListSessionEvents(ctx context.Context, recordingID string, limit int) ([]types.SessionEvent, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT recording_id, session_id, kind, detail, at_ms
		 FROM session_events WHERE recording_id = ? ORDER BY at_ms ASC, id ASC LIMIT ?`, recordingID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var events []types.SessionEvent
	for rows.Next() {
		var e types.SessionEvent
		var sessionID, detail sql.NullString
		if err := rows.Scan(&e.RecordingID, &sessionID, &e.Kind, &detail, &e.AtMs); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		e.SessionID, e.Detail = sessionID.String, detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListTranscripts returns transcripts of one backend session, oldest first.
func (s *Store) ListTranscripts(ctx context.Context, sessionID string, limit int) ([]types.TranscriptRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, text, confidence, route, created_at_ms
		 FROM transcripts WHERE session_id = ? ORDER BY created_at_ms ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []types.TranscriptRecord
	for rows.Next() {
		var r types.TranscriptRecord
		var session, route sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&r.ID, &session, &r.Text, &confidence, &route, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		r.SessionID, r.Route, r.Confidence = session.String, route.String, confidence.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune applies the configured retention.
func (s *Store) Prune(ctx context.Context) (err error) {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UnixMilli()
		if _, err = tx.ExecContext(ctx, `DELETE FROM session_events WHERE at_ms < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM transcripts WHERE created_at_ms < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxRecordings > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM session_events WHERE recording_id IN (
			SELECT recording_id FROM session_events GROUP BY recording_id
			ORDER BY MAX(at_ms) DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxRecordings)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
