// Package trace persists the agent's decision log to sqlite so runs can
// be replayed and inspected with the monitor after the fact.
package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	teammate_id TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	reason TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_decision_log_session ON decision_log(session_id, created_at);
`

type Session struct {
	ID         string
	AgentID    string
	TeammateID string
	StartedAt  time.Time
}

type Decision struct {
	ID        int64
	SessionID string
	Actor     string
	Action    string
	Reason    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) StartSession(ctx context.Context, session Session) error {
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions(id, agent_id, teammate_id, started_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET teammate_id = excluded.teammate_id`,
		session.ID, session.AgentID, session.TeammateID, session.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

func (s *Store) LogDecision(ctx context.Context, entry Decision) error {
	payload := string(entry.Payload)
	if payload == "" {
		payload = "{}"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO decision_log(session_id, actor, action, reason, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.Actor, entry.Action, entry.Reason, payload, entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// Recent returns the newest decisions for a session, newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, actor, action, reason, payload, created_at
		FROM decision_log WHERE session_id = ?
		ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// Tail returns decisions with id greater than afterID across all
// sessions, oldest first. The monitor polls it.
func (s *Store) Tail(ctx context.Context, afterID int64, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, actor, action, reason, payload, created_at
		FROM decision_log WHERE id > ?
		ORDER BY id ASC LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("tail decisions: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, agent_id, teammate_id, started_at FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.AgentID, &sess.TeammateID, &started); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = time.Unix(started, 0).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanDecisions(rows *sql.Rows) ([]Decision, error) {
	var out []Decision
	for rows.Next() {
		var d Decision
		var payload string
		var created int64
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Actor, &d.Action, &d.Reason, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Payload = json.RawMessage(payload)
		d.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// Recorder adapts the store to the runner's tracer contract. Trace is
// best effort: persistence failures are logged, never surfaced to the
// decision loop.
type Recorder struct {
	store     *Store
	sessionID string
	logger    *log.Logger
}

func NewRecorder(store *Store, sessionID string, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{store: store, sessionID: sessionID, logger: logger}
}

func (r *Recorder) Trace(actor, action, reason string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = r.store.LogDecision(ctx, Decision{
		SessionID: r.sessionID,
		Actor:     actor,
		Action:    action,
		Reason:    reason,
		Payload:   raw,
	})
	if err != nil {
		r.logger.Printf("trace: %v", err)
	}
}
