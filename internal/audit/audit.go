// Package audit keeps a per-event log of service activity in a
// SQLite database stored alongside the object data. The log is an
// operational aid only; nothing in the request path depends on it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Action labels the kind of event being recorded.
type Action string

const (
	ActionUpload       Action = "upload"
	ActionFetch        Action = "fetch"
	ActionDelete       Action = "delete"
	ActionDeleteDenied Action = "delete_denied"
)

// Event is one audit log entry.
type Event struct {
	At       time.Time
	Action   Action
	FileID   string
	RemoteIP string
	OK       bool
}

// Log is an append-mostly event log. A nil *Log is valid and records
// nothing, so the service can run without auditing enabled.
type Log struct {
	db *sql.DB
}

// Open opens (creating if necessary) the audit database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TIMESTAMP NOT NULL,
			action TEXT NOT NULL,
			file_id TEXT NOT NULL,
			remote_ip TEXT,
			ok BOOLEAN NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_file_id ON events(file_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Record inserts one event. Failures are logged and swallowed; the
// request that triggered the event must not fail because the audit
// insert did.
func (l *Log) Record(ctx context.Context, e Event) {
	if l == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events(at, action, file_id, remote_ip, ok) VALUES(?, ?, ?, ?, ?)`,
		e.At, string(e.Action), e.FileID, e.RemoteIP, e.OK,
	)
	if err != nil {
		slog.Error("record audit event", "action", e.Action, "fileid", e.FileID, "error", err)
	}
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	if l == nil {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT at, action, file_id, remote_ip, ok FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			action string
		)
		if err := rows.Scan(&e.At, &action, &e.FileID, &e.RemoteIP, &e.OK); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Action = Action(action)
		events = append(events, e)
	}
	return events, rows.Err()
}
