package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schemaSQL holds the journal schema. Applied on every open; the
// statements are idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        TIMESTAMP NOT NULL,
	session   TEXT NOT NULL DEFAULT '',
	kind      TEXT NOT NULL,
	direction TEXT NOT NULL DEFAULT '',
	code      TEXT NOT NULL DEFAULT '',
	detail    TEXT NOT NULL DEFAULT '',
	payload   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entries_at ON entries(at);
`

// Entry is one journal row. Payload carries frame data hex-encoded.
type Entry struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	Session   string    `json:"session"`
	Kind      string    `json:"kind"`
	Direction string    `json:"direction,omitempty"`
	Code      string    `json:"code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Payload   string    `json:"payload,omitempty"`
}

// Journal is the persistent event log of one regulator.
type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) insert(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (at, session, kind, direction, code, detail, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.At, e.Session, e.Kind, e.Direction, e.Code, e.Detail, e.Payload,
	)
	if err != nil {
		return fmt.Errorf("journal: insert entry: %w", err)
	}
	return nil
}

// RecordFrame journals one telecontrol frame in either direction.
func (j *Journal) RecordFrame(ctx context.Context, session, direction, code string, data []byte) error {
	return j.insert(ctx, Entry{
		At:        time.Now(),
		Session:   session,
		Kind:      "frame",
		Direction: direction,
		Code:      code,
		Payload:   hex.EncodeToString(data),
	})
}

// RecordControl journals a bare link-control byte.
func (j *Journal) RecordControl(ctx context.Context, session, direction, name string) error {
	return j.insert(ctx, Entry{
		At:        time.Now(),
		Session:   session,
		Kind:      "control",
		Direction: direction,
		Code:      name,
	})
}

// RecordEvent journals a state change or session lifecycle event.
func (j *Journal) RecordEvent(ctx context.Context, session, kind, detail string) error {
	return j.insert(ctx, Entry{
		At:      time.Now(),
		Session: session,
		Kind:    kind,
		Detail:  detail,
	})
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, session, kind, direction, code, detail, payload
		 FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Session, &e.Kind, &e.Direction, &e.Code, &e.Detail, &e.Payload); err != nil {
			return nil, fmt.Errorf("journal: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate entries: %w", err)
	}
	return entries, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
