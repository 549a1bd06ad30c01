package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS action_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         TEXT NOT NULL,
	action_type     TEXT NOT NULL,
	target          TEXT NOT NULL DEFAULT '',
	outcome         TEXT NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_log_user ON action_log(user_id, created_at);
`

// SQLiteSink is a durable audit sink backed by SQLite.
// Writes are append-only; there is no update or delete path.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the audit database at dir/audit.db.
func OpenSQLite(dir string) (*SQLiteSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		filepath.Join(dir, "audit.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply audit schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Record appends an entry.
func (s *SQLiteSink) Record(ctx context.Context, entry Entry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_log (user_id, action_type, target, outcome, reason, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.ActionType, entry.Target, string(entry.Outcome),
		entry.Reason, entry.IdempotencyKey, ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// RecentForUser returns the most recent entries for a user, newest first.
// Not used by the command core; operators and tests query through this.
func (s *SQLiteSink) RecentForUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, action_type, target, outcome, reason, idempotency_key, created_at
		 FROM action_log WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome, ts string
		if err := rows.Scan(&e.UserID, &e.ActionType, &e.Target, &outcome, &e.Reason, &e.IdempotencyKey, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Ensure SQLiteSink implements Sink.
var _ Sink = (*SQLiteSink)(nil)
