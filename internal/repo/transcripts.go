package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/miradorstack/flightchat/internal/conversation"
	"github.com/miradorstack/flightchat/internal/models"
)

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS conversations (
    id          TEXT PRIMARY KEY,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role             TEXT NOT NULL,
    content          TEXT NOT NULL,
    path             TEXT NOT NULL DEFAULT '',
    structured       INTEGER NOT NULL DEFAULT 1,
    suggestions      TEXT NOT NULL DEFAULT '[]',
    duration_ms      INTEGER NOT NULL DEFAULT 0,
    timestamp        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id ASC);
`,
	},
}

// MessageRecord is one archived turn.
type MessageRecord struct {
	ID                 int64
	SessionID          string
	Role               conversation.Role
	Content            string
	Path               models.ReasoningPath
	Structured         bool
	SuggestedQuestions []string
	Duration           time.Duration
	Timestamp          time.Time
}

// TranscriptRepo archives completed exchanges in SQLite.
type TranscriptRepo struct {
	db  *sql.DB
	now func() time.Time
}

// OpenTranscripts opens (or creates) the archive at path and applies pending migrations.
func OpenTranscripts(path string) (*TranscriptRepo, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single connection keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	r := &TranscriptRepo{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *TranscriptRepo) migrate() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := r.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := r.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := r.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Record appends the user and assistant turns of an exchange in one transaction.
func (r *TranscriptRepo) Record(ctx context.Context, ex models.Exchange) error {
	created := ex.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	answered := created.Add(ex.Duration)
	suggestions := ex.SuggestedQuestions
	if suggestions == nil {
		suggestions = []string{}
	}
	encoded, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO conversations(id, created_at, updated_at)
        VALUES(?,?,?)
        ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
    `, ex.SessionID, formatTime(created), formatTime(answered)); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages(conversation_id, role, content, timestamp)
        VALUES(?,?,?,?)
    `, ex.SessionID, string(conversation.RoleUser), ex.Question, formatTime(created)); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages(conversation_id, role, content, path, structured, suggestions, duration_ms, timestamp)
        VALUES(?,?,?,?,?,?,?,?)
    `, ex.SessionID, string(conversation.RoleAssistant), ex.Answer, string(ex.Path), ex.Structured, string(encoded), ex.Duration.Milliseconds(), formatTime(answered)); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}
	return tx.Commit()
}

// ListSession returns the archived turns of a session, oldest first.
func (r *TranscriptRepo) ListSession(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, path, structured, suggestions, duration_ms, timestamp
        FROM messages WHERE conversation_id = ? ORDER BY id ASC LIMIT ?
    `, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var result []MessageRecord
	for rows.Next() {
		var (
			rec         MessageRecord
			role, path  string
			suggestions string
			durationMS  int64
			ts          string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &role, &rec.Content, &path, &rec.Structured, &suggestions, &durationMS, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.Role = conversation.Role(role)
		rec.Path = models.ReasoningPath(path)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(suggestions), &rec.SuggestedQuestions); err != nil {
			return nil, fmt.Errorf("decode suggestions: %w", err)
		}
		rec.Timestamp, _ = time.Parse(timeLayout, ts)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ListSessions returns archived session ids, most recently updated first.
func (r *TranscriptRepo) ListSessions(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database handle.
func (r *TranscriptRepo) Close() error { return r.db.Close() }

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
