package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/research-agent/internal/model"
)

// SQLiteLedger persists snapshots in a SQLite database. Saves run in a
// single transaction, so a concurrent load always sees either the old
// or the new state in full.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS source_reliability (
	domain                TEXT PRIMARY KEY,
	query_types           TEXT NOT NULL DEFAULT '{}',
	last_success          TEXT,
	last_failure          TEXT,
	total_attempts        INTEGER NOT NULL DEFAULT 0,
	successful_attempts   INTEGER NOT NULL DEFAULT 0,
	average_response_time REAL NOT NULL DEFAULT 0,
	notes                 TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS query_patterns (
	name    TEXT PRIMARY KEY,
	pattern TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback_entries (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	entry      TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_entries_topic ON feedback_entries(topic);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	rows, err := l.db.QueryContext(ctx, `
		SELECT domain, query_types, last_success, last_failure,
		       total_attempts, successful_attempts, average_response_time, notes
		FROM source_reliability`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query sources")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			src                      model.SourceReliability
			queryTypesJSON, notesJSON string
			lastSuccess, lastFailure  sql.NullString
		)
		if err := rows.Scan(&src.Domain, &queryTypesJSON, &lastSuccess, &lastFailure,
			&src.TotalAttempts, &src.SuccessfulAttempts, &src.AverageResponseTime, &notesJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		if err := json.Unmarshal([]byte(queryTypesJSON), &src.QueryTypes); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal query types for %s", src.Domain)
		}
		if err := json.Unmarshal([]byte(notesJSON), &src.Notes); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal notes for %s", src.Domain)
		}
		if src.LastSuccess, err = parseNullTime(lastSuccess); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse last_success for %s", src.Domain)
		}
		if src.LastFailure, err = parseNullTime(lastFailure); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse last_failure for %s", src.Domain)
		}
		snap.Sources[src.Domain] = src
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate sources")
	}

	patternRows, err := l.db.QueryContext(ctx, `SELECT name, pattern FROM query_patterns`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query patterns")
	}
	defer patternRows.Close()
	for patternRows.Next() {
		var name, pattern string
		if err := patternRows.Scan(&name, &pattern); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		snap.QueryPatterns[name] = pattern
	}
	if err := patternRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate patterns")
	}

	feedbackRows, err := l.db.QueryContext(ctx,
		`SELECT topic, entry FROM feedback_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query feedback")
	}
	defer feedbackRows.Close()
	for feedbackRows.Next() {
		var topic, entryJSON string
		if err := feedbackRows.Scan(&topic, &entryJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feedback")
		}
		var entry model.FeedbackEntry
		if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal feedback entry")
		}
		snap.FeedbackHistory[topic] = append(snap.FeedbackHistory[topic], entry)
	}
	if err := feedbackRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate feedback")
	}

	return snap, nil
}

func (l *SQLiteLedger) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"source_reliability", "query_patterns", "feedback_entries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	for domain, src := range snap.Sources {
		queryTypesJSON, err := json.Marshal(src.QueryTypes)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal query types for %s", domain)
		}
		notesJSON, err := json.Marshal(src.Notes)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal notes for %s", domain)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO source_reliability
				(domain, query_types, last_success, last_failure,
				 total_attempts, successful_attempts, average_response_time, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			domain, string(queryTypesJSON), formatNullTime(src.LastSuccess), formatNullTime(src.LastFailure),
			src.TotalAttempts, src.SuccessfulAttempts, src.AverageResponseTime, string(notesJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert source %s", domain)
		}
	}

	for name, pattern := range snap.QueryPatterns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO query_patterns (name, pattern) VALUES (?, ?)`, name, pattern); err != nil {
			return eris.Wrapf(err, "sqlite: insert pattern %s", name)
		}
	}

	for topic, entries := range snap.FeedbackHistory {
		for _, entry := range entries {
			entryJSON, err := json.Marshal(entry)
			if err != nil {
				return eris.Wrapf(err, "sqlite: marshal feedback for %s", topic)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO feedback_entries (id, topic, entry, created_at)
				VALUES (?, ?, ?, ?)`,
				uuid.New().String(), topic, string(entryJSON), entry.Timestamp.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert feedback for %s", topic)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit save")
	}
	return nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
