package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/model"
)

// Pool is the subset of pgxpool.Pool the ledger needs. pgxmock's pool
// satisfies it, which keeps the backend unit-testable without a server.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresLedger persists snapshots in PostgreSQL. Saves run in one
// transaction; concurrent savers serialize on row locks and a load
// always observes a complete snapshot.
type PostgresLedger struct {
	pool Pool
}

// NewPostgres creates a PostgresLedger with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresLedger{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (used in tests).
func NewPostgresFromPool(pool Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS source_reliability (
	domain                TEXT PRIMARY KEY,
	query_types           JSONB NOT NULL DEFAULT '{}',
	last_success          TIMESTAMPTZ,
	last_failure          TIMESTAMPTZ,
	total_attempts        INTEGER NOT NULL DEFAULT 0,
	successful_attempts   INTEGER NOT NULL DEFAULT 0,
	average_response_time DOUBLE PRECISION NOT NULL DEFAULT 0,
	notes                 JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS query_patterns (
	name    TEXT PRIMARY KEY,
	pattern TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback_entries (
	id         UUID PRIMARY KEY,
	topic      TEXT NOT NULL,
	entry      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_entries_topic ON feedback_entries(topic);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLedger) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	rows, err := l.pool.Query(ctx, `
		SELECT domain, query_types, last_success, last_failure,
		       total_attempts, successful_attempts, average_response_time, notes
		FROM source_reliability`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query sources")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			src                       model.SourceReliability
			queryTypesJSON, notesJSON []byte
		)
		if err := rows.Scan(&src.Domain, &queryTypesJSON, &src.LastSuccess, &src.LastFailure,
			&src.TotalAttempts, &src.SuccessfulAttempts, &src.AverageResponseTime, &notesJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		if err := json.Unmarshal(queryTypesJSON, &src.QueryTypes); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal query types for %s", src.Domain)
		}
		if err := json.Unmarshal(notesJSON, &src.Notes); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal notes for %s", src.Domain)
		}
		snap.Sources[src.Domain] = src
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate sources")
	}

	patternRows, err := l.pool.Query(ctx, `SELECT name, pattern FROM query_patterns`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query patterns")
	}
	defer patternRows.Close()
	for patternRows.Next() {
		var name, pattern string
		if err := patternRows.Scan(&name, &pattern); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		snap.QueryPatterns[name] = pattern
	}
	if err := patternRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate patterns")
	}

	feedbackRows, err := l.pool.Query(ctx,
		`SELECT topic, entry FROM feedback_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query feedback")
	}
	defer feedbackRows.Close()
	for feedbackRows.Next() {
		var (
			topic     string
			entryJSON []byte
		)
		if err := feedbackRows.Scan(&topic, &entryJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feedback")
		}
		var entry model.FeedbackEntry
		if err := json.Unmarshal(entryJSON, &entry); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal feedback entry")
		}
		snap.FeedbackHistory[topic] = append(snap.FeedbackHistory[topic], entry)
	}
	if err := feedbackRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate feedback")
	}

	return snap, nil
}

func (l *PostgresLedger) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"source_reliability", "query_patterns", "feedback_entries"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", table)
		}
	}

	for domain, src := range snap.Sources {
		queryTypesJSON, err := json.Marshal(src.QueryTypes)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal query types for %s", domain)
		}
		notesJSON, err := json.Marshal(src.Notes)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal notes for %s", domain)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO source_reliability
				(domain, query_types, last_success, last_failure,
				 total_attempts, successful_attempts, average_response_time, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			domain, queryTypesJSON, timePtr(src.LastSuccess), timePtr(src.LastFailure),
			src.TotalAttempts, src.SuccessfulAttempts, src.AverageResponseTime, notesJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert source %s", domain)
		}
	}

	for name, pattern := range snap.QueryPatterns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO query_patterns (name, pattern) VALUES ($1, $2)`, name, pattern); err != nil {
			return eris.Wrapf(err, "postgres: insert pattern %s", name)
		}
	}

	for topic, entries := range snap.FeedbackHistory {
		for _, entry := range entries {
			entryJSON, err := json.Marshal(entry)
			if err != nil {
				return eris.Wrapf(err, "postgres: marshal feedback for %s", topic)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO feedback_entries (id, topic, entry, created_at)
				VALUES ($1, $2, $3, $4)`,
				uuid.New(), topic, entryJSON, entry.Timestamp.UTC(),
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert feedback for %s", topic)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit save")
	}
	return nil
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
