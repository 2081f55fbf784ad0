package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// schemaLockID serializes bootstrap DDL across api and worker startups.
const schemaLockID int64 = 2026101601

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS provinces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS applicants (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	nik TEXT,
	birth_date DATE,
	education_level TEXT,
	major TEXT,
	domicile_province TEXT
);

CREATE TABLE IF NOT EXISTS formasi (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	agency TEXT,
	education_levels JSONB NOT NULL DEFAULT '[]'::jsonb,
	majors JSONB NOT NULL DEFAULT '[]'::jsonb,
	min_age INTEGER NOT NULL DEFAULT 0,
	max_age INTEGER NOT NULL DEFAULT 0,
	province TEXT
);

CREATE TABLE IF NOT EXISTS review_queue (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	applicant_id TEXT,
	document_type TEXT NOT NULL,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	reasons JSONB NOT NULL DEFAULT '[]'::jsonb,
	degraded BOOLEAN NOT NULL DEFAULT FALSE,
	verified_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_queue_score ON review_queue(score DESC, created_at ASC);
`

// EnsureSchema creates the portal tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
