package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as Unix milliseconds.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS llm_requests (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL,
		timestamp     INTEGER NOT NULL,
		provider      TEXT    NOT NULL,
		model         TEXT    NOT NULL DEFAULT '',
		purpose       TEXT    NOT NULL DEFAULT '',
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL DEFAULT 0,
		error_message TEXT    NOT NULL DEFAULT '',
		request_body  TEXT    NOT NULL DEFAULT '',
		response_body TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_requests_purpose ON llm_requests (purpose)`,
	`CREATE TABLE IF NOT EXISTS symptom_records (
		id           TEXT    PRIMARY KEY,
		sequence     INTEGER NOT NULL,
		session_id   TEXT    NOT NULL DEFAULT '',
		disease      TEXT    NOT NULL,
		confidence   REAL    NOT NULL DEFAULT 0,
		symptoms     TEXT    NOT NULL DEFAULT '[]',
		communicable INTEGER NOT NULL DEFAULT 0,
		acute        INTEGER NOT NULL DEFAULT 1,
		icd10_code   TEXT    NOT NULL DEFAULT '',
		payload      TEXT    NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS symptom_records_session ON symptom_records (session_id)`,
	`CREATE TABLE IF NOT EXISTS follow_ups (
		id         TEXT    PRIMARY KEY,
		record_id  TEXT    NOT NULL REFERENCES symptom_records (id) ON DELETE CASCADE,
		due_at     INTEGER NOT NULL,
		status     TEXT    NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS follow_ups_record ON follow_ups (record_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range tableDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
