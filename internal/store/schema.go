package store

import (
	"context"
	"database/sql"
	"fmt"
)

// bootstrapStatements creates every table the Postgres repositories in
// this package query against, if it doesn't already exist. It is not a
// versioned migration framework: no up/down steps, no schema_migrations
// tracking table, no rollback. Tables already present (e.g. built by a
// real migration tool in production) are left untouched. embeddingDim
// sizes the memories.embedding pgvector column.
func bootstrapStatements(embeddingDim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			scopes        JSONB NOT NULL DEFAULT '[]',
			settings      JSONB NOT NULL DEFAULT '{}',
			is_superuser  BOOLEAN NOT NULL DEFAULT false,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			started_at       TIMESTAMPTZ NOT NULL,
			expires_at       TIMESTAMPTZ,
			revoked_at       TIMESTAMPTZ,
			scopes_override  JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			id                  TEXT PRIMARY KEY,
			session_id          TEXT NOT NULL REFERENCES sessions(id),
			user_id             TEXT NOT NULL REFERENCES users(id),
			role                TEXT NOT NULL,
			content             TEXT NOT NULL,
			modality            TEXT NOT NULL,
			status              TEXT NOT NULL,
			idempotency_key     TEXT,
			trace_id            TEXT,
			channel             TEXT,
			channel_message_id  TEXT,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS agent_messages_session_user_idemkey_idx
			ON agent_messages (session_id, idempotency_key) WHERE role = 'user' AND idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS agent_messages_session_created_idx ON agent_messages (session_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS tool_executions (
			id               TEXT PRIMARY KEY,
			session_id       TEXT NOT NULL REFERENCES sessions(id),
			user_id          TEXT NOT NULL REFERENCES users(id),
			tool_name        TEXT NOT NULL,
			input            JSONB NOT NULL,
			status           TEXT NOT NULL,
			idempotency_key  TEXT,
			result           JSONB,
			error            TEXT,
			started_at       TIMESTAMPTZ NOT NULL,
			finished_at      TIMESTAMPTZ,
			trace_id         TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS tool_executions_user_idemkey_idx
			ON tool_executions (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS tool_calls (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL REFERENCES sessions(id),
			tool_name   TEXT NOT NULL,
			status      TEXT NOT NULL,
			latency_ms  BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS confirmations (
			id                 TEXT PRIMARY KEY,
			tool_execution_id  TEXT,
			user_id            TEXT NOT NULL REFERENCES users(id),
			session_id         TEXT NOT NULL REFERENCES sessions(id),
			status             TEXT NOT NULL,
			prompt             TEXT NOT NULL,
			required_phrase    TEXT,
			expires_at         TIMESTAMPTZ,
			payload            JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS confirmations_session_status_idx ON confirmations (session_id, status)`,
		`CREATE TABLE IF NOT EXISTS policy_decisions (
			id           TEXT PRIMARY KEY,
			session_id   TEXT NOT NULL REFERENCES sessions(id),
			user_id      TEXT NOT NULL REFERENCES users(id),
			tool_name    TEXT NOT NULL,
			decision     TEXT NOT NULL,
			risk_score   INT NOT NULL,
			reason_code  TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			session_id    TEXT,
			type          TEXT NOT NULL,
			source        TEXT NOT NULL,
			content       TEXT NOT NULL,
			content_hash  TEXT NOT NULL,
			embedding     vector(%d),
			metadata      JSONB NOT NULL DEFAULT '{}',
			is_deleted    BOOLEAN NOT NULL DEFAULT false,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL,
			expires_at    TIMESTAMPTZ
		)`, embeddingDim),
		`CREATE UNIQUE INDEX IF NOT EXISTS memories_user_content_hash_idx ON memories (user_id, content_hash) WHERE is_deleted = false`,
		`CREATE TABLE IF NOT EXISTS memory_events (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			memory_id   TEXT NOT NULL REFERENCES memories(id),
			event_type  TEXT NOT NULL,
			actor       TEXT NOT NULL,
			reason      TEXT,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
	}
}

// Bootstrap applies bootstrapStatements against db in order, wrapped in
// one transaction. It's meant for local/dev setup and the `migrate` CLI
// subcommand, not for production schema evolution.
func Bootstrap(ctx context.Context, db *sql.DB, embeddingDim int) error {
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: begin tx: %w", err)
	}
	for _, stmt := range bootstrapStatements(embeddingDim) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return tx.Commit()
}
