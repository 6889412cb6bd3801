package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// PostgresStore implements Store against a single-primary Postgres
// instance; distributed consensus across multiple primaries is out of
// scope. All mutations run through *sql.DB or a *sql.Tx, matching a
// consistent transaction discipline.
type PostgresStore struct {
	db *sql.DB
	// tx, when non-nil, is used instead of db for the duration of one
	// WithTx call. Set only by WithTx's internal wrapper.
	tx *sql.Tx
}

// PostgresConfig holds connection tuning parameters.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresStore opens dsn (DATABASE_URL) and configures the pool.
func NewPostgresStore(dsn string, cfg PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying connection pool for migration tooling.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Close() error { return s.db.Close() }

// execer is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods work unchanged inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &PostgresStore{db: s.db, tx: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) exec() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Users() Users                     { return (*pgUsers)(s) }
func (s *PostgresStore) Sessions() Sessions               { return (*pgSessions)(s) }
func (s *PostgresStore) Messages() Messages               { return (*pgMessages)(s) }
func (s *PostgresStore) ToolExecutions() ToolExecutions   { return (*pgToolExecutions)(s) }
func (s *PostgresStore) ToolCalls() ToolCalls             { return (*pgToolCalls)(s) }
func (s *PostgresStore) Confirmations() Confirmations     { return (*pgConfirmations)(s) }
func (s *PostgresStore) PolicyDecisions() PolicyDecisions { return (*pgPolicyDecisions)(s) }
func (s *PostgresStore) Memories() Memories               { return (*pgMemories)(s) }
func (s *PostgresStore) MemoryEvents() MemoryEvents       { return (*pgMemoryEvents)(s) }

type pgUsers PostgresStore

func (p *pgUsers) Get(ctx context.Context, id string) (*models.User, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `SELECT id, email, scopes, settings, is_superuser, created_at, updated_at FROM users WHERE id = $1`, id)
	var u models.User
	var scopes, settings []byte
	if err := row.Scan(&u.ID, &u.Email, &scopes, &settings, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "user", ID: id}
		}
		return nil, err
	}
	_ = json.Unmarshal(scopes, &u.Scopes)
	_ = json.Unmarshal(settings, &u.Settings)
	return &u, nil
}

func (p *pgUsers) Create(ctx context.Context, u *models.User) error {
	s := (*PostgresStore)(p)
	scopes, _ := json.Marshal(u.Scopes)
	settings, _ := json.Marshal(u.Settings)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO users (id, email, scopes, settings, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, scopes, settings, u.IsSuperuser, u.CreatedAt, u.UpdatedAt)
	return err
}

type pgSessions PostgresStore

func (p *pgSessions) Get(ctx context.Context, id string) (*models.Session, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `SELECT id, user_id, started_at, expires_at, revoked_at, scopes_override FROM sessions WHERE id = $1`, id)
	var sess models.Session
	var scopesOverride []byte
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.StartedAt, &sess.ExpiresAt, &sess.RevokedAt, &scopesOverride); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "session", ID: id}
		}
		return nil, err
	}
	if len(scopesOverride) > 0 {
		_ = json.Unmarshal(scopesOverride, &sess.ScopesOverride)
	}
	return &sess, nil
}

func (p *pgSessions) Create(ctx context.Context, sess *models.Session) error {
	s := (*PostgresStore)(p)
	var scopesOverride []byte
	if sess.ScopesOverride != nil {
		scopesOverride, _ = json.Marshal(sess.ScopesOverride)
	}
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, started_at, expires_at, revoked_at, scopes_override)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID, sess.StartedAt, sess.ExpiresAt, sess.RevokedAt, scopesOverride)
	return err
}

func (p *pgSessions) Revoke(ctx context.Context, id string, at time.Time) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `UPDATE sessions SET revoked_at = $2 WHERE id = $1`, id, at)
	return err
}

type pgMessages PostgresStore

func (p *pgMessages) GetByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.AgentMessage, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, session_id, user_id, role, content, modality, status, idempotency_key, trace_id, channel, channel_message_id, created_at, updated_at
		FROM agent_messages WHERE session_id = $1 AND role = 'user' AND idempotency_key = $2`, sessionID, key)
	return scanAgentMessage(row)
}

func (p *pgMessages) GetAssistantByTraceID(ctx context.Context, sessionID, traceID string) (*models.AgentMessage, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, session_id, user_id, role, content, modality, status, idempotency_key, trace_id, channel, channel_message_id, created_at, updated_at
		FROM agent_messages WHERE session_id = $1 AND role = 'assistant' AND trace_id = $2
		ORDER BY created_at ASC LIMIT 1`, sessionID, traceID)
	return scanAgentMessage(row)
}

func scanAgentMessage(row *sql.Row) (*models.AgentMessage, error) {
	var m models.AgentMessage
	var idemKey, traceID, channel, channelMsgID sql.NullString
	if err := row.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &m.Modality, &m.Status,
		&idemKey, &traceID, &channel, &channelMsgID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "agent_message"}
		}
		return nil, err
	}
	m.IdempotencyKey, m.TraceID, m.Channel, m.ChannelMessageID = idemKey.String, traceID.String, channel.String, channelMsgID.String
	return &m, nil
}

func (p *pgMessages) Insert(ctx context.Context, m *models.AgentMessage) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO agent_messages (id, session_id, user_id, role, content, modality, status, idempotency_key, trace_id, channel, channel_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, $13)`,
		m.ID, m.SessionID, m.UserID, m.Role, m.Content, m.Modality, m.Status,
		m.IdempotencyKey, m.TraceID, m.Channel, m.ChannelMessageID, m.CreatedAt, m.UpdatedAt)
	return err
}

func (p *pgMessages) RecentBySession(ctx context.Context, sessionID string, n int) ([]*models.AgentMessage, error) {
	s := (*PostgresStore)(p)
	rows, err := s.exec().QueryContext(ctx, `
		SELECT id, session_id, user_id, role, content, modality, status, idempotency_key, trace_id, channel, channel_message_id, created_at, updated_at
		FROM agent_messages WHERE session_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.AgentMessage
	for rows.Next() {
		var m models.AgentMessage
		var idemKey, traceID, channel, channelMsgID sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &m.Modality, &m.Status,
			&idemKey, &traceID, &channel, &channelMsgID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.IdempotencyKey, m.TraceID, m.Channel, m.ChannelMessageID = idemKey.String, traceID.String, channel.String, channelMsgID.String
		out = append([]*models.AgentMessage{&m}, out...)
	}
	return out, rows.Err()
}

type pgToolExecutions PostgresStore

func (p *pgToolExecutions) Reserve(ctx context.Context, exec *models.ToolExecution) (*models.ToolExecution, bool, error) {
	s := (*PostgresStore)(p)
	input, _ := json.Marshal(exec.Input)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO tool_executions (id, session_id, user_id, tool_name, input, status, idempotency_key, trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		exec.ID, exec.SessionID, exec.UserID, exec.ToolName, input, exec.Status, exec.IdempotencyKey, exec.TraceID)
	if err == nil {
		return nil, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, err
	}
	existing, getErr := p.byUserAndIdempotencyKey(ctx, exec.UserID, exec.IdempotencyKey)
	if getErr != nil {
		return nil, false, getErr
	}
	return existing, false, nil
}

func (p *pgToolExecutions) byUserAndIdempotencyKey(ctx context.Context, userID, key string) (*models.ToolExecution, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, session_id, user_id, tool_name, input, status, idempotency_key, result, error, started_at, finished_at, trace_id
		FROM tool_executions WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	return scanToolExecution(row)
}

func (p *pgToolExecutions) Get(ctx context.Context, id string) (*models.ToolExecution, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, session_id, user_id, tool_name, input, status, idempotency_key, result, error, started_at, finished_at, trace_id
		FROM tool_executions WHERE id = $1`, id)
	return scanToolExecution(row)
}

func scanToolExecution(row *sql.Row) (*models.ToolExecution, error) {
	var e models.ToolExecution
	var input, result []byte
	var errText sql.NullString
	if err := row.Scan(&e.ID, &e.SessionID, &e.UserID, &e.ToolName, &input, &e.Status, &e.IdempotencyKey,
		&result, &errText, &e.StartedAt, &e.FinishedAt, &e.TraceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "tool_execution"}
		}
		return nil, err
	}
	_ = json.Unmarshal(input, &e.Input)
	if len(result) > 0 {
		_ = json.Unmarshal(result, &e.Result)
	}
	e.Error = errText.String
	return &e, nil
}

// Transition performs the row-level compare-and-set transition contract:
// "A ToolExecution row's status transitions MUST be serialized (use a row-
// level lock or compare-and-set on status)".
func (p *pgToolExecutions) Transition(ctx context.Context, id string, from, to models.ToolExecutionStatus, mutate func(*models.ToolExecution)) error {
	s := (*PostgresStore)(p)
	if !models.CanTransition(from, to) {
		return fmt.Errorf("illegal transition from %s to %s", from, to)
	}
	current, err := p.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != from {
		return fmt.Errorf("tool_execution %s: expected status %s, have %s", id, from, current.Status)
	}
	if mutate != nil {
		mutate(current)
	}
	result, _ := json.Marshal(current.Result)
	res, err := s.exec().ExecContext(ctx, `
		UPDATE tool_executions SET status = $2, result = $3, error = NULLIF($4, ''), started_at = $5, finished_at = $6
		WHERE id = $1 AND status = $7`,
		id, to, result, current.Error, current.StartedAt, current.FinishedAt, from)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("tool_execution %s: concurrent transition, expected status %s", id, from)
	}
	return nil
}

func (p *pgToolExecutions) RecentBySessionAndTool(ctx context.Context, sessionID, toolName string, n int) ([]*models.ToolExecution, error) {
	s := (*PostgresStore)(p)
	rows, err := s.exec().QueryContext(ctx, `
		SELECT id, session_id, user_id, tool_name, input, status, idempotency_key, result, error, started_at, finished_at, trace_id
		FROM tool_executions WHERE session_id = $1 AND tool_name = $2
		ORDER BY finished_at DESC NULLS LAST LIMIT $3`, sessionID, toolName, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ToolExecution
	for rows.Next() {
		var e models.ToolExecution
		var input, result []byte
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserID, &e.ToolName, &input, &e.Status, &e.IdempotencyKey,
			&result, &errText, &e.StartedAt, &e.FinishedAt, &e.TraceID); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(input, &e.Input)
		if len(result) > 0 {
			_ = json.Unmarshal(result, &e.Result)
		}
		e.Error = errText.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (p *pgToolExecutions) CountSince(ctx context.Context, sessionID, toolName string, since time.Time) (int, error) {
	s := (*PostgresStore)(p)
	var count int
	err := s.exec().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tool_executions
		WHERE session_id = $1 AND tool_name = $2 AND started_at >= $3`, sessionID, toolName, since).Scan(&count)
	return count, err
}

type pgToolCalls PostgresStore

func (p *pgToolCalls) Insert(ctx context.Context, c *models.ToolCall) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO tool_calls (id, session_id, tool_name, status, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.SessionID, c.ToolName, c.Status, c.LatencyMS, c.CreatedAt)
	return err
}

type pgConfirmations PostgresStore

func (p *pgConfirmations) CancelPending(ctx context.Context, sessionID string) (int, error) {
	s := (*PostgresStore)(p)
	res, err := s.exec().ExecContext(ctx, `
		UPDATE confirmations SET status = 'REJECTED' WHERE session_id = $1 AND status = 'PENDING'`, sessionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *pgConfirmations) Create(ctx context.Context, c *models.Confirmation) error {
	s := (*PostgresStore)(p)
	payload, _ := json.Marshal(c.Payload)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO confirmations (id, tool_execution_id, user_id, session_id, status, prompt, required_phrase, expires_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		c.ID, c.ToolExecutionID, c.UserID, c.SessionID, c.Status, c.Prompt, c.RequiredPhrase, c.ExpiresAt, payload)
	return err
}

func (p *pgConfirmations) Get(ctx context.Context, id string) (*models.Confirmation, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, tool_execution_id, user_id, session_id, status, prompt, required_phrase, expires_at, payload
		FROM confirmations WHERE id = $1`, id)
	return scanConfirmation(row)
}

func (p *pgConfirmations) PendingBySession(ctx context.Context, sessionID string) (*models.Confirmation, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, tool_execution_id, user_id, session_id, status, prompt, required_phrase, expires_at, payload
		FROM confirmations WHERE session_id = $1 AND status = 'PENDING'`, sessionID)
	return scanConfirmation(row)
}

func scanConfirmation(row *sql.Row) (*models.Confirmation, error) {
	var c models.Confirmation
	var phrase sql.NullString
	var payload []byte
	if err := row.Scan(&c.ID, &c.ToolExecutionID, &c.UserID, &c.SessionID, &c.Status, &c.Prompt, &phrase, &c.ExpiresAt, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "confirmation"}
		}
		return nil, err
	}
	c.RequiredPhrase = phrase.String
	_ = json.Unmarshal(payload, &c.Payload)
	return &c, nil
}

func (p *pgConfirmations) Update(ctx context.Context, c *models.Confirmation) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `
		UPDATE confirmations SET status = $2 WHERE id = $1`, c.ID, c.Status)
	return err
}

func (p *pgConfirmations) AcceptedMatching(ctx context.Context, sessionID, toolName string, args map[string]any) (*models.Confirmation, error) {
	s := (*PostgresStore)(p)
	rows, err := s.exec().QueryContext(ctx, `
		SELECT id, tool_execution_id, user_id, session_id, status, prompt, required_phrase, expires_at, payload
		FROM confirmations WHERE session_id = $1 AND status = 'ACCEPTED'`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	argsJSON, _ := json.Marshal(args)
	for rows.Next() {
		var c models.Confirmation
		var phrase sql.NullString
		var payload []byte
		if err := rows.Scan(&c.ID, &c.ToolExecutionID, &c.UserID, &c.SessionID, &c.Status, &c.Prompt, &phrase, &c.ExpiresAt, &payload); err != nil {
			return nil, err
		}
		c.RequiredPhrase = phrase.String
		_ = json.Unmarshal(payload, &c.Payload)
		name, _ := c.Payload["tool_name"].(string)
		if name != toolName {
			continue
		}
		payloadArgsJSON, _ := json.Marshal(c.Payload["args"])
		if string(payloadArgsJSON) == string(argsJSON) {
			return &c, nil
		}
	}
	return nil, &NotFoundError{Entity: "confirmation", ID: "accepted:" + toolName}
}

type pgPolicyDecisions PostgresStore

func (p *pgPolicyDecisions) Insert(ctx context.Context, d *models.PolicyDecision) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO policy_decisions (id, session_id, user_id, tool_name, decision, risk_score, reason_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.SessionID, d.UserID, d.ToolName, d.Decision, d.RiskScore, d.ReasonCode, d.CreatedAt)
	return err
}

type pgMemories PostgresStore

func (p *pgMemories) GetByContentHash(ctx context.Context, userID, hash string) (*models.Memory, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, user_id, session_id, type, source, content, content_hash, embedding, metadata, is_deleted, created_at, updated_at, expires_at
		FROM memories WHERE user_id = $1 AND content_hash = $2 AND is_deleted = false`, userID, hash)
	return scanMemory(row)
}

func scanMemory(row *sql.Row) (*models.Memory, error) {
	var m models.Memory
	var sessionID sql.NullString
	var embedding, metadata []byte
	if err := row.Scan(&m.ID, &m.UserID, &sessionID, &m.Type, &m.Source, &m.Content, &m.ContentHash,
		&embedding, &metadata, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt, &m.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "memory"}
		}
		return nil, err
	}
	m.SessionID = sessionID.String
	_ = json.Unmarshal(embedding, &m.Embedding)
	_ = json.Unmarshal(metadata, &m.Metadata)
	return &m, nil
}

func (p *pgMemories) Insert(ctx context.Context, m *models.Memory) error {
	s := (*PostgresStore)(p)
	embedding, _ := json.Marshal(m.Embedding)
	metadata, _ := json.Marshal(m.Metadata)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO memories (id, user_id, session_id, type, source, content, content_hash, embedding, metadata, is_deleted, created_at, updated_at, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.UserID, m.SessionID, m.Type, m.Source, m.Content, m.ContentHash, embedding, metadata, m.IsDeleted, m.CreatedAt, m.UpdatedAt, m.ExpiresAt)
	return err
}

func (p *pgMemories) Update(ctx context.Context, m *models.Memory) error {
	s := (*PostgresStore)(p)
	embedding, _ := json.Marshal(m.Embedding)
	metadata, _ := json.Marshal(m.Metadata)
	_, err := s.exec().ExecContext(ctx, `
		UPDATE memories SET content = $2, content_hash = $3, embedding = $4, metadata = $5, is_deleted = $6, updated_at = $7, expires_at = $8
		WHERE id = $1`,
		m.ID, m.Content, m.ContentHash, embedding, metadata, m.IsDeleted, m.UpdatedAt, m.ExpiresAt)
	return err
}

func (p *pgMemories) Get(ctx context.Context, id string) (*models.Memory, error) {
	s := (*PostgresStore)(p)
	row := s.exec().QueryRowContext(ctx, `
		SELECT id, user_id, session_id, type, source, content, content_hash, embedding, metadata, is_deleted, created_at, updated_at, expires_at
		FROM memories WHERE id = $1`, id)
	return scanMemory(row)
}

// Search relies on the pgvector extension in production (`embedding <=>
// $1` cosine-distance operator); callers without pgvector installed should
// configure memory.backend=local, which uses internal/store.MemStore's
// brute-force cosine scan instead.
func (p *pgMemories) Search(ctx context.Context, userID string, embedding []float32, filter SearchFilter) ([]*models.Memory, error) {
	s := (*PostgresStore)(p)
	embeddingJSON, _ := json.Marshal(embedding)
	query := `
		SELECT id, user_id, session_id, type, source, content, content_hash, embedding, metadata, is_deleted, created_at, updated_at, expires_at,
		       1 - (embedding <=> $1::vector) AS score
		FROM memories
		WHERE user_id = $2 AND is_deleted = false AND (expires_at IS NULL OR expires_at > now())
		ORDER BY embedding <=> $1::vector ASC
		LIMIT $3`
	topK := filter.TopK
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.exec().QueryContext(ctx, query, string(embeddingJSON), userID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Memory
	for rows.Next() {
		var m models.Memory
		var sessionID sql.NullString
		var emb, metadata []byte
		if err := rows.Scan(&m.ID, &m.UserID, &sessionID, &m.Type, &m.Source, &m.Content, &m.ContentHash,
			&emb, &metadata, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt, &m.ExpiresAt, &m.Score); err != nil {
			return nil, err
		}
		m.SessionID = sessionID.String
		_ = json.Unmarshal(emb, &m.Embedding)
		_ = json.Unmarshal(metadata, &m.Metadata)
		if len(filter.Types) > 0 && !containsType(filter.Types, m.Type) {
			continue
		}
		if !metadataSuperset(m.Metadata, filter.MetadataMatch) {
			continue
		}
		if filter.MaxDistance > 0 && (1-m.Score) > filter.MaxDistance {
			continue
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (p *pgMemories) List(ctx context.Context, userID string, filter ListFilter) ([]*models.Memory, error) {
	s := (*PostgresStore)(p)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.exec().QueryContext(ctx, `
		SELECT id, user_id, session_id, type, source, content, content_hash, embedding, metadata, is_deleted, created_at, updated_at, expires_at
		FROM memories
		WHERE user_id = $1 AND is_deleted = false AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, userID, string(filter.Type), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Memory
	for rows.Next() {
		var m models.Memory
		var sessionID sql.NullString
		var embedding, metadata []byte
		if err := rows.Scan(&m.ID, &m.UserID, &sessionID, &m.Type, &m.Source, &m.Content, &m.ContentHash,
			&embedding, &metadata, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt, &m.ExpiresAt); err != nil {
			return nil, err
		}
		m.SessionID = sessionID.String
		_ = json.Unmarshal(embedding, &m.Embedding)
		_ = json.Unmarshal(metadata, &m.Metadata)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (p *pgMemories) SoftDelete(ctx context.Context, id string) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `UPDATE memories SET is_deleted = true WHERE id = $1`, id)
	return err
}

type pgMemoryEvents PostgresStore

func (p *pgMemoryEvents) Insert(ctx context.Context, e *models.MemoryEvent) error {
	s := (*PostgresStore)(p)
	_, err := s.exec().ExecContext(ctx, `
		INSERT INTO memory_events (id, user_id, memory_id, event_type, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		e.ID, e.UserID, e.MemoryID, e.EventType, e.Actor, e.Reason, e.CreatedAt)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the race this store leans on for exactly-
// once semantics.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type pqError interface{ Error() string }
	if pe, ok := err.(pqError); ok {
		return len(pe.Error()) > 0 && containsCode23505(pe.Error())
	}
	return false
}

func containsCode23505(s string) bool {
	for i := 0; i+5 <= len(s); i++ {
		if s[i:i+5] == "23505" {
			return true
		}
	}
	return false
}
