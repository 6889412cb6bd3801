// Package store defines the repository interfaces the agent execution core
// persists through, plus a Postgres-backed implementation (internal/store
// postgres.go) and an in-memory implementation (memory.go) used in tests.
// All state mutations happen through these interfaces; idempotency is
// enforced by the backing unique constraints, never by application-level
// locking alone.
package store

import (
	"context"
	"time"

	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// NotFoundError is returned by repository lookups that miss.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.Entity == "" {
		return "not found"
	}
	return e.Entity + " not found: " + e.ID
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// Users persists User rows.
type Users interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

// Sessions persists Session rows.
type Sessions interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, s *models.Session) error
	Revoke(ctx context.Context, id string, at time.Time) error
}

// Messages persists AgentMessage rows with idempotent insert semantics.
type Messages interface {
	// GetByIdempotencyKey looks up a user-role message already saved in this
	// session under key. Returns ErrNotFound if none exists.
	GetByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.AgentMessage, error)
	// GetByTraceID returns the first assistant message correlated with
	// traceID within sessionID, used to replay a duplicate turn.
	GetAssistantByTraceID(ctx context.Context, sessionID, traceID string) (*models.AgentMessage, error)
	Insert(ctx context.Context, m *models.AgentMessage) error
	// RecentBySession returns the last n messages in chronological order,
	// ties broken by id.
	RecentBySession(ctx context.Context, sessionID string, n int) ([]*models.AgentMessage, error)
}

// ToolExecutions persists ToolExecution rows and enforces a state
// machine where transitions are serialized per row.
type ToolExecutions interface {
	// Reserve attempts to insert a REQUESTED row keyed by
	// (user_id, idempotency_key). ok=false with no error means a row
	// already existed and existing holds it.
	Reserve(ctx context.Context, exec *models.ToolExecution) (existing *models.ToolExecution, ok bool, err error)
	Get(ctx context.Context, id string) (*models.ToolExecution, error)
	// Transition performs a compare-and-set status update, returning an
	// error if from->to is not a legal transition or the row's current
	// status no longer matches from.
	Transition(ctx context.Context, id string, from, to models.ToolExecutionStatus, mutate func(*models.ToolExecution)) error
	// RecentBySessionAndTool returns up to n most recent rows for guard
	// queries, newest first.
	RecentBySessionAndTool(ctx context.Context, sessionID, toolName string, n int) ([]*models.ToolExecution, error)
	// CountSince counts invocations of (session_id, tool_name) with
	// started_at/created in [since, now], for the rate-limit guard.
	CountSince(ctx context.Context, sessionID, toolName string, since time.Time) (int, error)
}

// ToolCalls persists the audit-log rows guards read, backed by the
// ToolExecution and ToolCall audit tables.
type ToolCalls interface {
	Insert(ctx context.Context, c *models.ToolCall) error
}

// Confirmations persists Confirmation rows and enforces the one-pending-
// per-session invariant.
type Confirmations interface {
	// CancelPending transitions every PENDING confirmation in sessionID to
	// CANCELLED, returning how many were cancelled.
	CancelPending(ctx context.Context, sessionID string) (int, error)
	Create(ctx context.Context, c *models.Confirmation) error
	Get(ctx context.Context, id string) (*models.Confirmation, error)
	// PendingBySession returns the session's single PENDING confirmation,
	// if any.
	PendingBySession(ctx context.Context, sessionID string) (*models.Confirmation, error)
	Update(ctx context.Context, c *models.Confirmation) error
	// AcceptedMatching returns an ACCEPTED, unexpired, unconsumed
	// confirmation in sessionID whose payload matches (toolName, args).
	AcceptedMatching(ctx context.Context, sessionID, toolName string, args map[string]any) (*models.Confirmation, error)
}

// PolicyDecisions persists the Policy Engine's audit trail; it is never
// consulted for logic, only recorded.
type PolicyDecisions interface {
	Insert(ctx context.Context, d *models.PolicyDecision) error
}

// Memories persists Memory rows with a content-hash dedup invariant.
type Memories interface {
	GetByContentHash(ctx context.Context, userID, hash string) (*models.Memory, error)
	Insert(ctx context.Context, m *models.Memory) error
	Update(ctx context.Context, m *models.Memory) error
	Get(ctx context.Context, id string) (*models.Memory, error)
	// Search returns undeleted, unexpired memories for userID matching
	// filter, ordered by cosine distance to embedding ascending.
	Search(ctx context.Context, userID string, embedding []float32, filter SearchFilter) ([]*models.Memory, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]*models.Memory, error)
	SoftDelete(ctx context.Context, id string) error
}

// SearchFilter narrows a Memories.Search call.
type SearchFilter struct {
	Types         []models.MemoryType
	MetadataMatch map[string]any
	TopK          int
	MaxDistance   float64 // 1 - min_score
}

// ListFilter narrows a Memories.List call (GET /memories).
type ListFilter struct {
	Type   models.MemoryType
	Query  string
	Limit  int
	Offset int
}

// MemoryEvents persists the append-only Memory audit trail.
type MemoryEvents interface {
	Insert(ctx context.Context, e *models.MemoryEvent) error
}

// Store aggregates every repository the core depends on, plus a
// transaction boundary for multi-step writes.
type Store interface {
	Users() Users
	Sessions() Sessions
	Messages() Messages
	ToolExecutions() ToolExecutions
	ToolCalls() ToolCalls
	Confirmations() Confirmations
	PolicyDecisions() PolicyDecisions
	Memories() Memories
	MemoryEvents() MemoryEvents

	// WithTx runs fn inside a transaction-scoped Store; the reservation,
	// policy+confirmation-creation, and terminal persistence steps each
	// run in their own short transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
