// Package models defines the domain entities shared across the agent
// execution core: sessions, messages, tool executions, confirmations,
// policy decisions, and long-term memories.
package models

import "time"

// Role indicates the author of an AgentMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Modality indicates how an utterance was delivered.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVoice Modality = "voice"
)

// MessageStatus tracks an AgentMessage's lifecycle.
type MessageStatus string

const (
	MessageCreated    MessageStatus = "CREATED"
	MessageProcessing MessageStatus = "PROCESSING"
	MessageCompleted  MessageStatus = "COMPLETED"
	MessageFailed     MessageStatus = "FAILED"
)

// ToolExecutionStatus is the state machine driving a ToolExecution row.
type ToolExecutionStatus string

const (
	ToolExecRequested           ToolExecutionStatus = "REQUESTED"
	ToolExecPolicyDenied        ToolExecutionStatus = "POLICY_DENIED"
	ToolExecAwaitingConfirm     ToolExecutionStatus = "AWAITING_CONFIRMATION"
	ToolExecConfirmed           ToolExecutionStatus = "CONFIRMED"
	ToolExecRunning             ToolExecutionStatus = "RUNNING"
	ToolExecSucceeded           ToolExecutionStatus = "SUCCEEDED"
	ToolExecFailed              ToolExecutionStatus = "FAILED"
	ToolExecCancelled           ToolExecutionStatus = "CANCELLED"
	ToolExecExpired             ToolExecutionStatus = "EXPIRED"
)

// legalToolExecTransitions enumerates the ToolExecution state machine.
var legalToolExecTransitions = map[ToolExecutionStatus][]ToolExecutionStatus{
	ToolExecRequested:       {ToolExecPolicyDenied, ToolExecAwaitingConfirm, ToolExecRunning},
	ToolExecAwaitingConfirm: {ToolExecConfirmed, ToolExecCancelled, ToolExecExpired},
	ToolExecConfirmed:       {ToolExecRunning},
	ToolExecRunning:         {ToolExecSucceeded, ToolExecFailed},
}

// terminalToolExecStatuses are absorbing: no further transition is legal.
var terminalToolExecStatuses = map[ToolExecutionStatus]bool{
	ToolExecPolicyDenied: true,
	ToolExecSucceeded:    true,
	ToolExecFailed:       true,
	ToolExecCancelled:    true,
	ToolExecExpired:      true,
}

// CanTransition reports whether from -> to is a legal ToolExecution move.
func CanTransition(from, to ToolExecutionStatus) bool {
	if terminalToolExecStatuses[from] {
		return false
	}
	for _, candidate := range legalToolExecTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status is absorbing.
func IsTerminal(status ToolExecutionStatus) bool {
	return terminalToolExecStatuses[status]
}

// ConfirmationStatus is the Confirmation Manager's state machine.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "PENDING"
	ConfirmationAccepted ConfirmationStatus = "ACCEPTED"
	ConfirmationRejected ConfirmationStatus = "REJECTED"
	ConfirmationExpired  ConfirmationStatus = "EXPIRED"
	// ConfirmationConsumed marks an ACCEPTED confirmation whose reservation
	// has already granted a one-shot policy allow.
	ConfirmationConsumed ConfirmationStatus = "CONSUMED"
)

// PolicyDecisionType is the Policy Engine's classification.
type PolicyDecisionType string

const (
	DecisionAllow               PolicyDecisionType = "ALLOW"
	DecisionAllowWithConfirm    PolicyDecisionType = "ALLOW_WITH_CONFIRMATION"
	DecisionEscalate            PolicyDecisionType = "ESCALATE"
	DecisionDeny                PolicyDecisionType = "DENY"
)

// ActionType classifies what a tool call does to its target entity.
type ActionType string

const (
	ActionRead    ActionType = "READ"
	ActionWrite   ActionType = "WRITE"
	ActionExecute ActionType = "EXECUTE"
	ActionDelete  ActionType = "DELETE"
)

// Sensitivity is a tool's declared risk tier.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Scope describes how many entities a single invocation touches.
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeBatch  Scope = "batch"
	ScopeAll    Scope = "all"
)

// ToolCategory groups tools for policy and catalog purposes.
type ToolCategory string

const (
	CategoryCalendar ToolCategory = "calendar"
	CategoryEmail    ToolCategory = "email"
	CategoryFiles    ToolCategory = "files"
	CategoryTasks    ToolCategory = "tasks"
	CategorySystem   ToolCategory = "system"
	CategoryWeb      ToolCategory = "web"
	CategoryMemory   ToolCategory = "memory"
	CategoryOther    ToolCategory = "other"
)

// MemoryType enumerates the kinds of durable facts the Memory Store holds.
type MemoryType string

const (
	MemoryFact       MemoryType = "FACT"
	MemoryPreference MemoryType = "PREFERENCE"
	MemoryTask       MemoryType = "TASK"
	MemorySummary    MemoryType = "SUMMARY"
	MemoryContact    MemoryType = "CONTACT"
	MemoryProject    MemoryType = "PROJECT"
	MemoryNote       MemoryType = "NOTE"
	MemoryDocument   MemoryType = "DOCUMENT"
)

// MemoryEventType enumerates the Memory audit trail's event kinds.
type MemoryEventType string

const (
	MemoryEventCreated   MemoryEventType = "CREATED"
	MemoryEventUpdated   MemoryEventType = "UPDATED"
	MemoryEventDeleted   MemoryEventType = "DELETED"
	MemoryEventRetrieved MemoryEventType = "RETRIEVED"
	MemoryEventExpired   MemoryEventType = "EXPIRED"
)

// User is the top of the ownership hierarchy: `User 1—* Session`.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Scopes       []string       `json:"scopes"`
	Settings     map[string]any `json:"settings,omitempty"`
	IsSuperuser  bool           `json:"is_superuser"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Session is a conversation thread belonging to one user.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	StartedAt      time.Time  `json:"started_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	ScopesOverride []string   `json:"scopes_override,omitempty"`
}

// Valid reports whether the session may still accept turns.
func (s *Session) Valid(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return true
}

// EffectiveScopes returns ScopesOverride if set, else the user's own scopes.
func (s *Session) EffectiveScopes(user *User) []string {
	if s.ScopesOverride != nil {
		return s.ScopesOverride
	}
	if user == nil {
		return nil
	}
	return user.Scopes
}

// AgentMessage is one turn-half: a user utterance or an assistant reply.
type AgentMessage struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"session_id"`
	UserID          string        `json:"user_id"`
	Role            Role          `json:"role"`
	Content         string        `json:"content"`
	Modality        Modality      `json:"modality"`
	Status          MessageStatus `json:"status"`
	IdempotencyKey  string        `json:"idempotency_key,omitempty"`
	TraceID         string        `json:"trace_id,omitempty"`
	// Channel/ChannelMessageID are optional metadata a future transport
	// layer may stamp; the core persists but never interprets them.
	Channel          string `json:"channel,omitempty"`
	ChannelMessageID string `json:"channel_message_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ToolExecution is the audited record of one attempted tool invocation.
type ToolExecution struct {
	ID             string              `json:"id"`
	SessionID      string              `json:"session_id"`
	UserID         string              `json:"user_id"`
	ToolName       string              `json:"tool_name"`
	Input          map[string]any      `json:"input"`
	Status         ToolExecutionStatus `json:"status"`
	IdempotencyKey string              `json:"idempotency_key"`
	Result         map[string]any      `json:"result,omitempty"`
	Error          string              `json:"error,omitempty"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	TraceID        string              `json:"trace_id,omitempty"`
}

// Confirmation is an out-of-band acceptance record for a pending tool call.
type Confirmation struct {
	ID              string             `json:"id"`
	ToolExecutionID string             `json:"tool_execution_id"`
	UserID          string             `json:"user_id"`
	SessionID       string             `json:"session_id"`
	Status          ConfirmationStatus `json:"status"`
	Prompt          string             `json:"prompt"`
	RequiredPhrase  string             `json:"required_phrase,omitempty"`
	ExpiresAt       time.Time          `json:"expires_at"`
	Payload         map[string]any     `json:"payload"`
}

// PolicyDecision is an audit record only; the engine never reads these back.
type PolicyDecision struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	UserID    string             `json:"user_id"`
	ToolName  string             `json:"tool_name"`
	Decision  PolicyDecisionType `json:"decision"`
	RiskScore int                `json:"risk_score"`
	ReasonCode string            `json:"reason_code"`
	CreatedAt time.Time          `json:"created_at"`
}

// Memory is a durable, user-scoped, vector-indexed fact.
type Memory struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	SessionID   string         `json:"session_id,omitempty"`
	Type        MemoryType     `json:"type"`
	Source      string         `json:"source"`
	Content     string         `json:"content"`
	ContentHash string         `json:"content_hash"`
	Embedding   []float32      `json:"embedding,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsDeleted   bool           `json:"is_deleted"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	// Score is populated on retrieval results only; not persisted.
	Score float64 `json:"score,omitempty"`
}

// MemoryEvent is an append-only audit row for a Memory's lifecycle.
type MemoryEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	MemoryID  string          `json:"memory_id"`
	EventType MemoryEventType `json:"event_type"`
	Actor     string          `json:"actor"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToolCall is an audit-log row distinct from ToolExecution: it records
// every attempt (including guard rejections) for rate-limit/loop-breaker
// queries.
type ToolCall struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	ToolName   string    `json:"tool_name"`
	Status     string    `json:"status"` // "success" | "error"
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
