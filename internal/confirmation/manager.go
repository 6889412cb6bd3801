// Package confirmation implements the pending-confirmation lifecycle: a
// human-in-the-loop gate the Tool Runtime opens when the Policy Engine
// asks for explicit acceptance before a risky tool call proceeds.
package confirmation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jadhavgaurav/agentcore/internal/agenterrors"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

const defaultTTL = 300 * time.Second

// Manager owns Confirmation creation and resolution.
type Manager struct {
	store store.Store
}

// New builds a Confirmation Manager over db.
func New(db store.Store) *Manager {
	return &Manager{store: db}
}

// CreateInput describes a new confirmation request.
type CreateInput struct {
	ToolExecutionID string
	SessionID       string
	UserID          string
	ToolName        string
	Args            map[string]any
	DecisionType    models.PolicyDecisionType
	Prompt          string
	RequiredPhrase  string
	TTL             time.Duration
}

// Create cancels every existing PENDING confirmation in the session, then
// inserts a new one, preserving the one-pending-per-session invariant.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*models.Confirmation, error) {
	if _, err := m.store.Confirmations().CancelPending(ctx, in.SessionID); err != nil {
		return nil, fmt.Errorf("cancel pending confirmations: %w", err)
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	conf := &models.Confirmation{
		ID:              uuid.NewString(),
		ToolExecutionID: in.ToolExecutionID,
		UserID:          in.UserID,
		SessionID:       in.SessionID,
		Status:          models.ConfirmationPending,
		Prompt:          in.Prompt,
		RequiredPhrase:  in.RequiredPhrase,
		ExpiresAt:       time.Now().Add(ttl),
		Payload: map[string]any{
			"tool_name": in.ToolName,
			"args":      in.Args,
		},
	}
	if err := m.store.Confirmations().Create(ctx, conf); err != nil {
		return nil, fmt.Errorf("create confirmation: %w", err)
	}
	return conf, nil
}

// ResolveOutcome classifies a Resolve call's result.
type ResolveOutcome string

const (
	ResolveAccepted     ResolveOutcome = "accepted"
	ResolveStillPending ResolveOutcome = "still_pending"
	ResolveExpired      ResolveOutcome = "expired"
	ResolveAlready      ResolveOutcome = "already"
)

// ResolveResult is what Resolve returns; ToolName/Args are populated only
// on ResolveAccepted.
type ResolveResult struct {
	Outcome  ResolveOutcome
	ToolName string
	Args     map[string]any
	// RePrompt is set when Outcome is ResolveStillPending: the phrase
	// didn't match and the caller should ask again.
	RePrompt string
	// AlreadyStatus carries the confirmation's terminal status when
	// Outcome is ResolveAlready.
	AlreadyStatus models.ConfirmationStatus
}

// Resolve applies utterance to the confirmation identified by id, scoped
// to userID/sessionID.
func (m *Manager) Resolve(ctx context.Context, id, userID, sessionID, utterance string) (*ResolveResult, error) {
	conf, err := m.store.Confirmations().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conf.UserID != userID || conf.SessionID != sessionID {
		return nil, &store.NotFoundError{Entity: "confirmation", ID: id}
	}

	if conf.Status != models.ConfirmationPending {
		return &ResolveResult{Outcome: ResolveAlready, AlreadyStatus: conf.Status}, nil
	}

	if !time.Now().Before(conf.ExpiresAt) {
		conf.Status = models.ConfirmationExpired
		if err := m.store.Confirmations().Update(ctx, conf); err != nil {
			return nil, fmt.Errorf("expire confirmation: %w", err)
		}
		return &ResolveResult{Outcome: ResolveExpired}, nil
	}

	if conf.RequiredPhrase != "" && !strings.Contains(strings.ToLower(utterance), strings.ToLower(conf.RequiredPhrase)) {
		return &ResolveResult{
			Outcome:  ResolveStillPending,
			RePrompt: fmt.Sprintf("Please say %q to confirm.", conf.RequiredPhrase),
		}, nil
	}

	conf.Status = models.ConfirmationAccepted
	if err := m.store.Confirmations().Update(ctx, conf); err != nil {
		return nil, fmt.Errorf("accept confirmation: %w", err)
	}

	toolName, _ := conf.Payload["tool_name"].(string)
	args, _ := conf.Payload["args"].(map[string]any)
	return &ResolveResult{Outcome: ResolveAccepted, ToolName: toolName, Args: args}, nil
}

// ConsumeReservation looks for an ACCEPTED, unexpired confirmation in
// sessionID matching (toolName, args) and marks it CONSUMED, granting a
// one-shot policy allow. Returns (nil, nil) when no reservation matches.
func (m *Manager) ConsumeReservation(ctx context.Context, sessionID, toolName string, args map[string]any) (*models.Confirmation, error) {
	conf, err := m.store.Confirmations().AcceptedMatching(ctx, sessionID, toolName, args)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup accepted confirmation: %w", err)
	}
	if !time.Now().Before(conf.ExpiresAt) {
		return nil, nil
	}
	conf.Status = models.ConfirmationConsumed
	if err := m.store.Confirmations().Update(ctx, conf); err != nil {
		return nil, fmt.Errorf("consume confirmation: %w", err)
	}
	return conf, nil
}

// PendingForSession returns the session's current pending confirmation,
// or an agenterrors-wrapped not-found.
func (m *Manager) PendingForSession(ctx context.Context, sessionID string) (*models.Confirmation, error) {
	conf, err := m.store.Confirmations().PendingBySession(ctx, sessionID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, agenterrors.New(agenterrors.KindInternal, "lookup pending confirmation failed", err)
	}
	return conf, nil
}
