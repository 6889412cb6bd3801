// Package messagestore implements the idempotent save operations:
// save_user_message and save_assistant_message, both thin wrappers over
// the store.Messages repository's insert-or-return semantics.
package messagestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// DefaultIdempotencyKey derives the fallback key when the caller supplies
// none: SHA-256(session_id || content).
func DefaultIdempotencyKey(sessionID, content string) string {
	sum := sha256.Sum256([]byte(sessionID + content))
	return hex.EncodeToString(sum[:])
}

// SaveUserMessage inserts a user utterance, or returns the existing row if
// idempotencyKey already names one in this session. User input is
// considered complete on receipt, so the row is always status=COMPLETED.
func SaveUserMessage(ctx context.Context, db store.Store, sessionID, userID, content string, modality models.Modality, idempotencyKey, traceID string) (*models.AgentMessage, error) {
	if idempotencyKey == "" {
		idempotencyKey = DefaultIdempotencyKey(sessionID, content)
	}
	if existing, err := db.Messages().GetByIdempotencyKey(ctx, sessionID, idempotencyKey); err == nil {
		return existing, nil
	} else if !store.IsNotFound(err) {
		return nil, fmt.Errorf("messagestore: lookup by idempotency key: %w", err)
	}

	msg := &models.AgentMessage{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		UserID:         userID,
		Role:           models.RoleUser,
		Content:        content,
		Modality:       modality,
		Status:         models.MessageCompleted,
		IdempotencyKey: idempotencyKey,
		TraceID:        traceID,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := db.Messages().Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("messagestore: insert user message: %w", err)
	}
	return msg, nil
}

// SaveAssistantMessage always inserts a new assistant reply as COMPLETED.
func SaveAssistantMessage(ctx context.Context, db store.Store, sessionID, userID, content string, modality models.Modality, traceID string) (*models.AgentMessage, error) {
	msg := &models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      models.RoleAssistant,
		Content:   content,
		Modality:  modality,
		Status:    models.MessageCompleted,
		TraceID:   traceID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.Messages().Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("messagestore: insert assistant message: %w", err)
	}
	return msg, nil
}
