// Package memory implements the long-term Memory Store: durable,
// user-scoped, vector-indexed facts with content-hash dedup and a
// cosine-distance top-k retrieval API.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jadhavgaurav/agentcore/internal/agenterrors"
	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings"
	"github.com/jadhavgaurav/agentcore/internal/redact"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// Config tunes the Memory Store's retrieval thresholds. The two min-score
// constants are kept distinct per the general-vs-turn-context retrieval
// split: general recall favors precision, turn-context assembly favors
// recall, so it accepts a lower score.
type Config struct {
	GeneralMinScore     float64
	TurnContextMinScore float64
	RetrieveTopK        int
}

// Manager is the Memory Store. It owns content hashing, dedup-with-merge,
// embedding generation, and MemoryEvent emission; store.Store is the only
// thing it persists through.
type Manager struct {
	store    store.Store
	embedder embeddings.Provider
	cfg      Config
}

// NewManager builds a Memory Store manager over db, embedding new and
// queried content with embedder.
func NewManager(db store.Store, embedder embeddings.Provider, cfg Config) *Manager {
	if cfg.RetrieveTopK <= 0 {
		cfg.RetrieveTopK = 5
	}
	if cfg.GeneralMinScore <= 0 {
		cfg.GeneralMinScore = 0.70
	}
	if cfg.TurnContextMinScore <= 0 {
		cfg.TurnContextMinScore = 0.65
	}
	return &Manager{store: db, embedder: embedder, cfg: cfg}
}

// WriteInput describes a candidate memory to persist.
type WriteInput struct {
	UserID    string
	SessionID string
	Type      models.MemoryType
	Source    string
	Content   string
	Metadata  map[string]any
	ExpiresAt *time.Time
}

// Write persists a memory. If a non-deleted memory with the same content
// hash already exists for this user, it is updated in place and its
// metadata is merged rather than duplicated; otherwise a new row is
// inserted. Either path emits the corresponding MemoryEvent.
func (m *Manager) Write(ctx context.Context, in WriteInput) (*models.Memory, error) {
	if in.Content == "" {
		return nil, agenterrors.New(agenterrors.KindValidation, "memory content must not be empty", nil)
	}
	redactedContent, _ := redact.Value(in.Content).Value.(string)
	redactedMetadata, _ := redact.Value(in.Metadata).Value.(map[string]any)
	hash := redact.ContentHash(redactedContent)

	existing, err := m.store.Memories().GetByContentHash(ctx, in.UserID, hash)
	if err != nil && !store.IsNotFound(err) {
		return nil, fmt.Errorf("lookup existing memory: %w", err)
	}
	if existing != nil {
		merged := mergeMetadata(existing.Metadata, redactedMetadata)
		existing.Metadata = merged
		existing.UpdatedAt = nowOrEmbedTime()
		if in.ExpiresAt != nil {
			existing.ExpiresAt = in.ExpiresAt
		}
		if err := m.store.Memories().Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update existing memory: %w", err)
		}
		if err := m.emit(ctx, existing.ID, in.UserID, models.MemoryEventUpdated, "system", "duplicate content, merged metadata"); err != nil {
			return nil, err
		}
		return existing, nil
	}

	embedding, err := m.embedder.Embed(ctx, redactedContent)
	if err != nil {
		return nil, agenterrors.New(agenterrors.KindEmbeddingUnavailable, "embedding provider unavailable", err)
	}

	now := nowOrEmbedTime()
	mem := &models.Memory{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		Type:        in.Type,
		Source:      in.Source,
		Content:     redactedContent,
		ContentHash: hash,
		Embedding:   embedding,
		Metadata:    redactedMetadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   in.ExpiresAt,
	}
	if err := m.store.Memories().Insert(ctx, mem); err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	if err := m.emit(ctx, mem.ID, in.UserID, models.MemoryEventCreated, "system", ""); err != nil {
		return nil, err
	}
	return mem, nil
}

// RetrieveGeneral runs a top-k cosine-similarity search using the general
// (higher precision) score threshold.
func (m *Manager) RetrieveGeneral(ctx context.Context, userID, query string, filter store.SearchFilter) ([]*models.Memory, error) {
	return m.retrieve(ctx, userID, query, filter, m.cfg.GeneralMinScore)
}

// RetrieveTurnContext runs a top-k search using the lower turn-context
// score threshold, for assembling a turn's working context.
func (m *Manager) RetrieveTurnContext(ctx context.Context, userID, query string, filter store.SearchFilter) ([]*models.Memory, error) {
	return m.retrieve(ctx, userID, query, filter, m.cfg.TurnContextMinScore)
}

func (m *Manager) retrieve(ctx context.Context, userID, query string, filter store.SearchFilter, minScore float64) ([]*models.Memory, error) {
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, agenterrors.New(agenterrors.KindEmbeddingUnavailable, "embedding provider unavailable", err)
	}
	if filter.TopK <= 0 {
		filter.TopK = m.cfg.RetrieveTopK
	}
	filter.MaxDistance = 1 - minScore

	results, err := m.store.Memories().Search(ctx, userID, embedding, filter)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	for _, r := range results {
		if err := m.emit(ctx, r.ID, userID, models.MemoryEventRetrieved, "system", ""); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Update replaces a memory's content, re-embedding and re-hashing it.
func (m *Manager) Update(ctx context.Context, id, userID, content string, metadata map[string]any) (*models.Memory, error) {
	existing, err := m.store.Memories().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, agenterrors.New(agenterrors.KindScopeMissing, "memory belongs to a different user", nil)
	}

	redactedContent, _ := redact.Value(content).Value.(string)
	redactedMetadata, _ := redact.Value(metadata).Value.(map[string]any)

	embedding, err := m.embedder.Embed(ctx, redactedContent)
	if err != nil {
		return nil, agenterrors.New(agenterrors.KindEmbeddingUnavailable, "embedding provider unavailable", err)
	}

	existing.Content = redactedContent
	existing.ContentHash = redact.ContentHash(redactedContent)
	existing.Embedding = embedding
	existing.Metadata = mergeMetadata(existing.Metadata, redactedMetadata)
	existing.UpdatedAt = nowOrEmbedTime()

	if err := m.store.Memories().Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if err := m.emit(ctx, existing.ID, userID, models.MemoryEventUpdated, "user", ""); err != nil {
		return nil, err
	}
	return existing, nil
}

// SoftDelete marks a memory deleted without removing its row, preserving
// the audit trail.
func (m *Manager) SoftDelete(ctx context.Context, id, userID, actor, reason string) error {
	existing, err := m.store.Memories().Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return agenterrors.New(agenterrors.KindScopeMissing, "memory belongs to a different user", nil)
	}
	if err := m.store.Memories().SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("soft delete memory: %w", err)
	}
	return m.emit(ctx, id, userID, models.MemoryEventDeleted, actor, reason)
}

// ExpireDue scans userID's memories for ones past their expiry and soft-
// deletes them, emitting an EXPIRED event rather than a DELETED one.
func (m *Manager) ExpireDue(ctx context.Context, userID string, now time.Time) (int, error) {
	mems, err := m.store.Memories().List(ctx, userID, store.ListFilter{Limit: 10000})
	if err != nil {
		return 0, fmt.Errorf("list memories: %w", err)
	}
	expired := 0
	for _, mem := range mems {
		if mem.ExpiresAt == nil || mem.ExpiresAt.After(now) {
			continue
		}
		if err := m.store.Memories().SoftDelete(ctx, mem.ID); err != nil {
			return expired, fmt.Errorf("soft delete expired memory %s: %w", mem.ID, err)
		}
		if err := m.emit(ctx, mem.ID, userID, models.MemoryEventExpired, "system", "ttl elapsed"); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (m *Manager) emit(ctx context.Context, memoryID, userID string, eventType models.MemoryEventType, actor, reason string) error {
	return m.store.MemoryEvents().Insert(ctx, &models.MemoryEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		MemoryID:  memoryID,
		EventType: eventType,
		Actor:     actor,
		Reason:    reason,
		CreatedAt: nowOrEmbedTime(),
	})
}

// mergeMetadata overlays updates onto base, preferring updates on key
// conflicts, per the dedup-in-place-with-merge-metadata invariant.
func mergeMetadata(base, updates map[string]any) map[string]any {
	if base == nil && updates == nil {
		return nil
	}
	merged := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// nowOrEmbedTime isolates the one wall-clock read in this package so
// callers that need deterministic tests can wrap Manager's store with a
// fixed clock at the store layer instead.
func nowOrEmbedTime() time.Time {
	return time.Now().UTC()
}
