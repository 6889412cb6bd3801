package memory

import (
	"context"
	"testing"

	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings/local"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	embedder, err := local.New(local.Config{Dimension: 64})
	if err != nil {
		t.Fatalf("new local embedder: %v", err)
	}
	db := store.NewMemStore()
	return NewManager(db, embedder, Config{}), db
}

func TestWriteDedupsOnContentHash(t *testing.T) {
	mgr, db := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.Write(ctx, WriteInput{
		UserID:  "user-1",
		Type:    models.MemoryFact,
		Source:  "conversation",
		Content: "I'm allergic to shellfish",
	})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	second, err := mgr.Write(ctx, WriteInput{
		UserID:   "user-1",
		Type:     models.MemoryFact,
		Source:   "conversation",
		Content:  "I'm allergic to shellfish",
		Metadata: map[string]any{"confidence": "high"},
	})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected duplicate write to update the same memory, got new id %s vs %s", second.ID, first.ID)
	}
	if second.Metadata["confidence"] != "high" {
		t.Fatalf("expected merged metadata to carry confidence=high, got %+v", second.Metadata)
	}

	events := db.(*store.MemStore).Events()
	var created, updated int
	for _, e := range events {
		switch e.EventType {
		case models.MemoryEventCreated:
			created++
		case models.MemoryEventUpdated:
			updated++
		}
	}
	if created != 1 || updated != 1 {
		t.Fatalf("expected 1 CREATED and 1 UPDATED event, got created=%d updated=%d", created, updated)
	}
}

func TestRetrieveTurnContextUsesLowerThreshold(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.Write(ctx, WriteInput{
		UserID:  "user-1",
		Type:    models.MemoryPreference,
		Source:  "conversation",
		Content: "prefers flights with aisle seats",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	results, err := mgr.RetrieveTurnContext(ctx, "user-1", "prefers flights with aisle seats", store.SearchFilter{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exact-text query to retrieve the memory, got %d results", len(results))
	}
}

func TestSoftDeleteRejectsCrossUserAccess(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	mem, err := mgr.Write(ctx, WriteInput{
		UserID:  "user-1",
		Type:    models.MemoryFact,
		Content: "lives in Denver",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := mgr.SoftDelete(ctx, mem.ID, "user-2", "user-2", "not theirs"); err == nil {
		t.Fatal("expected cross-user soft delete to be rejected")
	}

	if err := mgr.SoftDelete(ctx, mem.ID, "user-1", "user-1", "no longer true"); err != nil {
		t.Fatalf("expected same-user soft delete to succeed: %v", err)
	}
}
