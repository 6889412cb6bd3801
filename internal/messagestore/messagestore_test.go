package messagestore

import (
	"context"
	"testing"

	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func TestSaveUserMessageDedupsByIdempotencyKey(t *testing.T) {
	db := store.NewMemStore()
	ctx := context.Background()

	first, err := SaveUserMessage(ctx, db, "sess-1", "user-1", "hello", models.ModalityText, "key-1", "")
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	second, err := SaveUserMessage(ctx, db, "sess-1", "user-1", "hello again", models.ModalityText, "key-1", "")
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if second.ID != first.ID || second.Content != "hello" {
		t.Fatalf("expected the original row to be returned unchanged, got %+v", second)
	}
}

func TestSaveUserMessageDefaultsIdempotencyKey(t *testing.T) {
	db := store.NewMemStore()
	ctx := context.Background()

	first, err := SaveUserMessage(ctx, db, "sess-1", "user-1", "hi there", models.ModalityText, "", "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.IdempotencyKey == "" {
		t.Fatal("expected a derived idempotency key when none was supplied")
	}

	second, err := SaveUserMessage(ctx, db, "sess-1", "user-1", "hi there", models.ModalityText, "", "")
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected identical (session, content) to derive the same key and dedupe")
	}
}

func TestSaveAssistantMessageAlwaysInserts(t *testing.T) {
	db := store.NewMemStore()
	ctx := context.Background()

	first, err := SaveAssistantMessage(ctx, db, "sess-1", "user-1", "done", models.ModalityText, "trace-1")
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	second, err := SaveAssistantMessage(ctx, db, "sess-1", "user-1", "done", models.ModalityText, "trace-1")
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected two distinct assistant message rows")
	}
}
