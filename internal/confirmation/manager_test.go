package confirmation

import (
	"context"
	"testing"
	"time"

	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func TestCreateCancelsExistingPending(t *testing.T) {
	db := store.NewMemStore()
	mgr := New(db)
	ctx := context.Background()

	first, err := mgr.Create(ctx, CreateInput{
		SessionID: "sess-1", UserID: "user-1", ToolName: "send_email",
		Args: map[string]any{"to": "a@example.com"},
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	second, err := mgr.Create(ctx, CreateInput{
		SessionID: "sess-1", UserID: "user-1", ToolName: "delete_file",
		Args: map[string]any{"path": "/tmp/x"},
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	pending, err := mgr.PendingForSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("pending for session: %v", err)
	}
	if pending == nil || pending.ID != second.ID {
		t.Fatalf("expected the second confirmation to be the lone pending one, got %+v", pending)
	}

	got, err := db.Confirmations().Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if got.Status == models.ConfirmationPending {
		t.Fatal("expected first confirmation to no longer be PENDING after a second was created")
	}
}

func TestResolveRequiresPhraseMatch(t *testing.T) {
	db := store.NewMemStore()
	mgr := New(db)
	ctx := context.Background()

	conf, err := mgr.Create(ctx, CreateInput{
		SessionID: "sess-1", UserID: "user-1", ToolName: "delete_file",
		Args: map[string]any{"path": "/tmp/x"}, RequiredPhrase: "CONFIRM DELETE FILE",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := mgr.Resolve(ctx, conf.ID, "user-1", "sess-1", "yes please")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Outcome != ResolveStillPending {
		t.Fatalf("expected still_pending without the required phrase, got %s", result.Outcome)
	}

	result, err = mgr.Resolve(ctx, conf.ID, "user-1", "sess-1", "yes, confirm delete file please")
	if err != nil {
		t.Fatalf("resolve with phrase: %v", err)
	}
	if result.Outcome != ResolveAccepted {
		t.Fatalf("expected accepted once the phrase matches, got %s", result.Outcome)
	}
	if result.ToolName != "delete_file" {
		t.Fatalf("expected tool name delete_file, got %s", result.ToolName)
	}
}

func TestResolveExpiresPastTTL(t *testing.T) {
	db := store.NewMemStore()
	mgr := New(db)
	ctx := context.Background()

	conf, err := mgr.Create(ctx, CreateInput{
		SessionID: "sess-1", UserID: "user-1", ToolName: "send_email",
		Args: map[string]any{}, TTL: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(time.Millisecond)

	result, err := mgr.Resolve(ctx, conf.ID, "user-1", "sess-1", "confirm")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Outcome != ResolveExpired {
		t.Fatalf("expected expired outcome, got %s", result.Outcome)
	}
}

func TestConsumeReservationGrantsOneShotAndConsumes(t *testing.T) {
	db := store.NewMemStore()
	mgr := New(db)
	ctx := context.Background()

	args := map[string]any{"to": "a@example.com"}
	conf, err := mgr.Create(ctx, CreateInput{
		SessionID: "sess-1", UserID: "user-1", ToolName: "send_email", Args: args,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := mgr.Resolve(ctx, conf.ID, "user-1", "sess-1", "ok"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	matched, err := mgr.ConsumeReservation(ctx, "sess-1", "send_email", args)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if matched == nil {
		t.Fatal("expected a matching reservation to be found and consumed")
	}

	again, err := mgr.ConsumeReservation(ctx, "sess-1", "send_email", args)
	if err != nil {
		t.Fatalf("consume again: %v", err)
	}
	if again != nil {
		t.Fatal("expected a consumed reservation not to match a second time")
	}
}
