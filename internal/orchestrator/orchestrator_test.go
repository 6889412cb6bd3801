package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jadhavgaurav/agentcore/internal/confirmation"
	"github.com/jadhavgaurav/agentcore/internal/intent"
	"github.com/jadhavgaurav/agentcore/internal/memory"
	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings/local"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
	"github.com/jadhavgaurav/agentcore/internal/toolruntime"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// fakeParser returns a scripted Intent regardless of input, for
// deterministic orchestrator tests without a live LLM.
type fakeParser struct {
	intent intent.Intent
	err    error
}

func (f *fakeParser) Parse(ctx context.Context, req intent.Request) (intent.Intent, error) {
	return f.intent, f.err
}

func newTestOrchestrator(t *testing.T, parser intent.Parser, catalog intent.Catalog) (*Orchestrator, store.Store) {
	t.Helper()
	db := store.NewMemStore()
	ctx := context.Background()

	if err := db.Users().Create(ctx, &models.User{ID: "user-1", Scopes: []string{"files:read"}}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := db.Sessions().Create(ctx, &models.Session{ID: "sess-1", UserID: "user-1", StartedAt: time.Now()}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	reg := toolregistry.New()
	schema, err := toolregistry.CompileSchema("list_files_args", `{"type":"object"}`)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	err = reg.Register(toolregistry.ToolSpec{
		Name:               "list_files",
		Category:           models.CategoryFiles,
		ArgsSchema:         schema,
		DefaultActionType:  models.ActionRead,
		DefaultSensitivity: models.SensitivityLow,
		DefaultScope:       models.ScopeSingle,
		RequiredScope:      "files:read",
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"message": "2 files found"}, nil
	})
	if err != nil {
		t.Fatalf("register tool: %v", err)
	}

	embedder, err := local.New(local.Config{Dimension: 32})
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	mem := memory.NewManager(db, embedder, memory.Config{})

	o := New(Deps{
		Store:   db,
		Confirm: confirmation.New(db),
		Memory:  mem,
		Parser:  parser,
		Catalog: catalog,
		Runtime: toolruntime.New(db, reg),
	})
	return o, db
}

func TestHandleTurnExecutesKnownIntent(t *testing.T) {
	catalog := intent.Catalog{
		"list_files": {Name: "list_files", ToolName: "list_files", Description: "list files"},
	}
	parser := &fakeParser{intent: intent.Intent{Name: "list_files", Slots: map[string]any{}, Confidence: 0.9}}
	o, _ := newTestOrchestrator(t, parser, catalog)

	resp, err := o.HandleTurn(context.Background(), TurnRequest{
		SessionID: "sess-1", UserID: "user-1", Content: "list my files", Modality: models.ModalityText,
	})
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if resp.AssistantText != "Done. 2 files found" {
		t.Fatalf("unexpected assistant text: %q", resp.AssistantText)
	}
}

func TestHandleTurnReturnsClarifyingQuestionForUnknownIntent(t *testing.T) {
	catalog := intent.Catalog{}
	parser := &fakeParser{intent: intent.Intent{Name: intent.UnknownIntentName, NeedsClarification: true, ClarifyingQuestion: "What would you like?"}}
	o, _ := newTestOrchestrator(t, parser, catalog)

	resp, err := o.HandleTurn(context.Background(), TurnRequest{
		SessionID: "sess-1", UserID: "user-1", Content: "do the thing", Modality: models.ModalityText,
	})
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if resp.AssistantText != "What would you like?" {
		t.Fatalf("unexpected assistant text: %q", resp.AssistantText)
	}
}

func TestHandleTurnReplaysDuplicateByTraceID(t *testing.T) {
	catalog := intent.Catalog{
		"list_files": {Name: "list_files", ToolName: "list_files", Description: "list files"},
	}
	parser := &fakeParser{intent: intent.Intent{Name: "list_files", Slots: map[string]any{}, Confidence: 0.9}}
	o, _ := newTestOrchestrator(t, parser, catalog)

	req := TurnRequest{SessionID: "sess-1", UserID: "user-1", Content: "list my files", Modality: models.ModalityText, TraceID: "trace-1"}
	first, err := o.HandleTurn(context.Background(), req)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := o.HandleTurn(context.Background(), req)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.AssistantText != first.AssistantText {
		t.Fatalf("expected the replayed reply to match, got %q vs %q", second.AssistantText, first.AssistantText)
	}
}

// TestHandleTurnIdempotencyKeyPreventsDuplicateToolExecution covers a
// retried turn that arrives with a fresh trace_id (as a client's retried
// HTTP request would) but the same caller-supplied Idempotency-Key. The
// tool must run exactly once.
func TestHandleTurnIdempotencyKeyPreventsDuplicateToolExecution(t *testing.T) {
	catalog := intent.Catalog{
		"list_files": {Name: "list_files", ToolName: "list_files", Description: "list files"},
	}
	parser := &fakeParser{intent: intent.Intent{Name: "list_files", Slots: map[string]any{}, Confidence: 0.9}}
	o, db := newTestOrchestrator(t, parser, catalog)

	first, err := o.HandleTurn(context.Background(), TurnRequest{
		SessionID: "sess-1", UserID: "user-1", Content: "list my files",
		Modality: models.ModalityText, IdempotencyKey: "retry-key-1", TraceID: "trace-a",
	})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := o.HandleTurn(context.Background(), TurnRequest{
		SessionID: "sess-1", UserID: "user-1", Content: "list my files",
		Modality: models.ModalityText, IdempotencyKey: "retry-key-1", TraceID: "trace-b",
	})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.AssistantText != first.AssistantText {
		t.Fatalf("expected the replayed reply to match, got %q vs %q", second.AssistantText, first.AssistantText)
	}

	execs, err := db.ToolExecutions().RecentBySessionAndTool(context.Background(), "sess-1", "list_files", 10)
	if err != nil {
		t.Fatalf("list tool executions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected exactly one ToolExecution for the retried turn, got %d", len(execs))
	}
	if execs[0].Status != models.ToolExecSucceeded {
		t.Fatalf("expected the single execution to have succeeded, got %s", execs[0].Status)
	}
}
