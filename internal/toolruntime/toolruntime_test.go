package toolruntime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func setup(t *testing.T) (store.Store, *toolregistry.Registry) {
	t.Helper()
	db := store.NewMemStore()
	ctx := context.Background()

	user := &models.User{ID: "user-1", Scopes: []string{"files:read", "files:write"}}
	if err := db.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	session := &models.Session{ID: "sess-1", UserID: "user-1", StartedAt: time.Now()}
	if err := db.Sessions().Create(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	reg := toolregistry.New()
	return db, reg
}

func registerReadTool(t *testing.T, reg *toolregistry.Registry) {
	t.Helper()
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
		return map[string]any{"message": "listed"}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestExecuteUnknownToolDenies(t *testing.T) {
	db, reg := setup(t)
	rt := New(db, reg)

	res, err := rt.Execute(context.Background(), Request{
		UserID: "user-1", SessionID: "sess-1", ToolName: "nope", Args: map[string]any{},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != StatusDenied || res.Error != "UNKNOWN_TOOL" {
		t.Fatalf("expected denied/UNKNOWN_TOOL, got %+v", res)
	}
}

func TestExecuteMissingScopeDenies(t *testing.T) {
	db, reg := setup(t)
	schema, err := toolregistry.CompileSchema("admin_args", `{"type":"object"}`)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	err = reg.Register(toolregistry.ToolSpec{
		Name:               "admin_reset",
		Category:           models.CategorySystem,
		ArgsSchema:         schema,
		DefaultActionType:  models.ActionExecute,
		DefaultSensitivity: models.SensitivityHigh,
		DefaultScope:       models.ScopeSingle,
		RequiredScope:      "admin:write",
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		t.Fatal("handler must not run without the required scope")
		return nil, errors.New("unreachable")
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rt := New(db, reg)

	res, err := rt.Execute(context.Background(), Request{
		UserID: "user-1", SessionID: "sess-1", ToolName: "admin_reset", Args: map[string]any{},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != StatusDenied || res.Error != "SCOPE_MISSING" {
		t.Fatalf("expected denied/SCOPE_MISSING, got %+v", res)
	}
}

func TestExecuteSucceedsForLowRiskRead(t *testing.T) {
	db, reg := setup(t)
	registerReadTool(t, reg)
	rt := New(db, reg)

	res, err := rt.Execute(context.Background(), Request{
		UserID: "user-1", SessionID: "sess-1", ToolName: "list_files", Args: map[string]any{},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Data["message"] != "listed" {
		t.Fatalf("expected handler result to flow through, got %+v", res.Data)
	}
}

func TestExecuteIsIdempotentOnRepeatedKey(t *testing.T) {
	db, reg := setup(t)
	registerReadTool(t, reg)
	rt := New(db, reg)

	req := Request{UserID: "user-1", SessionID: "sess-1", ToolName: "list_files", Args: map[string]any{}, IdempotencyKey: "key-1"}
	first, err := rt.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	second, err := rt.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if second.Status != StatusSuccess || second.Data["message"] != first.Data["message"] {
		t.Fatalf("expected the cached terminal result to be returned, got %+v", second)
	}
}

func TestExecuteDestructiveRequiresConfirmation(t *testing.T) {
	db, reg := setup(t)
	schema, err := toolregistry.CompileSchema("delete_file_args", `{"type":"object"}`)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	err = reg.Register(toolregistry.ToolSpec{
		Name:               "delete_file",
		Category:           models.CategoryFiles,
		ArgsSchema:         schema,
		Destructive:        true,
		DefaultActionType:  models.ActionDelete,
		DefaultSensitivity: models.SensitivityHigh,
		DefaultScope:       models.ScopeSingle,
		RequiredScope:      "files:write",
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		t.Fatal("handler must not run before confirmation")
		return nil, errors.New("unreachable")
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rt := New(db, reg)

	res, err := rt.Execute(context.Background(), Request{
		UserID: "user-1", SessionID: "sess-1", ToolName: "delete_file",
		Args: map[string]any{"path": "/tmp/x"}, TargetEntity: "/tmp/x",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != StatusNeedsConfirm {
		t.Fatalf("expected needs_confirmation, got %+v", res)
	}
	if res.PendingConfirmationID == "" {
		t.Fatal("expected a pending confirmation id")
	}
}

func TestExecuteHandlerErrorPersistsFailure(t *testing.T) {
	db, reg := setup(t)
	schema, err := toolregistry.CompileSchema("flaky_args", `{"type":"object"}`)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	err = reg.Register(toolregistry.ToolSpec{
		Name:               "flaky",
		Category:           models.CategoryOther,
		ArgsSchema:         schema,
		DefaultActionType:  models.ActionRead,
		DefaultSensitivity: models.SensitivityLow,
		DefaultScope:       models.ScopeSingle,
		RequiredScope:      "files:read",
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, errors.New("boom")
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rt := New(db, reg)

	res, err := rt.Execute(context.Background(), Request{
		UserID: "user-1", SessionID: "sess-1", ToolName: "flaky", Args: map[string]any{},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected error status, got %+v", res)
	}
}
