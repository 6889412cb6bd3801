package toolregistry

import (
	"context"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func sampleSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	schema, err := CompileSchema("send_email_args", `{
		"type": "object",
		"properties": {
			"to": {"type": "string"},
			"subject": {"type": "string"}
		},
		"required": ["to"]
	}`)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return schema
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	spec := ToolSpec{
		Name:               "send_email",
		Category:           models.CategoryEmail,
		SideEffects:        true,
		ExternalCommunication: true,
		DefaultActionType:  models.ActionWrite,
		DefaultSensitivity: models.SensitivityMedium,
		DefaultScope:       models.ScopeSingle,
		ArgsSchema:         sampleSchema(t),
	}
	handler := func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"sent": true}, nil
	}
	if err := r.Register(spec, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, h, ok := r.Lookup("send_email")
	if !ok {
		t.Fatal("expected send_email to be registered")
	}
	if got.Category != models.CategoryEmail {
		t.Fatalf("expected category email, got %s", got.Category)
	}
	if h == nil {
		t.Fatal("expected non-nil handler")
	}

	if _, _, ok := r.Lookup("unknown_tool"); ok {
		t.Fatal("expected unknown tool lookup to fail")
	}
}

func TestValidateArgsRejectsMissingRequiredField(t *testing.T) {
	r := New()
	spec := ToolSpec{Name: "send_email", ArgsSchema: sampleSchema(t)}
	if err := r.Register(spec, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := r.ValidateArgs("send_email", map[string]any{"subject": "hi"}); err == nil {
		t.Fatal("expected validation error for missing required 'to' field")
	}
	if err := r.ValidateArgs("send_email", map[string]any{"to": "a@example.com"}); err != nil {
		t.Fatalf("expected valid args to pass: %v", err)
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := New()
	if err := r.Register(ToolSpec{}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, nil
	}); err == nil {
		t.Fatal("expected error for empty tool name")
	}
}
