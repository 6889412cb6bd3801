// Package toolregistry holds the static catalog of tools the Tool Runtime
// can invoke: each tool's declared risk profile plus its handler function.
package toolregistry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// ToolSpec declares a tool's policy-relevant metadata. The Policy Engine
// consults these fields as defaults; a ToolCall may narrow (never widen)
// scope at invocation time.
type ToolSpec struct {
	Name        string
	Description string
	Category    models.ToolCategory

	// ArgsSchema is the compiled JSON Schema new arguments are validated
	// against before the handler runs.
	ArgsSchema *jsonschema.Schema

	SideEffects           bool
	ExternalCommunication bool
	Destructive           bool

	DefaultActionType  models.ActionType
	DefaultSensitivity models.Sensitivity
	DefaultScope       models.Scope

	// RequiredScope is the session/user scope string a caller must hold to
	// invoke this tool at all, checked before policy evaluation.
	RequiredScope string
}

// Handler executes a tool given validated arguments, returning a
// JSON-serializable result.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// entry pairs a spec with its handler.
type entry struct {
	spec    ToolSpec
	handler Handler
}

// Registry is the thread-safe static map of tool name to (spec, handler).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool under spec.Name. A later call with the same name
// replaces the earlier registration.
func (r *Registry) Register(spec ToolSpec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("toolregistry: spec.Name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("toolregistry: handler for %q must not be nil", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[spec.Name] = entry{spec: spec, handler: handler}
	return nil
}

// Lookup returns the spec and handler registered under name.
func (r *Registry) Lookup(name string) (ToolSpec, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return ToolSpec{}, nil, false
	}
	return e.spec, e.handler, true
}

// ValidateArgs checks args against the tool's compiled ArgsSchema, if any.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	spec, _, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("toolregistry: unknown tool %q", name)
	}
	if spec.ArgsSchema == nil {
		return nil
	}
	if err := spec.ArgsSchema.ValidateInterface(args); err != nil {
		return fmt.Errorf("toolregistry: invalid arguments for %q: %w", name, err)
	}
	return nil
}

// Names returns every registered tool name, for catalog/introspection use.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// CompileSchema is a small helper around jsonschema.CompileString for
// handlers that declare their args_schema inline as a JSON Schema literal.
func CompileSchema(name, schemaJSON string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("toolregistry: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("toolregistry: compile schema: %w", err)
	}
	return schema, nil
}
