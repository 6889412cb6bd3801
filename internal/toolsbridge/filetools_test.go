package toolsbridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
)

func TestRegisterFileToolsWriteThenRead(t *testing.T) {
	workspace := t.TempDir()
	reg := toolregistry.New()
	if err := RegisterFileTools(reg, workspace); err != nil {
		t.Fatalf("register file tools: %v", err)
	}

	_, writeHandler, ok := reg.Lookup("write_file")
	if !ok {
		t.Fatal("expected write_file to be registered")
	}
	writeResult, err := writeHandler(context.Background(), map[string]any{
		"path":    "notes/todo.txt",
		"content": "buy milk",
	})
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if writeResult["bytes_written"] != 8 {
		t.Fatalf("unexpected bytes_written: %v", writeResult["bytes_written"])
	}

	if _, err := os.Stat(filepath.Join(workspace, "notes", "todo.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	_, readHandler, ok := reg.Lookup("read_file")
	if !ok {
		t.Fatal("expected read_file to be registered")
	}
	readResult, err := readHandler(context.Background(), map[string]any{"path": "notes/todo.txt"})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if readResult["content"] != "buy milk" {
		t.Fatalf("unexpected content: %v", readResult["content"])
	}
}

func TestRegisterFileToolsReadRequiresPath(t *testing.T) {
	reg := toolregistry.New()
	if err := RegisterFileTools(reg, t.TempDir()); err != nil {
		t.Fatalf("register file tools: %v", err)
	}
	_, readHandler, _ := reg.Lookup("read_file")
	if _, err := readHandler(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error for a missing path")
	}
}

func TestRegisterFileToolsCannotEscapeWorkspace(t *testing.T) {
	workspace := t.TempDir()
	reg := toolregistry.New()
	if err := RegisterFileTools(reg, workspace); err != nil {
		t.Fatalf("register file tools: %v", err)
	}
	_, readHandler, _ := reg.Lookup("read_file")
	if _, err := readHandler(context.Background(), map[string]any{"path": "../../etc/passwd"}); err == nil {
		t.Fatal("expected an escape attempt to be rejected")
	}
}
