// Package toolsbridge registers concrete, workspace-scoped tools against a
// toolregistry.Registry. The read/write handlers below carry over
// internal/tools/files' path-resolution and safety limits, reimplemented
// directly against toolregistry.Handler's (map[string]any) signature
// rather than that package's own Execute(json.RawMessage) tool interface.
package toolsbridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
	"github.com/jadhavgaurav/agentcore/internal/tools/files"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

const defaultMaxReadBytes = 200000

// RegisterFileTools registers "read_file" and "write_file" against reg,
// both scoped to workspace via files.Resolver so neither can escape it.
func RegisterFileTools(reg *toolregistry.Registry, workspace string) error {
	resolver := files.Resolver{Root: workspace}

	readSchema, err := toolregistry.CompileSchema("read_file_args", `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"offset": {"type": "integer", "minimum": 0},
			"max_bytes": {"type": "integer", "minimum": 0}
		},
		"required": ["path"]
	}`)
	if err != nil {
		return fmt.Errorf("toolsbridge: compile read_file schema: %w", err)
	}
	if err := reg.Register(toolregistry.ToolSpec{
		Name:               "read_file",
		Description:        "Read a file from the workspace with optional offset and byte limit.",
		Category:           models.CategoryFiles,
		ArgsSchema:         readSchema,
		DefaultActionType:  models.ActionRead,
		DefaultSensitivity: models.SensitivityLow,
		DefaultScope:       models.ScopeSingle,
		RequiredScope:      "files:read",
	}, readFileHandler(resolver)); err != nil {
		return err
	}

	writeSchema, err := toolregistry.CompileSchema("write_file_args", `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"},
			"append": {"type": "boolean"}
		},
		"required": ["path", "content"]
	}`)
	if err != nil {
		return fmt.Errorf("toolsbridge: compile write_file schema: %w", err)
	}
	if err := reg.Register(toolregistry.ToolSpec{
		Name:               "write_file",
		Description:        "Write content to a file in the workspace (overwrites by default).",
		Category:           models.CategoryFiles,
		ArgsSchema:         writeSchema,
		DefaultActionType:  models.ActionWrite,
		DefaultSensitivity: models.SensitivityMedium,
		DefaultScope:       models.ScopeSingle,
		RequiredScope:      "files:write",
		SideEffects:        true,
	}, writeFileHandler(resolver)); err != nil {
		return err
	}

	return nil
}

func readFileHandler(resolver files.Resolver) toolregistry.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("path is required")
		}
		offset := int64(asFloat(args["offset"]))
		if offset < 0 {
			return nil, fmt.Errorf("offset must be >= 0")
		}
		maxBytes := int(asFloat(args["max_bytes"]))

		resolved, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(resolved)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat file: %w", err)
		}
		if offset > 0 {
			if _, err := file.Seek(offset, io.SeekStart); err != nil {
				return nil, fmt.Errorf("seek file: %w", err)
			}
		}

		limit := defaultMaxReadBytes
		if maxBytes > 0 && maxBytes < limit {
			limit = maxBytes
		}
		remaining := int64(limit)
		if size := info.Size(); size > 0 {
			remaining = size - offset
			if remaining < 0 {
				remaining = 0
			}
			if remaining > int64(limit) {
				remaining = int64(limit)
			}
		}

		buf, err := io.ReadAll(io.LimitReader(file, remaining))
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		truncated := info.Size() > 0 && offset+int64(len(buf)) < info.Size()

		return map[string]any{
			"path":      path,
			"content":   string(buf),
			"offset":    offset,
			"bytes":     len(buf),
			"truncated": truncated,
			"message":   fmt.Sprintf("read %d bytes from %s", len(buf), path),
		}, nil
	}
}

func writeFileHandler(resolver files.Resolver) toolregistry.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("path is required")
		}
		content, _ := args["content"].(string)
		appendMode, _ := args["append"].(bool)

		resolved, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}

		flags := os.O_CREATE | os.O_WRONLY
		if appendMode {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		file, err := os.OpenFile(resolved, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer file.Close()

		n, err := file.WriteString(content)
		if err != nil {
			return nil, fmt.Errorf("write file: %w", err)
		}

		return map[string]any{
			"path":          path,
			"bytes_written": n,
			"append":        appendMode,
			"message":       fmt.Sprintf("wrote %d bytes to %s", n, path),
		}, nil
	}
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
