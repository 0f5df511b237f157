package mcpbridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BuiltinTools returns the small fixed toolset every Bridge exposes to a
// containerized agent: file access scoped to workDir. Paths under
// /workspace/ arrive already translated and escape-checked by
// translateWorkspacePaths (spec.md §4.5 file-sender security rule); each
// handler also resolves its path against workDir and refuses absolute paths
// and any path that climbs out of workDir.
func BuiltinTools(workDir string) []Tool {
	scoped := func(p string) (string, bool) {
		full := filepath.Join(workDir, p)
		rel, err := filepath.Rel(workDir, full)
		return full, p != "" && !filepath.IsAbs(p) && err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
	return []Tool{
		{
			Name:        "read_file",
			Description: "Read a UTF-8 text file from the agent's working directory",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"file_path": map[string]any{"type": "string"}},
				"required":   []string{"file_path"},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				path, ok := args["file_path"].(string)
				if path, ok = scoped(path); !ok {
					return "escapes working directory", nil
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Sprintf("error: %v", err), nil
				}
				return string(data), nil
			},
		},
		{
			Name:        "write_file",
			Description: "Write a UTF-8 text file into the agent's working directory",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{"type": "string"},
					"content":   map[string]any{"type": "string"},
				},
				"required": []string{"file_path", "content"},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				path, ok := args["file_path"].(string)
				if path, ok = scoped(path); !ok {
					return "escapes working directory", nil
				}
				content, _ := args["content"].(string)
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return fmt.Sprintf("error: %v", err), nil
				}
				return "ok", nil
			},
		},
		{
			Name:        "list_files",
			Description: "List entries directly under a directory in the agent's working directory",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"file_path": map[string]any{"type": "string"}},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				path, _ := args["file_path"].(string)
				if path == "" {
					path = "."
				}
				path, ok := scoped(path)
				if !ok {
					return "escapes working directory", nil
				}
				entries, err := os.ReadDir(path)
				if err != nil {
					return fmt.Sprintf("error: %v", err), nil
				}
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					names = append(names, e.Name())
				}
				return strings.Join(names, "\n"), nil
			},
		},
	}
}
