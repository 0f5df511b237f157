package mcpbridge

import (
	"path/filepath"
	"strings"
)

const (
	workspaceRoot   = "/workspace"
	workspacePrefix = workspaceRoot + "/"
)

// translateWorkspacePaths rewrites any string argument naming a path under
// "/workspace" into a path relative to workDir — the agent inside a
// container only ever sees "/workspace", but the handler it calls runs on
// the host with workDir as its root, so the argument it receives must be
// host-relative, not an absolute host path (spec.md §4.5, §8 boundary
// test). Any argument that would resolve outside workDir is dropped rather
// than passed through — an agent asking to read or write a path outside
// its own working directory is a security violation, not a file that
// happens not to exist.
func translateWorkspacePaths(args map[string]any, workDir string) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		if s == workspaceRoot {
			out[k] = "."
			continue
		}
		if !strings.HasPrefix(s, workspacePrefix) {
			out[k] = v
			continue
		}
		resolved, ok := resolveWorkspacePath(s, workDir)
		if !ok {
			// Drop the escaping value; the tool handler sees an absent
			// argument rather than a path outside its sandbox.
			continue
		}
		out[k] = resolved
	}
	return out
}

// resolveWorkspacePath maps "/workspace/<rel>" to a path relative to
// workDir, rejecting any result that escapes workDir via ".." traversal.
// The returned path is host-relative (e.g. "x/y.txt"), never absolute —
// the handler's root is workDir, so it should never see a host path above
// that root.
func resolveWorkspacePath(workspacePath, workDir string) (string, bool) {
	rel := strings.TrimPrefix(workspacePath, workspacePrefix)
	joined := filepath.Join(workDir, rel)

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", false
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", false
	}

	if absJoined != absWorkDir && !strings.HasPrefix(absJoined, absWorkDir+string(filepath.Separator)) {
		return "", false
	}

	relResult, err := filepath.Rel(absWorkDir, absJoined)
	if err != nil {
		return "", false
	}
	return relResult, true
}
