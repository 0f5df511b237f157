// Package mcpbridge implements the minimal MCP-style JSON-RPC 2.0 HTTP
// surface an agent's tool calls are routed through (spec.md §4.5): a single
// POST endpoint dispatching initialize, notifications/initialized,
// tools/list, tools/call, and ping, served on a randomly chosen free port
// the way the teacher's jobapi.Server stands up its own listener and chi
// router per run.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Tool is one callable surfaced through tools/list and tools/call.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     func(ctx context.Context, args map[string]any) (any, error)
}

// Bridge is one HTTP JSON-RPC server instance, scoped to a single job run
// so each run gets an isolated tool surface and working directory.
type Bridge struct {
	workDir string
	tools   map[string]Tool

	listener net.Listener
	server   *http.Server
}

// New constructs a Bridge rooted at workDir with the given tools registered.
func New(workDir string, tools []Tool) *Bridge {
	reg := make(map[string]Tool, len(tools))
	for _, t := range tools {
		reg[t.Name] = t
	}
	return &Bridge{workDir: workDir, tools: reg}
}

// Start binds a random free port on every interface and begins serving
// (spec.md §4.5: "0.0.0.0:<random free port>", so a containerized runtime
// can reach it via the host-gateway alias). Returns the URL a host-local
// caller should use as its MCP endpoint.
func (b *Bridge) Start() (string, error) {
	ln, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		return "", fmt.Errorf("mcpbridge: listen: %w", err)
	}
	b.listener = ln

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/mcp", b.handleRPC)

	b.server = &http.Server{Handler: r}
	go b.server.Serve(ln)

	return fmt.Sprintf("http://127.0.0.1:%d/mcp", b.Port()), nil
}

// Port returns the bound TCP port, valid after Start returns successfully.
func (b *Bridge) Port() int {
	return b.listener.Addr().(*net.TCPAddr).Port
}

// Stop shuts the bridge down.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.server == nil {
		return nil
	}
	return b.server.Shutdown(ctx)
}

// rpcRequest and rpcResponse follow JSON-RPC 2.0 framing.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any         `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	// codeToolError reports a tool handler exception, distinct from a
	// transport-level internal error — the RPC layer itself worked fine,
	// the tool it dispatched to failed (spec.md §4.5).
	codeToolError = -32000
)

func (b *Bridge) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "invalid JSON-RPC request")
		return
	}

	// A notification carries no id and expects no response body.
	isNotification := len(req.ID) == 0

	switch req.Method {
	case "initialize":
		writeResult(w, req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": "herdctl", "version": "1"},
		})
	case "notifications/initialized":
		w.WriteHeader(http.StatusNoContent)
	case "ping":
		writeResult(w, req.ID, map[string]any{})
	case "tools/list":
		writeResult(w, req.ID, map[string]any{"tools": b.listTools()})
	case "tools/call":
		b.handleToolsCall(w, r.Context(), req)
	default:
		if !isNotification {
			writeError(w, req.ID, codeMethodNotFound, "method not found: "+req.Method)
		} else {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (b *Bridge) listTools() []map[string]any {
	out := make([]map[string]any, 0, len(b.tools))
	for _, t := range b.tools {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	return out
}

func (b *Bridge) handleToolsCall(w http.ResponseWriter, ctx context.Context, req rpcRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, codeInvalidParams, "invalid tools/call params")
		return
	}

	tool, ok := b.tools[params.Name]
	if !ok {
		writeError(w, req.ID, codeMethodNotFound, "unknown tool: "+params.Name)
		return
	}

	args := translateWorkspacePaths(params.Arguments, b.workDir)
	result, err := tool.Handler(ctx, args)
	if err != nil {
		writeError(w, req.ID, codeToolError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": fmt.Sprintf("%v", result)}},
	})
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}
