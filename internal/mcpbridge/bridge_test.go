package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestBridgeInitializeAndToolsList(t *testing.T) {
	t.Parallel()

	b := New(t.TempDir(), []Tool{
		{
			Name:        "echo",
			Description: "echoes its input",
			InputSchema: map[string]any{"type": "object"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return args["text"], nil
			},
		},
	})
	url, err := b.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	}()

	resp := post(t, url, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if resp["error"] != nil {
		t.Fatalf("initialize returned error: %v", resp["error"])
	}

	resp = post(t, url, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("tools/list: unexpected result shape: %+v", resp)
	}
	tools, ok := result["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("tools/list: got %+v", result)
	}
}

func TestBridgeToolsCallTranslatesWorkspacePath(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	var capturedPath string
	b := New(workDir, []Tool{
		{
			Name: "read_file",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				capturedPath, _ = args["path"].(string)
				return "ok", nil
			},
		},
	})
	url, err := b.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	}()

	body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"read_file","arguments":{"path":"/workspace/notes.md"}}}`
	resp := post(t, url, body)
	if resp["error"] != nil {
		t.Fatalf("tools/call returned error: %v", resp["error"])
	}
	want := "notes.md"
	if capturedPath != want {
		t.Fatalf("got path=%q, want %q", capturedPath, want)
	}
}

func TestBridgeUnknownMethod(t *testing.T) {
	t.Parallel()

	b := New(t.TempDir(), nil)
	url, err := b.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	}()

	resp := post(t, url, `{"jsonrpc":"2.0","id":4,"method":"does/not/exist"}`)
	if resp["error"] == nil {
		t.Fatalf("expected method-not-found error, got %+v", resp)
	}
}

func post(t *testing.T, url, body string) map[string]any {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}
