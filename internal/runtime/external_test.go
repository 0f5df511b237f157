package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/herdctl/internal/model"
)

func TestExternalRuntimeTailsLogAndReportsExit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logDir := filepath.Join(dir, "sessions")
	logPath := filepath.Join(logDir, "run.jsonl")

	script := `echo '{"type":"system","subtype":"init","session_id":"sess-ext"}' >> "$LOGPATH"
sleep 0.1
echo '{"type":"assistant","content":"done"}' >> "$LOGPATH"
`
	scriptPath := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	build := func(req Request, workDir string) (string, []string, []string, string, string) {
		return "/bin/sh", []string{scriptPath}, []string{"LOGPATH=" + logPath}, "", logDir
	}

	rt := NewExternalRuntime(build, false)
	out, errCh := rt.Stream(context.Background(), Request{
		Prompt: "go",
		Agent:  &model.Agent{Name: "runner", WorkDir: dir},
	})

	var got []any
	done := make(chan struct{})
	go func() {
		for v := range out {
			got = append(got, v)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for external runtime output")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(got), got)
	}
}

func TestExternalRuntimeDiscoversProviderNamedLogFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logDir := filepath.Join(dir, "sessions")

	// The child names its own log file rather than accepting one as an
	// argument, the realistic case a deterministic logPath cannot handle.
	script := `echo '{"type":"assistant","content":"hi"}' >> "$1"`
	scriptPath := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	build := func(req Request, workDir string) (string, []string, []string, string, string) {
		return "/bin/sh", []string{scriptPath, filepath.Join(logDir, "provider-chosen-name.jsonl")}, nil, "", logDir
	}

	rt := NewExternalRuntime(build, false)
	out, errCh := rt.Stream(context.Background(), Request{Agent: &model.Agent{Name: "runner", WorkDir: dir}})

	var got []any
	for v := range out {
		got = append(got, v)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(got), got)
	}
}

func TestExternalRuntimePipesPromptOverStdin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logDir := filepath.Join(dir, "sessions")
	logPath := filepath.Join(logDir, "run.jsonl")

	script := `read line
echo "{\"type\":\"assistant\",\"content\":\"$line\"}" >> "$LOGPATH"
`
	scriptPath := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	build := func(req Request, workDir string) (string, []string, []string, string, string) {
		return "/bin/sh", []string{scriptPath}, []string{"LOGPATH=" + logPath}, req.Prompt, logDir
	}

	rt := NewExternalRuntime(build, false)
	out, errCh := rt.Stream(context.Background(), Request{
		Prompt: "piped-through-stdin",
		Agent:  &model.Agent{Name: "runner", WorkDir: dir},
	})

	var got []any
	for v := range out {
		got = append(got, v)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(got), got)
	}
	msg, ok := got[0].(map[string]any)
	if !ok || msg["content"] != "piped-through-stdin" {
		t.Fatalf("got %+v, want content echoing the piped prompt", got[0])
	}
}

func TestExternalRuntimeReportsCommandNotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	build := func(req Request, workDir string) (string, []string, []string, string, string) {
		return filepath.Join(dir, "does-not-exist"), nil, nil, "", filepath.Join(dir, "sessions")
	}

	rt := NewExternalRuntime(build, false)
	out, errCh := rt.Stream(context.Background(), Request{Agent: &model.Agent{Name: "x", WorkDir: dir}})
	for range out {
	}

	err := <-errCh
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	extErr, ok := err.(*ExternalError)
	if !ok {
		t.Fatalf("got error type %T, want *ExternalError", err)
	}
	if extErr.Kind != "CLI_NOT_FOUND" {
		t.Fatalf("got Kind=%q, want CLI_NOT_FOUND", extErr.Kind)
	}
}
