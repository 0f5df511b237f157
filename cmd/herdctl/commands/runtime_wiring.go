package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jholhewres/herdctl/internal/runtime"
)

// defaultAgentBin is the fallback external agent binary invoked for every
// job. A real deployment overrides it via HERDCTL_AGENT_BIN (one binary for
// every agent); the
// core intentionally commits to no concrete LLM/tool vendor, so this CLI's
// wiring is the integration seam rather than the core.
const defaultAgentBin = "herdctl-agent"

// buildCommand is the CommandBuilder the CLI wires into ExternalRuntime. It
// has no in-process SDK to hand DirectRuntime, so both "direct" and
// "external" agent configs resolve to the same ExternalRuntime here — the
// DirectRuntime/ExternalRuntime split stays meaningful for an embedder that
// links an actual in-process backend, just not for this standalone binary.
//
// When req.ContainerName is set, ContainerRunner has already started the
// container for this job: the real invocation must run inside it via
// `docker exec`, not as a bare host process (spec.md §4.4.3).
func buildCommand(req runtime.Request, workDir string) (binary string, args []string, env []string, stdin, logDir string) {
	if req.ContainerName != "" {
		return containerExecCommand(req)
	}

	binary = os.Getenv("HERDCTL_AGENT_BIN")
	if binary == "" {
		binary = defaultAgentBin
	}

	args = []string{"--prompt", req.Prompt}
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", req.ResumeSessionID)
	}
	if req.Fork {
		args = append(args, "--fork")
	}
	if req.Agent.Model != "" {
		args = append(args, "--model", req.Agent.Model)
	}

	logDir = filepath.Join(os.TempDir(), "herdctl-runs", req.Agent.Name)
	runID := fmt.Sprintf("%d", os.Getpid())
	args = append(args, "--log", filepath.Join(logDir, runID+".jsonl"))

	return binary, args, nil, "", logDir
}

// containerExecCommand builds a `docker exec -i` invocation into the
// container ContainerRunner already started, rather than spawning on the
// host. The prompt travels over stdin instead of argv to sidestep shell
// escaping (spec.md §4.4.3), and the provider CLI is pointed at the
// container-side session mount so ExternalRuntime can discover and tail the
// log file from its host-side mirror (req.HostSessionDir).
func containerExecCommand(req runtime.Request) (binary string, args []string, env []string, stdin, logDir string) {
	innerBinary := os.Getenv("HERDCTL_AGENT_BIN")
	if innerBinary == "" {
		innerBinary = defaultAgentBin
	}

	args = []string{"exec", "-i", req.ContainerName, innerBinary, "--log-dir", runtime.ContainerSessionMount}
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", req.ResumeSessionID)
	}
	if req.Fork {
		args = append(args, "--fork")
	}
	if req.Agent.Model != "" {
		args = append(args, "--model", req.Agent.Model)
	}

	return "docker", args, nil, req.Prompt, req.HostSessionDir
}
