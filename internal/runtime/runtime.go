// Package runtime implements the execution backends a Job Executor drives
// an agent through (spec.md §4.5). Every backend satisfies the same
// Runtime interface: hand it a Request, get back a sequence of raw
// messages for the Message Processor to normalize. DirectRuntime calls an
// in-process backend; ExternalRuntime spawns and tails a child process;
// ContainerRunner decorates either one inside a hardened `docker` sandbox.
package runtime

import (
	"context"

	"github.com/jholhewres/herdctl/internal/model"
)

// Request carries everything a Runtime needs for one streamed execution.
type Request struct {
	Prompt              string
	Agent               *model.Agent
	ResumeSessionID      string
	Fork                bool
	InjectedToolServers []model.ToolServerDef

	// ContainerName and HostSessionDir are set by ContainerRunner before
	// delegating to the wrapped Runtime, telling an ExternalRuntime to exec
	// into the running container instead of spawning on the host, and where
	// on the host its session log becomes visible (spec.md §4.4.3). Both are
	// empty for a non-containerized run.
	ContainerName  string
	HostSessionDir string
}

// Runtime is the abstraction every execution backend implements: a single
// streaming operation over a Request producing a lazy sequence of raw
// messages (spec.md §4.5). Implementations must be safe to Cancel via ctx.
type Runtime interface {
	// Stream begins execution and returns a channel of raw (pre-Process)
	// message values, plus a channel that receives exactly one error (nil
	// on success) when the run finishes. Both channels are closed when the
	// run is complete; ctx cancellation must cause Stream to wind down and
	// close both channels rather than leak a goroutine.
	Stream(ctx context.Context, req Request) (<-chan any, <-chan error)

	// Name identifies the backend for logging.
	Name() string
}

// Factory resolves the Runtime for an agent, honoring the agent-level
// runtime kind and any container wrapping (spec.md §4.5, §7).
type Factory struct {
	direct   Runtime
	external Runtime
}

// NewFactory wires the two base runtimes; callers obtain the container
// decorator per-agent via ForAgent, since container hardening is itself
// agent/fleet configuration.
func NewFactory(direct, external Runtime) *Factory {
	return &Factory{direct: direct, external: external}
}

// ForAgent returns the Runtime to use for agent, wrapping it in a
// ContainerRunner when the agent's container config is enabled.
func (f *Factory) ForAgent(agent *model.Agent, containerOpts ContainerOptions) Runtime {
	var base Runtime
	switch agent.Runtime {
	case model.RuntimeExternal:
		base = f.external
	default:
		base = f.direct
	}
	if agent.Container != nil && agent.Container.Enabled {
		return NewContainerRunner(base, agent, containerOpts)
	}
	return base
}
