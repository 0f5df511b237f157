package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"

	"github.com/jholhewres/herdctl/internal/mcpbridge"
	"github.com/jholhewres/herdctl/internal/model"
)

// hostGatewayAlias is the name ContainerRunner adds as an extra host entry
// so a container can reach the tool-server bridge listening on the host
// (spec.md §4.4.3's host-alias URL, §4.5).
const hostGatewayAlias = "herdctl-host"

// ContainerSessionMount is the fixed in-container mount point for the
// host-side session directory (spec.md §4.4.3's "second container mount
// point"), letting ExternalRuntime tail session log files from the host
// while the provider CLI writes them from inside the container.
const ContainerSessionMount = "/var/herdctl/sessions"

const keyringService = "herdctl"

// ContainerOptions is fleet-level configuration for the container
// decorator: the image to run, any raw `docker run` argument overrides, and
// retention policy for stopped containers (spec.md §7's fleet-only trust
// boundary — image/network/raw overrides never come from agent config).
type ContainerOptions struct {
	Image          string
	Network        string
	ExtraMounts    []string
	RawArgs        []string
	RetainNewest   int
	SessionBaseDir string // host root under which per-agent session mirrors live
}

// ContainerRunner wraps another Runtime, executing it inside a hardened
// `docker run` invocation rather than on the host. It shells out to the
// docker CLI via os/exec, the same way the teacher's docker_tools.go talks
// to Docker, rather than linking a Docker SDK.
type ContainerRunner struct {
	inner   Runtime
	agent   *model.Agent
	opts    ContainerOptions
}

// NewContainerRunner decorates inner with container isolation for agent.
func NewContainerRunner(inner Runtime, agent *model.Agent, opts ContainerOptions) *ContainerRunner {
	return &ContainerRunner{inner: inner, agent: agent, opts: opts}
}

func (c *ContainerRunner) Name() string { return "container(" + c.inner.Name() + ")" }

// Stream stands up (or reuses) a container and runs the wrapped Runtime
// against it. The inner Runtime does the actual prompt/session exchange:
// ContainerRunner sets req.ContainerName/HostSessionDir so an ExternalRuntime
// execs into the container (via its CommandBuilder) instead of spawning on
// the host, and tails the session log through the mount this method wires up
// (spec.md §4.4.3).
func (c *ContainerRunner) Stream(ctx context.Context, req Request) (<-chan any, <-chan error) {
	out := make(chan any, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		containerName := c.containerName()
		hostSessionDir := c.hostSessionDir()
		if err := os.MkdirAll(hostSessionDir, 0o755); err != nil {
			errCh <- fmt.Errorf("container runtime: preparing session directory: %w", err)
			return
		}

		credPath, cleanupCred, err := materializeCredentialMount(c.agent.Name)
		if err != nil {
			errCh <- fmt.Errorf("container runtime: preparing credentials: %w", err)
			return
		}
		defer cleanupCred()

		bridge, bridgedReq, err := c.startToolBridge(req)
		if err != nil {
			errCh <- fmt.Errorf("container runtime: starting tool bridge: %w", err)
			return
		}
		if bridge != nil {
			defer bridge.Stop(context.Background())
		}

		persistent := c.agent.Container.Persistent
		running, err := c.containerRunning(ctx, containerName)
		if err != nil {
			errCh <- fmt.Errorf("container runtime: inspecting container: %w", err)
			return
		}
		if !running {
			runArgs := c.buildRunArgs(containerName, credPath, hostSessionDir, bridge != nil)
			if _, err := runDocker(ctx, runArgs...); err != nil {
				errCh <- fmt.Errorf("container runtime: starting container: %w", err)
				return
			}
		}
		// Persistent containers outlive the job; only ephemeral ones are
		// torn down here (they also carry --rm, so this is belt-and-suspenders
		// cleanup for a container that outlived its own auto-remove).
		if !persistent {
			defer c.cleanupContainer(containerName)
		}

		bridgedReq.ContainerName = containerName
		bridgedReq.HostSessionDir = hostSessionDir

		innerOut, innerErr := c.inner.Stream(ctx, bridgedReq)
		for msg := range innerOut {
			out <- msg
		}
		errCh <- <-innerErr
	}()

	return out, errCh
}

// containerName returns the stable name of a persistent container (keyed
// only by agent name, so repeated jobs reuse it) or a fresh per-job name for
// an ephemeral one (spec.md §4.4.3: "persistent mode reuses a running
// container keyed by agent name; ephemeral mode creates a fresh container
// per job").
func (c *ContainerRunner) containerName() string {
	if c.agent.Container.Persistent {
		return "herdctl-" + c.agent.Name
	}
	return "herdctl-" + c.agent.Name + "-" + uuid.NewString()[:8]
}

// hostSessionDir is the host-side mirror of ContainerSessionMount for this
// agent. The "-workspace" suffix matches spec.md §6's note that the session
// directory layout encodes the workspace path the same way the provider CLI
// itself would (`/workspace` becoming `-workspace`).
func (c *ContainerRunner) hostSessionDir() string {
	base := c.opts.SessionBaseDir
	if base == "" {
		base = filepath.Join(os.TempDir(), "herdctl-docker-sessions")
	}
	return filepath.Join(base, c.agent.Name+"-workspace")
}

// containerRunning reports whether a container named name is already up,
// restarting it in place if it exists but is stopped. A container that does
// not exist at all is reported as "not running" rather than an error, since
// that is the expected first-run state for both persistent and ephemeral
// containers.
func (c *ContainerRunner) containerRunning(ctx context.Context, name string) (bool, error) {
	out, err := runDocker(ctx, "inspect", "-f", "{{.State.Running}}", name)
	if err != nil {
		return false, nil
	}
	if strings.TrimSpace(out) == "true" {
		return true, nil
	}
	if _, err := runDocker(ctx, "start", name); err != nil {
		return false, err
	}
	return true, nil
}

// startToolBridge stands up the tool-server HTTP bridge on the host when
// req carries injected tool servers, and returns a copy of req whose
// InjectedToolServers URLs point at the container-reachable host alias
// instead of the host-local address the bridge actually listens on
// (spec.md §4.4.3, §4.5). Returns a nil bridge and the original req when
// there is nothing to inject.
func (c *ContainerRunner) startToolBridge(req Request) (*mcpbridge.Bridge, Request, error) {
	if len(req.InjectedToolServers) == 0 {
		return nil, req, nil
	}

	bridge := mcpbridge.New(c.agent.WorkDir, mcpbridge.BuiltinTools(c.agent.WorkDir))
	if _, err := bridge.Start(); err != nil {
		return nil, req, err
	}

	hostURL := fmt.Sprintf("http://%s:%d/mcp", hostGatewayAlias, bridge.Port())

	rewired := make([]model.ToolServerDef, len(req.InjectedToolServers))
	for i, def := range req.InjectedToolServers {
		def.URL = hostURL
		rewired[i] = def
	}
	req.InjectedToolServers = rewired
	return bridge, req, nil
}

// buildRunArgs assembles a hardened `docker run` argument list: dropped
// capabilities, no-new-privileges, a non-root user, a read-only root
// filesystem when ReadOnlyRoot is set, resource limits, and the
// workspace/credential mounts
// (SPEC_FULL.md §1 domain stack). withHostGateway adds the extra-host entry
// an injected tool-server bridge needs to be reachable from inside the
// container.
func (c *ContainerRunner) buildRunArgs(containerName, credPath, hostSessionDir string, withHostGateway bool) []string {
	cc := c.agent.Container
	args := []string{
		"run", "--detach",
		"--name", containerName,
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
	}
	if !cc.Persistent {
		args = append(args, "--rm")
	}

	if cc.ReadOnlyRoot {
		args = append(args, "--read-only")
	}
	user := cc.User
	if user == "" {
		user = "1000:1000"
	}
	args = append(args, "--user", user)

	if cc.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.FormatInt(cc.PidsLimit, 10))
	}
	if cc.CPUQuota > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(cc.CPUQuota, 'f', -1, 64))
	}
	if cc.MemoryLimitMB > 0 {
		args = append(args, "--memory", strconv.FormatInt(cc.MemoryLimitMB, 10)+"m")
	}
	if withHostGateway {
		args = append(args, "--add-host", hostGatewayAlias+":host-gateway")
	}
	for _, tmpfs := range cc.TmpfsMounts {
		args = append(args, "--tmpfs", tmpfs)
	}

	if c.agent.WorkDir != "" {
		args = append(args, "--volume", c.agent.WorkDir+":/workspace")
	}
	if hostSessionDir != "" {
		args = append(args, "--volume", hostSessionDir+":"+ContainerSessionMount)
	}
	if credPath != "" {
		args = append(args, "--volume", credPath+":/run/herdctl/credentials:ro")
	}
	for _, mount := range c.opts.ExtraMounts {
		args = append(args, "--volume", mount)
	}
	if c.opts.Network != "" {
		args = append(args, "--network", c.opts.Network)
	}

	args = append(args, c.opts.RawArgs...)

	image := c.opts.Image
	if image == "" {
		image = "herdctl-agent:latest"
	}
	args = append(args, image)
	return args
}

// cleanupContainer stops and removes the container, then applies the
// newest-N retention policy across the fleet's stopped containers for this
// agent so a long-running supervisor doesn't accumulate unbounded exited
// containers.
func (c *ContainerRunner) cleanupContainer(name string) {
	_, _ = runDocker(context.Background(), "rm", "-f", name)
	c.pruneOldContainers()
}

func (c *ContainerRunner) pruneOldContainers() {
	retain := c.opts.RetainNewest
	if retain <= 0 {
		return
	}
	prefix := "herdctl-" + c.agent.Name + "-"
	out, err := runDocker(context.Background(), "ps", "-a", "--filter", "name="+prefix,
		"--format", "{{.Names}}\t{{.CreatedAt}}")
	if err != nil || out == "" {
		return
	}
	lines := strings.Split(out, "\n")
	if len(lines) <= retain {
		return
	}
	for _, line := range lines[retain:] {
		name := strings.SplitN(line, "\t", 2)[0]
		if name == "" {
			continue
		}
		_, _ = runDocker(context.Background(), "rm", "-f", name)
	}
}

// runDocker shells out to the docker CLI, mirroring the teacher's
// runDocker helper in docker_tools.go.
func runDocker(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	result := strings.TrimSpace(string(out))
	if err != nil {
		if result != "" {
			return "", fmt.Errorf("docker %s: %s", args[0], result)
		}
		return "", fmt.Errorf("docker %s: %w", args[0], err)
	}
	return result, nil
}

// materializeCredentialMount writes the agent's resolved credential (from
// the OS keyring, per SPEC_FULL.md §0/§1) to a private temp file so it can
// be bind-mounted read-only into the container rather than passed via
// environment variables a container-escape could read from /proc.
func materializeCredentialMount(agentName string) (path string, cleanup func(), err error) {
	val, kerr := keyring.Get(keyringService, agentName)
	if kerr != nil || val == "" {
		return "", func() {}, nil
	}
	path, writeErr := writeCredentialFile(agentName, val)
	if writeErr != nil {
		return "", func() {}, writeErr
	}
	return path, func() { removeCredentialFile(path) }, nil
}
