package runtime

import (
	"strings"
	"testing"

	"github.com/jholhewres/herdctl/internal/model"
)

func TestBuildRunArgsHardensByDefault(t *testing.T) {
	t.Parallel()

	agent := &model.Agent{
		Name:    "reviewer",
		WorkDir: "/home/ops/reviewer",
		Container: &model.ContainerConfig{
			Enabled:       true,
			ReadOnlyRoot:  true,
			PidsLimit:     256,
			MemoryLimitMB: 512,
		},
	}
	c := &ContainerRunner{agent: agent, opts: ContainerOptions{}}

	args := c.buildRunArgs("herdctl-reviewer-abcd1234", "", "", false)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--rm",
		"--cap-drop ALL",
		"--security-opt no-new-privileges",
		"--read-only",
		"--user 1000:1000",
		"--pids-limit 256",
		"--memory 512m",
		"--volume /home/ops/reviewer:/workspace",
		"herdctl-agent:latest",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("buildRunArgs() missing %q in %q", want, joined)
		}
	}
}

func TestBuildRunArgsHonorsFleetImageOverride(t *testing.T) {
	t.Parallel()

	agent := &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{Enabled: true}}
	c := &ContainerRunner{agent: agent, opts: ContainerOptions{Image: "registry.internal/herdctl-agent:v2", Network: "herdctl-net"}}

	args := c.buildRunArgs("herdctl-reviewer-abcd1234", "", "", false)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "registry.internal/herdctl-agent:v2") {
		t.Fatalf("expected overridden image in args: %q", joined)
	}
	if !strings.Contains(joined, "--network herdctl-net") {
		t.Fatalf("expected network flag in args: %q", joined)
	}
}

func TestBuildRunArgsMountsCredential(t *testing.T) {
	t.Parallel()

	agent := &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{Enabled: true}}
	c := &ContainerRunner{agent: agent, opts: ContainerOptions{}}

	args := c.buildRunArgs("herdctl-reviewer-abcd1234", "/tmp/cred-file", "", false)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "/tmp/cred-file:/run/herdctl/credentials:ro") {
		t.Fatalf("expected credential mount in args: %q", joined)
	}
}

func TestBuildRunArgsMountsHostSessionDir(t *testing.T) {
	t.Parallel()

	agent := &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{Enabled: true}}
	c := &ContainerRunner{agent: agent, opts: ContainerOptions{}}

	args := c.buildRunArgs("herdctl-reviewer-abcd1234", "", "/var/herdctl/state/docker-sessions/reviewer-workspace", false)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "/var/herdctl/state/docker-sessions/reviewer-workspace:"+ContainerSessionMount) {
		t.Fatalf("expected session-dir mount in args: %q", joined)
	}
}

func TestBuildRunArgsOmitsRmForPersistentContainers(t *testing.T) {
	t.Parallel()

	agent := &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{Enabled: true, Persistent: true}}
	c := &ContainerRunner{agent: agent, opts: ContainerOptions{}}

	args := c.buildRunArgs("herdctl-reviewer", "", "", false)
	joined := strings.Join(args, " ")

	if strings.Contains(joined, "--rm") {
		t.Fatalf("did not expect --rm for a persistent container: %q", joined)
	}
}

func TestContainerNamePersistentIsStable(t *testing.T) {
	t.Parallel()

	persistent := &ContainerRunner{agent: &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{Persistent: true}}}
	if got := persistent.containerName(); got != "herdctl-reviewer" {
		t.Fatalf("got %q, want stable name herdctl-reviewer", got)
	}

	ephemeral := &ContainerRunner{agent: &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{}}}
	first := ephemeral.containerName()
	second := ephemeral.containerName()
	if first == second {
		t.Fatalf("expected ephemeral container names to differ between calls, got %q twice", first)
	}
}

func TestBuildRunArgsAddsHostGatewayForInjectedTools(t *testing.T) {
	t.Parallel()

	agent := &model.Agent{Name: "reviewer", Container: &model.ContainerConfig{Enabled: true}}
	c := &ContainerRunner{agent: agent, opts: ContainerOptions{}}

	withBridge := c.buildRunArgs("herdctl-reviewer-abcd1234", "", "", true)
	if !strings.Contains(strings.Join(withBridge, " "), "--add-host herdctl-host:host-gateway") {
		t.Fatalf("expected host-gateway entry when a tool bridge is running: %q", withBridge)
	}

	withoutBridge := c.buildRunArgs("herdctl-reviewer-abcd1234", "", "", false)
	if strings.Contains(strings.Join(withoutBridge, " "), "--add-host") {
		t.Fatalf("did not expect host-gateway entry without a tool bridge: %q", withoutBridge)
	}
}
