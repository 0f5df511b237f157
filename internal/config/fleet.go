package config

import "time"

// ContainerFile is the fleet-level-only container override block: the
// fields capable of weakening isolation (custom image, network mode,
// additional mounts, raw docker arguments) live here and nowhere else,
// enforcing the trust boundary spec.md §7 assigns to the loader. Agent
// files cannot set any of these — model.ContainerConfig simply has no
// fields for them.
type ContainerFile struct {
	Image        string   `yaml:"image,omitempty"`
	Network      string   `yaml:"network,omitempty"`
	ExtraMounts  []string `yaml:"extra_mounts,omitempty"`
	RawArgs      []string `yaml:"raw_args,omitempty"`
	RetainNewest int      `yaml:"retain_newest,omitempty"`
}

// FleetFile is the top-level fleet configuration document: where state is
// persisted, how long graceful shutdown waits, and the fleet-only container
// override block. Individual agents are loaded separately from AgentsDir.
type FleetFile struct {
	StateDir        string         `yaml:"state_dir"`
	AgentsDir       string         `yaml:"agents_dir"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout,omitempty"`
	Container       ContainerFile  `yaml:"container,omitempty"`
}

// DefaultShutdownTimeout mirrors the supervisor's control-signal default
// (spec.md §6: "a default 30-second timeout").
const DefaultShutdownTimeout = 30 * time.Second

func (f *FleetFile) effectiveShutdownTimeout() time.Duration {
	if f.ShutdownTimeout <= 0 {
		return DefaultShutdownTimeout
	}
	return f.ShutdownTimeout
}
