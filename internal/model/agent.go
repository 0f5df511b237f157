// Package model defines the persisted and in-memory entities shared by every
// subsystem of the fleet supervisor: agents, schedules, jobs, sessions, and
// the fleet-wide status view.
package model

import "time"

// RuntimeKind selects the execution backend an Agent runs under.
type RuntimeKind string

const (
	RuntimeDirect   RuntimeKind = "direct"
	RuntimeExternal RuntimeKind = "external"
)

// PermissionMode controls how much latitude a Runtime gives the backend to
// act without operator confirmation.
type PermissionMode string

const (
	PermissionDefault           PermissionMode = "default"
	PermissionAcceptEdits       PermissionMode = "acceptEdits"
	PermissionBypassPermissions PermissionMode = "bypassPermissions"
	PermissionPlan              PermissionMode = "plan"
)

// SessionMode classifies how a SessionRecord's conversation is being driven.
type SessionMode string

const (
	SessionAutonomous  SessionMode = "autonomous"
	SessionInteractive SessionMode = "interactive"
	SessionReview      SessionMode = "review"
)

// ToolServerKind distinguishes how an injected tool server is reached.
type ToolServerKind string

const (
	ToolServerProcess  ToolServerKind = "process"
	ToolServerHTTP     ToolServerKind = "http"
	ToolServerInjected ToolServerKind = "injected"
)

// ToolServerDef describes one MCP-style tool server an agent may use.
type ToolServerDef struct {
	Name    string            `yaml:"name" json:"name"`
	Kind    ToolServerKind    `yaml:"kind" json:"kind"`
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
}

// ContainerConfig is the agent-level subset of container configuration.
// Fields capable of weakening isolation (image, network, extra mounts, raw
// overrides) live only in fleet-level configuration — see
// internal/config.ContainerFile — and are never read from here;
// the loader enforces the split described in spec.md §7.
type ContainerConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Persistent    bool          `yaml:"persistent" json:"persistent"`
	User          string        `yaml:"user,omitempty" json:"user,omitempty"`
	ReadOnlyRoot  bool          `yaml:"read_only_root,omitempty" json:"read_only_root,omitempty"`
	PidsLimit     int64         `yaml:"pids_limit,omitempty" json:"pids_limit,omitempty"`
	CPUQuota      float64       `yaml:"cpu_quota,omitempty" json:"cpu_quota,omitempty"`
	MemoryLimitMB int64         `yaml:"memory_limit_mb,omitempty" json:"memory_limit_mb,omitempty"`
	TmpfsMounts   []string      `yaml:"tmpfs_mounts,omitempty" json:"tmpfs_mounts,omitempty"`
	MaxContainers int           `yaml:"max_containers,omitempty" json:"max_containers,omitempty"`
	IdleTimeout   time.Duration `yaml:"idle_timeout,omitempty" json:"idle_timeout,omitempty"`
}

// Agent is the resolved, read-only configuration record the scheduler and
// executor act against. The config loader (internal/config, kept apart from
// the core packages) produces one of these from YAML plus
// environment-variable interpolation; the core only ever sees the resolved
// record.
type Agent struct {
	Name              string            `yaml:"name" json:"name"`
	Prompt            string            `yaml:"prompt" json:"prompt"`
	WorkDir           string            `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	Runtime           RuntimeKind       `yaml:"runtime" json:"runtime"`
	Container         *ContainerConfig  `yaml:"container,omitempty" json:"container,omitempty"`
	Schedules         []Schedule        `yaml:"schedules,omitempty" json:"schedules,omitempty"`
	MaxConcurrent     int               `yaml:"max_concurrent" json:"max_concurrent"`
	SessionTimeout    time.Duration     `yaml:"session_timeout" json:"session_timeout"`
	PermissionMode    PermissionMode    `yaml:"permission_mode" json:"permission_mode"`
	AllowedTools      []string          `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
	DeniedTools       []string          `yaml:"denied_tools,omitempty" json:"denied_tools,omitempty"`
	BashAllow         []string          `yaml:"bash_allow,omitempty" json:"bash_allow,omitempty"`
	BashDeny          []string          `yaml:"bash_deny,omitempty" json:"bash_deny,omitempty"`
	Model             string            `yaml:"model,omitempty" json:"model,omitempty"`
	InjectedToolServs []ToolServerDef   `yaml:"injected_tool_servers,omitempty" json:"injected_tool_servers,omitempty"`
	ToolServers       []ToolServerDef   `yaml:"tool_servers,omitempty" json:"tool_servers,omitempty"`
}

// DefaultSessionTimeout is used when an Agent record leaves SessionTimeout
// unset (spec.md §3 SessionRecord: "default 24h").
const DefaultSessionTimeout = 24 * time.Hour

// EffectiveSessionTimeout returns the agent's configured timeout, or the
// default when unset.
func (a *Agent) EffectiveSessionTimeout() time.Duration {
	if a.SessionTimeout <= 0 {
		return DefaultSessionTimeout
	}
	return a.SessionTimeout
}

// EffectiveMaxConcurrent returns the agent's concurrency cap, defaulting to 1.
func (a *Agent) EffectiveMaxConcurrent() int {
	if a.MaxConcurrent <= 0 {
		return 1
	}
	return a.MaxConcurrent
}

// BashToolPatterns translates BashAllow/BashDeny glob-style command patterns
// into tool-name patterns of the form `Bash(<pattern>)`, per spec.md §6.
func (a *Agent) BashToolPatterns() (allow, deny []string) {
	for _, p := range a.BashAllow {
		allow = append(allow, "Bash("+p+")")
	}
	for _, p := range a.BashDeny {
		deny = append(deny, "Bash("+p+")")
	}
	return allow, deny
}
