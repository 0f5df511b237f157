// Package config loads the fleet's YAML configuration — the fleet-level
// document (state directory, shutdown timeout, fleet-only container
// overrides) and the per-agent documents the core resolves into
// model.Agent records — interpolating environment variables the way the
// teacher's copilot/loader.go does, via godotenv plus a $VAR/${VAR:-def}/
// ${VAR:?err} expander.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/herdctl/internal/model"
	"github.com/jholhewres/herdctl/internal/runtime"
	"github.com/jholhewres/herdctl/internal/trigger"
)

// Fleet is the fully resolved configuration Load produces: ready to hand to
// the State Store, Scheduler, and Executor without any further parsing.
type Fleet struct {
	StateDir        string
	ShutdownTimeout time.Duration
	ContainerOpts   runtime.ContainerOptions
	Agents          []*model.Agent
}

// Load reads fleetPath and every agent document under its agents_dir,
// expanding environment variables in both, and returns the resolved Fleet.
// Any malformed document or failed validation is wrapped as a *Error.
func Load(fleetPath string) (*Fleet, error) {
	loadEnvFiles(filepath.Dir(fleetPath))

	fleetFile, err := loadFleetFile(fleetPath)
	if err != nil {
		return nil, err
	}

	agentsDir := fleetFile.AgentsDir
	if agentsDir == "" {
		agentsDir = filepath.Join(filepath.Dir(fleetPath), "agents")
	}
	agents, err := loadAgentFiles(agentsDir)
	if err != nil {
		return nil, err
	}
	if err := validateAgents(agents); err != nil {
		return nil, err
	}

	return &Fleet{
		StateDir:        fleetFile.StateDir,
		ShutdownTimeout: fleetFile.effectiveShutdownTimeout(),
		ContainerOpts: runtime.ContainerOptions{
			Image:        fleetFile.Container.Image,
			Network:      fleetFile.Container.Network,
			ExtraMounts:  fleetFile.Container.ExtraMounts,
			RawArgs:      fleetFile.Container.RawArgs,
			RetainNewest: fleetFile.Container.RetainNewest,
		},
		Agents: agents,
	}, nil
}

// loadEnvFiles loads .env and .env.local from dir without overriding
// already-set environment variables, matching the teacher's loadEnvFiles.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}

func loadFleetFile(path string) (*FleetFile, error) {
	expanded, err := readExpanded(path)
	if err != nil {
		return nil, err
	}
	var f FleetFile
	if err := yaml.Unmarshal(expanded, &f); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("parsing fleet config: %w", err)}
	}
	if f.StateDir == "" {
		return nil, &Error{Path: path, Err: fmt.Errorf("state_dir is required")}
	}
	return &f, nil
}

func loadAgentFiles(dir string) ([]*model.Agent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Path: dir, Err: fmt.Errorf("no agents configured: agents directory does not exist")}
		}
		return nil, &Error{Path: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	agents := make([]*model.Agent, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		agent, err := loadAgentFile(path)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if len(agents) == 0 {
		return nil, &Error{Path: dir, Err: fmt.Errorf("no agent config files found (*.yaml/*.yml)")}
	}
	return agents, nil
}

func loadAgentFile(path string) (*model.Agent, error) {
	expanded, err := readExpanded(path)
	if err != nil {
		return nil, err
	}
	var agent model.Agent
	if err := yaml.Unmarshal(expanded, &agent); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("parsing agent config: %w", err)}
	}
	if agent.Name == "" {
		return nil, &Error{Path: path, Err: fmt.Errorf("agent name is required")}
	}
	if agent.Runtime == "" {
		agent.Runtime = model.RuntimeDirect
	}
	if agent.PermissionMode == "" {
		agent.PermissionMode = model.PermissionDefault
	}
	return &agent, nil
}

func readExpanded(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	expanded, err := expandEnvVarsWithValidation(string(data))
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return []byte(expanded), nil
}

// validateAgents enforces uniqueness and trigger-grammar validity across
// every resolved agent, so a bad schedule is caught at load time rather than
// the first time the scheduler tries to evaluate it.
func validateAgents(agents []*model.Agent) error {
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.Name] {
			return &Error{Err: fmt.Errorf("duplicate agent name %q", a.Name)}
		}
		seen[a.Name] = true

		for _, sched := range a.Schedules {
			switch sched.Type {
			case model.ScheduleInterval:
				if _, err := trigger.ParseInterval(sched.Interval); err != nil {
					return &Error{Err: fmt.Errorf("agent %q schedule %q: %w", a.Name, sched.Name, err)}
				}
			case model.ScheduleCron:
				if _, err := trigger.ParseCron(sched.Cron); err != nil {
					return &Error{Err: fmt.Errorf("agent %q schedule %q: %w", a.Name, sched.Name, err)}
				}
			}
		}
	}
	return nil
}
