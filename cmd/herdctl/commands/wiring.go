package commands

import (
	"log/slog"
	"path/filepath"

	"github.com/jholhewres/herdctl/internal/config"
	"github.com/jholhewres/herdctl/internal/executor"
	"github.com/jholhewres/herdctl/internal/fleet"
	"github.com/jholhewres/herdctl/internal/runtime"
	"github.com/jholhewres/herdctl/internal/scheduler"
	"github.com/jholhewres/herdctl/internal/state"
)

// buildManager wires a Store/Executor/Scheduler/Manager from a resolved
// Fleet config (spec.md's intentional boundary: the core commits to no
// concrete LLM/tool provider, so this CLI supplies the external-process
// integration via buildCommand).
func buildManager(cfg *config.Fleet, logger *slog.Logger) *fleet.Manager {
	store := state.New(cfg.StateDir)
	external := runtime.NewExternalRuntime(buildCommand, false)
	factory := runtime.NewFactory(external, external)

	containerOpts := cfg.ContainerOpts
	containerOpts.SessionBaseDir = filepath.Join(cfg.StateDir, "docker-sessions")

	exec := executor.New(store, factory, containerOpts, logger)
	sched := scheduler.New(store, exec, logger)
	sched.SetShutdownTimeout(cfg.ShutdownTimeout)
	return fleet.New(store, sched, exec, logger)
}
