package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duet-sh/duet/internal/command"
	"github.com/duet-sh/duet/internal/config"
	"github.com/duet-sh/duet/internal/deps"
	"github.com/duet-sh/duet/internal/health"
	"github.com/duet-sh/duet/internal/history"
	"github.com/duet-sh/duet/internal/interaction"
	"github.com/duet-sh/duet/internal/netport"
	"github.com/duet-sh/duet/internal/slot"
	"github.com/duet-sh/duet/internal/supervisor"
)

// ErrAborted is returned when the user cancels startup or shutdown at a
// prompt. A dismissed prompt counts the same as an explicit cancel.
var ErrAborted = errors.New("aborted by user")

// Prompt choices, shared with tests.
const (
	ChoiceFreePort   = "Terminate occupant"
	ChoiceIgnorePort = "Ignore and continue"
	ChoiceCancel     = "Cancel startup"

	ChoiceInstall  = "Install now"
	ChoiceSkipDeps = "Skip"

	ChoiceStop = "Stop"
)

// staggerDelay separates the backend launch from the frontend's so their
// startup logs read in sequence.
const staggerDelay = 3 * time.Second

// Orchestrator sequences startup and shutdown of the service pair:
// resolve commands, gate on ports and dependencies, spawn sessions, start
// health polling.
type Orchestrator struct {
	cfg    *config.Config
	sup    *supervisor.Supervisor
	mon    *health.Monitor
	host   interaction.Host
	rec    *history.Recorder
	logger *slog.Logger

	ports map[slot.Kind]int

	// Seams for tests.
	portAvailable func(int) bool
	portFree      func(int) bool
	stagger       time.Duration
}

func New(cfg *config.Config, sup *supervisor.Supervisor, mon *health.Monitor, host interaction.Host, rec *history.Recorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		sup:           sup,
		mon:           mon,
		host:          host,
		rec:           rec,
		logger:        log.With("source", "orchestrator"),
		ports:         make(map[slot.Kind]int),
		portAvailable: netport.IsAvailable,
		portFree:      netport.Free,
		stagger:       staggerDelay,
	}
}

// Port returns the resolved port for kind. Valid after Startup.
func (o *Orchestrator) Port(kind slot.Kind) int { return o.ports[kind] }

// Startup runs the full launch sequence. Cancelling at a gate prevents any
// session from being spawned; there is no rollback of work that happened
// before the cancel (none of it spawns sessions).
func (o *Orchestrator) Startup() error {
	if err := o.cfg.Validate(); err != nil {
		o.host.Notify(fmt.Sprintf("Cannot start: %v. Edit duet.toml and retry.", err))
		o.rec.Record(history.EventStartupAborted, "", err.Error())
		return err
	}

	commands := make(map[slot.Kind]string)
	for _, kind := range slot.Kinds() {
		svc := o.cfg.Service(kind)
		o.ports[kind] = netport.PortFor(svc.Framework, kind)
		commands[kind] = o.resolveCommand(kind, svc, o.ports[kind])
	}

	// Port gate. Cancelling at the first conflicted port aborts startup
	// for both slots before anything is spawned.
	for _, kind := range slot.Kinds() {
		if err := o.gatePort(kind, o.ports[kind]); err != nil {
			return err
		}
	}

	// Dependency gate. A declined install aborts only that slot; the user
	// retries it manually once the install helper finishes.
	skip := make(map[slot.Kind]bool)
	for _, kind := range slot.Kinds() {
		skipSlot, err := o.gateDependencies(kind)
		if err != nil {
			return err
		}
		skip[kind] = skipSlot
	}

	// Spawn, frontend first, backend staggered.
	for i, kind := range slot.Kinds() {
		if skip[kind] {
			continue
		}
		if i > 0 {
			time.Sleep(o.stagger)
		}
		key := kind.String()
		if err := o.sup.Start(key, o.cfg.WorkDir(kind), kind); err != nil {
			return err
		}
		if err := o.sup.Run(key, commands[kind]); err != nil {
			return err
		}
	}

	o.mon.Start(o.ports[slot.Frontend], o.ports[slot.Backend])
	o.rec.Record(history.EventStartupComplete, "", "")
	o.logger.Info("startup complete",
		"frontend_port", o.ports[slot.Frontend],
		"backend_port", o.ports[slot.Backend])
	return nil
}

// Shutdown confirms with the user when sessions are active, then stops
// everything.
func (o *Orchestrator) Shutdown() error {
	active := false
	for _, kind := range slot.Kinds() {
		if o.sup.HasSession(kind.String()) {
			active = true
		}
	}
	if active {
		choice, ok := o.host.Confirm("Stop both services?", ChoiceStop, "Cancel")
		if !ok || choice != ChoiceStop {
			return ErrAborted
		}
	}
	o.sup.StopAll()
	o.mon.Stop()
	o.rec.Record(history.EventShutdown, "", "")
	o.logger.Info("shutdown complete")
	return nil
}

// resolveCommand applies the command precedence: profile override, then a
// Docker-derived command, then the framework resolver. Each override that
// applies is logged with the chosen command.
func (o *Orchestrator) resolveCommand(kind slot.Kind, svc config.ServiceConfig, port int) string {
	key := kind.String()
	if override := o.cfg.ProfileOverride(kind); override != "" {
		o.logger.Info("using profile override", "slot", key, "profile", o.cfg.ActiveProfile, "command", override)
		o.rec.Record(history.EventResolve, key, "profile: "+override)
		return override
	}
	if o.cfg.UseDocker {
		if cmd, ok := command.DockerCommand(o.cfg.WorkDir(kind), kind, port); ok {
			o.logger.Info("using docker command", "slot", key, "command", cmd)
			o.rec.Record(history.EventResolve, key, "docker: "+cmd)
			return cmd
		}
	}
	cmd := command.Resolve(svc.Framework, kind, svc.Command)
	o.rec.Record(history.EventResolve, key, cmd)
	return cmd
}

func (o *Orchestrator) gatePort(kind slot.Kind, port int) error {
	if o.portAvailable(port) {
		return nil
	}
	key := kind.String()
	o.rec.Record(history.EventPortConflict, key, fmt.Sprintf("port %d in use", port))
	choice, ok := o.host.Confirm(
		fmt.Sprintf("Port %d for %s is already in use.", port, key),
		ChoiceFreePort, ChoiceIgnorePort, ChoiceCancel,
	)
	if !ok || choice == ChoiceCancel {
		o.rec.Record(history.EventStartupAborted, key, "port conflict")
		return ErrAborted
	}
	if choice == ChoiceFreePort {
		if o.portFree(port) {
			o.rec.Record(history.EventPortFreed, key, fmt.Sprintf("port %d", port))
			o.logger.Info("terminated port occupant", "slot", key, "port", port)
		} else {
			// Non-fatal: the stale occupant may still release the port
			// before the new process needs it.
			o.logger.Warn("could not free port, continuing", "slot", key, "port", port)
		}
	}
	return nil
}

// gateDependencies returns skipSlot=true when this slot must not spawn
// (install started, manual retry expected). A cancel aborts both slots.
func (o *Orchestrator) gateDependencies(kind slot.Kind) (bool, error) {
	svc := o.cfg.Service(kind)
	dir := o.cfg.WorkDir(kind)
	if deps.HasDependencies(dir, svc.Framework) {
		return false, nil
	}
	key := kind.String()
	o.rec.Record(history.EventDepsMissing, key, dir)
	choice, ok := o.host.Confirm(
		fmt.Sprintf("Dependencies for %s look missing in %s.", key, dir),
		ChoiceInstall, ChoiceSkipDeps, "Cancel",
	)
	if !ok || choice == "Cancel" {
		o.rec.Record(history.EventStartupAborted, key, "dependencies missing")
		return false, ErrAborted
	}
	if choice == ChoiceInstall {
		install := deps.InstallCommandFor(svc.Framework)
		o.logger.Info("installing dependencies", "slot", key, "command", install)
		if err := o.sup.RunHelper(key+"-install", dir, kind, install); err != nil {
			o.logger.Error("install helper failed", "slot", key, "err", err)
		}
		return true, nil
	}
	return false, nil
}
