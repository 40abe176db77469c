// Package duet supervises a frontend/backend service pair inside a
// developer workspace: it resolves start commands, clears port contention,
// spawns interactive sessions, polls service health, and restarts crashed
// services under a bounded backoff policy.
package duet

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/duet-sh/duet/internal/config"
	"github.com/duet-sh/duet/internal/health"
	"github.com/duet-sh/duet/internal/history"
	"github.com/duet-sh/duet/internal/history/factory"
	"github.com/duet-sh/duet/internal/interaction"
	"github.com/duet-sh/duet/internal/logger"
	"github.com/duet-sh/duet/internal/metrics"
	"github.com/duet-sh/duet/internal/orchestrator"
	"github.com/duet-sh/duet/internal/server"
	"github.com/duet-sh/duet/internal/slot"
	"github.com/duet-sh/duet/internal/supervisor"
)

// Re-export core types for external consumers.

type Config = config.Config

type Host = interaction.Host

type HealthState = health.State

type SessionStatus = supervisor.Status

// ErrAborted is returned when the user cancels at a prompt.
var ErrAborted = orchestrator.ErrAborted

// LoadConfig reads a duet.toml file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// App wires the supervision components together with explicit lifetimes; no
// hidden process-wide singletons beyond the metrics registry.
type App struct {
	cfg  *config.Config
	sup  *supervisor.Supervisor
	mon  *health.Monitor
	orch *orchestrator.Orchestrator
	rec  *history.Recorder
	srv  *http.Server
}

// NewApp constructs an App. Diagnostic log lines go to logOut; prompts go
// through host.
func NewApp(cfg *config.Config, host Host, logOut io.Writer) (*App, error) {
	log := logger.New(logOut, cfg.Log)

	var sinks []history.Sink
	if cfg.History.Enabled {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	rec := history.NewRecorder(log, sinks...)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}

	sup := supervisor.New(log, host, rec, cfg.Log, cfg.AutoRestart)
	mon := health.NewMonitor(log)
	mon.OnStatusChange(func(kind slot.Kind, st health.State) {
		rec.Record(history.EventHealthChange, kind.String(), st.String())
	})
	orch := orchestrator.New(cfg, sup, mon, host, rec, log)

	return &App{cfg: cfg, sup: sup, mon: mon, orch: orch, rec: rec}, nil
}

// Startup runs the launch sequence for both slots.
func (a *App) Startup() error { return a.orch.Startup() }

// Shutdown stops all sessions and health polling, confirming with the user
// when sessions are active.
func (a *App) Shutdown() error { return a.orch.Shutdown() }

// StartServer exposes the status API when enabled in config.
func (a *App) StartServer() {
	if !a.cfg.Server.Enabled || a.srv != nil {
		return
	}
	a.srv = server.NewServer(a.cfg.Server, a.sup, a.mon, a.orch.Port)
}

// Close releases resources held by the App (history sinks, status server).
func (a *App) Close() {
	if a.srv != nil {
		_ = a.srv.Close()
		a.srv = nil
	}
	a.rec.Close()
}

// Statuses returns the supervisor's current view of all tracked keys.
func (a *App) Statuses() []SessionStatus { return a.sup.Statuses() }

// Health returns the last reported health state for kind.
func (a *App) Health(kind slot.Kind) HealthState { return a.mon.State(kind) }
