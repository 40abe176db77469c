package orchestrator

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/duet-sh/duet/internal/config"
	"github.com/duet-sh/duet/internal/health"
	"github.com/duet-sh/duet/internal/history"
	"github.com/duet-sh/duet/internal/logger"
	"github.com/duet-sh/duet/internal/netport"
	"github.com/duet-sh/duet/internal/slot"
	"github.com/duet-sh/duet/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHost struct {
	mu       sync.Mutex
	confirm  string // returned by Confirm; "" means dismissed
	confirms []string
	notifies []string
}

func (h *fakeHost) Confirm(msg string, opts ...string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirms = append(h.confirms, msg)
	if h.confirm == "" {
		return "", false
	}
	return h.confirm, true
}

func (h *fakeHost) Notify(msg string, actions ...string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifies = append(h.notifies, msg)
	return "", false
}

func (h *fakeHost) ReadClipboard() (string, error) { return "", nil }
func (h *fakeHost) WriteClipboard(string) error    { return nil }

func (h *fakeHost) confirmCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.confirms)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"fe", "be"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o750); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{
		Frontend: config.ServiceConfig{Path: "fe", Framework: "custom", Command: "sleep 30"},
		Backend:  config.ServiceConfig{Path: "be", Framework: "custom", Command: "sleep 30"},
	}
	cfg.SetRoot(root)
	return cfg
}

func newTestOrch(t *testing.T, cfg *config.Config, host *fakeHost) (*Orchestrator, *supervisor.Supervisor, *health.Monitor) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("orchestrator tests spawn /bin/sh sessions")
	}
	rec := history.NewRecorder(testLogger())
	sup := supervisor.New(testLogger(), host, rec, logger.Config{}, false)
	mon := health.NewMonitor(testLogger())
	mon.SetInterval(time.Hour)
	o := New(cfg, sup, mon, host, rec, testLogger())
	o.stagger = 0
	o.portAvailable = func(int) bool { return true }
	o.portFree = func(int) bool { return false }
	t.Cleanup(func() {
		sup.StopAll()
		mon.Stop()
	})
	return o, sup, mon
}

func TestStartupHappyPath(t *testing.T) {
	host := &fakeHost{}
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	if err := o.Startup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	for _, kind := range slot.Kinds() {
		if !sup.HasSession(kind.String()) {
			t.Fatalf("%s session missing after startup", kind)
		}
	}
	if host.confirmCount() != 0 {
		t.Fatalf("no prompts expected when ports are free and deps satisfied")
	}
	// Unknown frameworks resolve to the slot-kind default ports.
	if o.Port(slot.Frontend) != netport.DefaultFrontendPort {
		t.Fatalf("frontend port: got %d", o.Port(slot.Frontend))
	}
	if o.Port(slot.Backend) != netport.DefaultBackendPort {
		t.Fatalf("backend port: got %d", o.Port(slot.Backend))
	}
}

func TestStartupPortConflictIgnoreStillSpawns(t *testing.T) {
	host := &fakeHost{confirm: ChoiceIgnorePort}
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	o.portAvailable = func(port int) bool { return port != netport.DefaultBackendPort }

	if err := o.Startup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if host.confirmCount() != 1 {
		t.Fatalf("exactly one port prompt expected, got %d", host.confirmCount())
	}
	if !sup.HasSession("backend") {
		t.Fatalf("ignore must still spawn the backend session")
	}
	if o.Port(slot.Backend) != netport.DefaultBackendPort {
		t.Fatalf("backend must stay registered against %d, got %d", netport.DefaultBackendPort, o.Port(slot.Backend))
	}
}

func TestStartupPortConflictCancelAbortsBoth(t *testing.T) {
	host := &fakeHost{confirm: ChoiceCancel}
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	o.portAvailable = func(port int) bool { return port != netport.DefaultFrontendPort }

	if err := o.Startup(); !errors.Is(err, ErrAborted) {
		t.Fatalf("want ErrAborted, got %v", err)
	}
	for _, kind := range slot.Kinds() {
		if sup.HasSession(kind.String()) {
			t.Fatalf("cancel must prevent any session, %s exists", kind)
		}
	}
}

func TestStartupDismissedPromptEqualsCancel(t *testing.T) {
	host := &fakeHost{} // Confirm returns ok=false
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	o.portAvailable = func(int) bool { return false }

	if err := o.Startup(); !errors.Is(err, ErrAborted) {
		t.Fatalf("dismissed prompt must abort, got %v", err)
	}
	if sup.HasSession("frontend") || sup.HasSession("backend") {
		t.Fatalf("no sessions after dismissed prompt")
	}
}

func TestStartupFreePortFailureIsNonFatal(t *testing.T) {
	host := &fakeHost{confirm: ChoiceFreePort}
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	o.portAvailable = func(port int) bool { return port != netport.DefaultBackendPort }
	o.portFree = func(int) bool { return false }

	if err := o.Startup(); err != nil {
		t.Fatalf("a failed port-free must not abort startup: %v", err)
	}
	if !sup.HasSession("backend") {
		t.Fatalf("backend should spawn despite failed port-free")
	}
}

func TestStartupMissingDepsInstallSkipsSlot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Framework = "react"
	// Manifest without node_modules: gate reports missing.
	if err := os.WriteFile(filepath.Join(cfg.WorkDir(slot.Backend), "package.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	host := &fakeHost{confirm: ChoiceInstall}
	o, sup, _ := newTestOrch(t, cfg, host)

	if err := o.Startup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if sup.HasSession("backend") {
		t.Fatalf("slot with pending install must not spawn")
	}
	if !sup.HasSession("frontend") {
		t.Fatalf("the other slot still starts")
	}
	if host.confirmCount() != 1 {
		t.Fatalf("exactly one dependency prompt expected, got %d", host.confirmCount())
	}
}

func TestStartupUnconfiguredSlotAborts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Path = ""
	host := &fakeHost{}
	o, sup, _ := newTestOrch(t, cfg, host)

	if err := o.Startup(); err == nil {
		t.Fatalf("missing slot path must abort startup")
	}
	if sup.HasSession("frontend") {
		t.Fatalf("no partial side effects on configuration error")
	}
}

func TestShutdownConfirmsAndStops(t *testing.T) {
	host := &fakeHost{}
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	if err := o.Startup(); err != nil {
		t.Fatalf("startup: %v", err)
	}

	host.mu.Lock()
	host.confirm = ChoiceStop
	host.mu.Unlock()
	if err := o.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for _, kind := range slot.Kinds() {
		if sup.HasSession(kind.String()) {
			t.Fatalf("%s still active after shutdown", kind)
		}
	}
}

func TestShutdownDeclinedKeepsSessions(t *testing.T) {
	host := &fakeHost{}
	o, sup, _ := newTestOrch(t, testConfig(t), host)
	if err := o.Startup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	// Confirm returns dismissed; shutdown must not proceed.
	if err := o.Shutdown(); !errors.Is(err, ErrAborted) {
		t.Fatalf("declined shutdown: want ErrAborted, got %v", err)
	}
	if !sup.HasSession("frontend") || !sup.HasSession("backend") {
		t.Fatalf("sessions must survive a declined shutdown")
	}
}

func TestProfileOverrideWinsOverResolver(t *testing.T) {
	cfg := testConfig(t)
	cfg.ActiveProfile = "dev"
	cfg.Profiles = map[string]config.Profile{"dev": {Frontend: "make fe-dev"}}
	host := &fakeHost{}
	o, _, _ := newTestOrch(t, cfg, host)

	got := o.resolveCommand(slot.Frontend, cfg.Service(slot.Frontend), 3000)
	if got != "make fe-dev" {
		t.Fatalf("profile override must win, got %q", got)
	}
	// Backend has no override in the profile: falls through to the resolver.
	got = o.resolveCommand(slot.Backend, cfg.Service(slot.Backend), 8080)
	if got != "sleep 30" {
		t.Fatalf("custom command expected for backend, got %q", got)
	}
}
