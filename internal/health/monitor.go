package health

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/duet-sh/duet/internal/metrics"
	"github.com/duet-sh/duet/internal/slot"
)

// State is the liveness classification of a slot, derived purely from
// periodic network probing. It says nothing about whether a session exists.
type State int

const (
	StateNone State = iota
	StateStarting
	StateRunning
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	default:
		return "none"
	}
}

const (
	DefaultInterval     = 5 * time.Second
	DefaultProbeTimeout = 2 * time.Second
)

// Monitor polls both slots' ports over HTTP and reports status transitions.
// Any HTTP response, including an error status, counts as running; a
// transport failure counts as crashed. The monitor never emits Starting:
// that is a display convention for callers before the first probe lands.
type Monitor struct {
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu       sync.Mutex
	last     map[slot.Kind]State
	onChange func(slot.Kind, State)
	cancel   chan struct{}
	wg       sync.WaitGroup
}

func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		interval: DefaultInterval,
		client:   &http.Client{Timeout: DefaultProbeTimeout},
		logger:   logger.With("source", "health"),
		last:     make(map[slot.Kind]State),
	}
}

// SetInterval overrides the poll interval. Test hook; call before Start.
func (m *Monitor) SetInterval(d time.Duration) { m.interval = d }

// SetProbeTimeout overrides the per-probe HTTP timeout. Call before Start.
func (m *Monitor) SetProbeTimeout(d time.Duration) {
	m.client = &http.Client{Timeout: d}
}

// OnStatusChange registers the transition callback. Invoked only when a
// slot's state differs from the previous probe.
func (m *Monitor) OnStatusChange(fn func(slot.Kind, State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Start begins monitoring the two ports: an immediate probe pair, then one
// pair per interval. Calling Start while running restarts the schedule.
func (m *Monitor) Start(frontendPort, backendPort int) {
	m.Stop()
	m.mu.Lock()
	m.last = make(map[slot.Kind]State)
	cancel := make(chan struct{})
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(cancel, frontendPort, backendPort)
}

// Stop cancels polling. No callbacks fire after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		close(m.cancel)
		m.cancel = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// State returns the last reported state for kind.
func (m *Monitor) State(kind slot.Kind) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[kind]
}

func (m *Monitor) loop(cancel chan struct{}, frontendPort, backendPort int) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.probePair(cancel, frontendPort, backendPort)
		select {
		case <-cancel:
			return
		case <-ticker.C:
		}
	}
}

// probePair probes both ports concurrently so a slow frontend probe never
// delays the backend's schedule, then waits for both before the next tick.
func (m *Monitor) probePair(cancel chan struct{}, frontendPort, backendPort int) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.probe(cancel, slot.Frontend, frontendPort)
	}()
	go func() {
		defer wg.Done()
		m.probe(cancel, slot.Backend, backendPort)
	}()
	wg.Wait()
}

func (m *Monitor) probe(cancel chan struct{}, kind slot.Kind, port int) {
	start := time.Now()
	resp, err := m.client.Get(fmt.Sprintf("http://localhost:%d", port))
	metrics.ObserveProbeDuration(kind.String(), time.Since(start).Seconds())

	state := StateRunning
	if err != nil {
		state = StateCrashed
	} else {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	// Stopped while the probe was in flight: drop the result.
	select {
	case <-cancel:
		m.mu.Unlock()
		return
	default:
	}
	prev := m.last[kind]
	if prev == state {
		m.mu.Unlock()
		return
	}
	m.last[kind] = state
	fn := m.onChange
	m.mu.Unlock()

	metrics.SetHealthState(kind.String(), state.String())
	m.logger.Info("health transition", "slot", kind.String(), "from", prev.String(), "to", state.String())
	if fn != nil {
		fn(kind, state)
	}
}
