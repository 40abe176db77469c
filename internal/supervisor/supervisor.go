package supervisor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duet-sh/duet/internal/history"
	"github.com/duet-sh/duet/internal/interaction"
	"github.com/duet-sh/duet/internal/logger"
	"github.com/duet-sh/duet/internal/metrics"
	"github.com/duet-sh/duet/internal/session"
	"github.com/duet-sh/duet/internal/slot"
)

const (
	// CrashBudget is the maximum number of consecutive automatic restarts
	// per key before restart attempts are permanently suspended for that
	// session's lifetime.
	CrashBudget = 3
	// backoffUnit scales the restart delay: attempt n waits n*backoffUnit.
	backoffUnit = 2 * time.Second
	// errorCaptureDelay is how long after Run the one-shot error-capture
	// prompt is armed.
	errorCaptureDelay = 15 * time.Second
	// disposeGrace is how long a session's process group gets to exit on
	// SIGTERM before escalation.
	disposeGrace = 2 * time.Second
)

// RestartRecord remembers what to replay when a key's session closes
// unexpectedly. CrashCount is monotonically non-decreasing while
// auto-restart is active; a successful restart does not reset it.
type RestartRecord struct {
	Command    string
	Dir        string
	Kind       slot.Kind
	CrashCount int
	// suppressed marks a pending or future restart as void. Set by StopAll;
	// cleared when the user runs the key again.
	suppressed bool
}

// Status is a point-in-time view of one tracked key, served over the
// status API.
type Status struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	Dir         string `json:"dir"`
	PID         int    `json:"pid"`
	Alive       bool   `json:"alive"`
	CrashCount  int    `json:"crash_count"`
	LastCommand string `json:"last_command,omitempty"`
}

// Supervisor owns the set of active sessions, replays the last command on
// automatic restart, and applies the crash-backoff policy. Every delayed
// callback re-checks the maps at its top before acting; that check is the
// cancellation mechanism, there is no hard timer kill.
type Supervisor struct {
	logCfg logger.Config
	logger *slog.Logger
	host   interaction.Host
	rec    *history.Recorder

	mu          sync.Mutex
	sessions    map[string]*session.Session
	records     map[string]*RestartRecord
	autoRestart bool

	// openSession is a seam for tests; defaults to session.Open.
	openSession func(name, dir string, kind slot.Kind, opts session.Options) (*session.Session, error)
	// afterFunc is a seam for tests; defaults to time.AfterFunc.
	afterFunc func(d time.Duration, fn func()) *time.Timer
	// captureDelay is errorCaptureDelay unless shortened by tests.
	captureDelay time.Duration
}

func New(log *slog.Logger, host interaction.Host, rec *history.Recorder, logCfg logger.Config, autoRestart bool) *Supervisor {
	return &Supervisor{
		logCfg:       logCfg,
		logger:       log.With("source", "supervisor"),
		host:         host,
		rec:          rec,
		sessions:     make(map[string]*session.Session),
		records:      make(map[string]*RestartRecord),
		autoRestart:  autoRestart,
		openSession:  session.Open,
		afterFunc:    time.AfterFunc,
		captureDelay: errorCaptureDelay,
	}
}

// Start creates a session for key. If a session already exists under key it
// is disposed first; replacing is not an error.
func (s *Supervisor) Start(key, dir string, kind slot.Kind) error {
	s.mu.Lock()
	old := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()
	if old != nil {
		old.Dispose(disposeGrace)
	}

	sess, err := s.openSession(key, dir, kind, session.Options{
		Log:      s.logCfg,
		OnClosed: s.handleClosed,
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", key, err)
	}

	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()

	metrics.IncStart(key)
	s.rec.Record(history.EventSpawn, key, dir)
	s.logger.Info("session started", "key", key, "dir", dir, "kind", kind.String())
	return nil
}

// Run sends command to key's session and records it as the command to
// replay on crash. An existing record keeps its crash count: only Stop,
// StopAll or disabling auto-restart reset the count, never a new Run.
//
// Spawn and send are fire-and-forget; no exit code is observable. A
// delayed one-shot prompt invites the human to capture an error from the
// clipboard; it is an assist, not automated detection.
func (s *Supervisor) Run(key, command string) error {
	s.mu.Lock()
	sess := s.sessions[key]
	if sess == nil {
		s.mu.Unlock()
		return fmt.Errorf("run %s: no session", key)
	}
	rec := s.records[key]
	if rec == nil {
		rec = &RestartRecord{}
		s.records[key] = rec
	}
	rec.Command = command
	rec.Dir = sess.Dir()
	rec.Kind = sess.Kind()
	rec.suppressed = false
	s.mu.Unlock()

	if err := sess.Send(command); err != nil {
		return err
	}
	// Close the shell once the command returns so the host reports the
	// session end; that report is the only crash signal available.
	_ = sess.Send("exit")

	s.rec.Record(history.EventCommand, key, command)
	s.logger.Info("command sent", "key", key, "command", command)
	s.armErrorCapture(key, sess)
	return nil
}

// RunHelper starts a disposable session (no RestartRecord, no replay) and
// sends it a one-shot command, e.g. a dependency install.
func (s *Supervisor) RunHelper(key, dir string, kind slot.Kind, command string) error {
	if err := s.Start(key, dir, kind); err != nil {
		return err
	}
	s.mu.Lock()
	sess := s.sessions[key]
	s.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("run helper %s: no session", key)
	}
	if err := sess.Send(command); err != nil {
		return err
	}
	_ = sess.Send("exit")
	s.rec.Record(history.EventCommand, key, command)
	return nil
}

// Stop disposes key's session and removes its RestartRecord so it will not
// auto-restart. This is the clean, user-initiated stop.
func (s *Supervisor) Stop(key string) {
	s.mu.Lock()
	sess := s.sessions[key]
	delete(s.sessions, key)
	delete(s.records, key)
	s.mu.Unlock()

	if sess != nil {
		sess.Dispose(disposeGrace)
		metrics.IncStop(key)
		s.rec.Record(history.EventStop, key, "")
		s.logger.Info("session stopped", "key", key)
	}
}

// StopAll disposes every active session. RestartRecords stay (auto-restart
// is crash recovery, and stop-all is an explicit user action), but crash
// counts reset and any pending restart for the stopped keys is suppressed.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	stopped := s.sessions
	s.sessions = make(map[string]*session.Session)
	for _, rec := range s.records {
		rec.suppressed = true
		rec.CrashCount = 0
	}
	s.mu.Unlock()

	for key, sess := range stopped {
		sess.Dispose(disposeGrace)
		metrics.IncStop(key)
		s.rec.Record(history.EventStop, key, "stop-all")
	}
	s.logger.Info("all sessions stopped", "count", len(stopped))
}

// SetAutoRestart toggles crash recovery. Disabling it resets every crash
// count to zero.
func (s *Supervisor) SetAutoRestart(enabled bool) {
	s.mu.Lock()
	s.autoRestart = enabled
	if !enabled {
		for _, rec := range s.records {
			rec.CrashCount = 0
		}
	}
	s.mu.Unlock()
	s.logger.Info("auto-restart toggled", "enabled", enabled)
}

// Statuses returns a snapshot of all tracked keys, sessions and records.
func (s *Supervisor) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []Status
	for key, sess := range s.sessions {
		st := Status{Key: key, Kind: sess.Kind().String(), Dir: sess.Dir(), PID: sess.PID(), Alive: sess.Alive()}
		if rec := s.records[key]; rec != nil {
			st.CrashCount = rec.CrashCount
			st.LastCommand = rec.Command
		}
		out = append(out, st)
		seen[key] = true
	}
	for key, rec := range s.records {
		if seen[key] {
			continue
		}
		out = append(out, Status{Key: key, Kind: rec.Kind.String(), Dir: rec.Dir, CrashCount: rec.CrashCount, LastCommand: rec.Command})
	}
	return out
}

// Record returns a copy of key's RestartRecord.
func (s *Supervisor) Record(key string) (RestartRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[key]
	if rec == nil {
		return RestartRecord{}, false
	}
	return *rec, true
}

// HasSession reports whether key currently has a session.
func (s *Supervisor) HasSession(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[key] != nil
}

// handleClosed is the host-reported termination path. It runs on the
// session's monitor goroutine for every close, including closes we caused
// ourselves; a session that is no longer the registered one for its key was
// explicitly stopped or replaced and is ignored.
func (s *Supervisor) handleClosed(sess *session.Session) {
	key := sess.Name()

	s.mu.Lock()
	if s.sessions[key] != sess {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, key)
	auto := s.autoRestart
	rec := s.records[key]
	s.mu.Unlock()

	metrics.IncCrash(key)
	s.rec.Record(history.EventCrash, key, "")
	s.logger.Warn("session closed unexpectedly", "key", key)

	// A clean zero-exit is indistinguishable from a crash here: the only
	// signal is the close itself. Known limitation of the replay policy.
	if !auto || rec == nil {
		return
	}

	s.mu.Lock()
	if rec.suppressed {
		s.mu.Unlock()
		return
	}
	if rec.CrashCount >= CrashBudget {
		s.mu.Unlock()
		s.giveUp(key, rec)
		return
	}
	rec.CrashCount++
	attempt := rec.CrashCount
	s.mu.Unlock()

	delay := time.Duration(attempt) * backoffUnit
	metrics.IncRestartAttempt(key)
	s.rec.Record(history.EventRestart, key, fmt.Sprintf("attempt %d, backoff %s", attempt, delay))
	s.logger.Warn("scheduling restart", "key", key, "attempt", attempt, "delay", delay.String())
	s.afterFunc(delay, func() { s.restart(key) })
}

// restart fires after the backoff delay. State may have moved on while the
// timer ran, so everything is re-checked before acting.
func (s *Supervisor) restart(key string) {
	s.mu.Lock()
	rec := s.records[key]
	ok := s.autoRestart && rec != nil && !rec.suppressed && s.sessions[key] == nil
	var command, dir string
	var kind slot.Kind
	if ok {
		command, dir, kind = rec.Command, rec.Dir, rec.Kind
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.Start(key, dir, kind); err != nil {
		s.logger.Error("restart failed", "key", key, "err", err)
		return
	}
	if err := s.Run(key, command); err != nil {
		s.logger.Error("restart run failed", "key", key, "err", err)
	}
}

// giveUp surfaces the terminal restart-budget failure. This is the one
// crash-cycle event that interrupts the user.
func (s *Supervisor) giveUp(key string, rec *RestartRecord) {
	metrics.IncBudgetExhausted(key)
	s.rec.Record(history.EventRestartGiveUp, key, rec.Command)
	s.logger.Error("restart budget exhausted", "key", key, "budget", CrashBudget)
	go func() {
		action, ok := s.host.Notify(
			fmt.Sprintf("%s crashed %d times in a row; automatic restart is suspended.", key, CrashBudget+1),
			"Copy last command",
		)
		if ok && action == "Copy last command" {
			if err := s.host.WriteClipboard(rec.Command); err != nil {
				s.logger.Warn("clipboard write failed", "err", err)
			}
		}
	}()
}

// armErrorCapture schedules the one-shot prompt inviting the human to flag
// a startup error. Skipped silently when the session has already been
// replaced or stopped by the time the timer fires.
func (s *Supervisor) armErrorCapture(key string, sess *session.Session) {
	s.afterFunc(s.captureDelay, func() {
		s.mu.Lock()
		current := s.sessions[key] == sess
		s.mu.Unlock()
		if !current {
			return
		}
		action, ok := s.host.Notify(
			fmt.Sprintf("Did %s start cleanly? If an error appeared, copy it to the clipboard first.", key),
			"Capture error from clipboard",
		)
		if !ok || action != "Capture error from clipboard" {
			return
		}
		text, err := s.host.ReadClipboard()
		if err != nil {
			s.logger.Warn("clipboard read failed", "key", key, "err", err)
			return
		}
		s.rec.Record(history.EventErrorCapture, key, text)
		s.logger.Error("captured error", "key", key, "error", text)
	})
}
