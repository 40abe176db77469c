package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/duet-sh/duet/internal/logger"
	"github.com/duet-sh/duet/internal/slot"
)

// Session is one running interactive shell bound to a slot's working
// directory. Commands are delivered over the shell's stdin; the shell's
// output streams go to rotating log files. The caller learns about
// termination exclusively through the OnClosed callback, which fires exactly
// once regardless of why the shell exited.
type Session struct {
	name string
	dir  string
	kind slot.Kind

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	outCloser io.WriteCloser
	errCloser io.WriteCloser
	disposed  bool

	closedOnce sync.Once
	onClosed   func(*Session)
}

// Options configures how a session is spawned.
type Options struct {
	Log logger.Config
	// OnClosed is invoked from the session's monitor goroutine after the
	// shell process has been reaped. Never nil-checked by callers; may be nil.
	OnClosed func(*Session)
}

// Open spawns an interactive shell in dir and begins monitoring it.
// The shell gets its own process group so Dispose can take down children
// the service command forks.
func Open(name, dir string, kind slot.Kind, opts Options) (*Session, error) {
	cmd := shellCommand()
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.SysProcAttr = sysProcAttr()

	s := &Session{name: name, dir: dir, kind: kind, onClosed: opts.OnClosed}

	outW, errW, _ := opts.Log.SessionWriters(name)
	s.outCloser, s.errCloser = outW, errW
	if outW != nil {
		cmd.Stdout = outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if errW != nil {
		cmd.Stderr = errW
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.closeWriters()
		return nil, fmt.Errorf("session %s: stdin pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		s.closeWriters()
		return nil, fmt.Errorf("session %s: start shell: %w", name, err)
	}
	s.cmd = cmd
	s.stdin = stdin

	go s.monitor()
	return s, nil
}

// monitor reaps the shell and reports the close to the host callback.
func (s *Session) monitor() {
	_ = s.cmd.Wait()
	s.closeWriters()
	s.closedOnce.Do(func() {
		if s.onClosed != nil {
			s.onClosed(s)
		}
	})
}

// Send writes one command line to the shell. Fire-and-forget: no exit code
// for the command is ever observed.
func (s *Session) Send(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.stdin == nil {
		return fmt.Errorf("session %s: closed", s.name)
	}
	_, err := io.WriteString(s.stdin, command+"\n")
	if err != nil {
		return fmt.Errorf("session %s: send: %w", s.name, err)
	}
	return nil
}

// Dispose terminates the shell's process group, escalating to a hard kill
// when it does not exit within gracePeriod. Idempotent. The monitor
// goroutine still fires OnClosed afterwards; callers that disposed
// deliberately are expected to have deregistered first.
func (s *Session) Dispose(gracePeriod time.Duration) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	cmd := s.cmd
	stdin := s.stdin
	s.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	terminateGroup(pid)
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !s.Alive() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	killGroup(pid)
}

// Alive reports whether the shell process is still running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return processAlive(cmd.Process.Pid)
}

func (s *Session) closeWriters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outCloser != nil {
		_ = s.outCloser.Close()
		s.outCloser = nil
	}
	if s.errCloser != nil {
		_ = s.errCloser.Close()
		s.errCloser = nil
	}
}

func (s *Session) Name() string    { return s.name }
func (s *Session) Dir() string     { return s.dir }
func (s *Session) Kind() slot.Kind { return s.kind }

func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
