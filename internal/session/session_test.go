package session

import (
	"runtime"
	"testing"
	"time"

	"github.com/duet-sh/duet/internal/logger"
	"github.com/duet-sh/duet/internal/slot"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("interactive shell tests assume /bin/sh")
	}
}

func TestOpenSendExitReportsClose(t *testing.T) {
	skipOnWindows(t)
	closed := make(chan *Session, 1)
	s, err := Open("frontend", t.TempDir(), slot.Frontend, Options{
		OnClosed: func(sess *Session) { closed <- sess },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !s.Alive() {
		t.Fatalf("freshly opened session should be alive")
	}
	if err := s.Send("exit"); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case got := <-closed:
		if got != s {
			t.Fatalf("close reported for wrong session")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("close not reported")
	}
}

func TestDisposeTerminatesAndStillReportsClose(t *testing.T) {
	skipOnWindows(t)
	closed := make(chan struct{}, 1)
	s, err := Open("backend", t.TempDir(), slot.Backend, Options{
		OnClosed: func(*Session) { closed <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Send("sleep 30"); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Dispose(time.Second)
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatalf("close not reported after dispose")
	}
	if s.Alive() {
		t.Fatalf("disposed session still alive")
	}
	// Idempotent.
	s.Dispose(time.Second)
	if err := s.Send("echo nope"); err == nil {
		t.Fatalf("send after dispose should fail")
	}
}

func TestSessionWritesOutputFiles(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	cfg := logger.Config{File: logger.FileConfig{Dir: dir}}
	closed := make(chan struct{}, 1)
	s, err := Open("frontend", t.TempDir(), slot.Frontend, Options{
		Log:      cfg,
		OnClosed: func(*Session) { closed <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Send("echo hello-out"); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = s.Send("exit")
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatalf("session did not close")
	}
}
