package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestSessionWritersWithDirOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{File: FileConfig{Dir: dir}}
	outW, errW, err := cfg.SessionWriters("frontend")
	if err != nil {
		t.Fatalf("SessionWriters: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers when Dir is set")
	}
	_, _ = outW.Write([]byte("out\n"))
	_, _ = errW.Write([]byte("err\n"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(filepath.Join(dir, "frontend.stdout.log")); err != nil {
		t.Fatalf("stdout log missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "frontend.stderr.log")); err != nil {
		t.Fatalf("stderr log missing: %v", err)
	}
}

func TestSessionWritersNilWhenUnconfigured(t *testing.T) {
	outW, errW, _ := Config{}.SessionWriters("n")
	if outW != nil || errW != nil {
		t.Fatalf("no destinations configured: want nil writers")
	}
}

func TestSessionWritersRotationDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{File: FileConfig{
		StdoutPath: filepath.Join(dir, "s.out"),
		StderrPath: filepath.Join(dir, "s.err"),
	}}
	outW, errW, _ := cfg.SessionWriters("n")
	ol, ok1 := outW.(*lj.Logger)
	el, ok2 := errW.(*lj.Logger)
	if !ok1 || !ok2 {
		t.Fatalf("writers are not lumberjack loggers")
	}
	if ol.MaxSize != DefaultMaxSizeMB || ol.MaxBackups != DefaultMaxBackups || ol.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("unexpected defaults: %+v", ol)
	}
	if el.MaxSize != DefaultMaxSizeMB {
		t.Fatalf("stderr defaults differ")
	}
	closeIf(outW)
	closeIf(errW)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestNewEmitsTaggedLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "debug"})
	log.With("source", "supervisor").Info("session started", "key", "frontend")
	out := buf.String()
	if !strings.Contains(out, "source=supervisor") || !strings.Contains(out, "key=frontend") {
		t.Fatalf("missing attributes in output: %q", out)
	}
	if !strings.Contains(out, "time=") {
		t.Fatalf("entries must be timestamped: %q", out)
	}
}
