package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/duet-sh/duet/internal/slot"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDockerCommandNone(t *testing.T) {
	dir := t.TempDir()
	if _, ok := DockerCommand(dir, slot.Frontend, 3000); ok {
		t.Fatalf("empty dir must not yield a docker command")
	}
}

func TestDockerCommandDockerfile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Dockerfile"))
	cmd, ok := DockerCommand(dir, slot.Backend, 8080)
	if !ok {
		t.Fatalf("expected docker command")
	}
	if !strings.Contains(cmd, "docker build") || !strings.Contains(cmd, "8080:8080") {
		t.Fatalf("unexpected dockerfile command: %q", cmd)
	}
}

func TestDockerCommandComposeWinsOverDockerfile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Dockerfile"))
	touch(t, filepath.Join(dir, "docker-compose.yml"))
	cmd, ok := DockerCommand(dir, slot.Frontend, 3000)
	if !ok || cmd != "docker compose up --build" {
		t.Fatalf("compose should take precedence, got %q ok=%v", cmd, ok)
	}
}
