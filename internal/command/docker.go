package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/duet-sh/duet/internal/slot"
)

// Compose files are checked in order; the first hit wins and takes
// precedence over a bare Dockerfile.
var composeFiles = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// DockerCommand inspects dir for container build files and returns the
// command to run the slot in Docker. ok is false when the directory carries
// neither a compose file nor a Dockerfile.
func DockerCommand(dir string, kind slot.Kind, port int) (cmd string, ok bool) {
	for _, name := range composeFiles {
		if fileExists(filepath.Join(dir, name)) {
			return "docker compose up --build", true
		}
	}
	if fileExists(filepath.Join(dir, "Dockerfile")) {
		tag := "duet-" + kind.String()
		return fmt.Sprintf("docker build -t %s . && docker run --rm -p %d:%d %s", tag, port, port, tag), true
	}
	return "", false
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
