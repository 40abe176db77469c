//go:build darwin

package netport

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// ownerPID asks lsof for the PID listening on port. Lowest PID wins so we
// target the main listener rather than a forked child.
func ownerPID(port int) (int, error) {
	out, err := exec.Command("lsof", "-i", fmt.Sprintf("TCP:%d", port), "-s", "TCP:LISTEN", "-n", "-P", "-t").Output()
	if err != nil {
		return 0, fmt.Errorf("no process listening on port %d", port)
	}
	minPID := 0
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && pid > 0 && (minPID == 0 || pid < minPID) {
			minPID = pid
		}
	}
	if minPID == 0 {
		return 0, fmt.Errorf("no process listening on port %d", port)
	}
	return minPID, nil
}

func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
