//go:build windows

package netport

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ownerPID parses `netstat -ano` output for a LISTENING entry on port.
func ownerPID(port int) (int, error) {
	out, err := exec.Command("netstat", "-ano", "-p", "TCP").Output()
	if err != nil {
		return 0, err
	}
	suffix := fmt.Sprintf(":%d", port)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[3] != "LISTENING" {
			continue
		}
		if strings.HasSuffix(fields[1], suffix) {
			pid, err := strconv.Atoi(fields[4])
			if err == nil && pid > 0 {
				return pid, nil
			}
		}
	}
	return 0, fmt.Errorf("no process listening on port %d", port)
}

func terminate(pid int) error {
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run()
}
