//go:build linux

package netport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ownerPID maps a listening TCP port to the PID owning the socket by
// scanning /proc/net/tcp{,6} for the socket inode and then the fd tables
// under /proc/<pid>/fd. Returns the lowest matching PID (the main listener
// rather than a forked child).
func ownerPID(port int) (int, error) {
	inodes, err := listenInodes(port)
	if err != nil {
		return 0, err
	}
	minPID := 0
	entries, _ := os.ReadDir("/proc")
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil || !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inode := strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")
			if inodes[inode] && (minPID == 0 || pid < minPID) {
				minPID = pid
			}
		}
	}
	if minPID == 0 {
		return 0, fmt.Errorf("socket on port %d found but owning process not detected", port)
	}
	return minPID, nil
}

func listenInodes(port int) (map[string]bool, error) {
	inodes := make(map[string]bool)
	targetHex := fmt.Sprintf("%04X", port)
	for _, file := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n")[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 {
				continue
			}
			parts := strings.Split(fields[1], ":")
			if len(parts) == 2 && parts[1] == targetHex {
				inodes[fields[9]] = true
			}
		}
	}
	if len(inodes) == 0 {
		return nil, fmt.Errorf("no process listening on port %d", port)
	}
	return inodes, nil
}

func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
