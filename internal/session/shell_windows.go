//go:build windows

package session

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

func shellCommand() *exec.Cmd {
	// #nosec G204 -- fixed shell, commands arrive over stdin
	return exec.Command("cmd.exe")
}

func sysProcAttr() *syscall.SysProcAttr { return &syscall.SysProcAttr{} }

func terminateGroup(pid int) {
	_ = exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T").Run()
}

func killGroup(pid int) {
	_ = exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").Run()
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 is not supported on Windows; a successful find is the best we have.
	_ = p
	return true
}
