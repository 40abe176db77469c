//go:build !windows

package session

import (
	"os/exec"
	"syscall"
)

func shellCommand() *exec.Cmd {
	// #nosec G204 -- fixed shell path, commands arrive over stdin
	return exec.Command("/bin/sh")
}

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pid int) { _ = syscall.Kill(-pid, syscall.SIGTERM) }

func killGroup(pid int) { _ = syscall.Kill(-pid, syscall.SIGKILL) }

func processAlive(pid int) bool { return syscall.Kill(pid, 0) == nil }
