//go:build unix

package service

import (
	"os/exec"
	"syscall"
)

// killGroup puts the worker into its own process group and makes the
// context kill the whole group, so processes started by the worker (a
// headless browser) die with it.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
