//go:build !windows

// Package procutil holds process helpers shared by the binaries.
package procutil

import (
	"os/exec"
	"syscall"
)

// Detach makes cmd the leader of a new session so it survives the terminal
// that started it.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}
