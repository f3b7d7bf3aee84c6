//go:build windows

// Package procutil holds process helpers shared by the binaries.
package procutil

import (
	"os/exec"
	"syscall"
)

// Detach starts cmd in its own process group so console signals aimed at
// the parent do not reach it.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}
