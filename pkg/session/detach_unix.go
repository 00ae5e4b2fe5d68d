//go:build !windows

package session

import (
	"os/exec"
	"syscall"
)

// setDetached configures cmd to start in its own session, so it
// outlives the orchestrator's controlling terminal.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
