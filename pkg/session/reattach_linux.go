//go:build linux

package session

import (
	"fmt"
	"os"
)

// reopenStdout attempts to recover a readable handle on pid's stdout by
// reopening its /proc fd symlink. This works for a pipe only while the
// underlying file description is still referenced by the kernel (i.e.
// the writing process is still running); it is a best-effort recovery
// path, not a guarantee — most subprocesses outliving an orchestrator
// restart will have their original pipe read end gone and this simply
// returns an error, which callers treat as "capture not resumed".
func reopenStdout(pid int) (*os.File, error) {
	path := fmt.Sprintf("/proc/%d/fd/1", pid)
	return os.Open(path)
}
