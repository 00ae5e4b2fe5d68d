//go:build !linux

package session

import (
	"errors"
	"os"
)

// reopenStdout has no portable implementation outside Linux's /proc;
// output capture simply does not resume after a restart on other
// platforms.
func reopenStdout(pid int) (*os.File, error) {
	return nil, errors.New("session: output re-attach unsupported on this platform")
}
