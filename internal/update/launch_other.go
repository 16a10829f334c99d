//go:build !windows

package update

import (
	"os"
	"os/exec"
	"syscall"
)

func detachedCommand(path string, args ...string) *exec.Cmd {
	cmd := exec.Command(path, args...)
	// New session: no controlling terminal, no SIGHUP when we exit.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}

// removeSelf unlinks the binary directly; a running image may be removed
// on Unix.
func removeSelf(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
