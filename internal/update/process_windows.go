//go:build windows

package update

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// taskkill exits 128 when no process matched the image name.
const taskkillNoMatch = 128

func killCommand(name string) (string, []string, int) {
	return "taskkill", []string{"/F", "/IM", name}, taskkillNoMatch
}

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
