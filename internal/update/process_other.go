//go:build !windows

package update

import (
	"os/exec"
	"runtime"
)

const (
	// pkill exits 1 when no process matched.
	pkillNoMatch = 1
	// Linux stores at most 15 bytes of the command name.
	linuxCommLen = 15
)

func killCommand(name string) (string, []string, int) {
	return "pkill", []string{"-KILL", "-x", processPattern(runtime.GOOS, name)}, pkillNoMatch
}

func processPattern(goos, name string) string {
	if goos == "linux" && len(name) > linuxCommLen {
		return name[:linuxCommLen]
	}
	return name
}

func hideWindow(*exec.Cmd) {}
