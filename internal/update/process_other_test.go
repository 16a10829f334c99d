//go:build !windows

package update

import (
	"testing"
)

func TestProcessPattern(t *testing.T) {
	tests := []struct {
		goos string
		name string
		want string
	}{
		{goos: "linux", name: "finmgr", want: "finmgr"},
		{goos: "linux", name: "finmgr-updater-tool", want: "finmgr-updater-"},
		{goos: "darwin", name: "finmgr-updater-tool", want: "finmgr-updater-tool"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.name, func(t *testing.T) {
			if got := processPattern(tt.goos, tt.name); got != tt.want {
				t.Errorf("processPattern(%s, %s) = %s, want %s", tt.goos, tt.name, got, tt.want)
			}
		})
	}
}

func TestKillCommand(t *testing.T) {
	bin, args, noMatch := killCommand("finmgr")
	if bin != "pkill" {
		t.Errorf("bin = %s, want pkill", bin)
	}
	if len(args) != 3 || args[0] != "-KILL" || args[1] != "-x" || args[2] != "finmgr" {
		t.Errorf("args = %v", args)
	}
	if noMatch != 1 {
		t.Errorf("noMatch = %d, want 1", noMatch)
	}
}
