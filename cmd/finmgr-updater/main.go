package main

import (
	"fmt"
	"os"

	"github.com/finmgr/finmgr/internal/cmd"
)

var version = "dev"

func main() {
	if err := cmd.ExecuteUpdater(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
