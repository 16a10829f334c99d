package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/finmgr/finmgr/internal/output"
)

// VersionInfo is the output of `finmgr version`.
type VersionInfo struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Date     string `json:"date" yaml:"date"`
	Platform string `json:"platform" yaml:"platform"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("finmgr version %s (commit %s, built %s, %s)", v.Version, v.Commit, v.Date, v.Platform)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the finmgr version and build information.

Use 'finmgr check' to look for a newer release.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			return output.NewWriter(cmd.OutOrStdout(), format).Write(currentVersionInfo())
		},
	}
}

func currentVersionInfo() VersionInfo {
	return VersionInfo{
		Version:  buildVersion,
		Commit:   buildCommit,
		Date:     buildDate,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}
