package main

import (
	"runtime"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/spf13/cobra"
)

// Set via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionShort bool

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at"`
	UserAgent string `json:"user_agent"`
	Runtime   string `json:"runtime"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   version,
		Commit:    commit,
		BuiltAt:   date,
		UserAgent: backend.UserAgent,
		Runtime:   runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBuild()
		switch {
		case outputJSON:
			return outputAsJSON(cmd, b)
		case versionShort:
			outputText(cmd, "%s\n", b.Version)
		default:
			outputText(cmd, "chronoquest %s\n", b.Version)
			printField(cmd.OutOrStdout(), "commit", "%s", b.Commit)
			printField(cmd.OutOrStdout(), "built", "%s", b.BuiltAt)
			printField(cmd.OutOrStdout(), "client", "%s", b.UserAgent)
			printField(cmd.OutOrStdout(), "runtime", "%s", b.Runtime)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")
	rootCmd.AddCommand(versionCmd)
}
