package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errPartial marks a run where some actions were applied and some were not.
// It maps to exit code 1; any other error is fatal and maps to exit code 2.
var errPartial = errors.New("some actions were not applied")

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "aptrewind",
		Short: "Roll Debian package state back to a point in time",
		Long: `Aptrewind - Debian package operation rollback

Aptrewind replays your dpkg and apt logs to reconstruct what was
installed at any past moment, diffs that against the present, and
rewinds the difference using historical packages from
snapshot.debian.org.

Plan first, then apply: every run prints the exact installs and
removals before anything touches dpkg.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flagConfig     string
	flagLogDir     string
	flagArchiveURL string
	flagDebug      bool
)

// Execute runs the root command and returns the process exit code:
// 0 on success, 1 when the run partially applied, 2 on fatal errors.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPartial) {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Aptrewind {{.Version}} - Debian package operation rollback
`)

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "Directory holding dpkg.log* and apt/history.log*")
	rootCmd.PersistentFlags().StringVar(&flagArchiveURL, "archive-url", "", "Historical package archive base URL")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}
