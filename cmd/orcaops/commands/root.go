package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "orcaops",
	Short: "OrcaOps - container job and workflow orchestrator",
	Long: `OrcaOps runs ephemeral, sandboxed container jobs and multi-job
workflows for CI/CD pipelines, AI-agent sandboxing, and ad-hoc compute.

This CLI is a thin, one-shot front end over the same persistence root
orcaopsd manages: it submits jobs/workflows, waits for completion, and
prints the result. It does not talk to a running daemon over the network.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
