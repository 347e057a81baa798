// Package cmd implements the foreman CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for foreman
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foreman",
		Short: "Multi-agent workflow orchestrator",
		Long: `Foreman coordinates a fleet of worker agents that execute GitHub
workflows (branches, pull requests, reports) through a tool bridge.

The serve command runs the orchestrator with its HTTP API; the other
commands talk to a running orchestrator over that API.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", ".foreman/config.yaml", "Path to config file")
	cmd.PersistentFlags().String("api", "http://127.0.0.1:8080", "Base URL of a running foreman API")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewWorkflowCommand())
	cmd.AddCommand(NewAgentsCommand())
	cmd.AddCommand(NewQueueCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
