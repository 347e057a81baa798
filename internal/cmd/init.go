package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/filelock"
)

const defaultConfigYAML = `# foreman configuration
listen_addr: "127.0.0.1:8080"
bridge_url: "http://localhost:9000"
bridge_timeout: 60s
tick_interval: 1s
heartbeat_interval: 30s
log_level: info
data_dir: .foreman

agents:
  - id: pr_agent
    name: PR Agent
    capabilities: [create_pr, merge_pr, list_prs]
    performance_score: 1.0
  - id: report_agent
    name: Report Agent
    capabilities: [generate_report]
    performance_score: 1.0
  - id: branch_agent
    name: Branch Agent
    capabilities: [create_branch, push_branch]
    performance_score: 1.0
`

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
				}
			}
			if err := filelock.AtomicWrite(configPath, []byte(defaultConfigYAML)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}
