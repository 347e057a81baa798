package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewAgentsCommand creates the agents command
func NewAgentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent fleet of a running orchestrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd)
			resp, err := c.Agents(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.AppendHeader(table.Row{"ID", "Name", "Status", "Score", "Current Task", "Capabilities"})
			for _, a := range resp.Agents {
				caps := ""
				for i, capability := range a.Capabilities {
					if i > 0 {
						caps += ", "
					}
					caps += string(capability)
				}
				t.AppendRow(table.Row{a.ID, a.Name, a.Status, a.PerformanceScore, a.CurrentTask, caps})
			}
			t.Render()

			fmt.Fprintf(out, "\n%d total, %d available, %d busy, %d offline\n",
				resp.Counts.Total, resp.Counts.Available, resp.Counts.Busy, resp.Counts.Offline)
			return nil
		},
	}
}
