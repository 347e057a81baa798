package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewQueueCommand creates the queue command
func NewQueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the task queue summary of a running orchestrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd)
			counts, err := c.Queue(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued:    %d\n", counts.Queued)
			fmt.Fprintf(out, "Pending:   %d\n", counts.Pending)
			fmt.Fprintf(out, "Running:   %d\n", counts.Running)
			fmt.Fprintf(out, "Completed: %d\n", counts.Completed)
			fmt.Fprintf(out, "Failed:    %d\n", counts.Failed)
			fmt.Fprintf(out, "Total:     %d\n", counts.Total)
			return nil
		},
	}
}
