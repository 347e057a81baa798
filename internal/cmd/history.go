package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/config"
	"github.com/harrison/foreman/internal/history"
)

// NewHistoryCommand creates the history command. Unlike the other commands
// it reads the audit database directly instead of going through the API, so
// it works when no orchestrator is running.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded task executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			store, err := history.NewStore(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			execs, err := store.ListExecutions(limit)
			if err != nil {
				return err
			}
			if len(execs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded executions")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Completed", "Task", "Agent", "Status", "Duration", "Error"})
			for _, e := range execs {
				t.AppendRow(table.Row{
					e.CompletedAt.Format(time.RFC3339),
					e.TaskID,
					e.Agent,
					e.Status,
					fmt.Sprintf("%.1fs", e.DurationSecs),
					e.ErrorMessage,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 50, "Maximum number of executions to list")
	return cmd
}
