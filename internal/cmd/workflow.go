package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/client"
)

// NewWorkflowCommand creates the workflow command group
func NewWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Create and inspect workflows",
	}
	cmd.AddCommand(newWorkflowCreateCommand())
	cmd.AddCommand(newWorkflowStatusCommand())
	return cmd
}

func newWorkflowCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow on a running orchestrator",
		Long: `Create a workflow. Parameters are passed as repeated --param key=value
flags and forwarded to the task executors.

Examples:
  foreman workflow create --type pr_with_report \
      --param title="Add retries" --param source_branch=feature/retries
  foreman workflow create --type full_branch_workflow --priority 1 \
      --param branch_name=feature/rollout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowType, _ := cmd.Flags().GetString("type")
			priority, _ := cmd.Flags().GetInt("priority")
			rawParams, _ := cmd.Flags().GetStringArray("param")

			params := make(map[string]any, len(rawParams))
			for _, p := range rawParams {
				key, value, found := strings.Cut(p, "=")
				if !found || key == "" {
					return fmt.Errorf("invalid --param %q, expected key=value", p)
				}
				params[key] = value
			}

			c := apiClient(cmd)
			id, err := c.CreateWorkflow(cmd.Context(), workflowType, params, priority)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().String("type", "", "Workflow type (pr_with_report, create_branch, branch_and_pr, full_branch_workflow, single_task)")
	cmd.Flags().Int("priority", 2, "Base priority; lower is more urgent")
	cmd.Flags().StringArray("param", nil, "Workflow parameter as key=value (repeatable)")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newWorkflowStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show the live status of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd)
			report, err := c.WorkflowStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow: %s (%s)\n", report.Workflow.ID, report.Workflow.Type)
			fmt.Fprintf(out, "Status:   %s\n", report.Status)
			fmt.Fprintf(out, "Progress: %s\n\n", report.Progress)

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.AppendHeader(table.Row{"Task", "Type", "Status", "Agent", "Error"})
			for _, task := range report.Tasks {
				status := string(task.Status)
				if task.Blocked {
					status += " (blocked)"
				}
				t.AppendRow(table.Row{task.ID, task.Type, status, task.AssignedAgent, task.Error})
			}
			t.Render()
			return nil
		},
	}
}

func apiClient(cmd *cobra.Command) *client.Client {
	base, _ := cmd.Flags().GetString("api")
	if base == "" {
		base = os.Getenv("FOREMAN_API")
	}
	return client.New(base)
}
