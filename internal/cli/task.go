package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/wire"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage pipeline tasks",
	Long:  "Create, run, inspect, cancel and resume pipeline tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [pipeline-type]",
	Short: "Create a task and run it in the foreground",
	Long: `Create a task of a pipeline type and run it until it finishes.

Params are key=value pairs; values are parsed as JSON when possible:
  reelforge task create shorts -p creator_id=creator-a -p enable_export=true
  reelforge task create shorts -p 'video_fetch_config={"days_back":3}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawParams, _ := cmd.Flags().GetStringArray("param")
		deferred, _ := cmd.Flags().GetBool("defer")

		params, err := parseParams(rawParams)
		if err != nil {
			return err
		}

		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).Create(ctx, args[0], params, deferred)
		})
	},
}

var taskRunCmd = &cobra.Command{
	Use:   "run [task-id]",
	Short: "Run a pending task in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).Run(ctx, args[0])
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		pipelineType, _ := cmd.Flags().GetString("pipeline")
		limit, _ := cmd.Flags().GetInt("limit")

		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).List(ctx, primary.TaskFilters{
				Status:       status,
				PipelineType: pipelineType,
				Limit:        limit,
			})
		})
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show task progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).Status(ctx, args[0])
		})
	},
}

var taskResultCmd = &cobra.Command{
	Use:   "result [task-id]",
	Short: "Print the stage outputs of a task as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).Result(ctx, args[0])
		})
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel a task before its next stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).Cancel(ctx, args[0])
		})
	},
}

var taskResumeCmd = &cobra.Command{
	Use:   "resume [task-id]",
	Short: "Resume a failed or cancelled task",
	Long:  "Resume a failed or cancelled task. Stages whose outputs exist are not re-run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			adapter := c.TaskAdapterWithOutput(cmd.OutOrStdout())
			if err := adapter.Resume(ctx, args[0]); err != nil {
				return err
			}
			c.Tasks.Wait()
			return adapter.Status(ctx, args[0])
		})
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task and its publish records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.TaskAdapterWithOutput(cmd.OutOrStdout()).Delete(ctx, args[0])
		})
	},
}

var taskLogCmd = &cobra.Command{
	Use:   "log [task-id]",
	Short: "Show the audit trail of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.LogAdapter().Show(ctx, "task", args[0])
		})
	},
}

func init() {
	// task create flags
	taskCreateCmd.Flags().StringArrayP("param", "p", nil, "Task param as key=value (repeatable)")
	taskCreateCmd.Flags().Bool("defer", false, "Store the task as pending without running it")

	// task list flags
	taskListCmd.Flags().String("status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	taskListCmd.Flags().String("pipeline", "", "Filter by pipeline type")
	taskListCmd.Flags().Int("limit", 0, "Maximum number of tasks (0 for all)")

	// Register subcommands
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskResultCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskResumeCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskLogCmd)
}

// TaskCmd returns the task command
func TaskCmd() *cobra.Command {
	return taskCmd
}
