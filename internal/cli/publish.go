package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/reelforge/internal/wire"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Fan out task results to publish accounts",
	Long:  "Fan out completed tasks to accounts and track, retry, cancel or delete individual publish records",
}

var publishFanOutCmd = &cobra.Command{
	Use:   "fanout [task-id] [account-id...]",
	Short: "Publish a completed task to accounts",
	Long:  "Create one publish record per account and upload them. Accounts already published for the task are skipped.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.PublishAdapterWithOutput(cmd.OutOrStdout()).FanOut(ctx, args[0], args[1:])
		})
	},
}

var publishStatusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show the publish status of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.PublishAdapterWithOutput(cmd.OutOrStdout()).Status(ctx, args[0])
		})
	},
}

var publishRetryCmd = &cobra.Command{
	Use:   "retry [publish-id]",
	Short: "Retry a failed or cancelled publish record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.PublishAdapterWithOutput(cmd.OutOrStdout()).Retry(ctx, args[0])
		})
	},
}

var publishCancelCmd = &cobra.Command{
	Use:   "cancel [publish-id]",
	Short: "Cancel a publish record that has not succeeded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.PublishAdapterWithOutput(cmd.OutOrStdout()).Cancel(ctx, args[0])
		})
	},
}

var publishDeleteCmd = &cobra.Command{
	Use:   "delete [publish-id]",
	Short: "Delete a single publish record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.PublishAdapterWithOutput(cmd.OutOrStdout()).Delete(ctx, args[0])
		})
	},
}

var publishLogCmd = &cobra.Command{
	Use:   "log [publish-id]",
	Short: "Show the audit trail of a publish record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			return c.LogAdapter().Show(ctx, "publish", args[0])
		})
	},
}

func init() {
	publishCmd.AddCommand(publishFanOutCmd)
	publishCmd.AddCommand(publishStatusCmd)
	publishCmd.AddCommand(publishRetryCmd)
	publishCmd.AddCommand(publishCancelCmd)
	publishCmd.AddCommand(publishDeleteCmd)
	publishCmd.AddCommand(publishLogCmd)
}

// PublishCmd returns the publish command
func PublishCmd() *cobra.Command {
	return publishCmd
}
