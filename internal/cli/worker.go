package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/reelforge/internal/wire"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued publish uploads",
	Long:  "Consume publish uploads from the redis queue. Requires queue.dispatcher=asynq.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			worker, err := c.NewWorker()
			if err != nil {
				return err
			}
			if err := worker.Start(); err != nil {
				return err
			}
			c.Logger.Info("upload worker started")

			<-ctx.Done()
			worker.Shutdown()
			return nil
		})
	},
}

// WorkerCmd returns the worker command
func WorkerCmd() *cobra.Command {
	return workerCmd
}
