package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the pipeline scheduler",
	Long: `Run the JSON API and the cron scheduler until interrupted.

Tasks left running by a previous process are marked failed at startup so
they can be resumed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		return withContainer(cmd, func(ctx context.Context, c *wire.Container) error {
			if addr != "" {
				c.Settings.HTTP.Addr = addr
			}
			return serve(ctx, c)
		})
	},
}

func serve(ctx context.Context, c *wire.Container) error {
	logger := c.Logger

	recovered, err := c.Tasks.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}
	if recovered > 0 {
		logger.Warn("marked interrupted tasks as failed", zap.Int("count", recovered))
	}

	scheduler, err := c.NewScheduler(ctx)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := c.NewHTTPServer()
	errc := srv.Start()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return serveCmd
}
