// Package cli implements the reelforge commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/config"
	"github.com/example/reelforge/internal/ctxutil"
	"github.com/example/reelforge/internal/logging"
	"github.com/example/reelforge/internal/version"
	"github.com/example/reelforge/internal/wire"
)

const defaultActor = "cli"

var (
	globalConfigPath string
	globalActorID    string
)

// RootCmd returns the reelforge command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reelforge",
		Short:         "Content pipeline orchestrator",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `reelforge runs multi-stage content pipelines (video, story, voice, draft,
export) and fans finished results out to publish accounts.`,
	}

	rootCmd.PersistentFlags().StringVarP(&globalConfigPath, "config", "c", "", "Config file (default ./reelforge.yaml or ~/.reelforge/reelforge.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalActorID, "actor", defaultActor, "Actor recorded in the audit log")

	rootCmd.AddCommand(TaskCmd())
	rootCmd.AddCommand(PublishCmd())
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(WorkerCmd())
	rootCmd.AddCommand(VersionCmd())
	return rootCmd
}

// NewContext returns a context carrying the CLI actor.
func NewContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	actor := globalActorID
	if actor == "" {
		actor = defaultActor
	}
	return ctxutil.WithActorID(parent, actor)
}

// withContainer loads settings, builds the container and runs fn under a
// context cancelled on SIGINT/SIGTERM. Background work is drained before
// the container is closed.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *wire.Container) error) error {
	settings, err := config.Load(globalConfigPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      settings.Log.Level,
		File:       settings.Log.File,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(NewContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := wire.New(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			logger.Warn("failed to close resources", zap.Error(cerr))
		}
	}()

	err = fn(ctx, c)
	c.Wait()
	return err
}

// VersionCmd returns the version command
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
