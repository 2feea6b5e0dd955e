package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/uiflow/internal/dispatch"
	"github.com/rendis/uiflow/internal/logging"
	"github.com/rendis/uiflow/internal/orchestrator"
	"github.com/rendis/uiflow/internal/runner"
	"github.com/rendis/uiflow/internal/scheduler"
	"github.com/rendis/uiflow/internal/status"
	"github.com/rendis/uiflow/internal/store"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "uiflow",
		Short:         "Browser-automation workflow orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run one workflow and wait for its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger := newLogger(cfg)

			orch, closeAll, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer closeAll()

			return orch.Run(cmd.Context(), args[0])
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon with live schedule reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger := newLogger(cfg)

			orch, closeAll, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer closeAll()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			dispatcher := dispatch.NewDispatcher(cfg.PoolSize, orch, logger)

			handle := scheduler.NewHandle(cfg.SchedulePath(), dispatcher, logger)
			if err := handle.Start(ctx); err != nil {
				return err
			}
			defer handle.Stop()

			watcher, err := scheduler.NewWatcher(handle, logger)
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()

			logger.Info("uiflow serving",
				slog.String("artifacts", cfg.ArtifactsDir),
				slog.Int("pool_size", cfg.PoolSize),
			)

			<-ctx.Done()
			logger.Info("shutting down")
			dispatcher.Shutdown()
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the uiflow version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("uiflow", Version)
		},
	}
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(logging.NewCorrelationHandler(inner))
}

// buildOrchestrator wires the pipeline: artifacts dir, status store, run
// history, and the robot runner.
func buildOrchestrator(cfg Config, logger *slog.Logger) (*orchestrator.Orchestrator, func(), error) {
	if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create artifacts directory: %w", err)
	}

	history, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := history.Migrate(context.Background()); err != nil {
		history.Close()
		return nil, nil, fmt.Errorf("migrate run history: %w", err)
	}

	statuses := status.NewStore(cfg.ArtifactsDir)
	r := runner.New(runner.Config{
		Binary:    cfg.RobotBinary,
		OutputDir: cfg.ArtifactsDir,
		Timeout:   cfg.ExecTimeoutDuration(),
	}, logger)

	orch, err := orchestrator.New(cfg.ArtifactsDir, statuses, history, r, logger)
	if err != nil {
		history.Close()
		return nil, nil, err
	}
	return orch, func() { _ = history.Close() }, nil
}
