package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pylearn/internal/config"
	"github.com/michaelbrown/pylearn/internal/executor"
	"github.com/michaelbrown/pylearn/internal/observability"
	"github.com/michaelbrown/pylearn/internal/sandbox"
	"github.com/michaelbrown/pylearn/internal/server"
	"github.com/michaelbrown/pylearn/internal/storage"
	"github.com/michaelbrown/pylearn/internal/storage/postgres"
	"github.com/michaelbrown/pylearn/internal/storage/sqlite"
)

var (
	portFlag   int
	noSeedFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pylearn API server",
	Long: `Start the pylearn HTTP server. API endpoints are under /api, the
execution websocket is at /api/execute/ws, metrics at /metrics.

The lessons table is seeded with the default lessons on startup when it is
empty.

Examples:
  pylearn serve
  pylearn serve --port 9090 --no-seed`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&noSeedFlag, "no-seed", false, "Skip seeding default lessons")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	// Open storage
	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	if !noSeedFlag {
		if err := seedLessons(cmd.Context(), store, logger); err != nil {
			return err
		}
	}

	sb, err := sandbox.FromConfig(cfg.Executor, logger)
	if err != nil {
		return fmt.Errorf("creating sandbox: %w", err)
	}

	metrics := observability.NewMetricsCollector()
	exec := executor.New(sb, executor.Config{
		Timeout:       cfg.Executor.Timeout,
		ScratchDir:    cfg.Executor.ScratchDir,
		MaxConcurrent: cfg.Executor.MaxConcurrent,
	}, metrics, logger)

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(store, exec, metrics, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		store, err := postgres.Open(postgres.Config{DSN: cfg.Storage.DSN}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func seedLessons(ctx context.Context, store storage.Store, logger *slog.Logger) error {
	lessons, err := storage.DefaultLessons()
	if err != nil {
		return fmt.Errorf("loading default lessons: %w", err)
	}
	n, err := storage.Seed(ctx, store, lessons)
	if err != nil {
		return fmt.Errorf("seeding lessons: %w", err)
	}
	if n > 0 {
		logger.Info("seeded default lessons", slog.Int("count", n))
	}
	return nil
}
