// Stagehand is the orchestration daemon.
//
// It loads configuration, builds the stage and workflow registries and the
// orchestration service, and serves the HTTP API until SIGINT or SIGTERM.
//
// Usage:
//
//	# Start with ~/.config/stagehand/config.yaml (if present) and defaults
//	stagehand
//
//	# Override via environment
//	STAGEHAND_SERVER_HTTP_PORT=9000 STAGEHAND_EVENTS_ENABLED=true stagehand
//
//	stagehand version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/config"
	httpserver "github.com/fyrsmithlabs/stagehand/internal/http"
	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "stagehand",
		Short:         "Stage orchestration daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(ctx, cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "config file (default ~/.config/stagehand/config.yaml)")
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "stagehand by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled:
//  1. Initializes telemetry and the logger
//  2. Builds the orchestration service (registries, NATS, engines)
//  3. Serves HTTP
//  4. Shuts down gracefully within the configured timeout
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.With(zap.String("version", version))
	ctx = logging.WithLogger(ctx, logger)

	logger.Info(ctx, "starting stagehand",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("telemetry", cfg.Observability.EnableTelemetry),
		zap.Bool("events", cfg.Events.Enabled),
	)

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer app.Close()

	srv, err := httpserver.NewServer(app.service, logger.Named("http").Underlying(), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return shutdown(ctx, cfg.Server.ShutdownTimeout.Duration(), srv, tel)
}

// shutdown stops the server and flushes telemetry within timeout. ctx is
// only used for its values; it is normally already cancelled.
func shutdown(ctx context.Context, timeout time.Duration, srv *httpserver.Server, tel *telemetry.Telemetry) error {
	logger := logging.FromContext(ctx)
	logger.Info(ctx, "shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	logger.Info(shutdownCtx, "shutdown complete")
	return errors.Join(errs...)
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logCfg.Output.OTEL = tel.LoggerProvider() != nil
	return logging.NewLogger(logCfg, tel.LoggerProvider())
}
