package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirosfoundation/go-soap/internal/config"
	"github.com/sirosfoundation/go-soap/internal/demo"
	"github.com/sirosfoundation/go-soap/internal/server"
	"github.com/sirosfoundation/go-soap/internal/telemetry"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SOAP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			logger := telemetry.NewLogger(os.Stderr, cfg.Metrics.Logging.Level, cfg.Metrics.Logging.Format)
			slog.SetDefault(logger)
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "soapd.yaml", "path to the configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides server.port")
	return cmd
}

// services lists the services endpoints can name
func services(logger *slog.Logger) (map[string]server.Service, error) {
	calc, err := demo.NewService()
	if err != nil {
		return nil, fmt.Errorf("calculator service: %w", err)
	}
	return map[string]server.Service{
		"calculator": {Description: calc, Instance: demo.NewCalculator(logger)},
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs, err := services(logger)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, svcs, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
