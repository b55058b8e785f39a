package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/Keksclan/swrgate"
	"github.com/Keksclan/swrgate/config"
	"github.com/Keksclan/swrgate/health"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg)
			if err != nil {
				return fmt.Errorf("log.level: %w", err)
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// serve runs the gateway until ctx is cancelled, then shuts down in order:
// report unhealthy, wait out the drain delay, drain HTTP requests, stop the gRPC health service,
// wait for cache refreshes and release resources.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	srv, err := swrgate.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Str("environment", cfg.Server.Environment).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPC.HealthPort > 0 {
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.GRPC.HealthPort))
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			_ = httpSrv.Close()
			_ = srv.Close(context.Background())
			return fmt.Errorf("grpc health listener: %w", err)
		}
		grpcSrv = health.NewGRPCServer(srv.Health(), logger)
		go func() {
			logger.Info().Str("addr", addr).Msg("grpc health server listening")
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errc <- fmt.Errorf("grpc health server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errc:
		logger.Error().Err(runErr).Msg("server failed")
	}

	srv.Health().BeginShutdown()
	if runErr == nil && cfg.Server.DrainDelay > 0 {
		logger.Info().Dur("drain_delay", cfg.Server.DrainDelay).Msg("reporting unhealthy before closing listeners")
		time.Sleep(cfg.Server.DrainDelay)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if grpcSrv != nil {
		stopGRPC(shutdownCtx, grpcSrv)
	}
	if err := srv.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	logger.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

// stopGRPC stops s gracefully, forcing it closed when ctx is done first.
// Open health Watch streams would otherwise hold GracefulStop forever.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}
