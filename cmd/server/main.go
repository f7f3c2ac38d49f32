package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/content-records/pkg/content/api"
	"github.com/tendant/content-records/pkg/content/config"
	"github.com/tendant/content-records/pkg/content/presigned"
)

func main() {
	help := flag.Bool("help", false, "print supported environment variables and exit")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	if *help {
		config.Usage(os.Stdout)
		return
	}

	if err := run(*envFile); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(config.WithDotEnv(envFile), config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cfg.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()

	routerCfg := api.RouterConfig{
		Handler:            api.NewHandler(rt.Service, api.WithLimits(rt.Blobs.Limits()), api.WithLogger(logger)),
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Ready:              rt.Ready,
	}
	if rt.Signer != nil {
		routerCfg.Blobs = presigned.NewHandler(rt.Signer, rt.BlobSource, logger)
	}

	if rt.Sweeper != nil {
		rt.Sweeper.Start(context.WithoutCancel(ctx))
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("content server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage_backend", cfg.StorageBackend,
			"postgres", cfg.IsPostgres(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
