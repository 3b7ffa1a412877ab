package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-companion/backend/internal/api"
	"ai-companion/backend/internal/rpc"
	"ai-companion/backend/internal/store"
	"ai-companion/backend/pkg/config"
	"ai-companion/backend/pkg/di"
	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/pkg/router"
	"ai-companion/backend/pkg/secrets"
	"ai-companion/backend/shared/observability"

	"gorm.io/gorm"
)

func main() {
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.LogError(err, "Server stopped with an error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting application", "version", api.Version, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretManager, err := secrets.NewManager(cfg.Vault, log)
	if err != nil {
		return err
	}
	secrets.Resolve(ctx, secretManager, cfg)

	var shutdowns []observability.ShutdownFunc
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for _, fn := range shutdowns {
			if err := fn(shutdownCtx); err != nil {
				log.LogError(err, "Telemetry shutdown failed")
			}
		}
	}()
	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.SetupTracing(cfg.Observability.ServiceName, os.Stdout)
		if err != nil {
			return err
		}
		shutdowns = append(shutdowns, shutdown)
	}
	if cfg.Observability.MetricsEnabled {
		_, shutdown, err := observability.SetupMetrics(cfg.Observability.ServiceName)
		if err != nil {
			return err
		}
		shutdowns = append(shutdowns, shutdown)
	}

	var db *gorm.DB
	if cfg.Database.Driver != "memory" {
		db, err = config.NewDB(cfg)
		if err != nil {
			return err
		}
		if err := store.Migrate(db); err != nil {
			return err
		}
	}

	container, err := di.New(cfg, db, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.LogError(err, "Failed to close connections")
		}
	}()

	go container.Hub.Run(ctx)

	var grpcServer *rpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = rpc.NewServer(cfg.Observability.ServiceName, log)
		container.Health.OnChange(grpcServer.SetServing)
		go func() {
			if err := grpcServer.ListenAndServe(":" + cfg.GRPC.Port); err != nil {
				log.LogError(err, "gRPC server failed")
				stop()
			}
		}()
	}
	container.Health.Start(ctx)

	r := router.New(container)
	r.SetupRoutes()
	defer r.Stop()

	// SIGHUP re-reads the OpenAPI document
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := r.ReloadSchema(); err != nil {
					log.LogError(err, "OpenAPI schema reload failed, keeping the current document")
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}

	log.Info("Server exited gracefully")
	return nil
}
