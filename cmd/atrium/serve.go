package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/internal/api"
	"github.com/atriumhq/atrium/internal/cache"
	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/logging"
	"github.com/atriumhq/atrium/internal/metrics"
	"github.com/atriumhq/atrium/internal/store"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		httpAddr   string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Atrium catalog service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.Server.HTTPAddr = httpAddr
			}
			if logLevel != "" {
				cfg.Server.LogLevel = logLevel
			}
			logging.Init(cfg.Server.LogFormat, cfg.Server.LogLevel)

			ctx := cmd.Context()

			pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			cacheMetrics := metrics.New("atrium")
			cacheClient := cache.New(
				cache.NewRedisStore(cache.RedisConfig{
					Addr:      cfg.Redis.Addr,
					Password:  cfg.Redis.Password,
					DB:        cfg.Redis.DB,
					KeyPrefix: cfg.Redis.KeyPrefix,
				}),
				cache.WithMetrics(cacheMetrics),
			)
			defer cacheClient.Close()

			if err := cacheClient.Ping(ctx); err != nil {
				// Fail open: the service starts without its cache and
				// serves straight from the source of truth.
				logging.Op().Warn("redis unreachable, running cache-bypass", "addr", cfg.Redis.Addr, "error", err)
			}

			handler := &api.Handler{
				Catalog: catalog.New(pg, cacheClient),
				Cache:   cacheClient,
				Source:  pg,
				Metrics: cacheMetrics,
			}
			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)

			httpServer := &http.Server{
				Addr:    cfg.Server.HTTPAddr,
				Handler: mux,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Op().Info("atrium started", "addr", cfg.Server.HTTPAddr, "redis", cfg.Redis.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Op().Info("shutting down", "signal", sig.String())
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}
