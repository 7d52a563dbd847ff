package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/liverpool/kvcache/internal/api"
	"github.com/liverpool/kvcache/internal/cache"
	"github.com/liverpool/kvcache/internal/config"
	"github.com/liverpool/kvcache/internal/logging"
	"github.com/liverpool/kvcache/internal/metrics"
	"github.com/liverpool/kvcache/internal/observability"
	"github.com/liverpool/kvcache/internal/ratelimit"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		httpAddr   string
		memBackend bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cache HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.Server.Addr = httpAddr
			}
			// CLI flags double as overrides for the daemon.
			if cmd.Flags().Changed("redis") {
				cfg.Redis.Addr = redisAddr
			}
			if cmd.Flags().Changed("redis-pass") {
				cfg.Redis.Password = redisPass
			}
			if cmd.Flags().Changed("redis-db") {
				cfg.Redis.DB = redisDB
			}
			if cmd.Flags().Changed("prefix") {
				cfg.Redis.KeyPrefix = redisPrefix
			}

			return runServer(cfg, memBackend)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (.yaml or .json)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&memBackend, "memory", false, "use the in-memory backend instead of Redis (development only)")
	return cmd
}

func runServer(cfg *config.Config, memBackend bool) error {
	logging.SetLevelFromString(cfg.Server.LogLevel)
	if cfg.Server.AccessLogPath != "" {
		if err := logging.Access().SetOutput(cfg.Server.AccessLogPath); err != nil {
			return fmt.Errorf("open access log: %w", err)
		}
		defer logging.Access().Close()
	}

	metrics.InitPrometheus("kvcache")

	ctx := context.Background()
	if err := observability.Init(ctx, cfg.Telemetry); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer observability.Shutdown(ctx)

	var (
		backend cache.Cache
		rlBack  ratelimit.Backend
	)
	if memBackend {
		logging.Op().Warn("using in-memory backend, data will not survive restarts")
		backend = cache.NewInMemoryCache()
	} else {
		redisCache, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			return err
		}
		backend = redisCache
		if cfg.RateLimit.Enabled {
			rlBack = ratelimit.NewFallbackBackend(ratelimit.NewRedisBackend(redisCache.Client()))
		}
		logging.Op().Info("connected to redis",
			"addr", cfg.Redis.Addr, "db", cfg.Redis.DB,
			"pool_size", cfg.Redis.PoolSize, "pool_timeout", cfg.Redis.PoolTimeout)
	}
	defer backend.Close()

	instrumented := cache.WithInstrumentation(backend)

	server := api.NewHTTPServer(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, api.ServerConfig{
		Cache:            instrumented,
		RateLimitBackend: rlBack,
		RateLimit:        cfg.RateLimit,
	})
	api.Start(server)
	logging.Op().Info("HTTP server listening", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Op().Info("shutting down", "signal", sig.String())

	if err := api.Shutdown(ctx, server, cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
