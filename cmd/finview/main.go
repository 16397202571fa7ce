package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finview/internal/analytics"
	"finview/internal/backend"
	"finview/internal/cache"
	"finview/internal/cli"
	"finview/internal/config"
	apphttp "finview/internal/http"
	"finview/internal/log"
	"finview/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	logger.Info("Starting finview",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone)

	norm, engine, err := cli.BuildEngine(cfg, logger)
	if err != nil {
		logger.Error("Failed to build analytics engine", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	transactions := services.NewTransactionService(res.Store, res.Publisher, norm, logger.WithComponent(log.ComponentSubmit))
	dashboards, caches := newDashboardService(cfg, res, engine, logger)

	deps := apphttp.Deps{
		Transactions:   transactions,
		Dashboard:      dashboards,
		Categories:     res.Store,
		Logger:         logger.WithComponent(log.ComponentHTTP),
		PostsPerMinute: cfg.PostsPerMinute,
	}
	if p, ok := res.Store.(apphttp.Pinger); ok {
		deps.Ready = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("HTTP server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}

// newDashboardService wires the read side with LRU caches when CACHE_SIZE is
// positive. The returned manager purges expired entries in the background.
func newDashboardService(cfg *config.Config, res *backend.Result, engine *analytics.Engine, logger *log.Logger) (*services.DashboardService, *cache.Manager) {
	manager := cache.NewManager(logger.WithComponent(log.ComponentCache))
	opts := []services.DashboardOption{
		services.WithDashboardLogger(logger.WithComponent(log.ComponentDashboard)),
	}

	if cfg.CacheSize > 0 {
		dashboards := cache.NewLRUCache[analytics.Dashboard](cfg.CacheSize, cfg.CacheTTL)
		history := cache.NewLRUCache[[]analytics.HistoryEntry](cfg.CacheSize, cfg.CacheTTL)
		manager.Register(dashboards)
		manager.Register(history)
		manager.StartCleanup(cfg.CacheTTL)
		opts = append(opts, services.WithDashboardCache(dashboards), services.WithHistoryCache(history))
		logger.Info("Dashboard cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	}

	return services.NewDashboardService(res.Store, engine, opts...), manager
}
