package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/cache"
	cachemetrics "github.com/stockalert-pro/stockalert-slack-app/internal/cache/metrics"
	ingestmetrics "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/metrics"
	ingestservice "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/service"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/tracer"
	ledgermetrics "github.com/stockalert-pro/stockalert-slack-app/internal/ledger/metrics"
	ledgerstore "github.com/stockalert-pro/stockalert-slack-app/internal/ledger/store"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ledger/workers/cleanup"
	"github.com/stockalert-pro/stockalert-slack-app/internal/notify"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/config"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/database"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/health"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/logger"
	platformredis "github.com/stockalert-pro/stockalert-slack-app/internal/platform/redis"
	rlmetrics "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/metrics"
	rlmiddleware "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/middleware"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	rlservice "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/service"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/store/window"
	slackclient "github.com/stockalert-pro/stockalert-slack-app/internal/slack"
	tenantmetrics "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/metrics"
	tenantservice "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/service"
	channelstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/channel"
	installationstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/installation"
	httptransport "github.com/stockalert-pro/stockalert-slack-app/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing stockalert-slack-app",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"database_configured", cfg.DatabaseURL != "",
		"redis_configured", cfg.RedisURL != "",
	)

	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Postgres is optional in development. Without it every store falls
	// back to its in-memory twin and state does not survive restarts.
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	db, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close() //nolint:errcheck // shutdown path
	}

	// Redis backs the far cache tier and the shared rate limit windows.
	// Without it the cache runs near-tier only and windows stay in-process.
	redisCfg := config.RedisFromEnv()
	redisCfg.URL = cfg.RedisURL
	redisClient, err := platformredis.New(redisCfg)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // shutdown path
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					redisClient.RecordPoolStats()
				}
			}
		}()
	}

	var farTier cache.Tier
	if redisClient != nil {
		farTier = cache.NewRedis(redisClient.Client)
	}
	nearTier := cache.NewMemory()
	defer nearTier.Close() //nolint:errcheck // shutdown path
	layered := cache.NewLayered(nearTier, farTier,
		cache.WithLogger(log),
		cache.WithMetrics(cachemetrics.New()),
	)

	var windows rlservice.WindowStore
	if redisClient != nil {
		windows = window.NewRedis(redisClient.Client)
	} else {
		windows = window.NewMemory()
	}
	limiter, err := rlservice.New(windows, map[rlmodels.Scope]rlservice.ScopeConfig{
		rlmodels.ScopeCommand: {Limit: cfg.CommandLimit.Limit, Window: cfg.CommandLimit.Window},
		rlmodels.ScopeOAuth:   {Limit: cfg.OAuthLimit.Limit, Window: cfg.OAuthLimit.Window},
		rlmodels.ScopeWebhook: {Limit: cfg.WebhookLimit.Limit, Window: cfg.WebhookLimit.Window},
	}, rlservice.WithLogger(log), rlservice.WithMetrics(rlmetrics.New()))
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}

	var installations installationstore.Store
	var channels channelstore.Store
	var events ledgerstore.Store
	if db != nil {
		installations = installationstore.NewPostgres(db.DB())
		channels = channelstore.NewPostgres(db.DB())
		events = ledgerstore.NewPostgres(db.DB())
	} else {
		installations = installationstore.NewMemory()
		channels = channelstore.NewMemory()
		events = ledgerstore.NewMemory()
	}

	tenants, err := tenantservice.New(installations, channels, layered,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(tenantmetrics.New()),
		tenantservice.WithTTLs(cfg.InstallationTTL, cfg.ChannelDefaultTTL),
	)
	if err != nil {
		log.Error("tenant service init failed", "error", err)
		os.Exit(1)
	}

	janitor, err := cleanup.New(events, cfg.LedgerRetention,
		cleanup.WithInterval(cfg.LedgerCleanupInterval),
		cleanup.WithLogger(log),
		cleanup.WithMetrics(ledgermetrics.New()),
	)
	if err != nil {
		log.Error("ledger cleanup init failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := janitor.Start(rootCtx); err != nil && rootCtx.Err() == nil {
			log.Error("ledger cleanup stopped", "error", err)
		}
	}()

	slackAPI := slackclient.New(cfg.SlackClientID, cfg.SlackClientSecret)

	pipeline, err := ingestservice.New(limiter, tenants, events, notify.New(), slackAPI,
		ingestservice.WithLogger(log),
		ingestservice.WithMetrics(ingestmetrics.New()),
		ingestservice.WithTracer(tracer.NewOTel()),
		ingestservice.WithTimeouts(cfg.DependencyTimeout, cfg.DeliveryTimeout),
	)
	if err != nil {
		log.Error("ingest pipeline init failed", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New(cfg.Environment)
	if db != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Health(ctx)
		})
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	handler := httptransport.NewHandler(pipeline, tenants, limiter, slackAPI, cfg.SlackSigningSecret, log)
	router := httptransport.NewRouter(handler, healthHandler, rlmiddleware.New(limiter, log), log, httptransport.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
