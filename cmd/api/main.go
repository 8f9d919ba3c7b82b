package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fabric/gateway/internal/billing"
	"github.com/fabric/gateway/internal/cache"
	"github.com/fabric/gateway/internal/chain"
	"github.com/fabric/gateway/internal/config"
	"github.com/fabric/gateway/internal/database"
	"github.com/fabric/gateway/internal/events"
	"github.com/fabric/gateway/internal/handlers"
	"github.com/fabric/gateway/internal/infra"
	"github.com/fabric/gateway/internal/metrics"
	"github.com/fabric/gateway/internal/middleware"
	"github.com/fabric/gateway/internal/reputation"
	"github.com/fabric/gateway/internal/selector"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("FABRIC_CONFIG"))
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	// Metrics registry with process/go collectors, like any other
	// Prometheus target.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Postgres is required.
	store, err := database.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Redis is degradable: without it the gateway runs uncached and
	// events stay in-process.
	var scoreCache *cache.ScoreCache
	var publisher events.Publisher

	redisAdapter, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running uncached", "error", err)
		redisAdapter = nil
	} else {
		defer redisAdapter.Close()
		scoreCache = cache.NewScoreCache(redisAdapter, cfg.Trust.ScoreCachePrefix, cfg.ScoreCacheTTL(), logger)
		publisher = redisAdapter
	}

	eventBus := events.NewRedisBus(publisher, events.DefaultChannel, logger)
	var emitter events.Emitter = eventBus

	// Chain collaborators. The registry writer tolerates being
	// unconfigured; flushes then stay off-chain.
	chainTimeout := time.Duration(cfg.Chain.TimeoutMs) * time.Millisecond
	chainClient := chain.NewClient(cfg.Chain.RPCURL, cfg.Chain.ETHPriceUSD, chainTimeout)
	registryWriter := chain.NewRegistryWriter(cfg.Chain.RPCURL,
		cfg.Chain.RegistryAddress, cfg.Chain.OperatorAddress, chainTimeout)

	sel := selector.New(store, scoreCache, m, logger)

	var chainWriter reputation.ChainWriter = registryWriter
	batcher := reputation.NewBatcher(chainWriter, store, emitter, m, cfg.Trust.BatchThreshold, logger)
	batcher.Start(cfg.BatchFlushInterval())
	defer batcher.Stop()

	budgetScheduler := billing.NewBudgetResetScheduler(store, emitter, m, cfg.BudgetResetInterval(), logger)
	budgetScheduler.Start()
	defer budgetScheduler.Stop()

	feeEngine := billing.NewFeeEngine(chainClient, m,
		cfg.Billing.EstimatedGasUSD, cfg.Billing.GasBufferMultiplier, logger)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{}, logger)
	defer rateLimiter.Stop()

	stream := events.NewStreamHandler(eventBus.Bus, logger)

	router := mux.NewRouter()

	// Public surface.
	router.HandleFunc("/health", handlers.HandleHealth(handlers.HealthDeps{
		DB:      store,
		Redis:   redisPinger(redisAdapter),
		Chain:   chainClient,
		Batcher: batcher,
	})).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Handle("/ws/events", stream)

	// Authenticated v1 surface.
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.Auth(store, rateLimiter.Middleware(h))
	}
	router.HandleFunc("/v1/discover", authed(handlers.HandleDiscover(sel))).Methods(http.MethodGet)
	router.HandleFunc("/v1/providers/{id}", authed(handlers.HandleGetProvider(store))).Methods(http.MethodGet)
	router.HandleFunc("/v1/feedback",
		authed(middleware.RequireFeedback(handlers.HandleFeedback(store, scoreCache, batcher, emitter)))).
		Methods(http.MethodPost)
	router.HandleFunc("/v1/costs",
		authed(middleware.RequireRoute(handlers.HandleCosts(feeEngine)))).Methods(http.MethodPost)
	router.HandleFunc("/v1/payments/validate", authed(handlers.HandleValidatePayment(feeEngine))).
		Methods(http.MethodPost)
	router.HandleFunc("/v1/budget", authed(handlers.HandleBudgets(store))).Methods(http.MethodGet)
	router.HandleFunc("/v1/reputation/queue", authed(handlers.HandleQueueStatus(batcher))).
		Methods(http.MethodGet)

	// Operator endpoints.
	router.HandleFunc("/admin/reputation/flush", authed(handlers.HandleFlushQueue(batcher))).
		Methods(http.MethodPost)
	router.HandleFunc("/admin/budgets/sweep", authed(handlers.HandleBudgetSweep(budgetScheduler))).
		Methods(http.MethodPost)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("gateway listening",
			"port", cfg.Server.Port,
			"env", cfg.Server.Env,
			"cached", scoreCache != nil,
			"chain_writes", registryWriter.Configured())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Drain pending reputation deltas before the process dies.
	if n := batcher.FlushPending(ctx); n > 0 {
		logger.Info("drained reputation queue on shutdown", "entries", n)
	}
}

// redisPinger avoids handing a typed-nil *GoRedisAdapter to the health
// endpoint's interface field.
func redisPinger(a *infra.GoRedisAdapter) handlers.Pinger {
	if a == nil {
		return nil
	}
	return a
}
