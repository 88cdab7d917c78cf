package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/api/rest"
	"github.com/abhinavece/player-auction-backend/internal/api/websocket"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/cache"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/config"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/database"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/telemetry"
	"github.com/abhinavece/player-auction-backend/internal/metrics"
	"github.com/abhinavece/player-auction-backend/internal/service/engine"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.Telemetry.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.TracingEnabled {
		shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			ServiceName:    "player-auction-backend",
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Enabled:        true,
			SamplingRate:   cfg.Telemetry.SamplingRate,
		})
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	var store repository.Store
	switch cfg.Engine.Store {
	case "memory":
		logger.Warn("using in-memory store, state is lost on restart")
		store = repository.NewMemoryStore()
	default:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = repository.NewPostgresStore(pool, logger)
	}

	var (
		tokens    auth.MagicTokenStore
		snapshots *cache.SnapshotCache
	)
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		tokens = cache.NewTokenStore(redisClient, logger)
		snapshots = cache.NewSnapshotCache(redisClient, logger)
	}

	authService := auth.NewService(
		cfg.Auth.SigningKey, cfg.Auth.TokenTTL,
		cfg.Auth.MagicLinkBaseURL, cfg.Auth.MagicTokenTTL,
		tokens,
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	auctionMetrics := metrics.NewRegistry(promRegistry)

	hub := websocket.NewHub(nil, auctionMetrics.ConnectedClients, logger)
	go hub.Run(ctx)

	eng := engine.New(store, metrics.Observe(hub, auctionMetrics), engine.Options{
		BidRatePerTeam: cfg.Engine.BidRatePerTeam,
		BidBurst:       cfg.Engine.BidBurst,
		Metrics:        auctionMetrics,
	}, logger)
	hub.SetSnapshotSource(eng)

	wsHandler := websocket.NewHandler(hub, authService, logger)
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	server := rest.NewServer(cfg, eng, store, authService, wsHandler, snapshots, metricsHandler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
