package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benchfab/circuitstock/internal/bom"
	"github.com/benchfab/circuitstock/internal/builds"
	jobsconsumer "github.com/benchfab/circuitstock/internal/consumers/jobs"
	"github.com/benchfab/circuitstock/internal/orders"
	"github.com/benchfab/circuitstock/internal/vendors/mouser"
	"github.com/benchfab/circuitstock/pkg/config"
	"github.com/benchfab/circuitstock/pkg/db"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/metrics"
	"github.com/benchfab/circuitstock/pkg/migrate"
	"github.com/benchfab/circuitstock/pkg/pubsub"
	"github.com/benchfab/circuitstock/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	buildService, err := builds.NewService(builds.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create build service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		os.Exit(1)
	}

	mouserRepo := mouser.NewRepository(dbClient.DB())
	mouserService, err := mouser.NewService(mouserRepo, mouser.NewClient(cfg.Mouser), pubsubClient)
	if err != nil {
		logg.Error(ctx, "failed to create mouser service", err)
		os.Exit(1)
	}

	bomRepo := bom.NewRepository(dbClient.DB())
	bomService, err := bom.NewService(bomRepo, bom.NewResolver(bomRepo, mouserService), cfg.Sync)
	if err != nil {
		logg.Error(ctx, "failed to create bom service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(registry)

	consumer, err := jobsconsumer.NewConsumer(
		pubsubClient.JobsSubscription(),
		redisClient,
		buildService,
		orderService,
		bomService,
		mouserService,
		jobMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create job consumer", err)
		os.Exit(1)
	}

	go serveMetrics(ctx, cfg, logg, registry)

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "starting job consumer")
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "job consumer stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
