package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"healink-eventcore/internal/config"
	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/database"
	"healink-eventcore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := logger.New(cfg.Environment).Named("relay")
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logg.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	bus, err := newBus(cfg)
	if err != nil {
		logg.Fatal("connect event bus", zap.Error(err))
	}
	defer bus.Close()

	store := outbox.NewPostgresStore(pool, outbox.Options{
		MaxRetries:   cfg.Outbox.MaxRetries,
		RetryBackoff: cfg.Outbox.PollInterval,
		ClaimLease:   cfg.Outbox.ClaimLease,
	})
	relay := outbox.NewRelay(store, bus, events.DefaultRegistry(), logg,
		cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, cfg.Outbox.PublishTimeout)

	go serveMetrics(cfg.MetricsPort, logg)

	logg.Info("outbox relay started",
		zap.Int("batch_size", cfg.Outbox.BatchSize),
		zap.Duration("poll_interval", cfg.Outbox.PollInterval),
		zap.String("event_bus", cfg.EventBus))
	relay.Run(ctx)
	logg.Info("outbox relay stopped")
}

func newBus(cfg *config.Config) (eventbus.Bus, error) {
	if cfg.EventBus == "nats" {
		return eventbus.NewNATSBus(cfg.NATSURL)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return eventbus.NewRedisBus(client), nil
}

func serveMetrics(port string, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logg.Error("metrics server", zap.Error(err))
	}
}
