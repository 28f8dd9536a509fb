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
	"healink-eventcore/internal/notification"
	"healink-eventcore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := logger.New(cfg.Environment).Named("notifier")
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var bus eventbus.Bus
	if cfg.EventBus == "nats" {
		bus, err = eventbus.NewNATSBus(cfg.NATSURL)
		if err != nil {
			logg.Fatal("connect event bus", zap.Error(err))
		}
	} else {
		bus = eventbus.NewRedisBus(redisClient)
	}
	defer bus.Close()

	factory := notification.NewFactory(notification.FactoryConfig{
		Email: &notification.SMTPClient{
			Host:     cfg.Notification.SMTPHost,
			Port:     cfg.Notification.SMTPPort,
			Username: cfg.Notification.SMTPUser,
			Password: cfg.Notification.SMTPPass,
			From:     cfg.Notification.SMTPFrom,
		},
		MulticastConcurrency: cfg.Notification.MulticastConcurrency,
		SendTimeout:          cfg.Notification.SendTimeout,
	})
	dedup := notification.NewRedisDeduper(redisClient, cfg.Notification.DedupTTL)
	consumer := notification.NewConsumer(factory, events.DefaultRegistry(), dedup, logg)

	if err := consumer.Bind(bus); err != nil {
		logg.Fatal("bind consumer", zap.Error(err))
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			logg.Error("metrics server", zap.Error(err))
		}
	}()

	logg.Info("notification consumer started", zap.Strings("topics", consumer.Topics()))
	<-ctx.Done()
	logg.Info("notification consumer stopped")
}
