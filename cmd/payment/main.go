package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"healink-eventcore/internal/config"
	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/internal/notification"
	"healink-eventcore/internal/outbox"
	"healink-eventcore/internal/payment"
	"healink-eventcore/pkg/database"
	"healink-eventcore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := logger.New(cfg.Environment).Named("payment")
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logg.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

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

	outboxStore := outbox.NewPostgresStore(pool, outbox.Options{
		MaxRetries:   cfg.Outbox.MaxRetries,
		RetryBackoff: cfg.Outbox.PollInterval,
		ClaimLease:   cfg.Outbox.ClaimLease,
	})
	store := payment.NewPostgresStore(pool)
	gateway := &payment.HMACGateway{GatewayName: cfg.Payment.GatewayName, Secret: cfg.Payment.GatewaySecret}

	service := payment.NewService(store, outboxStore, gateway, logg, cfg.ServiceName, cfg.Payment.GatewayTimeout)
	reconciler := payment.NewReconciler(store, outboxStore, gateway, logg, cfg.ServiceName)

	dedup := notification.NewRedisDeduper(redisClient, cfg.Notification.DedupTTL)
	consumer := payment.NewConsumer(service, events.DefaultRegistry(), dedup, logg)
	if err := consumer.Bind(bus); err != nil {
		logg.Fatal("bind consumer", zap.Error(err))
	}

	if cfg.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	payment.NewCallbackHandler(reconciler, logg).Register(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Payment.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logg.Info("payment callback listener started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("callback listener", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logg.Info("payment service stopped")
}
