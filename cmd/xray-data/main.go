package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"xray-data/internal/config"
	"xray-data/internal/database"
	httpapi "xray-data/internal/http"
	"xray-data/internal/logger"
	"xray-data/internal/mqtt"
	"xray-data/internal/rabbitmq"
	"xray-data/internal/repository"
	"xray-data/internal/service"
	"xray-data/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "xray-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// store
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer database.Close(db)

	signalsRepo := repository.NewPostgresSignalsRepo(db)
	if err := signalsRepo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// device activity tracker (best effort; redis outage never blocks ingest)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var activity store.DeviceActivity
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, device activity tracking kept in memory", zap.Error(err))
		activity = store.NewMemoryDeviceActivity()
	} else {
		activity = store.NewRedisDeviceActivity(redisClient, 24*time.Hour)
	}

	svc := service.NewSignalService(signalsRepo, activity, log)

	// queue consumer
	consumer := rabbitmq.NewConsumer(cfg.RabbitMQ, svc, log)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			log.Error("Consumer stopped", zap.Error(err))
		}
	}()

	// optional MQTT ingest bridge
	var bridge *mqtt.IngestBridge
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Error("Failed to connect MQTT ingest bridge", zap.Error(err))
		} else {
			bridge = mqtt.NewIngestBridge(client, &cfg.MQTT, svc, log)
			if err := bridge.Start(ctx); err != nil {
				log.Error("Failed to start MQTT ingest bridge", zap.Error(err))
				bridge.Stop()
				bridge = nil
			}
		}
	}

	// HTTP gateway
	handler := httpapi.NewSignalHandler(svc, db, log)
	router := httpapi.NewRouter(log)
	router.RegisterSignalRoutes(handler)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server failed", zap.Error(err))
	}

	// Ordered shutdown: stop accepting HTTP, drain the consumer, then the
	// deferred closes release redis and the store pool.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}

	cancel()
	select {
	case <-consumerDone:
	case <-time.After(5 * time.Second):
		log.Warn("Consumer did not drain in time")
	}

	if bridge != nil {
		bridge.Stop()
	}
}
