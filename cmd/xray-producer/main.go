package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"xray-data/internal/config"
	"xray-data/internal/logger"
	"xray-data/internal/rabbitmq"
)

const logEveryMessages = 10

// payload mirrors the create payload consumed by the backend.
type payload struct {
	DeviceID string           `json:"deviceId"`
	Time     int64            `json:"time"`
	Data     [][2]interface{} `json:"data"`
}

func main() {
	cfg := config.LoadProducer()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "xray-producer")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	conn, err := amqp.Dial(cfg.RabbitMQURI)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("Failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	pub, err := rabbitmq.NewPublisher(ch, cfg.Queue)
	if err != nil {
		log.Fatal("Failed to create publisher", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting producer",
		zap.String("queue", cfg.Queue),
		zap.Duration("interval", cfg.Interval),
	)

	if err := run(ctx, pub, cfg, log); err != nil {
		log.Error("Producer stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Producer stopped")
}

// run publishes one synthetic signal per tick until the context is canceled.
func run(ctx context.Context, pub *rabbitmq.Publisher, cfg *config.ProducerConfig, log *zap.Logger) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			body, err := json.Marshal(generatePayload(now.UnixMilli()))
			if err != nil {
				return err
			}
			if err := pub.Publish(ctx, body, nil); err != nil {
				return err
			}
			sent++
			if sent%logEveryMessages == 0 {
				log.Info("Messages sent", zap.Int("count", sent))
			}
		}
	}
}

// generatePayload builds a random signal: 1..5 samples of random readings.
func generatePayload(nowMillis int64) payload {
	n := rand.Intn(5) + 1
	data := make([][2]interface{}, 0, n)
	for i := 0; i < n; i++ {
		data = append(data, [2]interface{}{
			rand.Intn(100),
			[3]int{rand.Intn(100), rand.Intn(100), rand.Intn(100)},
		})
	}
	return payload{
		DeviceID: uuid.New().String(),
		Time:     nowMillis,
		Data:     data,
	}
}
