package mqtt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"xray-data/internal/config"
	"xray-data/internal/service"
)

// IngestBridge is the optional second ingestion path: devices that speak MQTT
// instead of AMQP publish the same create payload to a topic, and the bridge
// feeds it into SignalService. QoS handles redelivery at the transport level;
// bad payloads are logged and dropped.
type IngestBridge struct {
	client *Client
	cfg    *config.MQTTConfig
	svc    *service.SignalService
	logger *zap.Logger
}

func NewIngestBridge(client *Client, cfg *config.MQTTConfig, svc *service.SignalService, logger *zap.Logger) *IngestBridge {
	return &IngestBridge{client: client, cfg: cfg, svc: svc, logger: logger}
}

// Start subscribes to the signal topic.
func (b *IngestBridge) Start(ctx context.Context) error {
	err := b.client.Subscribe(b.cfg.Topic, b.cfg.QoS, func(topic string, payload []byte) error {
		return b.handleMessage(ctx, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to start MQTT ingest bridge: %w", err)
	}
	b.logger.Info("MQTT ingest bridge started",
		zap.String("broker", b.cfg.Broker),
		zap.String("topic", b.cfg.Topic),
	)
	return nil
}

func (b *IngestBridge) handleMessage(ctx context.Context, topic string, payload []byte) error {
	decoded, err := service.DecodeSavePayload(payload)
	if err != nil {
		return fmt.Errorf("undecodable signal on %s: %w", topic, err)
	}

	rec, err := b.svc.SaveSignal(ctx, decoded)
	if err != nil {
		return fmt.Errorf("failed to save signal from %s: %w", topic, err)
	}

	b.logger.Debug("Persisted signal from MQTT",
		zap.String("signal_id", rec.ID),
		zap.String("device_id", rec.DeviceID),
	)
	return nil
}

// Stop disconnects from the broker.
func (b *IngestBridge) Stop() {
	b.client.Disconnect()
}
