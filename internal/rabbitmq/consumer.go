package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"xray-data/internal/config"
	"xray-data/internal/service"
)

// Dead-letter headers, set when a message is republished to the DLQ so
// operators can tell replayable failures from poison messages.
const (
	headerDeathReason = "x-death-reason"
	headerDeathError  = "x-death-error"

	reasonDecodeFailed     = "decode_failed"
	reasonValidationFailed = "validation_failed"
	reasonPersistFailed    = "persist_failed"
)

// DeadLetterPublisher is the subset of Publisher the consumer needs.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, body []byte, headers amqp.Table) error
}

// Consumer subscribes to the durable x-ray queue and drives each delivery
// through decode -> persist -> ack/reject. Every delivery resolves to exactly
// one ack or one reject-without-requeue: a malformed message can never become
// well-formed by retrying, and persistence failures are dead-lettered instead
// of requeued to avoid poison-message loops.
type Consumer struct {
	cfg    config.RabbitMQConfig
	svc    *service.SignalService
	logger *zap.Logger
}

func NewConsumer(cfg config.RabbitMQConfig, svc *service.SignalService, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, svc: svc, logger: logger}
}

// Run consumes until ctx is canceled. Broker connection loss triggers
// reconnect with exponential backoff; it never takes the process down.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("RabbitMQ consumer disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// consume holds one connection for its lifetime: declare queues, set
// prefetch, then process deliveries until the channel dies or ctx ends.
func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URI)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}

	// DLQ publishes go over their own channel so acks on the consumer
	// channel are never interleaved with sends.
	var dlq DeadLetterPublisher
	if c.cfg.DLQ != "" {
		dlqCh, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open dead-letter channel: %w", err)
		}
		defer dlqCh.Close()
		if dlq, err = NewPublisher(dlqCh, c.cfg.DLQ); err != nil {
			return err
		}
	}

	// Bounds in-flight deliveries so persistence attempts cannot pile up.
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "xray-data", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	c.logger.Info("Listening for messages",
		zap.String("queue", c.cfg.Queue),
		zap.Int("prefetch", c.cfg.Prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			// deferred closes run after the in-flight delivery resolved
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handleDelivery(ctx, dlq, d)
		}
	}
}

// handleDelivery resolves one delivery: decode failures and persistence
// failures are dead-lettered (best effort) and rejected without requeue,
// successful persistence is acknowledged. No path leaves the delivery
// unacknowledged.
func (c *Consumer) handleDelivery(ctx context.Context, dlq DeadLetterPublisher, d amqp.Delivery) {
	payload, err := service.DecodeSavePayload(d.Body)
	if err != nil {
		c.logger.Error("Rejecting undecodable message",
			zap.ByteString("body", d.Body),
			zap.Error(err),
		)
		c.deadLetter(ctx, dlq, d, reasonDecodeFailed, err)
		c.reject(d)
		return
	}

	if _, err := c.svc.SaveSignal(ctx, payload); err != nil {
		reason := reasonPersistFailed
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			reason = reasonValidationFailed
		}
		c.logger.Error("Rejecting message after failed save",
			zap.String("reason", reason),
			zap.ByteString("body", d.Body),
			zap.Error(err),
		)
		c.deadLetter(ctx, dlq, d, reason, err)
		c.reject(d)
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("Failed to ack message", zap.Error(err))
	}
}

func (c *Consumer) reject(d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.logger.Error("Failed to reject message", zap.Error(err))
	}
}

// deadLetter republishes the failed message verbatim plus failure context.
// Best effort: a DLQ failure must not leave the delivery unresolved.
func (c *Consumer) deadLetter(ctx context.Context, dlq DeadLetterPublisher, d amqp.Delivery, reason string, cause error) {
	if dlq == nil {
		return
	}
	headers := amqp.Table{
		headerDeathReason: reason,
		headerDeathError:  cause.Error(),
	}
	if err := dlq.Publish(ctx, d.Body, headers); err != nil {
		c.logger.Warn("Failed to publish to dead-letter queue",
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}
