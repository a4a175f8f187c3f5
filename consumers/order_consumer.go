package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Expirer interface {
	Expire(ctx context.Context, orderID int64) (bool, error)
}

// OrderConsumer handles deliveries from the order queue. Only payment_check
// events carry work; the rest are logged and acknowledged.
type OrderConsumer struct {
	orders Expirer
	logger *slog.Logger
}

func NewOrderConsumer(orders Expirer, logger *slog.Logger) *OrderConsumer {
	return &OrderConsumer{orders: orders, logger: logger}
}

// Run processes deliveries until ctx is done or the channel closes.
func (c *OrderConsumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				c.logger.Warn("order deliveries closed")
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *OrderConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while handling order event", "panic", r)
			_ = msg.Nack(false, false)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.OrderID == 0 {
		c.logger.Warn("invalid order event", "body", string(msg.Body), "error", err)
		middlewares.RecordOrderEvent("in", "invalid", false)
		_ = msg.Nack(false, false)
		return
	}

	log := c.logger.With("order_id", event.OrderID, "type", event.Type)
	switch event.Type {
	case models.EventPaymentCheck:
		expired, err := c.orders.Expire(ctx, event.OrderID)
		switch {
		case errors.Is(err, services.ErrNotFound):
			log.Warn("payment check for unknown order")
		case err != nil:
			// Retry once, then let the queue dead-letter it.
			log.Error("payment check failed", "error", err, "redelivered", msg.Redelivered)
			middlewares.RecordOrderEvent("in", event.Type, false)
			_ = msg.Nack(false, !msg.Redelivered)
			return
		case expired:
			log.Info("pending order expired")
		default:
			log.Debug("payment check found order settled")
		}
	case models.EventCreated, models.EventPaid, models.EventFailed, models.EventCancelled, models.EventExpired:
		log.Info("order event", "status", event.Status, "total", event.Total.String())
	default:
		log.Warn("unknown order event type")
	}

	middlewares.RecordOrderEvent("in", event.Type, true)
	if err := msg.Ack(false); err != nil {
		log.Error("ack order event", "error", err)
	}
}

// RunDeadLetters logs and acknowledges every dead-lettered delivery.
func (c *OrderConsumer) RunDeadLetters(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			c.logger.Error("dead letter", "type", msg.Type, "body", string(msg.Body), "headers", msg.Headers)
			if err := msg.Ack(false); err != nil {
				c.logger.Error("ack dead letter", "error", err)
			}
		}
	}
}
