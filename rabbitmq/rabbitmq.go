package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookstore-service/config"
	"bookstore-service/middlewares"
	"bookstore-service/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const (
	PriorityDefault = 5
	PriorityCancel  = 8
	PriorityLarge   = 9
)

var largeOrder = decimal.NewFromInt(1000)

// ErrDelayUnsupported is returned by SchedulePaymentCheck when the broker
// lacks the delayed message exchange plugin.
var ErrDelayUnsupported = errors.New("delayed message exchange not available")

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQ publishes order events and owns the broker topology.
type RabbitMQ struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	pub    publisher
	cfg    *config.Config
	logger *slog.Logger

	// amqp channels are not safe for concurrent publishing.
	mu      sync.Mutex
	delayed bool
}

func NewRabbitMQ(cfg *config.Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open channel: %w", err), conn.Close())
	}

	return &RabbitMQ{conn: conn, ch: ch, pub: ch, cfg: cfg, logger: logger}, nil
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.cfg.DeadLetterQueue + "_exchange"
}

// SetupQueues declares the order exchange and queue, the dead letter route
// and, when the broker supports it, the delay exchange feeding the order
// queue.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.ch.ExchangeDeclare(r.deadLetterExchange(), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	if _, err := r.ch.QueueDeclare(r.cfg.DeadLetterQueue, true, false, false, false, amqp.Table{
		"x-queue-type": "classic",
	}); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := r.ch.QueueBind(r.cfg.DeadLetterQueue, r.cfg.DeadLetterQueue, r.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.ch.ExchangeDeclare(r.cfg.OrderExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}
	if _, err := r.ch.QueueDeclare(r.cfg.OrderQueue, true, false, false, false, amqp.Table{
		"x-max-priority":            r.cfg.MaxPriority,
		"x-dead-letter-exchange":    r.deadLetterExchange(),
		"x-dead-letter-routing-key": r.cfg.DeadLetterQueue,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := r.ch.QueueBind(r.cfg.OrderQueue, "", r.cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	r.delayed = r.setupDelayExchange()
	return nil
}

// setupDelayExchange uses a throwaway channel: a failed declare closes the
// channel it was issued on.
func (r *RabbitMQ) setupDelayExchange() bool {
	ch, err := r.conn.Channel()
	if err != nil {
		r.logger.Warn("delay exchange: open channel", "error", err)
		return false
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(r.cfg.DelayExchange, "x-delayed-message", true, false, false, false, amqp.Table{
		"x-delayed-type": "fanout",
	}); err != nil {
		r.logger.Warn("delayed exchange not supported, pending orders will not expire", "error", err)
		return false
	}
	if err := ch.QueueBind(r.cfg.OrderQueue, "", r.cfg.DelayExchange, false, nil); err != nil {
		r.logger.Warn("bind delay exchange", "error", err)
		return false
	}
	return true
}

// Priority ranks events for the order queue: large orders first, then
// cancellations.
func Priority(event models.OrderEvent) uint8 {
	switch {
	case event.Total.GreaterThan(largeOrder):
		return PriorityLarge
	case event.Type == models.EventCancelled || event.Type == models.EventExpired:
		return PriorityCancel
	}
	return PriorityDefault
}

func (r *RabbitMQ) publish(ctx context.Context, exchange string, event models.OrderEvent, msg amqp.Publishing) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	msg.DeliveryMode = amqp.Persistent
	msg.Timestamp = event.Occurred
	msg.ContentType = "application/json"
	msg.Type = event.Type
	msg.Body = body

	r.mu.Lock()
	err = r.pub.PublishWithContext(ctx, exchange, "", false, false, msg)
	r.mu.Unlock()

	middlewares.RecordOrderEvent("out", event.Type, err == nil)
	if err != nil {
		return fmt.Errorf("publish %s event for order %d: %w", event.Type, event.OrderID, err)
	}
	return nil
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	return r.publish(ctx, r.cfg.OrderExchange, event, amqp.Publishing{Priority: Priority(event)})
}

// SchedulePaymentCheck publishes event through the delay exchange so it
// reaches the order queue after delay.
func (r *RabbitMQ) SchedulePaymentCheck(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	if !r.delayed {
		return ErrDelayUnsupported
	}
	return r.publish(ctx, r.cfg.DelayExchange, event, amqp.Publishing{
		Priority: Priority(event),
		Headers:  amqp.Table{"x-delay": delay.Milliseconds()},
	})
}

// Consume opens a dedicated channel delivering from queue without auto-ack.
func (r *RabbitMQ) Consume(queue, tag string, prefetch int) (<-chan amqp.Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, errors.Join(fmt.Errorf("set qos: %w", err), ch.Close())
	}
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("consume %s: %w", queue, err), ch.Close())
	}
	return deliveries, nil
}

// Close closes the channel and then the connection; consumer channels close
// with the connection.
func (r *RabbitMQ) Close() error {
	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
