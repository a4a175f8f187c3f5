package services

import (
	"context"
	"time"

	"bookstore-service/models"
)

// EventPublisher announces order lifecycle changes. Publishing is best effort:
// a failure is logged and never undoes the state change that caused it.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
	// SchedulePaymentCheck asks for a payment_check event after delay.
	SchedulePaymentCheck(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error { return nil }

func (noopPublisher) SchedulePaymentCheck(context.Context, models.OrderEvent, time.Duration) error {
	return nil
}

// NoopPublisher drops every event. Used when no broker is configured.
var NoopPublisher EventPublisher = noopPublisher{}
