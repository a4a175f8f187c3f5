package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bookstore-service/models"
	"bookstore-service/services"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ackResult struct {
	tag     uint64
	ack     bool
	requeue bool
}

type recorder struct {
	mu      sync.Mutex
	results []ackResult
}

func (r *recorder) Ack(tag uint64, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ackResult{tag: tag, ack: true})
	return nil
}

func (r *recorder) Nack(tag uint64, _ bool, requeue bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ackResult{tag: tag, requeue: requeue})
	return nil
}

func (r *recorder) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func (r *recorder) all() []ackResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ackResult(nil), r.results...)
}

type fakeExpirer struct {
	mu      sync.Mutex
	expired []int64
	errs    map[int64]error
}

func (f *fakeExpirer) Expire(_ context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[orderID]; err != nil {
		return false, err
	}
	f.expired = append(f.expired, orderID)
	return true, nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, event models.OrderEvent) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func newConsumer(expirer Expirer) *OrderConsumer {
	return NewOrderConsumer(expirer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOrderConsumer_Run(t *testing.T) {
	ack := &recorder{}
	expirer := &fakeExpirer{errs: map[int64]error{
		3: fmt.Errorf("%w: order 3", services.ErrNotFound),
		4: errors.New("database is down"),
	}}
	c := newConsumer(expirer)

	deliveries := make(chan amqp.Delivery, 6)
	deliveries <- delivery(t, ack, 1, models.OrderEvent{OrderID: 1, Type: models.EventPaymentCheck})
	deliveries <- delivery(t, ack, 2, models.OrderEvent{OrderID: 2, Type: models.EventCreated})
	deliveries <- delivery(t, ack, 3, models.OrderEvent{OrderID: 3, Type: models.EventPaymentCheck})
	deliveries <- delivery(t, ack, 4, models.OrderEvent{OrderID: 4, Type: models.EventPaymentCheck})
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 5, Body: []byte("42|created")}
	redelivered := delivery(t, ack, 6, models.OrderEvent{OrderID: 4, Type: models.EventPaymentCheck})
	redelivered.Redelivered = true
	deliveries <- redelivered
	close(deliveries)

	c.Run(context.Background(), deliveries)

	assert.Equal(t, []ackResult{
		{tag: 1, ack: true},
		{tag: 2, ack: true},
		{tag: 3, ack: true},
		{tag: 4, requeue: true},
		{tag: 5},
		{tag: 6},
	}, ack.all())
	assert.Equal(t, []int64{1}, expirer.expired)
}

func TestOrderConsumer_StopsOnCancel(t *testing.T) {
	c := newConsumer(&fakeExpirer{})
	ctx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, deliveries)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestOrderConsumer_RunDeadLetters(t *testing.T) {
	ack := &recorder{}
	c := newConsumer(&fakeExpirer{})
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 9, Body: []byte("garbage")}
	close(deliveries)

	c.RunDeadLetters(context.Background(), deliveries)

	assert.Equal(t, []ackResult{{tag: 9, ack: true}}, ack.all())
}
