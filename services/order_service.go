package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookstore-service/models"
	"bookstore-service/payment"
	"bookstore-service/store"

	"github.com/shopspring/decimal"
)

const (
	defaultPaymentTimeout = 15 * time.Minute
	topBooksLimit         = 5
)

// OrderService drives the order state machine:
//
//	pending -> paid | failed | cancelled
//	failed  -> cancelled
//
// Stock is deducted only on the transition to paid.
type OrderService struct {
	store          store.Store
	events         EventPublisher
	paymentTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

type OrderOption func(*OrderService)

// WithPaymentTimeout sets how long an order may stay pending before the
// scheduled payment check expires it. Zero disables scheduling.
func WithPaymentTimeout(d time.Duration) OrderOption {
	return func(s *OrderService) { s.paymentTimeout = d }
}

func NewOrderService(st store.Store, events EventPublisher, logger *slog.Logger, opts ...OrderOption) *OrderService {
	if events == nil {
		events = NoopPublisher
	}
	s := &OrderService{
		store:          st,
		events:         events,
		paymentTimeout: defaultPaymentTimeout,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) Create(ctx context.Context, caller Caller, items []models.OrderItemCreate) (models.Order, error) {
	if len(items) == 0 {
		return models.Order{}, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return models.Order{}, fmt.Errorf("%w: quantity for book %d must be greater than 0", ErrValidation, item.BookID)
		}
	}

	order := models.Order{UserID: caller.UserID, Status: models.StatusPending}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		// Stock is checked against the summed quantity of every line for a book.
		wanted := make(map[int64]int, len(items))
		total := decimal.Zero
		lines := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			book, err := tx.Books().Get(ctx, item.BookID)
			if err != nil {
				return storeError(err, "book %d", item.BookID)
			}
			wanted[book.ID] += item.Quantity
			if book.StockQuantity < wanted[book.ID] {
				return fmt.Errorf("%w: book %q has %d in stock, %d requested",
					ErrInsufficientStock, book.Title, book.StockQuantity, wanted[book.ID])
			}
			line := models.OrderItem{BookID: book.ID, Quantity: item.Quantity, Price: book.Price, Book: &book}
			total = total.Add(line.Subtotal())
			lines = append(lines, line)
		}
		order.Items = lines
		order.TotalAmount = total
		if err := tx.Orders().Create(ctx, &order); err != nil {
			return storeError(err, "create order")
		}
		created, err := tx.Orders().Get(ctx, order.ID)
		if err != nil {
			return storeError(err, "order %d", order.ID)
		}
		order = created
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	s.logger.InfoContext(ctx, "order created", "order_id", order.ID, "user_id", order.UserID, "total", order.TotalAmount.String())
	s.publish(ctx, order, models.EventCreated)
	if s.paymentTimeout > 0 {
		if err := s.events.SchedulePaymentCheck(ctx, s.event(order, models.EventPaymentCheck), s.paymentTimeout); err != nil {
			s.logger.WarnContext(ctx, "schedule payment check", "order_id", order.ID, "error", err)
		}
	}
	return order, nil
}

// Pay runs the payment simulator against a pending order. A declined card
// moves the order to failed. An accepted card moves it to paid and deducts
// stock for every line in the same transaction; if any line cannot be
// covered the whole payment rolls back and the order stays pending.
func (s *OrderService) Pay(ctx context.Context, caller Caller, orderID int64, cardNumber string) (models.PaymentResponse, error) {
	var result payment.Result
	err := s.store.InTx(ctx, func(tx store.Store) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return storeError(err, "order %d", orderID)
		}
		if err := caller.canPay(order); err != nil {
			return err
		}
		if order.Status != models.StatusPending {
			return fmt.Errorf("%w: order %d is %s, only pending orders can be paid", ErrInvalidTransition, orderID, order.Status)
		}

		result = payment.AttemptPayment(cardNumber)
		masked := payment.MaskCard(cardNumber)
		status := models.StatusFailed
		if result.Success {
			status = models.StatusPaid
		}
		if err := tx.Orders().UpdateStatus(ctx, orderID, status, masked); err != nil {
			return storeError(err, "order %d", orderID)
		}
		if !result.Success {
			return nil
		}
		for _, item := range order.Items {
			if _, err := tx.Books().AdjustStock(ctx, item.BookID, -item.Quantity); err != nil {
				return storeError(err, "book %d", item.BookID)
			}
		}
		return nil
	})
	if err != nil {
		return models.PaymentResponse{}, err
	}

	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return models.PaymentResponse{}, storeError(err, "order %d", orderID)
	}
	eventType := models.EventFailed
	if result.Success {
		eventType = models.EventPaid
	}
	s.logger.InfoContext(ctx, "payment processed", "order_id", orderID, "success", result.Success, "status", order.Status)
	s.publish(ctx, order, eventType)

	return models.PaymentResponse{
		Success:       result.Success,
		Message:       result.Message,
		OrderID:       orderID,
		TransactionID: result.TransactionID,
		Order:         order,
	}, nil
}

func (s *OrderService) Cancel(ctx context.Context, caller Caller, orderID int64) (models.Order, error) {
	order, _, err := s.cancel(ctx, orderID, func(order models.Order) (bool, error) {
		if err := caller.canView(order); err != nil {
			return false, err
		}
		if order.Status != models.StatusPending && order.Status != models.StatusFailed {
			return false, fmt.Errorf("%w: order %d is %s, only pending or failed orders can be cancelled", ErrInvalidTransition, orderID, order.Status)
		}
		return true, nil
	})
	if err != nil {
		return models.Order{}, err
	}
	s.logger.InfoContext(ctx, "order cancelled", "order_id", orderID, "by", caller.Username)
	s.publish(ctx, order, models.EventCancelled)
	return order, nil
}

// Expire cancels an order that is still pending once its payment window has
// passed. It reports whether the order changed; any other status is left alone.
func (s *OrderService) Expire(ctx context.Context, orderID int64) (bool, error) {
	order, changed, err := s.cancel(ctx, orderID, func(order models.Order) (bool, error) {
		return order.Status == models.StatusPending, nil
	})
	if err != nil || !changed {
		return false, err
	}
	s.logger.InfoContext(ctx, "order expired", "order_id", orderID)
	s.publish(ctx, order, models.EventExpired)
	return true, nil
}

// cancel moves an order to cancelled when allow says so.
func (s *OrderService) cancel(ctx context.Context, orderID int64, allow func(models.Order) (bool, error)) (models.Order, bool, error) {
	var (
		order   models.Order
		changed bool
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return storeError(err, "order %d", orderID)
		}
		order = current
		ok, err := allow(current)
		if err != nil || !ok {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, orderID, models.StatusCancelled, ""); err != nil {
			return storeError(err, "order %d", orderID)
		}
		order.Status = models.StatusCancelled
		order.UpdatedAt = s.now()
		changed = true
		return nil
	})
	return order, changed, err
}

func (s *OrderService) Get(ctx context.Context, caller Caller, orderID int64) (models.Order, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return models.Order{}, storeError(err, "order %d", orderID)
	}
	if err := caller.canView(order); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *OrderService) ListForUser(ctx context.Context, caller Caller, page models.Pagination) (models.OrderList, error) {
	page = page.Normalize()
	orders, err := s.store.Orders().ListByUser(ctx, caller.UserID, page)
	if err != nil {
		return models.OrderList{}, storeError(err, "list orders")
	}
	total, err := s.store.Orders().CountByUser(ctx, caller.UserID)
	if err != nil {
		return models.OrderList{}, storeError(err, "count orders")
	}
	return models.OrderList{Orders: orders, PageMeta: page.Meta(total)}, nil
}

func (s *OrderService) ListAll(ctx context.Context, caller Caller, page models.Pagination) (models.OrderList, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.OrderList{}, err
	}
	page = page.Normalize()
	orders, err := s.store.Orders().List(ctx, page)
	if err != nil {
		return models.OrderList{}, storeError(err, "list orders")
	}
	total, err := s.store.Orders().Count(ctx)
	if err != nil {
		return models.OrderList{}, storeError(err, "count orders")
	}
	return models.OrderList{Orders: orders, PageMeta: page.Meta(total)}, nil
}

// Statistics reports order and user totals. Revenue and top sellers count
// paid orders only.
func (s *OrderService) Statistics(ctx context.Context, caller Caller) (models.Statistics, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.Statistics{}, err
	}
	orders, err := s.store.Orders().Stats(ctx, topBooksLimit)
	if err != nil {
		return models.Statistics{}, storeError(err, "order statistics")
	}
	users, err := s.store.Users().Stats(ctx)
	if err != nil {
		return models.Statistics{}, storeError(err, "user statistics")
	}
	return models.Statistics{Users: users, Orders: orders}, nil
}

func (s *OrderService) event(order models.Order, eventType string) models.OrderEvent {
	return models.OrderEvent{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Type:     eventType,
		Status:   order.Status,
		Total:    order.TotalAmount,
		Occurred: s.now(),
	}
}

func (s *OrderService) publish(ctx context.Context, order models.Order, eventType string) {
	if err := s.events.PublishOrderEvent(ctx, s.event(order, eventType)); err != nil {
		s.logger.WarnContext(ctx, "publish order event", "order_id", order.ID, "type", eventType, "error", err)
	}
}
