package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"bookstore-service/models"
	"bookstore-service/payment"
	"bookstore-service/store/memory"
	"bookstore-service/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	evenCard = "4111111111111112"
	oddCard  = "4111111111111111"
)

type recordingPublisher struct {
	mu        sync.Mutex
	events    []models.OrderEvent
	scheduled []time.Duration
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) SchedulePaymentCheck(_ context.Context, e models.OrderEvent, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	p.scheduled = append(p.scheduled, delay)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store  *memory.Store
	events *recordingPublisher
	books  *BookService
	orders *OrderService
	users  *UserService
	admin  Caller
	alice  Caller
	bob    Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	f := &fixture{
		store:  st,
		events: &recordingPublisher{},
		books:  NewBookService(st, logger),
		users:  NewUserService(st, utils.BcryptHasher{Cost: bcrypt.MinCost}, logger),
	}
	f.orders = NewOrderService(st, f.events, logger, WithPaymentTimeout(time.Minute))

	ctx := context.Background()
	admin, err := f.users.EnsureSuperuser(ctx, "admin@example.com", "admin", "changeme")
	require.NoError(t, err)
	f.admin = CallerFor(admin)
	f.alice = f.register(t, "alice")
	f.bob = f.register(t, "bob")
	return f
}

func (f *fixture) register(t *testing.T, name string) Caller {
	t.Helper()
	user, err := f.users.Register(context.Background(), models.UserCreate{
		Email:    name + "@example.com",
		Username: name,
		Password: "secret1",
	})
	require.NoError(t, err)
	return CallerFor(user)
}

func (f *fixture) book(t *testing.T, title, price string, stock int) models.Book {
	t.Helper()
	book, err := f.books.Create(context.Background(), f.admin, models.BookCreate{
		Title:         title,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return book
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	book, err := f.books.Get(context.Background(), id)
	require.NoError(t, err)
	return book.StockQuantity
}

func TestOrderService_CreateSnapshotsPricesAndTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 10)
	emma := f.book(t, "Emma", "7.25", 4)

	order, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{
		{BookID: dune.ID, Quantity: 2},
		{BookID: emma.ID, Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, f.alice.UserID, order.UserID)
	assert.True(t, decimal.RequireFromString("32.25").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.True(t, order.TotalAmount.Equal(order.ItemsTotal()))
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.Items[0].Book)
	assert.Equal(t, "Dune", order.Items[0].Book.Title)
	// Creation does not reserve stock.
	assert.Equal(t, 10, f.stock(t, dune.ID))
	assert.Equal(t, []string{models.EventCreated, models.EventPaymentCheck}, f.events.types())
	assert.Equal(t, []time.Duration{time.Minute}, f.events.scheduled)

	// Later price changes leave the snapshot alone.
	newPrice := decimal.RequireFromString("20.00")
	_, err = f.books.Update(ctx, f.admin, dune.ID, models.BookUpdate{Price: &newPrice})
	require.NoError(t, err)
	stored, err := f.orders.Get(ctx, f.alice, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(stored.Items[0].Price))
	assert.True(t, decimal.RequireFromString("20.00").Equal(stored.Items[0].Book.Price))
	require.NotNil(t, stored.User)
	assert.Equal(t, "alice", stored.User.Username)
}

func TestOrderService_CreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 3)

	tests := []struct {
		name  string
		items []models.OrderItemCreate
		want  error
	}{
		{"empty", nil, ErrValidation},
		{"zero quantity", []models.OrderItemCreate{{BookID: dune.ID, Quantity: 0}}, ErrValidation},
		{"missing book", []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}, {BookID: 999, Quantity: 1}}, ErrNotFound},
		{"over stock", []models.OrderItemCreate{{BookID: dune.ID, Quantity: 4}}, ErrInsufficientStock},
		{"over stock across lines", []models.OrderItemCreate{{BookID: dune.ID, Quantity: 2}, {BookID: dune.ID, Quantity: 2}}, ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Create(ctx, f.alice, tt.items)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := f.orders.ListForUser(ctx, f.alice, models.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)
	assert.Empty(t, f.events.types())
}

func TestOrderService_PayWithEvenCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 10)
	order, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 3}})
	require.NoError(t, err)

	res, err := f.orders.Pay(ctx, f.alice, order.ID, evenCard)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, payment.MessageSucceeded, res.Message)
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, models.StatusPaid, res.Order.Status)
	require.NotNil(t, res.Order.PaymentCardNumber)
	assert.Equal(t, "****1112", *res.Order.PaymentCardNumber)
	assert.Equal(t, 7, f.stock(t, dune.ID))
	assert.Contains(t, f.events.types(), models.EventPaid)
}

func TestOrderService_PayWithOddCardFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 10)
	order, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 3}})
	require.NoError(t, err)

	res, err := f.orders.Pay(ctx, f.alice, order.ID, oddCard)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, payment.MessageFailed, res.Message)
	assert.Empty(t, res.TransactionID)
	assert.Equal(t, models.StatusFailed, res.Order.Status)
	require.NotNil(t, res.Order.PaymentCardNumber)
	assert.Equal(t, "****1111", *res.Order.PaymentCardNumber)
	assert.Equal(t, 10, f.stock(t, dune.ID))

	// A failed order can still be cancelled but not paid again.
	_, err = f.orders.Pay(ctx, f.alice, order.ID, evenCard)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrConflict)

	unchanged, err := f.orders.Get(ctx, f.alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, unchanged.Status)
	require.NotNil(t, unchanged.PaymentCardNumber)
	assert.Equal(t, "****1111", *unchanged.PaymentCardNumber)
	assert.Equal(t, 10, f.stock(t, dune.ID))

	cancelled, err := f.orders.Cancel(ctx, f.alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestOrderService_PayRollsBackWhenStockRunsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 5)
	emma := f.book(t, "Emma", "7.25", 5)

	first, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 4}})
	require.NoError(t, err)
	second, err := f.orders.Create(ctx, f.bob, []models.OrderItemCreate{
		{BookID: emma.ID, Quantity: 2},
		{BookID: dune.ID, Quantity: 3},
	})
	require.NoError(t, err)

	_, err = f.orders.Pay(ctx, f.alice, first.ID, evenCard)
	require.NoError(t, err)

	_, err = f.orders.Pay(ctx, f.bob, second.ID, evenCard)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, f.stock(t, dune.ID))
	assert.Equal(t, 5, f.stock(t, emma.ID))
	stored, err := f.orders.Get(ctx, f.bob, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.PaymentCardNumber)
}

func TestOrderService_ConcurrentPaymentsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 5)

	var ids []int64
	for i := 0; i < 10; i++ {
		order, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		paid int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			res, err := f.orders.Pay(ctx, f.alice, id, evenCard)
			if err == nil && res.Success {
				mu.Lock()
				paid++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 5, paid)
	assert.Equal(t, 0, f.stock(t, dune.ID))
}

func TestOrderService_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 10)
	order, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.orders.Get(ctx, f.bob, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.orders.Pay(ctx, f.bob, order.ID, evenCard)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.orders.Cancel(ctx, f.bob, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Superusers may view and cancel but never pay for someone else.
	_, err = f.orders.Get(ctx, f.admin, order.ID)
	assert.NoError(t, err)
	_, err = f.orders.Pay(ctx, f.admin, order.ID, evenCard)
	assert.ErrorIs(t, err, ErrForbidden)
	cancelled, err := f.orders.Cancel(ctx, f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = f.orders.Pay(ctx, f.alice, 999, evenCard)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderService_CancelRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 10)

	paid, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.orders.Pay(ctx, f.alice, paid.ID, evenCard)
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, f.alice, paid.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
	require.NoError(t, err)
	cancelled, err := f.orders.Cancel(ctx, f.alice, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = f.orders.Cancel(ctx, f.alice, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.orders.Pay(ctx, f.alice, pending.ID, evenCard)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 9, f.stock(t, dune.ID))
}

func TestOrderService_Expire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 10)
	pending, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
	require.NoError(t, err)
	paid, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.orders.Pay(ctx, f.alice, paid.ID, evenCard)
	require.NoError(t, err)

	changed, err := f.orders.Expire(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.orders.Expire(ctx, paid.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := f.orders.Get(ctx, f.alice, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.Contains(t, f.events.types(), models.EventExpired)

	_, err = f.orders.Expire(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderService_ListsAndStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "10.00", 20)
	emma := f.book(t, "Emma", "5.00", 20)

	a, err := f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 2}})
	require.NoError(t, err)
	_, err = f.orders.Pay(ctx, f.alice, a.ID, evenCard)
	require.NoError(t, err)
	b, err := f.orders.Create(ctx, f.bob, []models.OrderItemCreate{{BookID: emma.ID, Quantity: 5}})
	require.NoError(t, err)
	_, err = f.orders.Pay(ctx, f.bob, b.ID, evenCard)
	require.NoError(t, err)
	_, err = f.orders.Create(ctx, f.bob, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 9}})
	require.NoError(t, err)

	mine, err := f.orders.ListForUser(ctx, f.bob, models.Pagination{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, mine.Orders, 1)
	assert.Equal(t, models.PageMeta{Total: 2, Page: 1, PerPage: 1, Pages: 2}, mine.PageMeta)

	_, err = f.orders.ListAll(ctx, f.alice, models.Pagination{})
	assert.ErrorIs(t, err, ErrForbidden)
	all, err := f.orders.ListAll(ctx, f.admin, models.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	_, err = f.orders.Statistics(ctx, f.bob)
	assert.ErrorIs(t, err, ErrForbidden)

	stats, err := f.orders.Statistics(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Orders.TotalOrders)
	assert.True(t, decimal.RequireFromString("45.00").Equal(stats.Orders.TotalRevenue), stats.Orders.TotalRevenue.String())
	assert.Equal(t, 2, stats.Orders.OrdersByStatus[models.StatusPaid])
	assert.Equal(t, 1, stats.Orders.OrdersByStatus[models.StatusPending])
	assert.Equal(t, []models.BookSales{{BookID: emma.ID, TotalSold: 5}, {BookID: dune.ID, TotalSold: 2}}, stats.Orders.TopBooks)
	assert.Equal(t, models.UserStatistics{Total: 3, Active: 3, Banned: 0}, stats.Users)
}

func TestBookService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.books.Create(ctx, f.alice, models.BookCreate{Title: "Dune", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.books.Create(ctx, f.admin, models.BookCreate{Title: "Dune", Price: decimal.Zero})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.books.Create(ctx, f.admin, models.BookCreate{Title: "Dune", Price: decimal.RequireFromString("1.999")})
	assert.ErrorIs(t, err, ErrValidation)

	dune := f.book(t, "Dune", "12.50", 2)

	ok, err := f.books.HasSufficientStock(ctx, dune.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.books.HasSufficientStock(ctx, dune.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.books.HasSufficientStock(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.books.AdjustStock(ctx, f.admin, dune.ID, -3)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, f.stock(t, dune.ID))
	book, err := f.books.AdjustStock(ctx, f.admin, dune.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, book.StockQuantity)

	_, err = f.orders.Create(ctx, f.alice, []models.OrderItemCreate{{BookID: dune.ID, Quantity: 1}})
	require.NoError(t, err)
	err = f.books.Delete(ctx, f.admin, dune.ID)
	assert.ErrorIs(t, err, ErrConflict)

	spare := f.book(t, "Spare", "1.00", 0)
	require.NoError(t, f.books.Delete(ctx, f.admin, spare.ID))
	_, err = f.books.Get(ctx, spare.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.books.List(ctx, models.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

type fakeUploader struct {
	key  string
	body string
}

func (u *fakeUploader) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	u.key, u.body = key, string(b)
	return "http://covers.local/" + key, nil
}

func TestBookService_SetImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uploader := &fakeUploader{}
	books := NewBookService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), WithImageUploader(uploader, 16))
	dune := f.book(t, "Dune", "12.50", 2)

	_, err := books.SetImage(ctx, f.admin, dune.ID, ImageUpload{ContentType: "text/plain", Size: 3, Body: strings.NewReader("abc")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = books.SetImage(ctx, f.admin, dune.ID, ImageUpload{ContentType: "image/png", Size: 17, Body: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.books.SetImage(ctx, f.admin, dune.ID, ImageUpload{ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	assert.ErrorIs(t, err, ErrValidation)

	book, err := books.SetImage(ctx, f.admin, dune.ID, ImageUpload{ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uploader.key, "books/1/"), uploader.key)
	assert.True(t, strings.HasSuffix(uploader.key, ".png"), uploader.key)
	assert.Equal(t, "png", uploader.body)
	assert.Equal(t, "http://covers.local/"+uploader.key, book.ImageURL)
	assert.Equal(t, 2, book.StockQuantity)
}

func TestBookService_StockStaysWithinRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", "12.50", 5)

	_, err := f.books.AdjustStock(ctx, f.admin, dune.ID, math.MaxInt)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.books.AdjustStock(ctx, f.admin, dune.ID, math.MinInt)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.books.AdjustStock(ctx, f.admin, dune.ID, models.MaxStock)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 5, f.stock(t, dune.ID))

	book, err := f.books.AdjustStock(ctx, f.admin, dune.ID, models.MaxStock-5)
	require.NoError(t, err)
	assert.Equal(t, models.MaxStock, book.StockQuantity)

	_, err = f.books.Create(ctx, f.admin, models.BookCreate{Title: "Emma", Price: decimal.NewFromInt(1), StockQuantity: models.MaxStock + 1})
	assert.ErrorIs(t, err, ErrValidation)
	tooMany := models.MaxStock + 1
	_, err = f.books.Update(ctx, f.admin, dune.ID, models.BookUpdate{StockQuantity: &tooMany})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, models.UserCreate{Email: "ALICE@example.com", Username: "alice2", Password: "secret1"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.users.Register(ctx, models.UserCreate{Email: "new@example.com", Username: "alice", Password: "secret1"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.users.Register(ctx, models.UserCreate{Email: "other@example.com", Username: "Alice", Password: "secret1"})
	assert.ErrorIs(t, err, ErrConflict)

	user, err := f.users.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, f.alice.UserID, user.ID)
	assert.NotEqual(t, "secret1", user.HashedPassword)

	_, err = f.users.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.users.Authenticate(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserService_BanIsEnforcedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Ban(ctx, f.bob, f.alice.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.Ban(ctx, f.admin, f.admin.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.Unban(ctx, f.admin, f.alice.UserID)
	assert.ErrorIs(t, err, ErrConflict)

	banned, err := f.users.Ban(ctx, f.admin, f.alice.UserID)
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	_, err = f.users.Ban(ctx, f.admin, f.alice.UserID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.users.Authenticate(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = f.users.Identify(ctx, "alice")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.users.Unban(ctx, f.admin, f.alice.UserID)
	require.NoError(t, err)
	caller, _, err := f.users.Identify(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.alice, caller)
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taken := "bob"
	_, err := f.users.UpdateProfile(ctx, f.alice, models.UserUpdate{Username: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	same := "alice@example.com"
	name := "Alice Liddell"
	password := "another1"
	user, err := f.users.UpdateProfile(ctx, f.alice, models.UserUpdate{Email: &same, FullName: &name, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", user.FullName)

	_, err = f.users.Authenticate(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.users.Authenticate(ctx, "alice", "another1")
	assert.NoError(t, err)
}

func TestUserService_ListAndEnsureSuperuser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.users.List(ctx, f.alice, models.Pagination{})
	assert.ErrorIs(t, err, ErrForbidden)
	users, meta, err := f.users.List(ctx, f.admin, models.Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 3, meta.Total)

	again, err := f.users.EnsureSuperuser(ctx, "other@example.com", "admin", "x")
	require.NoError(t, err)
	assert.Equal(t, f.admin.UserID, again.ID)
	assert.Equal(t, "admin@example.com", again.Email)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidTransition, "invalid_transition"},
		{ErrInsufficientStock, "insufficient_stock"},
		{ErrConflict, "conflict"},
		{ErrValidation, "validation_error"},
		{ErrNotFound, "not_found"},
		{ErrForbidden, "forbidden"},
		{ErrUnauthorized, "unauthorized"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), tt.err.Error())
	}
}
