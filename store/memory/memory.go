// Package memory is an in-process store.Store. Transactions are serialized
// behind one mutex and roll back by restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bookstore-service/models"
	"bookstore-service/store"

	"github.com/shopspring/decimal"
)

type state struct {
	books  map[int64]models.Book
	users  map[int64]models.User
	orders map[int64]models.Order

	nextBookID  int64
	nextUserID  int64
	nextOrderID int64
	nextItemID  int64
}

func (s *state) clone() *state {
	c := *s
	c.books = make(map[int64]models.Book, len(s.books))
	for k, v := range s.books {
		c.books[k] = v
	}
	c.users = make(map[int64]models.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.orders = make(map[int64]models.Order, len(s.orders))
	for k, v := range s.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	return &c
}

type Store struct {
	mu   *sync.Mutex
	data *state
	inTx bool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &state{
			books:  make(map[int64]models.Book),
			users:  make(map[int64]models.User),
			orders: make(map[int64]models.Order),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Books() store.Books   { return bookRepo{s} }
func (s *Store) Users() store.Users   { return userRepo{s} }
func (s *Store) Orders() store.Orders { return orderRepo{s} }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

func window[T any](items []T, page models.Pagination) []T {
	page = page.Normalize()
	if page.Skip >= len(items) {
		return []T{}
	}
	end := page.Skip + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Skip:end]
}

type bookRepo struct{ s *Store }

func (r bookRepo) Get(_ context.Context, id int64) (models.Book, error) {
	defer r.s.lock()()
	book, ok := r.s.data.books[id]
	if !ok {
		return models.Book{}, store.ErrNotFound
	}
	return book, nil
}

func (r bookRepo) GetMany(_ context.Context, ids []int64) (map[int64]models.Book, error) {
	defer r.s.lock()()
	out := make(map[int64]models.Book, len(ids))
	for _, id := range ids {
		if book, ok := r.s.data.books[id]; ok {
			out[id] = book
		}
	}
	return out, nil
}

func (r bookRepo) List(_ context.Context, page models.Pagination) ([]models.Book, error) {
	defer r.s.lock()()
	books := make([]models.Book, 0, len(r.s.data.books))
	for _, book := range r.s.data.books {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID > books[j].ID })
	return window(books, page), nil
}

func (r bookRepo) Count(context.Context) (int, error) {
	defer r.s.lock()()
	return len(r.s.data.books), nil
}

func (r bookRepo) Create(_ context.Context, book *models.Book) error {
	defer r.s.lock()()
	r.s.data.nextBookID++
	book.ID = r.s.data.nextBookID
	book.CreatedAt = r.s.now()
	book.UpdatedAt = book.CreatedAt
	r.s.data.books[book.ID] = *book
	return nil
}

func (r bookRepo) Update(_ context.Context, book *models.Book) error {
	defer r.s.lock()()
	current, ok := r.s.data.books[book.ID]
	if !ok {
		return store.ErrNotFound
	}
	book.CreatedAt = current.CreatedAt
	book.UpdatedAt = r.s.now()
	r.s.data.books[book.ID] = *book
	return nil
}

func (r bookRepo) Delete(_ context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.data.books[id]; !ok {
		return store.ErrNotFound
	}
	for _, order := range r.s.data.orders {
		for _, item := range order.Items {
			if item.BookID == id {
				return fmt.Errorf("%w: book %d has order items", store.ErrReferenced, id)
			}
		}
	}
	delete(r.s.data.books, id)
	return nil
}

func (r bookRepo) AdjustStock(_ context.Context, id int64, delta int) (models.Book, error) {
	defer r.s.lock()()
	book, ok := r.s.data.books[id]
	if !ok {
		return models.Book{}, store.ErrNotFound
	}
	if delta < -book.StockQuantity {
		return models.Book{}, store.ErrStockExhausted
	}
	if delta > models.MaxStock-book.StockQuantity {
		return models.Book{}, fmt.Errorf("%w: stock of book %d", store.ErrOutOfRange, id)
	}
	book.StockQuantity += delta
	book.UpdatedAt = r.s.now()
	r.s.data.books[id] = book
	return book, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Get(_ context.Context, id int64) (models.User, error) {
	defer r.s.lock()()
	user, ok := r.s.data.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r userRepo) find(match func(models.User) bool) (models.User, error) {
	defer r.s.lock()()
	for _, user := range r.s.data.users {
		if match(user) {
			return user, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (r userRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (models.User, error) {
	return r.find(func(u models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r userRepo) List(_ context.Context, page models.Pagination) ([]models.User, error) {
	defer r.s.lock()()
	users := make([]models.User, 0, len(r.s.data.users))
	for _, user := range r.s.data.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return window(users, page), nil
}

// unique reports ErrDuplicate when another user holds email or username.
func (r userRepo) unique(user *models.User) error {
	for _, other := range r.s.data.users {
		if other.ID == user.ID {
			continue
		}
		if strings.EqualFold(other.Email, user.Email) {
			return fmt.Errorf("%w: email %s", store.ErrDuplicate, user.Email)
		}
		if strings.EqualFold(other.Username, user.Username) {
			return fmt.Errorf("%w: username %s", store.ErrDuplicate, user.Username)
		}
	}
	return nil
}

func (r userRepo) Create(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	if err := r.unique(user); err != nil {
		return err
	}
	r.s.data.nextUserID++
	user.ID = r.s.data.nextUserID
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) Update(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	current, ok := r.s.data.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}
	if err := r.unique(user); err != nil {
		return err
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.s.now()
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) Stats(context.Context) (models.UserStatistics, error) {
	defer r.s.lock()()
	var stats models.UserStatistics
	for _, user := range r.s.data.users {
		stats.Total++
		if user.IsActive {
			stats.Active++
		}
		if user.IsBanned {
			stats.Banned++
		}
	}
	return stats, nil
}

type orderRepo struct{ s *Store }

// resolve attaches copies of the owning user and of the books referenced by
// the order's items.
func (r orderRepo) resolve(order models.Order) models.Order {
	items := make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		if book, ok := r.s.data.books[item.BookID]; ok {
			item.Book = &book
		}
		items[i] = item
	}
	order.Items = items
	if user, ok := r.s.data.users[order.UserID]; ok {
		order.User = &user
	}
	return order
}

func (r orderRepo) Get(_ context.Context, id int64) (models.Order, error) {
	defer r.s.lock()()
	order, ok := r.s.data.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	return r.resolve(order), nil
}

func (r orderRepo) collect(match func(models.Order) bool, page models.Pagination) []models.Order {
	var orders []models.Order
	for _, order := range r.s.data.orders {
		if match(order) {
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	orders = window(orders, page)
	out := make([]models.Order, len(orders))
	for i, order := range orders {
		out[i] = r.resolve(order)
	}
	return out
}

func (r orderRepo) ListByUser(_ context.Context, userID int64, page models.Pagination) ([]models.Order, error) {
	defer r.s.lock()()
	return r.collect(func(o models.Order) bool { return o.UserID == userID }, page), nil
}

func (r orderRepo) CountByUser(_ context.Context, userID int64) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, order := range r.s.data.orders {
		if order.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r orderRepo) List(_ context.Context, page models.Pagination) ([]models.Order, error) {
	defer r.s.lock()()
	return r.collect(func(models.Order) bool { return true }, page), nil
}

func (r orderRepo) Count(context.Context) (int, error) {
	defer r.s.lock()()
	return len(r.s.data.orders), nil
}

func (r orderRepo) Create(_ context.Context, order *models.Order) error {
	defer r.s.lock()()
	if _, ok := r.s.data.users[order.UserID]; !ok {
		return fmt.Errorf("%w: user %d", store.ErrNotFound, order.UserID)
	}
	for _, item := range order.Items {
		if _, ok := r.s.data.books[item.BookID]; !ok {
			return fmt.Errorf("%w: book %d", store.ErrNotFound, item.BookID)
		}
	}

	r.s.data.nextOrderID++
	order.ID = r.s.data.nextOrderID
	order.CreatedAt = r.s.now()
	order.UpdatedAt = order.CreatedAt
	items := make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		r.s.data.nextItemID++
		item.ID = r.s.data.nextItemID
		item.OrderID = order.ID
		item.Book = nil
		items[i] = item
	}
	order.Items = items

	stored := *order
	stored.Items = append([]models.OrderItem(nil), items...)
	r.s.data.orders[order.ID] = stored
	return nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id int64, status models.OrderStatus, maskedCard string) error {
	defer r.s.lock()()
	order, ok := r.s.data.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	order.Status = status
	if maskedCard != "" {
		card := maskedCard
		order.PaymentCardNumber = &card
	}
	order.UpdatedAt = r.s.now()
	r.s.data.orders[id] = order
	return nil
}

func (r orderRepo) Stats(_ context.Context, topBooks int) (models.OrderStatistics, error) {
	defer r.s.lock()()
	stats := models.OrderStatistics{
		TotalRevenue:   decimal.Zero,
		OrdersByStatus: make(map[models.OrderStatus]int),
		TopBooks:       []models.BookSales{},
	}
	sold := make(map[int64]int)
	for _, order := range r.s.data.orders {
		stats.TotalOrders++
		stats.OrdersByStatus[order.Status]++
		if order.Status != models.StatusPaid {
			continue
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
		for _, item := range order.Items {
			sold[item.BookID] += item.Quantity
		}
	}
	for bookID, qty := range sold {
		stats.TopBooks = append(stats.TopBooks, models.BookSales{BookID: bookID, TotalSold: qty})
	}
	sort.Slice(stats.TopBooks, func(i, j int) bool {
		a, b := stats.TopBooks[i], stats.TopBooks[j]
		if a.TotalSold != b.TotalSold {
			return a.TotalSold > b.TotalSold
		}
		return a.BookID < b.BookID
	})
	if len(stats.TopBooks) > topBooks {
		stats.TopBooks = stats.TopBooks[:topBooks]
	}
	return stats, nil
}
