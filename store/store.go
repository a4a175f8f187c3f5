// Package store declares the persistence contracts used by the services.
// Implementations live in store/mysql and store/memory.
package store

import (
	"context"
	"errors"

	"bookstore-service/models"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrDuplicate      = errors.New("store: duplicate key")
	ErrReferenced     = errors.New("store: row is referenced")
	ErrStockExhausted = errors.New("store: stock would go negative")
	ErrOutOfRange     = errors.New("store: value out of range")
)

type Books interface {
	Get(ctx context.Context, id int64) (models.Book, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]models.Book, error)
	List(ctx context.Context, page models.Pagination) ([]models.Book, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
	// AdjustStock adds delta to the stock quantity in one conditional write.
	// It returns ErrStockExhausted, leaving stock unchanged, when the result
	// would be negative, and ErrOutOfRange when it would exceed models.MaxStock.
	AdjustStock(ctx context.Context, id int64, delta int) (models.Book, error)
}

type Users interface {
	Get(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	List(ctx context.Context, page models.Pagination) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Stats(ctx context.Context) (models.UserStatistics, error)
}

// Orders returns orders with their items and each item's book resolved.
type Orders interface {
	Get(ctx context.Context, id int64) (models.Order, error)
	ListByUser(ctx context.Context, userID int64, page models.Pagination) ([]models.Order, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	List(ctx context.Context, page models.Pagination) ([]models.Order, error)
	Count(ctx context.Context) (int, error)
	// Create persists the order and its items, assigning ids and timestamps.
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus sets the status; an empty maskedCard keeps the stored one.
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus, maskedCard string) error
	Stats(ctx context.Context, topBooks int) (models.OrderStatistics, error)
}

// Store is a handle on one unit of work. InTx runs fn against a handle whose
// writes commit together when fn returns nil and roll back otherwise.
// Calling InTx on a handle already inside a transaction reuses it.
type Store interface {
	Books() Books
	Users() Users
	Orders() Orders
	InTx(ctx context.Context, fn func(tx Store) error) error
}
