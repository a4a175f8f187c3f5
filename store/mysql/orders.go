package mysql

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/models"
	"bookstore-service/store"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var orderColumns = []interface{}{
	"id", "user_id", "status", "total_amount", "payment_card_number", "created_at", "updated_at",
}

type orderRepo struct {
	q         sqlx.ExtContext
	now       func() time.Time
	forUpdate bool
}

func (r orderRepo) Get(ctx context.Context, id int64) (models.Order, error) {
	ds := dialect.From("orders").Select(orderColumns...).Where(goqu.Ex{"id": id})
	if r.forUpdate {
		// Serializes concurrent transitions of the same order.
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := toSQL(ds)
	if err != nil {
		return models.Order{}, err
	}
	var order models.Order
	if err := sqlx.GetContext(ctx, r.q, &order, query, args...); err != nil {
		return models.Order{}, translate(err)
	}
	orders := []models.Order{order}
	if err := r.withItems(ctx, orders); err != nil {
		return models.Order{}, err
	}
	return orders[0], nil
}

func (r orderRepo) list(ctx context.Context, where goqu.Ex, page models.Pagination) ([]models.Order, error) {
	page = page.Normalize()
	ds := dialect.From("orders").
		Select(orderColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Skip))
	if len(where) > 0 {
		ds = ds.Where(where)
	}
	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}
	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, r.q, &orders, query, args...); err != nil {
		return nil, translate(err)
	}
	if err := r.withItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// withItems loads the items of every order, the books they reference and the
// owning users in three batched queries.
func (r orderRepo) withItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	orderIDs := make([]int64, len(orders))
	ownerSeen := make(map[int64]struct{})
	var userIDs []int64
	for i, order := range orders {
		orderIDs[i] = order.ID
		if _, ok := ownerSeen[order.UserID]; !ok {
			ownerSeen[order.UserID] = struct{}{}
			userIDs = append(userIDs, order.UserID)
		}
	}

	query, args, err := toSQL(dialect.From("order_items").
		Select("id", "order_id", "book_id", "quantity", "price").
		Where(goqu.Ex{"order_id": orderIDs}).
		Order(goqu.C("id").Asc()))
	if err != nil {
		return err
	}
	var items []models.OrderItem
	if err := sqlx.SelectContext(ctx, r.q, &items, query, args...); err != nil {
		return translate(err)
	}

	seen := make(map[int64]struct{})
	var bookIDs []int64
	for _, item := range items {
		if _, ok := seen[item.BookID]; !ok {
			seen[item.BookID] = struct{}{}
			bookIDs = append(bookIDs, item.BookID)
		}
	}
	books, err := bookRepo{q: r.q, now: r.now}.GetMany(ctx, bookIDs)
	if err != nil {
		return err
	}
	users, err := userRepo{q: r.q, now: r.now}.getMany(ctx, userIDs)
	if err != nil {
		return err
	}

	byOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		if book, ok := books[item.BookID]; ok {
			item.Book = &book
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
		if user, ok := users[orders[i].UserID]; ok {
			orders[i].User = &user
		}
	}
	return nil
}

func (r orderRepo) ListByUser(ctx context.Context, userID int64, page models.Pagination) ([]models.Order, error) {
	return r.list(ctx, goqu.Ex{"user_id": userID}, page)
}

func (r orderRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	return count(ctx, r.q, dialect.From("orders").Where(goqu.Ex{"user_id": userID}))
}

func (r orderRepo) List(ctx context.Context, page models.Pagination) ([]models.Order, error) {
	return r.list(ctx, nil, page)
}

func (r orderRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, dialect.From("orders"))
}

func (r orderRepo) Create(ctx context.Context, order *models.Order) error {
	now := r.now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, payment_card_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, order.UserID, order.Status, order.TotalAmount, order.PaymentCardNumber, now, now)
	if err != nil {
		return translate(err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, book_id, quantity, price)
			VALUES (?, ?, ?, ?)
		`, orderID, item.BookID, item.Quantity, item.Price)
		if err != nil {
			return translate(err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("order item id: %w", err)
		}
		item.ID = itemID
		item.OrderID = orderID
	}

	order.ID = orderID
	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus, maskedCard string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, payment_card_number = COALESCE(NULLIF(?, ''), payment_card_number), updated_at = ?
		WHERE id = ?
	`, status, maskedCard, r.now(), id)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r orderRepo) Stats(ctx context.Context, topBooks int) (models.OrderStatistics, error) {
	stats := models.OrderStatistics{
		OrdersByStatus: make(map[models.OrderStatus]int),
		TopBooks:       []models.BookSales{},
	}

	total, err := r.Count(ctx)
	if err != nil {
		return stats, err
	}
	stats.TotalOrders = total

	query, args, err := toSQL(dialect.From("orders").
		Select(goqu.COALESCE(goqu.SUM("total_amount"), 0)).
		Where(goqu.Ex{"status": string(models.StatusPaid)}))
	if err != nil {
		return stats, err
	}
	var revenue decimal.Decimal
	if err := sqlx.GetContext(ctx, r.q, &revenue, query, args...); err != nil {
		return stats, translate(err)
	}
	stats.TotalRevenue = revenue

	query, args, err = toSQL(dialect.From("orders").
		Select(goqu.C("status"), goqu.COUNT("id").As("n")).
		GroupBy("status"))
	if err != nil {
		return stats, err
	}
	var byStatus []struct {
		Status models.OrderStatus `db:"status"`
		N      int                `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &byStatus, query, args...); err != nil {
		return stats, translate(err)
	}
	for _, row := range byStatus {
		stats.OrdersByStatus[row.Status] = row.N
	}

	query, args, err = toSQL(dialect.From(goqu.T("order_items").As("oi")).
		Join(goqu.T("orders").As("o"), goqu.On(goqu.Ex{"oi.order_id": goqu.I("o.id")})).
		Select(goqu.I("oi.book_id").As("book_id"), goqu.SUM("oi.quantity").As("total_sold")).
		Where(goqu.Ex{"o.status": string(models.StatusPaid)}).
		GroupBy(goqu.I("oi.book_id")).
		Order(goqu.I("total_sold").Desc(), goqu.I("book_id").Asc()).
		Limit(uint(topBooks)))
	if err != nil {
		return stats, err
	}
	if err := sqlx.SelectContext(ctx, r.q, &stats.TopBooks, query, args...); err != nil {
		return stats, translate(err)
	}
	return stats, nil
}
