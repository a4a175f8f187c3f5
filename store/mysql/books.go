package mysql

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/models"
	"bookstore-service/store"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

var bookColumns = []interface{}{
	"id", "title", "description", "price", "stock_quantity", "image_url", "created_at", "updated_at",
}

type bookRepo struct {
	q   sqlx.ExtContext
	now func() time.Time
	// forUpdate locks rows read inside a transaction so read-modify-write
	// updates cannot overwrite a concurrent stock adjustment.
	forUpdate bool
}

func (r bookRepo) Get(ctx context.Context, id int64) (models.Book, error) {
	query := `
		SELECT id, title, description, price, stock_quantity, image_url, created_at, updated_at
		FROM books
		WHERE id = ?`
	if r.forUpdate {
		query += " FOR UPDATE"
	}
	var book models.Book
	if err := sqlx.GetContext(ctx, r.q, &book, query, id); err != nil {
		return models.Book{}, translate(err)
	}
	return book, nil
}

func (r bookRepo) GetMany(ctx context.Context, ids []int64) (map[int64]models.Book, error) {
	out := make(map[int64]models.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := toSQL(dialect.From("books").Select(bookColumns...).Where(goqu.Ex{"id": ids}))
	if err != nil {
		return nil, err
	}
	var books []models.Book
	if err := sqlx.SelectContext(ctx, r.q, &books, query, args...); err != nil {
		return nil, translate(err)
	}
	for _, book := range books {
		out[book.ID] = book
	}
	return out, nil
}

func (r bookRepo) List(ctx context.Context, page models.Pagination) ([]models.Book, error) {
	page = page.Normalize()
	query, args, err := toSQL(dialect.From("books").
		Select(bookColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Skip)))
	if err != nil {
		return nil, err
	}
	books := []models.Book{}
	if err := sqlx.SelectContext(ctx, r.q, &books, query, args...); err != nil {
		return nil, translate(err)
	}
	return books, nil
}

func (r bookRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, dialect.From("books"))
}

func (r bookRepo) Create(ctx context.Context, book *models.Book) error {
	now := r.now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO books (title, description, price, stock_quantity, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, book.Title, book.Description, book.Price, book.StockQuantity, book.ImageURL, now, now)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	book.ID = id
	book.CreatedAt = now
	book.UpdatedAt = now
	return nil
}

func (r bookRepo) Update(ctx context.Context, book *models.Book) error {
	now := r.now()
	res, err := r.q.ExecContext(ctx, `
		UPDATE books
		SET title = ?, description = ?, price = ?, stock_quantity = ?, image_url = ?, updated_at = ?
		WHERE id = ?
	`, book.Title, book.Description, book.Price, book.StockQuantity, book.ImageURL, now, book.ID)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	book.UpdatedAt = now
	return nil
}

func (r bookRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r bookRepo) AdjustStock(ctx context.Context, id int64, delta int) (models.Book, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE books
		SET stock_quantity = stock_quantity + ?, updated_at = ?
		WHERE id = ? AND stock_quantity + ? >= 0
	`, delta, r.now(), id, delta)
	if err != nil {
		return models.Book{}, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Book{}, fmt.Errorf("stock rows affected: %w", err)
	}
	if n == 0 {
		// Either the book is gone or the guard rejected the delta.
		if _, err := r.Get(ctx, id); err != nil {
			return models.Book{}, err
		}
		return models.Book{}, store.ErrStockExhausted
	}
	return r.Get(ctx, id)
}
