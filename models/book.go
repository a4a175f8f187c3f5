package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxStock is the largest stock quantity a book can hold.
const MaxStock = math.MaxInt32

type Book struct {
	ID            int64           `json:"id" db:"id"`
	Title         string          `json:"title" db:"title"`
	Description   string          `json:"description" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	ImageURL      string          `json:"image_url" db:"image_url"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type BookCreate struct {
	Title         string          `json:"title" binding:"required,min=1,max=255"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" binding:"min=0,max=2147483647"`
	ImageURL      string          `json:"image_url" binding:"omitempty,max=500"`
}

// BookUpdate carries a partial update; nil fields are left untouched.
type BookUpdate struct {
	Title         *string          `json:"title" binding:"omitempty,min=1,max=255"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity" binding:"omitempty,min=0,max=2147483647"`
	ImageURL      *string          `json:"image_url" binding:"omitempty,max=500"`
}

type StockAdjustment struct {
	Delta int `json:"delta" binding:"required,min=-2147483647,max=2147483647"`
}

type BookList struct {
	Books []Book `json:"books"`
	PageMeta
}
