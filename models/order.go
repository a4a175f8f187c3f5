package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusFailed    OrderStatus = "failed"
	StatusCancelled OrderStatus = "cancelled"
	// StatusDelivered is reserved; no operation transitions into it.
	StatusDelivered OrderStatus = "delivered"
)

type Order struct {
	ID                int64           `json:"id" db:"id"`
	UserID            int64           `json:"user_id" db:"user_id"`
	Status            OrderStatus     `json:"status" db:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaymentCardNumber *string         `json:"payment_card_number" db:"payment_card_number"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
	Items             []OrderItem     `json:"items" db:"-"`
	User              *User           `json:"user,omitempty" db:"-"`
}

// ItemsTotal sums price × quantity over the order's line items.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type OrderItem struct {
	ID       int64           `json:"id" db:"id"`
	OrderID  int64           `json:"order_id" db:"order_id"`
	BookID   int64           `json:"book_id" db:"book_id"`
	Quantity int             `json:"quantity" db:"quantity"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Book     *Book           `json:"book,omitempty" db:"-"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderItemCreate struct {
	BookID   int64 `json:"book_id" binding:"required"`
	Quantity int   `json:"quantity"`
}

type OrderCreate struct {
	Items []OrderItemCreate `json:"items" binding:"dive"`
}

type OrderList struct {
	Orders []Order `json:"orders"`
	PageMeta
}

type PaymentRequest struct {
	OrderID     int64  `json:"order_id" binding:"required"`
	CardNumber  string `json:"card_number" binding:"required,len=16,numeric"`
	CardHolder  string `json:"card_holder" binding:"required,min=3,max=100"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required,min=2024,max=2050"`
	CVV         string `json:"cvv" binding:"required,min=3,max=4,numeric"`
}

type PaymentResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	OrderID       int64  `json:"order_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Order         Order  `json:"order"`
}

type OrderEvent struct {
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Type     string          `json:"type"` // created, paid, failed, cancelled, expired, payment_check
	Status   OrderStatus     `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Occurred time.Time       `json:"occurred"`
}

const (
	EventCreated      = "created"
	EventPaid         = "paid"
	EventFailed       = "failed"
	EventCancelled    = "cancelled"
	EventExpired      = "expired"
	EventPaymentCheck = "payment_check"
)

type BookSales struct {
	BookID    int64 `json:"book_id" db:"book_id"`
	TotalSold int   `json:"total_sold" db:"total_sold"`
}

type OrderStatistics struct {
	TotalOrders    int                 `json:"total_orders"`
	TotalRevenue   decimal.Decimal     `json:"total_revenue"`
	OrdersByStatus map[OrderStatus]int `json:"order_by_status"`
	TopBooks       []BookSales         `json:"top_books"`
}

type Statistics struct {
	Users  UserStatistics  `json:"users"`
	Orders OrderStatistics `json:"orders"`
}
