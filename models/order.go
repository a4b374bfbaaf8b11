package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is created once per checkout that reaches the order-creation step.
type Order struct {
	ID          int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	OrderDate   time.Time       `json:"order_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderLine captures the unit price at the time of sale.
type OrderLine struct {
	ID        int64           `json:"order_item_id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ReceiptItem is one snapshot entry shown on a receipt.
type ReceiptItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Receipt is what a completed checkout returns to the caller.
type Receipt struct {
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentID     int64           `json:"payment_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TransactionID int64           `json:"transaction_id"`
	Items         []ReceiptItem   `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	Replayed      bool            `json:"replayed,omitempty"`
}

// CheckoutRequest binds an idempotency key to the order it produced.
type CheckoutRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	CustomerID     int64     `json:"customer_id"`
	OrderID        int64     `json:"order_id"`
	Receipt        Receipt   `json:"receipt"`
	CreatedAt      time.Time `json:"created_at"`
}
