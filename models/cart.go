package models

import "github.com/shopspring/decimal"

// CartLine is one (customer, product, quantity) row of a shopping cart.
type CartLine struct {
	ID         int64 `json:"cart_id"`
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

// CartItem is a cart line joined with the live product row. Price is the
// current catalog price, not a frozen one.
type CartItem struct {
	CartID      int64           `json:"cart_id"`
	Quantity    int             `json:"quantity"`
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       []byte          `json:"product_image"`
}

// Subtotal returns quantity x price.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
