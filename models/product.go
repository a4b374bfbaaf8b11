package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog product in the database and cache.
// Image is raw binary in storage; encoding/json renders it as base64.
type Product struct {
	ID          int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CategoryID  *int64          `json:"category_id"` // Pointer for nullable field
	Image       []byte          `json:"product_image"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OutOfStock reports whether nothing is left on hand.
func (p Product) OutOfStock() bool {
	return p.Quantity <= 0
}

// Category is a display label referenced by products.
type Category struct {
	ID    int64  `json:"category_id"`
	Label string `json:"type_of_category"`
}

// StockRow represents one inventory correction as read from a CSV file
type StockRow struct {
	ProductID int64 `csv:"product_id"`
	Quantity  int   `csv:"quantity"`
	Line      int   `csv:"-"` // 1-based line in the source file, header included
}
