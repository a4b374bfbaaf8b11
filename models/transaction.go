package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionPurchase   TransactionType = "Purchase"
	TransactionRefund     TransactionType = "Refund"
	TransactionVoid       TransactionType = "Void"
	TransactionAdjustment TransactionType = "Adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPurchase, TransactionRefund, TransactionVoid, TransactionAdjustment:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionFailed    TransactionStatus = "Failed"
	TransactionReversed  TransactionStatus = "Reversed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed, TransactionReversed:
		return true
	}
	return false
}

// Transaction is one ledger entry tied to an order and a payment.
// PaymentMethod is filled by listing queries from the joined payment row.
type Transaction struct {
	ID              int64             `json:"transaction_id"`
	OrderID         int64             `json:"order_id"`
	PaymentID       int64             `json:"payment_id"`
	Type            TransactionType   `json:"transaction_type"`
	Status          TransactionStatus `json:"status"`
	Amount          decimal.Decimal   `json:"amount"`
	TransactionDate time.Time         `json:"transaction_date"`
	LastUpdated     time.Time         `json:"last_updated"`
	PaymentMethod   *PaymentMethod    `json:"payment_method,omitempty"`
}

// TransactionPatch is a partial update; nil fields are left untouched.
type TransactionPatch struct {
	Status *TransactionStatus `json:"status,omitempty"`
	Amount *decimal.Decimal   `json:"amount,omitempty"`
}

// TransactionFilter scopes a ledger query. The zero value selects everything.
type TransactionFilter struct {
	OrderID   int64
	PaymentID int64
	Type      TransactionType
}

// Scoped reports whether any field narrows the query.
func (f TransactionFilter) Scoped() bool {
	return f.OrderID != 0 || f.PaymentID != 0 || f.Type != ""
}

// OutboxEvent is a domain event waiting to be relayed to the broker.
type OutboxEvent struct {
	ID        int64      `json:"id"`
	EventID   string     `json:"event_id"`
	Topic     string     `json:"topic"`
	Key       string     `json:"key"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`
}
