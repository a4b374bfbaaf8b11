package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentCreditCard   PaymentMethod = "Credit Card"
	PaymentDebitCard    PaymentMethod = "Debit Card"
	PaymentGCash        PaymentMethod = "GCash"
	PaymentPayMaya      PaymentMethod = "PayMaya"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentPayPal       PaymentMethod = "PayPal"
	PaymentOther        PaymentMethod = "Other"
)

// PaymentMethods lists every accepted method in display order.
var PaymentMethods = []PaymentMethod{
	PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentGCash,
	PaymentPayMaya, PaymentBankTransfer, PaymentPayPal, PaymentOther,
}

// Valid reports whether m is one of PaymentMethods.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentCompleted
}

// Payment records how an order was paid. Amount equals the order total.
type Payment struct {
	ID          int64           `json:"payment_id"`
	OrderID     int64           `json:"order_id"`
	Method      PaymentMethod   `json:"payment_method"`
	Status      PaymentStatus   `json:"payment_status"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
}
