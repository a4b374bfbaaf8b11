// Package ledger records orders, payments and the financial transactions
// tied to them.
//
// Transactions are append-only: after Record, an entry only changes through
// UpdateStatusOrAmount, and Remove is an explicit hard delete.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

const (
	MsgMissingFields  = "Missing required fields"
	MsgInvalidType    = "Invalid transaction type"
	MsgInvalidStatus  = "Invalid status"
	MsgZeroAmount     = "Amount must be a non-zero number"
	MsgNoFields       = "No valid fields to update"
	MsgTxNotFound     = "Transaction not found"
	MsgPaymentFields  = "Missing payment fields"
	MsgInvalidMethod  = "Invalid payment method"
	MsgInvalidPStatus = "Invalid payment status"
	MsgOrderNotFound  = "Order not found"
	MsgOrderFields    = "Missing order fields"
	MsgOrderLineInput = "Missing order item fields"
)

// Querier is what the ledger needs from storage.
type Querier interface {
	store.OrderQuerier
	store.LedgerQuerier
}

// Service is the transaction ledger plus order and payment recordkeeping.
type Service struct {
	q   Querier
	log *slog.Logger
	now func() time.Time
}

func NewService(q Querier, log *slog.Logger) *Service {
	return &Service{q: q, log: log, now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Entry is the input to Record.
type Entry struct {
	OrderID   int64
	PaymentID int64
	Type      models.TransactionType
	Status    models.TransactionStatus
	Amount    decimal.Decimal
}

// Validate applies the ledger rules: both references present, known type and
// status, non-zero amount.
func (e Entry) Validate() error {
	if e.OrderID <= 0 || e.PaymentID <= 0 || e.Type == "" || e.Status == "" {
		return apperr.New(apperr.InvalidArgument, MsgMissingFields)
	}
	if !e.Type.Valid() {
		return apperr.New(apperr.InvalidArgument, MsgInvalidType)
	}
	if !e.Status.Valid() {
		return apperr.New(apperr.InvalidArgument, MsgInvalidStatus)
	}
	if e.Amount.IsZero() {
		return apperr.New(apperr.InvalidArgument, MsgZeroAmount)
	}
	return nil
}

// Record validates and appends one transaction. Both timestamps are set to now.
func (s *Service) Record(ctx context.Context, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	now := s.now()
	id, err := s.q.InsertTransaction(ctx, models.Transaction{
		OrderID:         e.OrderID,
		PaymentID:       e.PaymentID,
		Type:            e.Type,
		Status:          e.Status,
		Amount:          e.Amount,
		TransactionDate: now,
		LastUpdated:     now,
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "Error creating transaction")
	}
	s.log.Info("transaction recorded",
		"transaction_id", id, "order_id", e.OrderID, "payment_id", e.PaymentID,
		"type", e.Type, "status", e.Status, "amount", e.Amount.StringFixed(2))
	return id, nil
}

// UpdateStatusOrAmount applies a partial update and refreshes last_updated.
func (s *Service) UpdateStatusOrAmount(ctx context.Context, id int64, patch models.TransactionPatch) error {
	if patch.Status == nil && patch.Amount == nil {
		return apperr.New(apperr.InvalidArgument, MsgNoFields)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return apperr.New(apperr.InvalidArgument, MsgInvalidStatus)
	}
	if patch.Amount != nil && patch.Amount.IsZero() {
		return apperr.New(apperr.InvalidArgument, MsgZeroAmount)
	}

	ok, err := s.q.UpdateTransaction(ctx, id, patch, s.now())
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error updating transaction")
	}
	if !ok {
		return apperr.New(apperr.NotFound, MsgTxNotFound)
	}
	return nil
}

// Remove hard-deletes a transaction. The owning order and payment are left
// untouched.
func (s *Service) Remove(ctx context.Context, id int64) error {
	ok, err := s.q.DeleteTransaction(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error deleting transaction")
	}
	if !ok {
		return apperr.New(apperr.NotFound, MsgTxNotFound)
	}
	s.log.Warn("transaction deleted", "transaction_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Transaction, error) {
	t, err := s.q.GetTransaction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Transaction{}, apperr.New(apperr.NotFound, MsgTxNotFound)
	}
	if err != nil {
		return models.Transaction{}, apperr.Wrap(apperr.Internal, err, "Error fetching transaction")
	}
	return t, nil
}

// All lists every transaction, oldest first.
func (s *Service) All(ctx context.Context) ([]models.Transaction, error) {
	return s.list(ctx, models.TransactionFilter{}, "Error fetching transactions")
}

// ByOrder lists an order's transactions, newest first.
func (s *Service) ByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	return s.list(ctx, models.TransactionFilter{OrderID: orderID}, "Error fetching order transactions")
}

// ByPayment lists a payment's transactions, newest first.
func (s *Service) ByPayment(ctx context.Context, paymentID int64) ([]models.Transaction, error) {
	return s.list(ctx, models.TransactionFilter{PaymentID: paymentID}, "Error fetching payment transactions")
}

// ByType lists transactions of one type, newest first. An unknown type
// matches nothing.
func (s *Service) ByType(ctx context.Context, t models.TransactionType) ([]models.Transaction, error) {
	if !t.Valid() {
		return []models.Transaction{}, nil
	}
	return s.list(ctx, models.TransactionFilter{Type: t}, "Error fetching transactions by type")
}

func (s *Service) list(ctx context.Context, f models.TransactionFilter, msg string) ([]models.Transaction, error) {
	out, err := s.q.ListTransactions(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, msg)
	}
	if out == nil {
		out = []models.Transaction{}
	}
	return out, nil
}
