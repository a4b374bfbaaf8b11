package ledger

import (
	"context"
	"errors"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// StatusFor is the payment status rule: cash is collected on delivery and
// stays Pending, every other method is Completed at checkout.
func StatusFor(method models.PaymentMethod) models.PaymentStatus {
	if method == models.PaymentCash {
		return models.PaymentPending
	}
	return models.PaymentCompleted
}

// RecordPayment validates and stores a payment for an existing order.
func (s *Service) RecordPayment(ctx context.Context, p models.Payment) (int64, error) {
	if p.OrderID <= 0 || p.Method == "" || p.Status == "" {
		return 0, apperr.New(apperr.InvalidArgument, MsgPaymentFields)
	}
	if !p.Method.Valid() {
		return 0, apperr.New(apperr.InvalidArgument, MsgInvalidMethod)
	}
	if !p.Status.Valid() {
		return 0, apperr.New(apperr.InvalidArgument, MsgInvalidPStatus)
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = s.now()
	}

	id, err := s.q.InsertPayment(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return 0, apperr.New(apperr.NotFound, MsgOrderNotFound)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "Error recording payment")
	}
	s.log.Info("payment recorded", "payment_id", id, "order_id", p.OrderID, "method", p.Method, "status", p.Status)
	return id, nil
}

// ListPayments returns every payment, newest first.
func (s *Service) ListPayments(ctx context.Context) ([]models.Payment, error) {
	out, err := s.q.ListPayments(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "Failed to fetch payments")
	}
	if out == nil {
		out = []models.Payment{}
	}
	return out, nil
}
