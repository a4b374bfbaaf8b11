package api

import (
	"net/http"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/checkout"
)

// IdempotencyKeyHeader lets a client retry a checkout safely.
const IdempotencyKeyHeader = "Idempotency-Key"

type checkoutRequest struct {
	CustomerID    int64                `json:"customer_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

// placeOrder checks out the caller's cart. Prices and totals always come
// from the catalog, never from the client.
func (s *server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(w, r, checkoutLoader, checkout.MsgInvalidMethod, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	customerID, err := customerFor(r, req.CustomerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	receipt, err := s.Checkout.PlaceOrder(r.Context(), checkout.Request{
		CustomerID:     customerID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, receipt)
}
