package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/ledger"
)

type createOrderRequest struct {
	CustomerID  int64           `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type createPaymentRequest struct {
	OrderID       int64                `json:"order_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Amount        decimal.Decimal      `json:"amount"`
}

type createTransactionRequest struct {
	OrderID         int64                    `json:"order_id"`
	PaymentID       int64                    `json:"payment_id"`
	TransactionType models.TransactionType   `json:"transaction_type"`
	Status          models.TransactionStatus `json:"status"`
	Amount          decimal.Decimal          `json:"amount"`
}

func (s *server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Ledger.ListOrders(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(w, r, createOrderLoader, ledger.MsgOrderFields, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.Ledger.CreateOrder(r.Context(), req.CustomerID, req.TotalAmount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"order_id": id})
}

func (s *server) listOrderItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lines, err := s.Ledger.OrderLines(r.Context(), orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *server) createOrderItem(w http.ResponseWriter, r *http.Request) {
	var req models.OrderLine
	if err := decode(w, r, orderItemLoader, ledger.MsgOrderLineInput, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.ID = 0
	id, err := s.Ledger.AddOrderLine(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Order item added successfully",
		"order_item_id": id,
	})
}

func (s *server) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.Ledger.ListPayments(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decode(w, r, paymentLoader, ledger.MsgPaymentFields, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.Ledger.RecordPayment(r.Context(), models.Payment{
		OrderID: req.OrderID,
		Method:  req.PaymentMethod,
		Status:  req.PaymentStatus,
		Amount:  req.Amount,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Payment recorded",
		"payment_id": id,
	})
}

func (s *server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decode(w, r, transactionLoader, ledger.MsgMissingFields, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.Ledger.Record(r.Context(), ledger.Entry{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Type:      req.TransactionType,
		Status:    req.Status,
		Amount:    req.Amount,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":        "Transaction created successfully",
		"transaction_id": id,
	})
}

func (s *server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.Ledger.All(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.Ledger.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *server) transactionsByOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.Ledger.ByOrder(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *server) transactionsByPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "payment_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.Ledger.ByPayment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *server) transactionsByType(w http.ResponseWriter, r *http.Request) {
	typ := models.TransactionType(chi.URLParam(r, "transaction_type"))
	txs, err := s.Ledger.ByType(r.Context(), typ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var patch models.TransactionPatch
	if err := decode(w, r, transactionPatchLoader, ledger.MsgNoFields, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Ledger.UpdateStatusOrAmount(r.Context(), id, patch); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Transaction updated successfully")
}

func (s *server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Ledger.Remove(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Transaction deleted successfully")
}
