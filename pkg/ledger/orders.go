package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// CreateOrder stores an order header dated now. The total is rounded to cents.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, total decimal.Decimal) (int64, error) {
	if customerID <= 0 || total.IsNegative() {
		return 0, apperr.New(apperr.InvalidArgument, MsgOrderFields)
	}
	id, err := s.q.InsertOrder(ctx, models.Order{
		CustomerID:  customerID,
		OrderDate:   s.now(),
		TotalAmount: total.Round(2),
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "Error creating order")
	}
	return id, nil
}

// AddOrderLine stores one order item with the given unit price.
func (s *Service) AddOrderLine(ctx context.Context, l models.OrderLine) (int64, error) {
	if l.OrderID <= 0 || l.ProductID <= 0 || l.Quantity < 1 || l.Quantity > store.MaxQuantity || l.Price.IsNegative() {
		return 0, apperr.New(apperr.InvalidArgument, MsgOrderLineInput)
	}
	id, err := s.q.InsertOrderLine(ctx, l)
	if errors.Is(err, store.ErrNotFound) {
		return 0, apperr.New(apperr.NotFound, MsgOrderNotFound)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "Error adding order item")
	}
	return id, nil
}

// ListOrders returns every order header.
func (s *Service) ListOrders(ctx context.Context) ([]models.Order, error) {
	out, err := s.q.ListOrders(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "Error fetching orders")
	}
	if out == nil {
		out = []models.Order{}
	}
	return out, nil
}

// OrderLines returns the items of one order.
func (s *Service) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	out, err := s.q.ListOrderLines(ctx, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "Error fetching order items")
	}
	if out == nil {
		out = []models.OrderLine{}
	}
	return out, nil
}
