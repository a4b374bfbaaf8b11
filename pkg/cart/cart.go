// Package cart manages per-customer shopping cart lines.
package cart

import (
	"context"
	"errors"
	"log/slog"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

const (
	MsgRequired         = "Product ID and quantity are required"
	MsgInvalidQuantity  = "Quantity must be a positive whole number"
	MsgProductNotFound  = "Product not found"
	MsgLineNotFound     = "Cart item not found"
	MsgInvalidCustomer  = "Customer identity is required"
	MsgQuantityTooLarge = "Cart quantity is too large"
)

// Service is the cart store. Stock is never checked here; it is only checked
// when an order is placed.
type Service struct {
	lines    store.CartQuerier
	products store.CatalogQuerier
	log      *slog.Logger
}

func NewService(lines store.CartQuerier, products store.CatalogQuerier, log *slog.Logger) *Service {
	return &Service{lines: lines, products: products, log: log}
}

// AddItem adds qty of a product to the customer's cart, merging into the
// existing line for that product. created reports whether a new line was made.
func (s *Service) AddItem(ctx context.Context, customerID, productID int64, qty int) (line models.CartLine, created bool, err error) {
	if customerID <= 0 {
		return models.CartLine{}, false, apperr.New(apperr.InvalidArgument, MsgInvalidCustomer)
	}
	if productID <= 0 {
		return models.CartLine{}, false, apperr.New(apperr.InvalidArgument, MsgRequired)
	}
	if qty < 1 || qty > store.MaxQuantity {
		return models.CartLine{}, false, apperr.New(apperr.InvalidArgument, MsgInvalidQuantity)
	}

	exists, err := s.products.ProductExists(ctx, productID)
	if err != nil {
		return models.CartLine{}, false, apperr.Wrap(apperr.Internal, err, "Database error")
	}
	if !exists {
		return models.CartLine{}, false, apperr.New(apperr.NotFound, MsgProductNotFound)
	}

	line, created, err = s.lines.UpsertCartLine(ctx, customerID, productID, qty)
	if errors.Is(err, store.ErrOutOfRange) {
		return models.CartLine{}, false, apperr.New(apperr.InvalidArgument, MsgQuantityTooLarge)
	}
	if err != nil {
		return models.CartLine{}, false, apperr.Wrap(apperr.Internal, err, "Error adding to cart")
	}
	s.log.Debug("cart line saved", "customer_id", customerID, "product_id", productID, "cart_id", line.ID, "created", created)
	return line, created, nil
}

// UpdateQuantity overwrites the quantity of one of the customer's lines.
// A line owned by someone else is treated as absent.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, cartID int64, qty int) error {
	if qty < 1 || qty > store.MaxQuantity {
		return apperr.New(apperr.InvalidArgument, MsgInvalidQuantity)
	}
	ok, err := s.lines.UpdateCartLineQuantity(ctx, customerID, cartID, qty)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error updating cart quantity")
	}
	if !ok {
		return apperr.New(apperr.NotFound, MsgLineNotFound)
	}
	return nil
}

// RemoveItem deletes a line. Removing an absent line is not an error.
func (s *Service) RemoveItem(ctx context.Context, customerID, cartID int64) error {
	removed, err := s.lines.DeleteCartLine(ctx, customerID, cartID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error removing item from cart")
	}
	if !removed {
		s.log.Debug("cart line already absent", "customer_id", customerID, "cart_id", cartID)
	}
	return nil
}

// Clear empties the customer's cart and returns how many lines were removed.
func (s *Service) Clear(ctx context.Context, customerID int64) (int64, error) {
	n, err := s.lines.ClearCart(ctx, customerID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "Error clearing cart")
	}
	return n, nil
}

// ListItems returns the customer's lines joined with live product data.
func (s *Service) ListItems(ctx context.Context, customerID int64) ([]models.CartItem, error) {
	items, err := s.lines.ListCartItems(ctx, customerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "Error fetching cart items")
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return items, nil
}
