package api

import (
	"net/http"
	"strconv"

	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/auth"
	"gitlab.connectwisedev.com/storefront-service/pkg/cart"
)

type addToCartRequest struct {
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

// customerFor resolves whose cart a request targets. requested is the id
// the client named (0 for none); the caller's own id is the default.
func customerFor(r *http.Request, requested int64) (int64, error) {
	c, ok := auth.FromContext(r.Context())
	if !ok {
		return 0, apperr.New(apperr.Unauthenticated, "Missing authorization")
	}
	if requested == 0 {
		return c.ID, nil
	}
	if !c.CanActFor(requested) {
		return 0, apperr.New(apperr.Forbidden, "Not allowed to access another customer's cart")
	}
	return requested, nil
}

// queryCustomer reads the optional ?customer_id= staff use to act on a
// customer's cart lines.
func queryCustomer(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("customer_id")
	if raw == "" {
		return customerFor(r, 0)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.InvalidArgument, "Invalid customer_id")
	}
	return customerFor(r, id)
}

func (s *server) listCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "customer_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	customerID, err := customerFor(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.Cart.ListItems(r.Context(), customerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decode(w, r, addToCartLoader, cart.MsgRequired, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	customerID, err := customerFor(r, req.CustomerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	line, created, err := s.Cart.AddItem(r.Context(), customerID, req.ProductID, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Product added to cart successfully",
			"cart_id": line.ID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Cart quantity updated successfully",
		"cart_id":  line.ID,
		"quantity": line.Quantity,
	})
}

func (s *server) updateCartQuantity(w http.ResponseWriter, r *http.Request) {
	cartID, err := pathID(r, "cart_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	customerID, err := queryCustomer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req quantityRequest
	if err := decode(w, r, quantityLoader, cart.MsgInvalidQuantity, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Cart.UpdateQuantity(r.Context(), customerID, cartID, req.Quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cart quantity updated")
}

func (s *server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := pathID(r, "cart_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	customerID, err := queryCustomer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Cart.RemoveItem(r.Context(), customerID, cartID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item removed from cart successfully")
}

func (s *server) clearCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "customer_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	customerID, err := customerFor(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Cart.Clear(r.Context(), customerID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cart cleared successfully")
}
