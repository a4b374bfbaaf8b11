package api

import (
	"net/http"

	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
)

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Catalog.ListProducts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.Catalog.ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// reduceStock always requires a {"quantity"} body.
func (s *server) reduceStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req quantityRequest
	if err := decode(w, r, quantityLoader, catalog.MsgReduceInvalid, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Catalog.ReduceStock(r.Context(), id, req.Quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Quantity reduced successfully.")
}

func (s *server) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req quantityRequest
	if err := decode(w, r, quantityLoader, catalog.MsgAdjustInvalid, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Catalog.SetStock(r.Context(), id, req.Quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Product quantity successfully adjusted.")
}
