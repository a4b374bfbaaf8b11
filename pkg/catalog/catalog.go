// Package catalog serves product reads and the two stock primitives:
// a conditional compare-and-decrement and an unconditional overwrite.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

const (
	MsgInsufficientStock = "Out of stock or insufficient quantity available."
	MsgReduceInvalid     = "Quantity to reduce must be a positive number."
	MsgAdjustInvalid     = "Invalid quantity provided."
	MsgProductNotFound   = "Product not found"
)

// ProductCache is the read-through cache in front of ListProducts.
// Populate must drop its write when Invalidate ran after the Generation it
// is given was read, so a slow refill never restores replaced stock.
type ProductCache interface {
	Products(ctx context.Context) ([]models.Product, error)
	Generation(ctx context.Context) (int64, error)
	Populate(ctx context.Context, gen int64, products []models.Product) (bool, error)
	Invalidate(ctx context.Context, productIDs ...int64) error
}

// Service is the catalog store. A nil cache disables caching, which is how
// the checkout workflow uses it inside a transaction.
type Service struct {
	q     store.CatalogQuerier
	cache ProductCache
	log   *slog.Logger
}

func NewService(q store.CatalogQuerier, cache ProductCache, log *slog.Logger) *Service {
	return &Service{q: q, cache: cache, log: log}
}

// ListProducts returns all products, from cache when possible. On a miss the
// database answers and the cache is repopulated in the background.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	refill := false
	var gen int64
	if s.cache != nil {
		products, err := s.cache.Products(ctx)
		if err == nil {
			return products, nil
		}
		s.log.Debug("product cache miss, falling back to database", "error", err)

		// Read before the query so an invalidation landing during it is seen.
		gen, err = s.cache.Generation(ctx)
		if err != nil {
			s.log.Warn("failed to read product cache generation", "error", err)
		} else {
			refill = true
		}
	}

	products, err := s.q.ListProducts(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "Error fetching products")
	}
	if products == nil {
		products = []models.Product{}
	}

	if refill && len(products) > 0 {
		// Don't block the request path on the cache write.
		go func(products []models.Product) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stored, err := s.cache.Populate(ctx, gen, products)
			switch {
			case err != nil:
				s.log.Warn("failed to populate product cache", "error", err)
			case !stored:
				s.log.Debug("product cache invalidated during read, skipping populate", "generation", gen)
			}
		}(products)
	}
	return products, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.q.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "Error fetching category")
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	p, err := s.q.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Product{}, apperr.New(apperr.NotFound, MsgProductNotFound)
	}
	if err != nil {
		return models.Product{}, apperr.Wrap(apperr.Internal, err, "Error fetching product")
	}
	return p, nil
}

// ReduceStock decrements stock only if at least amount is on hand. Stock is
// never driven negative; a refused decrement changes nothing and reports
// InsufficientStock, as does an unknown product.
func (s *Service) ReduceStock(ctx context.Context, productID int64, amount int) error {
	if amount <= 0 || amount > store.MaxQuantity {
		return apperr.New(apperr.InvalidArgument, MsgReduceInvalid)
	}
	ok, err := s.q.ReduceStock(ctx, productID, amount)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error reducing product quantity")
	}
	if !ok {
		return apperr.New(apperr.InsufficientStock, MsgInsufficientStock)
	}
	s.invalidate(ctx, productID)
	return nil
}

// SetStock overwrites the stock level. It is the manual inventory correction
// path and bypasses the conditional decrement.
func (s *Service) SetStock(ctx context.Context, productID int64, amount int) error {
	if amount < 0 || amount > store.MaxQuantity {
		return apperr.New(apperr.InvalidArgument, MsgAdjustInvalid)
	}
	ok, err := s.q.SetStock(ctx, productID, amount)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error updating product quantity.")
	}
	if !ok {
		return apperr.New(apperr.NotFound, MsgProductNotFound)
	}
	s.invalidate(ctx, productID)
	return nil
}

// InvalidateProducts drops cached entries after a committed stock change.
// Cache failures are logged, never returned.
func (s *Service) InvalidateProducts(ctx context.Context, productIDs ...int64) {
	s.invalidate(ctx, productIDs...)
}

func (s *Service) invalidate(ctx context.Context, productIDs ...int64) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		s.log.Warn("failed to invalidate product cache", "product_ids", productIDs, "error", err)
	}
}
