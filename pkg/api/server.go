// Package api is the storefront's REST surface: catalog reads, stock
// adjustment, cart, checkout and the order/payment/transaction records.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitlab.connectwisedev.com/storefront-service/pkg/auth"
	"gitlab.connectwisedev.com/storefront-service/pkg/cart"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/checkout"
	"gitlab.connectwisedev.com/storefront-service/pkg/ledger"
	"gitlab.connectwisedev.com/storefront-service/pkg/metrics"
)

// Deps are the services behind the routes. Metrics is optional.
type Deps struct {
	Catalog  *catalog.Service
	Cart     *cart.Service
	Ledger   *ledger.Service
	Checkout *checkout.Service
	Metrics  *metrics.ServerMetrics
	Log      *slog.Logger

	JWTSecret      []byte
	RequestTimeout time.Duration
	RateRPS        float64
	RateBurst      int
}

type server struct {
	Deps
	fail func(http.ResponseWriter, *http.Request, error)
}

// NewRouter wires every route. Everything under /api needs a bearer token.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	s := &server{Deps: d, fail: errorWriter(d.Log)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	staff := auth.RequireRole(s.fail, auth.RoleAdmin, auth.RoleStaff)
	admin := auth.RequireRole(s.fail, auth.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(d.RateRPS, d.RateBurst, s.fail))
		r.Use(auth.Middleware(d.JWTSecret, s.fail))
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}

		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/category", s.listCategories)
		r.With(staff).Put("/products/reduce/{id}", s.reduceStock)
		r.With(staff).Put("/products/adjust/{product_id}", s.adjustStock)

		r.Get("/cart/{customer_id}", s.listCart)
		r.Post("/cart", s.addToCart)
		r.Put("/cart/update-quantity/{cart_id}", s.updateCartQuantity)
		r.Delete("/cart/clear/{customer_id}", s.clearCart)
		r.Delete("/cart/{cart_id}", s.removeFromCart)

		r.Post("/checkout", s.placeOrder)

		r.Group(func(r chi.Router) {
			r.Use(staff)

			r.Get("/orders", s.listOrders)
			r.Post("/orders", s.createOrder)
			r.Get("/orders/{order_id}/items", s.listOrderItems)
			r.Post("/order-items", s.createOrderItem)
			r.Get("/payments", s.listPayments)
			r.Post("/payments", s.createPayment)

			r.Get("/transactions", s.listTransactions)
			r.Post("/transactions", s.createTransaction)
			r.Get("/transactions/order/{order_id}", s.transactionsByOrder)
			r.Get("/transactions/payment/{payment_id}", s.transactionsByPayment)
			r.Get("/transactions/type/{transaction_type}", s.transactionsByType)
			r.Get("/transactions/{transaction_id}", s.getTransaction)
			r.Put("/transactions/{transaction_id}", s.updateTransaction)
			r.With(admin).Delete("/transactions/{transaction_id}", s.deleteTransaction)
		})
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
