// Package store declares the persistence contracts of the storefront.
//
// Implementations:
//   - pkg/database: PostgreSQL (lib/pq), the production store
//   - pkg/store/memstore: in-memory, for tests and local runs
//
// Every Querier method runs either directly against the store or inside a
// transaction opened by Store.InTx. Services accept the narrow interface they
// need so the same validation code runs in both contexts.
package store

import (
	"context"
	"errors"
	"math"
	"time"

	"gitlab.connectwisedev.com/storefront-service/models"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrOutOfRange is returned when a quantity would leave the INTEGER range
	// of the quantity columns, e.g. when merging into a cart line.
	ErrOutOfRange = errors.New("store: quantity out of range")
)

// MaxQuantity is the largest quantity any stock, cart or order column holds.
const MaxQuantity = math.MaxInt32

// CatalogQuerier reads products and adjusts stock.
type CatalogQuerier interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	ProductExists(ctx context.Context, id int64) (bool, error)

	// ReduceStock decrements quantity only if quantity >= amount.
	// It reports false when no row was changed.
	ReduceStock(ctx context.Context, productID int64, amount int) (bool, error)

	// SetStock overwrites quantity. It reports false when the product is absent.
	SetStock(ctx context.Context, productID int64, amount int) (bool, error)
}

// CartQuerier manages cart lines. Lines are always scoped by customer.
type CartQuerier interface {
	// UpsertCartLine inserts a line or adds qty to the existing line for
	// (customer, product). created is true when a new row was inserted.
	// A merge past MaxQuantity changes nothing and returns ErrOutOfRange.
	UpsertCartLine(ctx context.Context, customerID, productID int64, qty int) (line models.CartLine, created bool, err error)
	UpdateCartLineQuantity(ctx context.Context, customerID, cartID int64, qty int) (bool, error)
	DeleteCartLine(ctx context.Context, customerID, cartID int64) (bool, error)
	ClearCart(ctx context.Context, customerID int64) (int64, error)
	ListCartItems(ctx context.Context, customerID int64) ([]models.CartItem, error)
}

// OrderQuerier writes and reads orders, order lines and payments.
type OrderQuerier interface {
	InsertOrder(ctx context.Context, o models.Order) (int64, error)
	InsertOrderLine(ctx context.Context, l models.OrderLine) (int64, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	InsertPayment(ctx context.Context, p models.Payment) (int64, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
}

// LedgerQuerier is the transaction ledger.
type LedgerQuerier interface {
	InsertTransaction(ctx context.Context, t models.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (models.Transaction, error)

	// ListTransactions orders by transaction date ascending for an unscoped
	// filter and descending for a scoped one.
	ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch models.TransactionPatch, now time.Time) (bool, error)
	DeleteTransaction(ctx context.Context, id int64) (bool, error)
}

// CheckoutQuerier holds checkout bookkeeping: idempotency records, outbox
// events and the per-customer transaction lock.
type CheckoutQuerier interface {
	GetCheckoutRequest(ctx context.Context, key string) (models.CheckoutRequest, error)
	InsertCheckoutRequest(ctx context.Context, r models.CheckoutRequest) error
	InsertOutboxEvent(ctx context.Context, e models.OutboxEvent) error

	// LockCustomer blocks until the caller holds the customer's lock for the
	// rest of the enclosing transaction.
	LockCustomer(ctx context.Context, customerID int64) error
}

// OutboxQuerier is used by the relay.
type OutboxQuerier interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id int64, at time.Time) error
}

// Querier is the full set of data operations.
type Querier interface {
	CatalogQuerier
	CartQuerier
	OrderQuerier
	LedgerQuerier
	CheckoutQuerier
	OutboxQuerier
}

// Store is a Querier that can also run a function atomically.
type Store interface {
	Querier

	// InTx runs fn inside one transaction. A non-nil error from fn rolls back
	// every write made through q and is returned unchanged.
	InTx(ctx context.Context, fn func(q Querier) error) error

	Close() error
}
