package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// dbtx is the subset of *sql.DB and *sql.Tx the queries use.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements store.Querier on top of a pool or a transaction.
type queries struct {
	db dbtx
}

// Store is the PostgreSQL store.Store.
type Store struct {
	*queries
	client *DBClient
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an open client.
func NewStore(client *DBClient) *Store {
	return &Store{queries: &queries{db: client.GetDB()}, client: client}
}

// InTx runs fn inside one database transaction.
func (s *Store) InTx(ctx context.Context, fn func(q store.Querier) error) error {
	tx, err := s.client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback on error by default

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// isUniqueViolation reports a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isOutOfRange matches numeric_value_out_of_range, raised when a quantity
// does not fit an INTEGER column.
func isOutOfRange(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "22003"
	}
	return false
}

// isForeignKeyViolation reports a Postgres foreign_key_violation (23503).
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---- catalog ----

const productColumns = `product_id, name, description, price, quantity, category_id, product_image, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	var category sql.NullInt64 // Use sql.NullInt64 for nullable columns
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &category, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Product{}, err
	}
	if category.Valid {
		p.CategoryID = &category.Int64
	}
	return p, nil
}

func (q *queries) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY product_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during product iteration: %w", err)
	}
	return products, nil
}

func (q *queries) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT category_id, type_of_category FROM category ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	p, err := scanProduct(q.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, store.ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (q *queries) ProductExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE product_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product %d: %w", id, err)
	}
	return exists, nil
}

func (q *queries) ReduceStock(ctx context.Context, productID int64, amount int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $1, updated_at = NOW()
		WHERE product_id = $2 AND quantity >= $1`, amount, productID)
	if err != nil {
		return false, fmt.Errorf("failed to reduce stock of product %d: %w", productID, err)
	}
	return affected(res)
}

func (q *queries) SetStock(ctx context.Context, productID int64, amount int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE products SET quantity = $1, updated_at = NOW() WHERE product_id = $2`, amount, productID)
	if err != nil {
		return false, fmt.Errorf("failed to set stock of product %d: %w", productID, err)
	}
	return affected(res)
}

// ---- cart ----

func (q *queries) UpsertCartLine(ctx context.Context, customerID, productID int64, qty int) (models.CartLine, bool, error) {
	line := models.CartLine{CustomerID: customerID, ProductID: productID}
	var created bool
	// xmax is 0 only for a freshly inserted row version. The conflict WHERE
	// leaves an overflowing merge unapplied, which returns no row.
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO cart (customer_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT cart_customer_product_key
		DO UPDATE SET quantity = cart.quantity + EXCLUDED.quantity
		WHERE cart.quantity <= $4::integer - EXCLUDED.quantity
		RETURNING cart_id, quantity, (xmax = 0)`, customerID, productID, qty, store.MaxQuantity).
		Scan(&line.ID, &line.Quantity, &created)
	if errors.Is(err, sql.ErrNoRows) || isOutOfRange(err) {
		return models.CartLine{}, false, store.ErrOutOfRange
	}
	if err != nil {
		return models.CartLine{}, false, fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return line, created, nil
}

func (q *queries) UpdateCartLineQuantity(ctx context.Context, customerID, cartID int64, qty int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE cart SET quantity = $1 WHERE cart_id = $2 AND customer_id = $3`, qty, cartID, customerID)
	if err != nil {
		return false, fmt.Errorf("failed to update cart line %d: %w", cartID, err)
	}
	return affected(res)
}

func (q *queries) DeleteCartLine(ctx context.Context, customerID, cartID int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM cart WHERE cart_id = $1 AND customer_id = $2`, cartID, customerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart line %d: %w", cartID, err)
	}
	return affected(res)
}

func (q *queries) ClearCart(ctx context.Context, customerID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM cart WHERE customer_id = $1`, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart of customer %d: %w", customerID, err)
	}
	return res.RowsAffected()
}

func (q *queries) ListCartItems(ctx context.Context, customerID int64) ([]models.CartItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT c.cart_id, c.quantity, p.product_id, p.name, p.description, p.price, p.product_image
		FROM cart c JOIN products p ON c.product_id = p.product_id
		WHERE c.customer_id = $1
		ORDER BY c.cart_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.CartID, &it.Quantity, &it.ProductID, &it.Name, &it.Description, &it.Price, &it.Image); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ---- orders and payments ----

func (q *queries) InsertOrder(ctx context.Context, o models.Order) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, order_date, total_amount) VALUES ($1, $2, $3)
		RETURNING order_id`, o.CustomerID, o.OrderDate, o.TotalAmount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	return id, nil
}

func (q *queries) InsertOrderLine(ctx context.Context, l models.OrderLine) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)
		RETURNING order_item_id`, l.OrderID, l.ProductID, l.Quantity, l.Price).Scan(&id)
	if isForeignKeyViolation(err) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert order item: %w", err)
	}
	return id, nil
}

func (q *queries) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT order_id, customer_id, order_date, total_amount FROM orders ORDER BY order_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (q *queries) ListOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT order_item_id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY order_item_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var out []models.OrderLine
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *queries) InsertPayment(ctx context.Context, p models.Payment) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, payment_method, payment_status, amount, payment_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING payment_id`, p.OrderID, p.Method, p.Status, p.Amount, p.PaymentDate).Scan(&id)
	if isForeignKeyViolation(err) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment: %w", err)
	}
	return id, nil
}

func (q *queries) ListPayments(ctx context.Context) ([]models.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT payment_id, order_id, payment_method, payment_status, amount, payment_date
		FROM payments ORDER BY payment_date DESC, payment_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount, &p.PaymentDate); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- ledger ----

const transactionSelect = `
	SELECT t.transaction_id, t.order_id, t.payment_id, t.transaction_type, t.status, t.amount,
	       t.transaction_date, t.last_updated, p.payment_method
	FROM transactions t
	LEFT JOIN payments p ON t.payment_id = p.payment_id`

func scanTransaction(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	var method sql.NullString
	err := row.Scan(&t.ID, &t.OrderID, &t.PaymentID, &t.Type, &t.Status, &t.Amount, &t.TransactionDate, &t.LastUpdated, &method)
	if err != nil {
		return models.Transaction{}, err
	}
	if method.Valid {
		m := models.PaymentMethod(method.String)
		t.PaymentMethod = &m
	}
	return t, nil
}

func (q *queries) InsertTransaction(ctx context.Context, t models.Transaction) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO transactions
		(order_id, payment_id, transaction_type, status, amount, transaction_date, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING transaction_id`,
		t.OrderID, t.PaymentID, t.Type, t.Status, t.Amount, t.TransactionDate, t.LastUpdated).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return id, nil
}

func (q *queries) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, transactionSelect+` WHERE t.transaction_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return t, nil
}

func (q *queries) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	var where []string
	var args []any
	if f.OrderID != 0 {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("t.order_id = $%d", len(args)))
	}
	if f.PaymentID != 0 {
		args = append(args, f.PaymentID)
		where = append(where, fmt.Sprintf("t.payment_id = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("t.transaction_type = $%d", len(args)))
	}

	query := transactionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Scoped() {
		query += " ORDER BY t.transaction_date DESC, t.transaction_id DESC"
	} else {
		query += " ORDER BY t.transaction_date ASC, t.transaction_id ASC"
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *queries) UpdateTransaction(ctx context.Context, id int64, patch models.TransactionPatch, now time.Time) (bool, error) {
	var sets []string
	var args []any
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.Amount != nil {
		args = append(args, *patch.Amount)
		sets = append(sets, fmt.Sprintf("amount = $%d", len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("last_updated = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE transactions SET %s WHERE transaction_id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}
	return affected(res)
}

func (q *queries) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE transaction_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	return affected(res)
}

// ---- checkout bookkeeping ----

func (q *queries) GetCheckoutRequest(ctx context.Context, key string) (models.CheckoutRequest, error) {
	var r models.CheckoutRequest
	var receipt []byte
	err := q.db.QueryRowContext(ctx, `
		SELECT idempotency_key, customer_id, order_id, receipt, created_at
		FROM checkout_requests WHERE idempotency_key = $1`, key).
		Scan(&r.IdempotencyKey, &r.CustomerID, &r.OrderID, &receipt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CheckoutRequest{}, store.ErrNotFound
	}
	if err != nil {
		return models.CheckoutRequest{}, fmt.Errorf("failed to get checkout request: %w", err)
	}
	if err := json.Unmarshal(receipt, &r.Receipt); err != nil {
		return models.CheckoutRequest{}, fmt.Errorf("failed to decode stored receipt: %w", err)
	}
	return r, nil
}

func (q *queries) InsertCheckoutRequest(ctx context.Context, r models.CheckoutRequest) error {
	// JSONB parameters go as text; lib/pq would send []byte as bytea.
	receipt, err := json.Marshal(r.Receipt)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO checkout_requests (idempotency_key, customer_id, order_id, receipt, created_at)
		VALUES ($1, $2, $3, $4, $5)`, r.IdempotencyKey, r.CustomerID, r.OrderID, string(receipt), r.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert checkout request: %w", err)
	}
	return nil
}

func (q *queries) InsertOutboxEvent(ctx context.Context, e models.OutboxEvent) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO outbox (event_id, topic, key, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.EventID, e.Topic, e.Key, string(e.Payload), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (q *queries) LockCustomer(ctx context.Context, customerID int64) error {
	// Transaction-scoped: released on commit or rollback.
	if _, err := q.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, customerID); err != nil {
		return fmt.Errorf("failed to lock customer %d: %w", customerID, err)
	}
	return nil
}

func (q *queries) FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var out []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Topic, &e.Key, &e.Payload, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) MarkOutboxSent(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE outbox SET sent_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d: %w", id, err)
	}
	return nil
}
