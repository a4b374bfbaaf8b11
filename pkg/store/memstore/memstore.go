// Package memstore is an in-memory store.Store.
//
// Transactions are serialized: InTx holds the store lock for the duration of
// fn and works on a copy of the data that replaces the live data only when fn
// succeeds. That gives the same all-or-nothing outcome as the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

type state struct {
	products     map[int64]models.Product
	categories   map[int64]models.Category
	cart         map[int64]models.CartLine
	orders       map[int64]models.Order
	orderLines   map[int64]models.OrderLine
	payments     map[int64]models.Payment
	transactions map[int64]models.Transaction
	checkouts    map[string]models.CheckoutRequest
	outbox       map[int64]models.OutboxEvent
	seq          map[string]int64
}

func newState() *state {
	return &state{
		products:     map[int64]models.Product{},
		categories:   map[int64]models.Category{},
		cart:         map[int64]models.CartLine{},
		orders:       map[int64]models.Order{},
		orderLines:   map[int64]models.OrderLine{},
		payments:     map[int64]models.Payment{},
		transactions: map[int64]models.Transaction{},
		checkouts:    map[string]models.CheckoutRequest{},
		outbox:       map[int64]models.OutboxEvent{},
		seq:          map[string]int64{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		products:     copyMap(st.products),
		categories:   copyMap(st.categories),
		cart:         copyMap(st.cart),
		orders:       copyMap(st.orders),
		orderLines:   copyMap(st.orderLines),
		payments:     copyMap(st.payments),
		transactions: copyMap(st.transactions),
		checkouts:    copyMap(st.checkouts),
		outbox:       copyMap(st.outbox),
		seq:          copyMap(st.seq),
	}
}

func (st *state) next(kind string) int64 {
	st.seq[kind]++
	return st.seq[kind]
}

// faults is shared between a store and its transaction views.
type faults struct {
	mu  sync.Mutex
	ops map[string]error
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults *faults
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		st:     newState(),
		faults: &faults{ops: map[string]error{}},
		now:    time.Now,
	}
}

// FailOn makes every later call of the named method return err.
// A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	if err == nil {
		delete(s.faults.ops, op)
		return
	}
	s.faults.ops[op] = err
}

func (s *Store) fault(op string) error {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	return s.faults.ops[op]
}

// AddCategory seeds a category and returns its id.
func (s *Store) AddCategory(label string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.st.next("category")
	s.st.categories[id] = models.Category{ID: id, Label: label}
	return id
}

// AddProduct seeds a product. A zero ID is assigned from the sequence.
func (s *Store) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.next("product")
	} else if p.ID > s.st.seq["product"] {
		s.st.seq["product"] = p.ID
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.st.products[p.ID] = p
	return p
}

func (s *Store) InTx(ctx context.Context, fn func(q store.Querier) error) error {
	if err := s.fault("InTx"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &Store{st: s.st.clone(), faults: s.faults, now: s.now}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = view.st
	return nil
}

func (s *Store) Close() error { return nil }

// LockCustomer is a no-op: InTx already runs exclusively.
func (s *Store) LockCustomer(ctx context.Context, customerID int64) error {
	return ctx.Err()
}

// ---- catalog ----

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	if err := s.fault("ListProducts"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, 0, len(s.st.categories))
	for _, c := range s.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ProductExists(ctx context.Context, id int64) (bool, error) {
	if err := s.fault("ProductExists"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.products[id]
	return ok, nil
}

func (s *Store) ReduceStock(ctx context.Context, productID int64, amount int) (bool, error) {
	if err := s.fault("ReduceStock"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok || p.Quantity < amount {
		return false, nil
	}
	p.Quantity -= amount
	p.UpdatedAt = s.now()
	s.st.products[productID] = p
	return true, nil
}

func (s *Store) SetStock(ctx context.Context, productID int64, amount int) (bool, error) {
	if err := s.fault("SetStock"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return false, nil
	}
	p.Quantity = amount
	p.UpdatedAt = s.now()
	s.st.products[productID] = p
	return true, nil
}

// ---- cart ----

func (s *Store) UpsertCartLine(ctx context.Context, customerID, productID int64, qty int) (models.CartLine, bool, error) {
	if err := s.fault("UpsertCartLine"); err != nil {
		return models.CartLine{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, line := range s.st.cart {
		if line.CustomerID == customerID && line.ProductID == productID {
			if qty > store.MaxQuantity-line.Quantity {
				return models.CartLine{}, false, store.ErrOutOfRange
			}
			line.Quantity += qty
			s.st.cart[id] = line
			return line, false, nil
		}
	}
	line := models.CartLine{
		ID:         s.st.next("cart"),
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   qty,
	}
	s.st.cart[line.ID] = line
	return line, true, nil
}

func (s *Store) UpdateCartLineQuantity(ctx context.Context, customerID, cartID int64, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.st.cart[cartID]
	if !ok || line.CustomerID != customerID {
		return false, nil
	}
	line.Quantity = qty
	s.st.cart[cartID] = line
	return true, nil
}

func (s *Store) DeleteCartLine(ctx context.Context, customerID, cartID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.st.cart[cartID]
	if !ok || line.CustomerID != customerID {
		return false, nil
	}
	delete(s.st.cart, cartID)
	return true, nil
}

func (s *Store) ClearCart(ctx context.Context, customerID int64) (int64, error) {
	if err := s.fault("ClearCart"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, line := range s.st.cart {
		if line.CustomerID == customerID {
			delete(s.st.cart, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListCartItems(ctx context.Context, customerID int64) ([]models.CartItem, error) {
	if err := s.fault("ListCartItems"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CartItem
	for _, line := range s.st.cart {
		if line.CustomerID != customerID {
			continue
		}
		p, ok := s.st.products[line.ProductID]
		if !ok {
			continue // inner join
		}
		out = append(out, models.CartItem{
			CartID:      line.ID,
			Quantity:    line.Quantity,
			ProductID:   p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Image:       p.Image,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CartID < out[j].CartID })
	return out, nil
}

// ---- orders and payments ----

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (int64, error) {
	if err := s.fault("InsertOrder"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.st.next("order")
	s.st.orders[o.ID] = o
	return o.ID, nil
}

func (s *Store) InsertOrderLine(ctx context.Context, l models.OrderLine) (int64, error) {
	if err := s.fault("InsertOrderLine"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.orders[l.OrderID]; !ok {
		return 0, store.ErrNotFound
	}
	l.ID = s.st.next("order_item")
	s.st.orderLines[l.ID] = l
	return l.ID, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OrderLine
	for _, l := range s.st.orderLines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertPayment(ctx context.Context, p models.Payment) (int64, error) {
	if err := s.fault("InsertPayment"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.orders[p.OrderID]; !ok {
		return 0, store.ErrNotFound
	}
	p.ID = s.st.next("payment")
	s.st.payments[p.ID] = p
	return p.ID, nil
}

func (s *Store) ListPayments(ctx context.Context) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, 0, len(s.st.payments))
	for _, p := range s.st.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.After(out[j].PaymentDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---- ledger ----

func (s *Store) InsertTransaction(ctx context.Context, t models.Transaction) (int64, error) {
	if err := s.fault("InsertTransaction"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.st.next("transaction")
	t.PaymentMethod = nil
	s.st.transactions[t.ID] = t
	return t.ID, nil
}

func (s *Store) withMethod(t models.Transaction) models.Transaction {
	if p, ok := s.st.payments[t.PaymentID]; ok {
		m := p.Method
		t.PaymentMethod = &m
	}
	return t
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.transactions[id]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	return s.withMethod(t), nil
}

func (s *Store) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	if err := s.fault("ListTransactions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.st.transactions {
		if f.OrderID != 0 && t.OrderID != f.OrderID {
			continue
		}
		if f.PaymentID != 0 && t.PaymentID != f.PaymentID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, s.withMethod(t))
	}
	desc := f.Scoped()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			if desc {
				return a.TransactionDate.After(b.TransactionDate)
			}
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id int64, patch models.TransactionPatch, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.transactions[id]
	if !ok {
		return false, nil
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	t.LastUpdated = now
	s.st.transactions[id] = t
	return true, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.transactions[id]; !ok {
		return false, nil
	}
	delete(s.st.transactions, id)
	return true, nil
}

// ---- checkout bookkeeping ----

func (s *Store) GetCheckoutRequest(ctx context.Context, key string) (models.CheckoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.checkouts[key]
	if !ok {
		return models.CheckoutRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) InsertCheckoutRequest(ctx context.Context, r models.CheckoutRequest) error {
	if err := s.fault("InsertCheckoutRequest"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.checkouts[r.IdempotencyKey]; ok {
		return store.ErrDuplicate
	}
	s.st.checkouts[r.IdempotencyKey] = r
	return nil
}

func (s *Store) InsertOutboxEvent(ctx context.Context, e models.OutboxEvent) error {
	if err := s.fault("InsertOutboxEvent"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.st.next("outbox")
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.st.outbox[e.ID] = e
	return nil
}

func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OutboxEvent
	for _, e := range s.st.outbox {
		if e.SentAt == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	e.SentAt = &at
	s.st.outbox[id] = e
	return nil
}
