// Package checkout turns a customer's cart into a paid order.
//
// PlaceOrder runs under a per-customer lock and writes everything inside one
// store transaction:
//
//	lock customer -> idempotency lookup -> snapshot cart -> total -> order
//	-> order lines -> stock decrement -> payment -> purchase transaction
//	-> idempotency record -> outbox event -> clear cart
//
// A failure at any step rolls back every earlier step, so no order, payment,
// transaction or stock change survives a failed checkout and the cart is left
// as it was.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/ledger"
	"gitlab.connectwisedev.com/storefront-service/pkg/lock"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// Step names, as logged and as carried on errors.
const (
	StepAcquireLock       = "acquire_lock"
	StepLockCustomer      = "lock_customer"
	StepIdempotencyLookup = "idempotency_lookup"
	StepSnapshotCart      = "snapshot_cart"
	StepCreateOrder       = "create_order"
	StepCreateOrderLines  = "create_order_lines"
	StepReduceStock       = "reduce_stock"
	StepRecordPayment     = "record_payment"
	StepRecordTransaction = "record_transaction"
	StepSaveIdempotency   = "save_idempotency"
	StepEnqueueEvent      = "enqueue_event"
	StepClearCart         = "clear_cart"
)

const (
	EventOrderPlaced = "order.placed"

	DefaultStepTimeout = 2500 * time.Millisecond
	DefaultTopic       = "storefront.orders"

	maxIdempotencyKey = 255
)

const (
	MsgInvalidCustomer = "Customer identity is required"
	MsgInvalidMethod   = "Invalid payment method"
	MsgKeyTooLong      = "Idempotency-Key must be at most 255 characters"
	MsgEmptyCart       = "Cart is empty"
	MsgBusy            = "Another checkout for this customer is in progress"
	MsgKeyReused       = "Idempotency-Key was already used for a different request"
)

// Locker serializes checkouts per customer. The returned func releases the
// lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Recorder receives one observation per PlaceOrder call. outcome is
// "success", "replayed" or the lower-cased error code.
type Recorder interface {
	ObserveCheckout(outcome string, elapsed time.Duration)
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	StepTimeout time.Duration
	Topic       string
	Metrics     Recorder
	Now         func() time.Time
}

// Service places orders.
type Service struct {
	st          store.Store
	locker      Locker
	products    *catalog.Service
	log         *slog.Logger
	metrics     Recorder
	now         func() time.Time
	stepTimeout time.Duration
	topic       string
}

// NewService builds the workflow. A nil locker falls back to an in-process
// keyed lock, which only serializes within one instance; the database
// advisory lock taken inside the transaction covers the rest. products is
// used for cache invalidation after commit and may be nil.
func NewService(st store.Store, locker Locker, products *catalog.Service, log *slog.Logger, opts Options) *Service {
	if locker == nil {
		locker = lock.NewKeyed()
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		st:          st,
		locker:      locker,
		products:    products,
		log:         log,
		metrics:     opts.Metrics,
		now:         opts.Now,
		stepTimeout: opts.StepTimeout,
		topic:       opts.Topic,
	}
}

// Request is the input to PlaceOrder. IdempotencyKey is optional.
type Request struct {
	CustomerID     int64
	PaymentMethod  models.PaymentMethod
	IdempotencyKey string
}

func (r Request) validate() error {
	if r.CustomerID <= 0 {
		return apperr.New(apperr.InvalidArgument, MsgInvalidCustomer)
	}
	if !r.PaymentMethod.Valid() {
		return apperr.New(apperr.InvalidArgument, MsgInvalidMethod)
	}
	if len(r.IdempotencyKey) > maxIdempotencyKey {
		return apperr.New(apperr.InvalidArgument, MsgKeyTooLong)
	}
	return nil
}

// orderPlaced is the outbox payload.
type orderPlaced struct {
	EventID       string               `json:"event_id"`
	Type          string               `json:"type"`
	OrderID       int64                `json:"order_id"`
	CustomerID    int64                `json:"customer_id"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PaymentID     int64                `json:"payment_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TransactionID int64                `json:"transaction_id"`
	Items         []models.ReceiptItem `json:"items"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// PlaceOrder checks out the customer's whole cart. A repeated call with the
// same IdempotencyKey returns the first call's receipt with Replayed set and
// writes nothing.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (receipt models.Receipt, err error) {
	started := s.now()
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	log := s.log.With("customer_id", req.CustomerID, "payment_method", req.PaymentMethod)

	defer func() {
		s.observe(receipt, err, started)
		if err != nil {
			log.Warn("checkout failed", "step", apperr.StepOf(err), "code", apperr.CodeOf(err), "error", err)
		}
	}()

	if err := req.validate(); err != nil {
		return models.Receipt{}, err
	}

	lockStarted := time.Now()
	unlock, err := s.locker.Lock(ctx, "checkout:customer:"+strconv.FormatInt(req.CustomerID, 10))
	logging.Step(log, StepAcquireLock, lockStarted, err)
	if err != nil {
		return models.Receipt{}, apperr.Wrap(apperr.Conflict, err, MsgBusy).WithStep(StepAcquireLock)
	}
	defer unlock()

	err = s.st.InTx(ctx, func(q store.Querier) error {
		var txErr error
		receipt, txErr = s.run(ctx, q, req, log)
		return txErr
	})
	if err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			err = apperr.Wrap(apperr.Internal, err, "Checkout could not be completed").WithStep("commit")
		}
		return models.Receipt{}, err
	}

	if receipt.Replayed {
		log.Info("checkout replayed", "order_id", receipt.OrderID, "idempotency_key", req.IdempotencyKey)
		return receipt, nil
	}

	if s.products != nil {
		ids := make([]int64, 0, len(receipt.Items))
		for _, it := range receipt.Items {
			ids = append(ids, it.ProductID)
		}
		s.products.InvalidateProducts(ctx, ids...)
	}
	log.Info("order placed",
		"order_id", receipt.OrderID,
		"total_amount", receipt.TotalAmount.StringFixed(2),
		"payment_status", receipt.PaymentStatus,
		"items", len(receipt.Items),
		"duration_ms", s.now().Sub(started).Milliseconds())
	return receipt, nil
}

// run is the transactional body of PlaceOrder.
func (s *Service) run(ctx context.Context, q store.Querier, req Request, log *slog.Logger) (models.Receipt, error) {
	books := ledger.NewService(q, log).WithClock(s.now)
	stock := catalog.NewService(q, nil, log)

	err := s.step(ctx, log, StepLockCustomer, func(ctx context.Context) error {
		return q.LockCustomer(ctx, req.CustomerID)
	})
	if err != nil {
		return models.Receipt{}, err
	}

	if req.IdempotencyKey != "" {
		var prior models.CheckoutRequest
		var found bool
		err := s.step(ctx, log, StepIdempotencyLookup, func(ctx context.Context) error {
			r, err := q.GetCheckoutRequest(ctx, req.IdempotencyKey)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if r.CustomerID != req.CustomerID {
				return apperr.New(apperr.Conflict, MsgKeyReused)
			}
			prior, found = r, true
			return nil
		})
		if err != nil {
			return models.Receipt{}, err
		}
		if found {
			prior.Receipt.Replayed = true
			return prior.Receipt, nil
		}
	}

	var items []models.CartItem
	err = s.step(ctx, log, StepSnapshotCart, func(ctx context.Context) error {
		var err error
		items, err = q.ListCartItems(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.New(apperr.InvalidState, MsgEmptyCart)
		}
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}

	total := Total(items)
	now := s.now()
	receipt := models.Receipt{
		CustomerID:    req.CustomerID,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: ledger.StatusFor(req.PaymentMethod),
		Items:         receiptItems(items),
		CreatedAt:     now,
	}

	err = s.step(ctx, log, StepCreateOrder, func(ctx context.Context) error {
		id, err := books.CreateOrder(ctx, req.CustomerID, total)
		if err != nil {
			return apperr.Wrap(apperr.OrderCreationFailed, err, "Error creating order")
		}
		receipt.OrderID = id
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}
	log = log.With("order_id", receipt.OrderID)

	err = s.step(ctx, log, StepCreateOrderLines, func(ctx context.Context) error {
		for _, it := range items {
			_, err := books.AddOrderLine(ctx, models.OrderLine{
				OrderID:   receipt.OrderID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price,
			})
			if err != nil {
				return apperr.Wrap(apperr.PartialOrderFailure, err,
					fmt.Sprintf("Error adding order item for product %d", it.ProductID))
			}
		}
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}

	err = s.step(ctx, log, StepReduceStock, func(ctx context.Context) error {
		for _, it := range items {
			err := stock.ReduceStock(ctx, it.ProductID, it.Quantity)
			if apperr.IsInsufficientStock(err) {
				return apperr.Newf(apperr.InsufficientStock,
					"%s Product: %s (requested %d)", catalog.MsgInsufficientStock, it.Name, it.Quantity)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}

	err = s.step(ctx, log, StepRecordPayment, func(ctx context.Context) error {
		id, err := books.RecordPayment(ctx, models.Payment{
			OrderID:     receipt.OrderID,
			Method:      receipt.PaymentMethod,
			Status:      receipt.PaymentStatus,
			Amount:      total,
			PaymentDate: now,
		})
		receipt.PaymentID = id
		return err
	})
	if err != nil {
		return models.Receipt{}, err
	}

	err = s.step(ctx, log, StepRecordTransaction, func(ctx context.Context) error {
		id, err := books.Record(ctx, ledger.Entry{
			OrderID:   receipt.OrderID,
			PaymentID: receipt.PaymentID,
			Type:      models.TransactionPurchase,
			Status:    models.TransactionStatus(receipt.PaymentStatus),
			Amount:    total,
		})
		receipt.TransactionID = id
		return err
	})
	if err != nil {
		return models.Receipt{}, err
	}

	if req.IdempotencyKey != "" {
		err = s.step(ctx, log, StepSaveIdempotency, func(ctx context.Context) error {
			err := q.InsertCheckoutRequest(ctx, models.CheckoutRequest{
				IdempotencyKey: req.IdempotencyKey,
				CustomerID:     req.CustomerID,
				OrderID:        receipt.OrderID,
				Receipt:        receipt,
				CreatedAt:      now,
			})
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Wrap(apperr.Conflict, err, MsgKeyReused)
			}
			return err
		})
		if err != nil {
			return models.Receipt{}, err
		}
	}

	err = s.step(ctx, log, StepEnqueueEvent, func(ctx context.Context) error {
		event := orderPlaced{
			EventID:       uuid.New().String(),
			Type:          EventOrderPlaced,
			OrderID:       receipt.OrderID,
			CustomerID:    receipt.CustomerID,
			TotalAmount:   receipt.TotalAmount,
			PaymentID:     receipt.PaymentID,
			PaymentMethod: receipt.PaymentMethod,
			PaymentStatus: receipt.PaymentStatus,
			TransactionID: receipt.TransactionID,
			Items:         receipt.Items,
			OccurredAt:    now,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return q.InsertOutboxEvent(ctx, models.OutboxEvent{
			EventID:   event.EventID,
			Topic:     s.topic,
			Key:       strconv.FormatInt(receipt.CustomerID, 10),
			Payload:   payload,
			CreatedAt: now,
		})
	})
	if err != nil {
		return models.Receipt{}, err
	}

	err = s.step(ctx, log, StepClearCart, func(ctx context.Context) error {
		_, err := q.ClearCart(ctx, req.CustomerID)
		return err
	})
	if err != nil {
		return models.Receipt{}, err
	}
	return receipt, nil
}

// step runs fn under the step timeout, logs the outcome and tags any error
// with the step name. Untyped errors become Internal.
func (s *Service) step(ctx context.Context, log *slog.Logger, name string, fn func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()

	started := time.Now()
	err := fn(stepCtx)
	if err == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = context.DeadlineExceeded
	}
	logging.Step(log, name, started, err)
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return ae.WithStep(name)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.Internal, err, "Checkout step timed out").WithStep(name)
	default:
		return apperr.Wrap(apperr.Internal, err, "Checkout could not be completed").WithStep(name)
	}
}

func (s *Service) observe(receipt models.Receipt, err error, started time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil:
		outcome = strings.ToLower(string(apperr.CodeOf(err)))
	case receipt.Replayed:
		outcome = "replayed"
	}
	s.metrics.ObserveCheckout(outcome, s.now().Sub(started))
}

// Total is Σ quantity × unit price, rounded to cents.
func Total(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}

func receiptItems(items []models.CartItem) []models.ReceiptItem {
	out := make([]models.ReceiptItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.ReceiptItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Subtotal:  it.Subtotal().Round(2),
		})
	}
	return out
}
