package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/auth"
	"gitlab.connectwisedev.com/storefront-service/pkg/cart"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/checkout"
	"gitlab.connectwisedev.com/storefront-service/pkg/ledger"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
	"gitlab.connectwisedev.com/storefront-service/pkg/metrics"
	"gitlab.connectwisedev.com/storefront-service/pkg/store/memstore"
)

var testSecret = []byte("api-test-secret")

type testServer struct {
	t       *testing.T
	h       http.Handler
	st      *memstore.Store
	a, b    models.Product
	user    string
	other   string
	staff   string
	admin   string
	metrics *metrics.ServerMetrics
}

func token(t *testing.T, id int64, role string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, auth.Claims{ID: id, Username: role, Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func newTestServer(t *testing.T, tweak ...func(*Deps)) *testServer {
	t.Helper()
	log := logging.Discard()
	st := memstore.New()
	products := catalog.NewService(st, nil, log)
	m := metrics.NewServerMetrics("api_test")
	d := Deps{
		Catalog:   products,
		Cart:      cart.NewService(st, st, log),
		Ledger:    ledger.NewService(st, log),
		Checkout:  checkout.NewService(st, nil, products, log, checkout.Options{Metrics: m}),
		Metrics:   m,
		Log:       log,
		JWTSecret: testSecret,
	}
	for _, fn := range tweak {
		fn(&d)
	}
	return &testServer{
		t:       t,
		h:       NewRouter(d),
		st:      st,
		a:       st.AddProduct(models.Product{Name: "Product A", Price: decimal.RequireFromString("100.00"), Quantity: 10}),
		b:       st.AddProduct(models.Product{Name: "Product B", Price: decimal.RequireFromString("50.00"), Quantity: 10}),
		user:    token(t, 7, auth.RoleUser),
		other:   token(t, 8, auth.RoleUser),
		staff:   token(t, 2, auth.RoleStaff),
		admin:   token(t, 1, auth.RoleAdmin),
		metrics: m,
	}
}

func (ts *testServer) do(method, path, tok string, body any, headers ...string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthNeedsNoToken(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "UNAUTHENTICATED", body.Code)

	rec = ts.do(http.MethodGet, "/api/products", ts.user, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	products := decodeBody[[]models.Product](t, rec)
	assert.Len(t, products, 2)
}

func TestCheckoutOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.b.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodGet, "/api/cart/7", ts.user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.CartItem](t, rec), 2)

	rec = ts.do(http.MethodPost, "/api/checkout", ts.user, map[string]any{"payment_method": "Cash"}, IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decodeBody[models.Receipt](t, rec)
	assert.Equal(t, "250.00", receipt.TotalAmount.StringFixed(2))
	assert.Equal(t, models.PaymentPending, receipt.PaymentStatus)
	assert.Equal(t, int64(7), receipt.CustomerID)

	rec = ts.do(http.MethodPost, "/api/checkout", ts.user, map[string]any{"payment_method": "Cash"}, IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decodeBody[models.Receipt](t, rec)
	assert.True(t, replay.Replayed)
	assert.Equal(t, receipt.OrderID, replay.OrderID)

	rec = ts.do(http.MethodPost, "/api/checkout", ts.user, map[string]any{"payment_method": "Cash"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "INVALID_STATE", body.Code)
	assert.Equal(t, checkout.StepSnapshotCart, body.Step)
}

func TestCheckoutRejectsOtherCustomer(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/checkout", ts.user, map[string]any{"payment_method": "Cash", "customer_id": 8})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/checkout", ts.user, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, checkout.MsgInvalidMethod, body.Message)
	assert.NotEmpty(t, body.Details)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 11})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodPost, "/api/checkout", ts.user, map[string]any{"payment_method": "GCash"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	assert.Equal(t, checkout.StepReduceStock, body.Step)

	rec = ts.do(http.MethodGet, "/api/cart/7", ts.user, nil)
	assert.Len(t, decodeBody[[]models.CartItem](t, rec), 1)
}

func TestCartOwnership(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	cartID := decodeBody[map[string]any](t, rec)["cart_id"]

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/cart/7", ts.other, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/cart/7", ts.staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, "/api/cart/clear/7", ts.other, nil).Code)

	// Another customer's line id is simply not theirs.
	path := "/api/cart/update-quantity/" + jsonNumber(cartID)
	rec = ts.do(http.MethodPut, path, ts.other, map[string]any{"quantity": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, path+"?customer_id=7", ts.staff, map[string]any{"quantity": 5})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPut, path, ts.user, map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartMergeAndIdempotentDeletes(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cart quantity updated successfully", decodeBody[map[string]any](t, rec)["message"])

	items := decodeBody[[]models.CartItem](t, ts.do(http.MethodGet, "/api/cart/7", ts.user, nil))
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	path := "/api/cart/" + jsonNumber(float64(items[0].CartID))
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, path, ts.user, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, path, ts.user, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/cart/clear/7", ts.user, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/cart/clear/7", ts.user, nil).Code)

	rec = ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": 999, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeBody[errorBody](t, rec).Message)
}

func TestCartQuantityUpperBound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": int64(1) << 40})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 2147483647})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodPost, "/api/cart", ts.user, map[string]any{"product_id": ts.a.ID, "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, cart.MsgQuantityTooLarge, decodeBody[errorBody](t, rec).Message)

	items := decodeBody[[]models.CartItem](t, ts.do(http.MethodGet, "/api/cart/7", ts.user, nil))
	require.Len(t, items, 1)
	assert.Equal(t, 2147483647, items[0].Quantity)
}

func TestReduceStockEndpoint(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/products/reduce/" + jsonNumber(float64(ts.a.ID))

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, path, ts.user, map[string]any{"quantity": 1}).Code)

	rec := ts.do(http.MethodPut, path, ts.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, catalog.MsgReduceInvalid, decodeBody[errorBody](t, rec).Message)

	rec = ts.do(http.MethodPut, path, ts.staff, map[string]any{"quantity": 0})
	assert.Equal(t, catalog.MsgReduceInvalid, decodeBody[errorBody](t, rec).Message)

	rec = ts.do(http.MethodPut, path, ts.staff, map[string]any{"quantity": 4})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPut, path, ts.staff, map[string]any{"quantity": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, catalog.MsgInsufficientStock, decodeBody[errorBody](t, rec).Message)

	p := decodeBody[models.Product](t, ts.do(http.MethodGet, "/api/products/"+jsonNumber(float64(ts.a.ID)), ts.user, nil))
	assert.Equal(t, 6, p.Quantity)
}

func TestAdjustStockEndpoint(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/products/adjust/" + jsonNumber(float64(ts.b.ID))

	rec := ts.do(http.MethodPut, path, ts.admin, map[string]any{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, catalog.MsgAdjustInvalid, decodeBody[errorBody](t, rec).Message)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPut, path, ts.admin, map[string]any{"quantity": 0}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/products/adjust/999", ts.admin, map[string]any{"quantity": 3}).Code)
}

func TestLegacyStepEndpoints(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/orders", ts.user, map[string]any{"customer_id": 7, "total_amount": 10}).Code)

	rec := ts.do(http.MethodPost, "/api/orders", ts.staff, map[string]any{"customer_id": 7, "total_amount": 150})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	orderID := decodeBody[map[string]int64](t, rec)["order_id"]

	rec = ts.do(http.MethodPost, "/api/order-items", ts.staff, map[string]any{"order_id": orderID, "product_id": ts.a.ID, "quantity": 1, "price": "100.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/payments", ts.staff, map[string]any{"order_id": orderID, "payment_method": "Cash"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ledger.MsgPaymentFields, decodeBody[errorBody](t, rec).Message)

	rec = ts.do(http.MethodPost, "/api/payments", ts.staff, map[string]any{"order_id": orderID, "payment_method": "Cash", "payment_status": "Pending"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := int64(decodeBody[map[string]any](t, rec)["payment_id"].(float64))

	tx := map[string]any{"order_id": orderID, "payment_id": paymentID, "transaction_type": "Purchase", "status": "Pending", "amount": 150}
	rec = ts.do(http.MethodPost, "/api/transactions", ts.staff, tx)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	txID := int64(decodeBody[map[string]any](t, rec)["transaction_id"].(float64))

	bad := map[string]any{"order_id": orderID, "payment_id": paymentID, "transaction_type": "Gift", "status": "Pending", "amount": 150}
	rec = ts.do(http.MethodPost, "/api/transactions", ts.staff, bad)
	assert.Equal(t, ledger.MsgInvalidType, decodeBody[errorBody](t, rec).Message)

	zero := map[string]any{"order_id": orderID, "payment_id": paymentID, "transaction_type": "Purchase", "status": "Pending", "amount": 0}
	rec = ts.do(http.MethodPost, "/api/transactions", ts.staff, zero)
	assert.Equal(t, ledger.MsgZeroAmount, decodeBody[errorBody](t, rec).Message)

	rec = ts.do(http.MethodPost, "/api/transactions", ts.staff, map[string]any{"order_id": orderID})
	assert.Equal(t, ledger.MsgMissingFields, decodeBody[errorBody](t, rec).Message)

	txPath := "/api/transactions/" + jsonNumber(float64(txID))
	got := decodeBody[models.Transaction](t, ts.do(http.MethodGet, txPath, ts.staff, nil))
	require.NotNil(t, got.PaymentMethod)
	assert.Equal(t, models.PaymentCash, *got.PaymentMethod)

	rec = ts.do(http.MethodPut, txPath, ts.staff, map[string]any{})
	assert.Equal(t, ledger.MsgNoFields, decodeBody[errorBody](t, rec).Message)
	rec = ts.do(http.MethodPut, txPath, ts.staff, map[string]any{"status": "Completed"})
	assert.Equal(t, http.StatusOK, rec.Code)

	byOrder := decodeBody[[]models.Transaction](t, ts.do(http.MethodGet, "/api/transactions/order/"+jsonNumber(float64(orderID)), ts.staff, nil))
	require.Len(t, byOrder, 1)
	assert.Equal(t, models.TransactionCompleted, byOrder[0].Status)

	byType := decodeBody[[]models.Transaction](t, ts.do(http.MethodGet, "/api/transactions/type/Refund", ts.staff, nil))
	assert.Empty(t, byType)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, txPath, ts.staff, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, txPath, ts.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, txPath, ts.admin, nil).Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.RateRPS = 0.001
		d.RateBurst = 1
	})
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/category", ts.user, nil).Code)
	rec := ts.do(http.MethodGet, "/api/category", ts.user, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeBody[errorBody](t, rec).Code)

	// /health is outside the limiter.
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/api/category", ts.user, nil)
	rec := ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_api_test_http_requests_total{handler="GET /api/category",status="200"} 1`)
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
