package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
	"gitlab.connectwisedev.com/storefront-service/pkg/store/memstore"
)

type fakeCache struct {
	mu          sync.Mutex
	products    []models.Product
	gen         int64
	gate        chan struct{}
	populated   chan bool
	invalidated []int64
	readErr     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{populated: make(chan bool, 1)}
}

func (c *fakeCache) Products(ctx context.Context) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	if c.products == nil {
		return nil, errors.New("miss")
	}
	return c.products, nil
}

func (c *fakeCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

// Populate waits on gate when set, then stores only if gen is current.
func (c *fakeCache) Populate(ctx context.Context, gen int64, products []models.Product) (bool, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	stored := gen == c.gen
	if stored {
		c.products = products
	}
	c.mu.Unlock()
	c.populated <- stored
	return stored, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ids...)
	c.products = nil
	c.gen++
	return nil
}

func seed(t *testing.T) (*memstore.Store, models.Product) {
	t.Helper()
	st := memstore.New()
	p := st.AddProduct(models.Product{Name: "Mug", Price: decimal.RequireFromString("100.00"), Quantity: 5})
	return st, p
}

func TestReduceStock(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	cache := newFakeCache()
	svc := NewService(st, cache, logging.Discard())

	require.NoError(t, svc.ReduceStock(ctx, p.ID, 2))
	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, []int64{p.ID}, cache.invalidated)
}

func TestReduceStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	svc := NewService(st, nil, logging.Discard())

	err := svc.ReduceStock(ctx, p.ID, 6)
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))
	assert.Equal(t, MsgInsufficientStock, apperr.Message(err))

	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.Quantity)
}

func TestReduceStockRejectsNonPositive(t *testing.T) {
	st, p := seed(t)
	svc := NewService(st, nil, logging.Discard())
	for _, n := range []int{0, -1, store.MaxQuantity + 1} {
		err := svc.ReduceStock(context.Background(), p.ID, n)
		assert.True(t, apperr.IsInvalidArgument(err))
	}
}

func TestReduceStockUnknownProduct(t *testing.T) {
	st, _ := seed(t)
	svc := NewService(st, nil, logging.Discard())
	err := svc.ReduceStock(context.Background(), 404, 1)
	assert.True(t, apperr.IsInsufficientStock(err))
}

func TestReduceStockConcurrentNeverOversells(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	svc := NewService(st, nil, logging.Discard())

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.ReduceStock(ctx, p.ID, 1) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Quantity)
}

func TestSetStock(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	svc := NewService(st, nil, logging.Discard())

	require.NoError(t, svc.SetStock(ctx, p.ID, 0))
	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Quantity)
	assert.True(t, got.OutOfStock())

	assert.True(t, apperr.IsInvalidArgument(svc.SetStock(ctx, p.ID, -1)))
	assert.True(t, apperr.IsInvalidArgument(svc.SetStock(ctx, p.ID, store.MaxQuantity+1)))
	assert.True(t, apperr.IsNotFound(svc.SetStock(ctx, 404, 3)))
}

func TestListProductsFallsBackAndPopulates(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	cache := newFakeCache()
	svc := NewService(st, cache, logging.Discard())

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	select {
	case stored := <-cache.populated:
		require.True(t, stored)
	case <-time.After(time.Second):
		t.Fatal("cache was not populated")
	}

	// The database change is invisible until the cache is invalidated.
	_, err = st.SetStock(ctx, p.ID, 42)
	require.NoError(t, err)
	cached, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cached[0].Quantity)

	svc.InvalidateProducts(ctx, p.ID)
	fresh, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, fresh[0].Quantity)
}

func TestListProductsDropsRefillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	cache := newFakeCache()
	cache.gate = make(chan struct{})
	svc := NewService(st, cache, logging.Discard())

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 5, products[0].Quantity)

	// The refill still holds the 5-unit listing when the stock sells out.
	require.NoError(t, svc.ReduceStock(ctx, p.ID, 5))
	close(cache.gate)

	select {
	case stored := <-cache.populated:
		assert.False(t, stored, "a refill read before the invalidation must be dropped")
	case <-time.After(time.Second):
		t.Fatal("populate did not finish")
	}

	fresh, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh[0].Quantity)

	select {
	case stored := <-cache.populated:
		require.True(t, stored)
	case <-time.After(time.Second):
		t.Fatal("cache was not repopulated")
	}
	cached, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cached[0].Quantity)
}

func TestGetProductNotFound(t *testing.T) {
	st, _ := seed(t)
	svc := NewService(st, nil, logging.Discard())
	_, err := svc.GetProduct(context.Background(), 404)
	assert.True(t, apperr.IsNotFound(err))
}

func TestImportStock(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	cache := newFakeCache()
	svc := NewService(st, cache, logging.Discard())

	csv := strings.Join([]string{
		"product_id,quantity",
		"1,40",
		"abc,3",
		"404,2",
		"1,-5",
		"1",
	}, "\n")

	res, err := svc.ImportStock(ctx, st, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Skipped, 4)

	rows := map[int]bool{}
	for _, s := range res.Skipped {
		rows[s.Row] = true
	}
	assert.Equal(t, map[int]bool{3: true, 4: true, 5: true, 6: true}, rows)

	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 40, got.Quantity)
	assert.Contains(t, cache.invalidated, p.ID)
}

func TestImportStockReportsEachProductOnce(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	other := st.AddProduct(models.Product{Name: "Tea", Price: decimal.RequireFromString("3.00"), Quantity: 1})
	cache := newFakeCache()
	svc := NewService(st, cache, logging.Discard())

	a, b := strconv.FormatInt(p.ID, 10), strconv.FormatInt(other.ID, 10)
	csv := "product_id,quantity\n" + a + ",10\n" + b + ",4\n" + a + ",12\n"

	res, err := svc.ImportStock(ctx, st, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, []int64{p.ID, other.ID}, res.ProductIDs)
	assert.Equal(t, []int64{p.ID, other.ID}, cache.invalidated)

	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 12, got.Quantity)
}

func TestImportStockRollsBackOnStorageError(t *testing.T) {
	ctx := context.Background()
	st, p := seed(t)
	st.AddProduct(models.Product{Name: "Tea", Quantity: 1})
	svc := NewService(st, nil, logging.Discard())

	st.FailOn("SetStock", errors.New("connection reset"))
	_, err := svc.ImportStock(ctx, st, strings.NewReader("product_id,quantity\n1,9\n2,9\n"))
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.CodeOf(err))

	got, _ := st.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.Quantity)
}

func TestParseStockCSVHeaderOnly(t *testing.T) {
	_, _, err := ParseStockCSV(strings.NewReader("product_id,quantity\n"))
	assert.True(t, apperr.IsInvalidArgument(err))
}
