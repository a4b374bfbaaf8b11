package main

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
	"gitlab.connectwisedev.com/storefront-service/pkg/store/memstore"
)

func setup(t *testing.T, read readFile) (*memstore.Store, models.Product, func(context.Context, S3EventWrapper) (catalog.ImportResult, error)) {
	t.Helper()
	st := memstore.New()
	p := st.AddProduct(models.Product{Name: "Tea", Price: decimal.RequireFromString("2.00"), Quantity: 1})
	products := catalog.NewService(st, nil, logging.Discard())
	return st, p, newHandler(products, st, read, logging.Discard())
}

func TestDirectCSVPayload(t *testing.T) {
	st, p, handler := setup(t, nil)

	csv := "product_id,quantity\n" + strconv.FormatInt(p.ID, 10) + ",25\n999,3\n"
	result, err := handler(context.Background(), S3EventWrapper{CSVData: csv})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.Skipped[0].Row)

	got, err := st.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Quantity)
}

func TestS3RecordUsesReader(t *testing.T) {
	var (
		gotBucket, gotKey string
		productID         int64
	)
	read := func(bucket, key string) ([]byte, error) {
		gotBucket, gotKey = bucket, key
		return []byte("product_id,quantity\n" + strconv.FormatInt(productID, 10) + ",9\n"), nil
	}
	st, p, handler := setup(t, read)
	productID = p.ID

	event := S3EventWrapper{Records: []events.S3EventRecord{{
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: "inventory"},
			Object: events.S3Object{Key: "daily.csv"},
		},
	}}}
	result, err := handler(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, "inventory", gotBucket)
	assert.Equal(t, "daily.csv", gotKey)

	got, _ := st.GetProduct(context.Background(), p.ID)
	assert.Equal(t, 9, got.Quantity)
}

func TestReaderFailure(t *testing.T) {
	_, _, handler := setup(t, func(string, string) ([]byte, error) { return nil, errors.New("denied") })
	_, err := handler(context.Background(), S3EventWrapper{Records: []events.S3EventRecord{{}}})
	require.Error(t, err)
}

func TestEmptyPayload(t *testing.T) {
	_, _, handler := setup(t, nil)
	_, err := handler(context.Background(), S3EventWrapper{})
	require.Error(t, err)
}

func TestLocalObjectOutsideLocal(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := localObject("b", "k.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv_data")
}
