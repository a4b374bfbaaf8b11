package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
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

func TestHandlerListsProducts(t *testing.T) {
	st := memstore.New()
	st.AddProduct(models.Product{Name: "Coffee", Price: decimal.RequireFromString("3.50"), Quantity: 4})
	handler := newHandler(catalog.NewService(st, nil, logging.Discard()), logging.Discard())

	res, err := handler(context.Background(), events.APIGatewayProxyRequest{Path: "/products"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "public, max-age=300, must-revalidate", res.Headers["Cache-Control"])

	var products []models.Product
	require.NoError(t, json.Unmarshal([]byte(res.Body), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Coffee", products[0].Name)
}

func TestHandlerReportsStorageFailure(t *testing.T) {
	st := memstore.New()
	st.FailOn("ListProducts", errors.New("connection reset"))
	handler := newHandler(catalog.NewService(st, nil, logging.Discard()), logging.Discard())

	res, err := handler(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.NotContains(t, res.Body, "connection reset")
}
