package lambdaproxy

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/echo/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Id", chi.URLParam(r, "id"))
		w.Header().Set("X-Query", r.URL.Query().Get("customer_id"))
		w.Header().Set("X-Remote", r.RemoteAddr)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	r.Get("/binary", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0x00})
	})
	return r
}

func TestHandleRoutesEvent(t *testing.T) {
	h := New(echoRouter())
	event := events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodPost,
		Path:                  "/api/echo/42",
		Headers:               map[string]string{"Authorization": "Bearer abc"},
		QueryStringParameters: map[string]string{"customer_id": "7"},
		Body:                  `{"quantity":1}`,
		RequestContext: events.APIGatewayProxyRequestContext{
			Identity: events.APIGatewayRequestIdentity{SourceIP: "203.0.113.9"},
		},
	}

	res, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, `{"quantity":1}`, res.Body)
	assert.False(t, res.IsBase64Encoded)
	assert.Equal(t, "42", res.Headers["X-Id"])
	assert.Equal(t, "7", res.Headers["X-Query"])
	assert.Equal(t, "203.0.113.9:0", res.Headers["X-Remote"])
	assert.Equal(t, "Bearer abc", res.Headers["X-Auth"])
}

func TestHandleDecodesBase64Body(t *testing.T) {
	h := New(echoRouter())
	res, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/echo/1",
		Body:            base64.StdEncoding.EncodeToString([]byte("hello")),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Body)
}

func TestHandleRejectsBadBase64(t *testing.T) {
	h := New(echoRouter())
	res, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/echo/1",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandleEncodesBinaryResponse(t *testing.T) {
	h := New(echoRouter())
	res, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/binary",
	})
	require.NoError(t, err)
	assert.True(t, res.IsBase64Encoded)
	raw, err := base64.StdEncoding.DecodeString(res.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00}, raw)
}

func TestMultiValueQueryWins(t *testing.T) {
	h := New(echoRouter())
	res, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:                      http.MethodPost,
		Path:                            "/api/echo/1",
		QueryStringParameters:           map[string]string{"customer_id": "1"},
		MultiValueQueryStringParameters: map[string][]string{"customer_id": {"9", "10"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "9", res.Headers["X-Query"])
}
