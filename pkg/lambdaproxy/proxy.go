// Package lambdaproxy serves an http.Handler behind API Gateway proxy
// integration events.
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// Handler converts proxy events to requests for h.
type Handler struct {
	h http.Handler
}

func New(h http.Handler) *Handler {
	return &Handler{h: h}
}

// Handle is the lambda entrypoint.
func (p *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toRequest(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"message": "Malformed request", "code": "INVALID_ARGUMENT"}`,
		}, nil
	}

	rec := httptest.NewRecorder()
	p.h.ServeHTTP(rec, req)
	return toResponse(rec), nil
}

func toRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode body: %w", err)
		}
		body = decoded
	}

	path := event.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{Path: path, RawQuery: query(event).Encode()}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range event.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range event.MultiValueHeaders {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	req.Host = req.Header.Get("Host")
	return req, nil
}

func query(event events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	for k, v := range event.QueryStringParameters {
		q.Set(k, v)
	}
	for k, vs := range event.MultiValueQueryStringParameters {
		q[k] = append([]string(nil), vs...)
	}
	return q
}

func toResponse(rec *httptest.ResponseRecorder) events.APIGatewayProxyResponse {
	res := rec.Result()
	headers := make(map[string]string, len(res.Header))
	multi := make(map[string][]string, len(res.Header))
	for k, vs := range res.Header {
		headers[k] = strings.Join(vs, ",")
		multi[k] = vs
	}

	out := events.APIGatewayProxyResponse{
		StatusCode:        res.StatusCode,
		Headers:           headers,
		MultiValueHeaders: multi,
	}
	b := rec.Body.Bytes()
	if utf8.Valid(b) {
		out.Body = string(b)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(b)
		out.IsBase64Encoded = true
	}
	return out
}
