package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/storefront-service/pkg/app"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/config"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
)

// newHandler lists products cache-first; the catalog falls back to the
// database and repopulates the cache on a miss.
func newHandler(products *catalog.Service, logger *slog.Logger) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		logger.Debug("received request", "path", request.Path)

		list, err := products.ListProducts(ctx)
		if err != nil {
			logger.Error("failed to list products", "error", err)
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusInternalServerError,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"message": "Failed to retrieve products", "code": "INTERNAL"}`,
			}, nil
		}

		responseBody, err := json.Marshal(list)
		if err != nil {
			logger.Error("failed to marshal products", "error", err)
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusInternalServerError,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"message": "Failed to format response", "code": "INTERNAL"}`,
			}, nil
		}

		headers := map[string]string{
			"Content-Type":                 "application/json",
			"Cache-Control":                "public, max-age=300, must-revalidate",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "GET",
			"Access-Control-Allow-Headers": "Content-Type",
		}
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
			Body:       string(responseBody),
		}, nil
	}
}

func main() {
	config.LoadEnv() // Load environment variables first

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	storefront, err := app.New(cfg, logging.New("get-all-products"), app.Options{Service: "lambda"})
	if err != nil {
		log.Fatalf("Failed to initialize storefront: %v", err)
	}
	defer storefront.Close()

	lambda.Start(newHandler(storefront.Catalog, storefront.Log))
}
