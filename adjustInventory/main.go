package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/storefront-service/pkg/app"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/config"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// S3EventWrapper is either an S3 trigger or a direct CSV payload.
type S3EventWrapper struct {
	Records []events.S3EventRecord `json:"Records,omitempty"`
	CSVData string                 `json:"csv_data,omitempty"` // For local testing
}

// readFile loads the CSV an S3 record points at.
type readFile func(bucket, key string) ([]byte, error)

// localObject reads the object key as a path on disk. Only APP_ENV=local
// supports S3 triggers; deployed functions take csv_data.
func localObject(bucket, key string) ([]byte, error) {
	if os.Getenv("APP_ENV") != "local" {
		return nil, fmt.Errorf("S3 trigger for s3://%s/%s is only supported with APP_ENV=local; send csv_data instead", bucket, key)
	}
	return os.ReadFile(key)
}

// newHandler overwrites stock levels from a "product_id,quantity" CSV.
// The import is all-or-nothing apart from rows the catalog rejects, which
// are reported in the result.
func newHandler(products *catalog.Service, st store.Store, read readFile, logger *slog.Logger) func(context.Context, S3EventWrapper) (catalog.ImportResult, error) {
	return func(ctx context.Context, event S3EventWrapper) (catalog.ImportResult, error) {
		var csvContent []byte
		switch {
		case len(event.Records) > 0:
			s3Record := event.Records[0].S3
			logger.Info("processing S3 event", "bucket", s3Record.Bucket.Name, "key", s3Record.Object.Key)

			var err error
			csvContent, err = read(s3Record.Bucket.Name, s3Record.Object.Key)
			if err != nil {
				return catalog.ImportResult{}, err
			}
		case event.CSVData != "":
			csvContent = []byte(event.CSVData)
		default:
			return catalog.ImportResult{}, fmt.Errorf("no S3 event record or direct CSV data found in the payload")
		}

		result, err := products.ImportStock(ctx, st, bytes.NewReader(csvContent))
		if err != nil {
			return catalog.ImportResult{}, err
		}
		logger.Info("inventory adjusted", "applied", result.Applied, "skipped", len(result.Skipped))
		return result, nil
	}
}

func main() {
	config.LoadEnv() // Load environment variables first

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	storefront, err := app.New(cfg, logging.New("adjust-inventory"), app.Options{Service: "lambda"})
	if err != nil {
		log.Fatalf("Failed to initialize storefront: %v", err)
	}
	defer storefront.Close()

	lambda.Start(newHandler(storefront.Catalog, storefront.Store, localObject, storefront.Log))
}
