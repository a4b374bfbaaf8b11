package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/storefront-service/pkg/app"
	"gitlab.connectwisedev.com/storefront-service/pkg/config"
	"gitlab.connectwisedev.com/storefront-service/pkg/lambdaproxy"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
)

var (
	storefront *app.App
	proxy      *lambdaproxy.Handler
)

func init() {
	config.LoadEnv() // Load environment variables first

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	storefront, err = app.New(cfg, logging.New("api-gateway"), app.Options{Service: "lambda"})
	if err != nil {
		log.Fatalf("Failed to initialize storefront: %v", err)
	}
	proxy = lambdaproxy.New(storefront.Router())
}

func main() {
	defer storefront.Close()
	lambda.Start(proxy.Handle)
}
