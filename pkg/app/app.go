// Package app assembles the storefront from a Config: storage, the optional
// Redis cache and lock, the services and the HTTP router. Every binary
// starts here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gitlab.connectwisedev.com/storefront-service/pkg/api"
	"gitlab.connectwisedev.com/storefront-service/pkg/cache"
	"gitlab.connectwisedev.com/storefront-service/pkg/cart"
	"gitlab.connectwisedev.com/storefront-service/pkg/catalog"
	"gitlab.connectwisedev.com/storefront-service/pkg/checkout"
	"gitlab.connectwisedev.com/storefront-service/pkg/config"
	"gitlab.connectwisedev.com/storefront-service/pkg/database"
	"gitlab.connectwisedev.com/storefront-service/pkg/ledger"
	"gitlab.connectwisedev.com/storefront-service/pkg/metrics"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
	"gitlab.connectwisedev.com/storefront-service/pkg/store/memstore"
)

// App holds the wired services of one process.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Store    store.Store
	DB       *database.DBClient // nil with the memory driver
	Redis    *cache.RedisClient // nil without REDIS_ADDR
	Catalog  *catalog.Service
	Cart     *cart.Service
	Ledger   *ledger.Service
	Checkout *checkout.Service
	Metrics  *metrics.ServerMetrics
}

// Options override parts of the wiring.
type Options struct {
	// Service labels metrics; defaults to "api".
	Service string
	// Store replaces the store selected by cfg.StorageDriver.
	Store store.Store
}

// New connects to the configured backends and builds the services. A Redis
// connection failure is logged and the cache disabled; a database failure is
// returned.
func New(cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	if opts.Service == "" {
		opts.Service = "api"
	}
	a := &App{Config: cfg, Log: log, Store: opts.Store}

	if a.Store == nil {
		switch cfg.StorageDriver {
		case config.DriverMemory:
			log.Warn("using in-memory storage; data is lost on exit")
			a.Store = memstore.New()
		default:
			db, err := database.NewPostgresClient(cfg)
			if err != nil {
				return nil, err
			}
			a.DB = db
			a.Store = database.NewStore(db)
		}
	}

	var (
		productCache catalog.ProductCache
		locker       checkout.Locker
	)
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, product cache disabled", "error", err)
		} else {
			a.Redis = rc
			productCache = cache.NewProductCache(rc)
			locker = cache.NewLocker(rc, cfg.LockTTL)
		}
	}

	a.Metrics = metrics.NewServerMetrics(opts.Service)
	a.Catalog = catalog.NewService(a.Store, productCache, log)
	a.Cart = cart.NewService(a.Store, a.Store, log)
	a.Ledger = ledger.NewService(a.Store, log)
	a.Checkout = checkout.NewService(a.Store, locker, a.Catalog, log, checkout.Options{
		StepTimeout: cfg.StepTimeout,
		Topic:       cfg.KafkaTopic,
		Metrics:     a.Metrics,
	})
	return a, nil
}

// Migrate applies the schema. It is a no-op for the memory driver.
func (a *App) Migrate(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	if err := a.DB.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Catalog:        a.Catalog,
		Cart:           a.Cart,
		Ledger:         a.Ledger,
		Checkout:       a.Checkout,
		Metrics:        a.Metrics,
		Log:            a.Log,
		JWTSecret:      []byte(a.Config.JWTSecret),
		RequestTimeout: a.Config.RequestTimeout,
		RateRPS:        a.Config.RateRPS,
		RateBurst:      a.Config.RateBurst,
	})
}

// Close releases the store and the Redis connection.
func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
