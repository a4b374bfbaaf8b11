package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the service configuration read from the environment.
type Config struct {
	AppEnv string
	Port   string

	// StorageDriver is "postgres" (default) or "memory".
	StorageDriver string
	DatabaseURL   string // takes precedence over the DB_* parts
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBMaxConns    int

	// RedisAddr is optional; without it the product cache is disabled and
	// checkout locks are held in-process.
	RedisAddr     string
	RedisPassword string

	JWTSecret string

	StepTimeout    time.Duration
	LockTTL        time.Duration
	RequestTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	RateRPS   float64
	RateBurst int
}

// Load reads Config from the process environment. Call LoadEnv first to
// pick up .env.local in local runs.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		Port:          getenv("PORT", "5000"),
		StorageDriver: strings.ToLower(getenv("STORAGE_DRIVER", DriverPostgres)),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		DBHost:        getenv("DB_HOST", "localhost"),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        getenv("DB_USER", "postgres"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getenv("DB_NAME", "storefront"),
		DBSSLMode:     getenv("DB_SSLMODE", "disable"),
		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		KafkaBrokers:  splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    getenv("KAFKA_TOPIC", "storefront.orders"),
	}

	var err error
	if cfg.DBMaxConns, err = getint("DB_MAX_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.StepTimeout, err = getms("STEP_TIMEOUT_MS", 2500); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = getms("LOCK_TTL_MS", 15000); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = getms("REQUEST_TIMEOUT_MS", 10000); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = getint("RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	rps, err := getint("RATE_RPS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.RateRPS = float64(rps)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields every binary needs.
func (c Config) Validate() error {
	if c.StorageDriver != DriverPostgres && c.StorageDriver != DriverMemory {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBMaxConns <= 0 {
		return errors.New("DB_MAX_CONNS must be positive")
	}
	if c.StepTimeout <= 0 || c.LockTTL <= 0 {
		return errors.New("STEP_TIMEOUT_MS and LOCK_TTL_MS must be positive")
	}
	return nil
}

// PostgresDSN returns DATABASE_URL or a key/value DSN built from the DB_* parts.
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getint(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getms(k string, def int) (time.Duration, error) {
	n, err := getint(k, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
