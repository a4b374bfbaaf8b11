package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"gitlab.connectwisedev.com/storefront-service/pkg/config"
)

// DBClient holds the PostgreSQL database connection
type DBClient struct {
	db *sql.DB
}

// NewPostgresClient opens a pool capped at cfg.DBMaxConns and pings it.
func NewPostgresClient(cfg config.Config) (*DBClient, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Every checkout holds one connection for its whole transaction, so the
	// cap bounds concurrent checkouts as well.
	db.SetMaxOpenConns(cfg.DBMaxConns)
	db.SetMaxIdleConns(cfg.DBMaxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL!")
	return &DBClient{db: db}, nil
}

// Close closes the database connection
func (c *DBClient) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	log.Println("PostgreSQL connection closed.")
	return err
}

// GetDB returns the underlying *sql.DB instance
func (c *DBClient) GetDB() *sql.DB {
	return c.db
}
