package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - no schema
// 1 - initial storefront schema
// 2 - partial index on unsent outbox rows
const currentSchemaVersion = 2

// Migrate creates missing tables and applies incremental migrations.
// It is idempotent.
func (c *DBClient) Migrate(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	// Serialize concurrent migrators (several lambdas cold-starting at once).
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('storefront_schema'))`); err != nil {
		return fmt.Errorf("failed to lock schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	version, err := schemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version < 2 {
		if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (id) WHERE sent_at IS NULL`); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	if version != currentSchemaVersion {
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			return fmt.Errorf("reset schema_version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema_version: %w", err)
		}
	}
	return tx.Commit()
}

func schemaVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var version sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get schema_version: %w", err)
	}
	return int(version.Int64), nil
}
