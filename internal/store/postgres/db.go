// Package postgres provides PostgreSQL-based implementations of the store interfaces.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sensorwatch-go/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sensor_records (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			topic TEXT NOT NULL,
			node_id VARCHAR(255),
			received_at TIMESTAMP WITH TIME ZONE NOT NULL,
			data JSONB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sensor_records_kind ON sensor_records(kind);
		CREATE INDEX IF NOT EXISTS idx_sensor_records_node ON sensor_records(node_id);
		CREATE INDEX IF NOT EXISTS idx_sensor_records_received ON sensor_records(received_at DESC);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
