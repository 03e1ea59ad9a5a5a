// Package database provides the PostgreSQL-backed implementation of the
// state store, with an optional Redis read-through cache.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		// Latest reconciled state per (symbol, timeframe), replaced wholesale.
		`CREATE TABLE IF NOT EXISTS timeframe_states (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (symbol, timeframe)
		)`,

		// Append-only history of every reconciliation.
		`CREATE TABLE IF NOT EXISTS timeframe_state_history (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			state JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_state_history_symbol_tf
			ON timeframe_state_history(symbol, timeframe, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS consensus_results (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			result JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (symbol)
		)`,

		`CREATE TABLE IF NOT EXISTS consensus_history (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			result JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS trade_plans (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			target_1 DECIMAL(20, 8) NOT NULL,
			target_2 DECIMAL(20, 8),
			win_probability DOUBLE PRECISION NOT NULL,
			position_size_actual DOUBLE PRECISION NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'ANALYZED',
			risk JSONB,
			feedback TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_trade_plans_symbol_status
			ON trade_plans(symbol, status)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("migrations complete")
	return nil
}
