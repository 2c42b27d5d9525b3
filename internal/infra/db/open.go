// Package db manages the relay's PostgreSQL access: pool construction,
// migrate-on-start schema, and a circuit breaker in front of the pool so a
// refusing database does not get hammered by every delivery.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pkgconfig "catchup-relay/internal/pkg/config"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,               // Maximum number of open connections
		MaxIdleConns:    10,               // Maximum number of idle connections
		ConnMaxLifetime: 1 * time.Hour,    // Maximum lifetime of a connection
		ConnMaxIdleTime: 30 * time.Minute, // Maximum idle time of a connection
	}
}

// Open creates and configures a connection pool for the given DSN and
// verifies it with a ping. Failures are returned to the caller, which
// decides whether to abort.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cfg := loadConnectionConfig()
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connection established successfully")
	return db, nil
}

// loadConnectionConfig reads connection pool configuration from environment
// variables. Invalid values fall back to defaults with warnings.
func loadConnectionConfig() ConnectionConfig {
	defaults := DefaultConnectionConfig()

	positiveInt := func(v int) error {
		if v <= 0 {
			return fmt.Errorf("must be positive, got %d", v)
		}
		return nil
	}

	maxOpen := pkgconfig.LoadEnvInt("DB_MAX_OPEN_CONNS", defaults.MaxOpenConns, positiveInt)
	maxIdle := pkgconfig.LoadEnvInt("DB_MAX_IDLE_CONNS", defaults.MaxIdleConns, positiveInt)
	maxLifetime := pkgconfig.LoadEnvDuration("DB_CONN_MAX_LIFETIME", defaults.ConnMaxLifetime, pkgconfig.ValidatePositiveDuration)
	maxIdleTime := pkgconfig.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", defaults.ConnMaxIdleTime, pkgconfig.ValidatePositiveDuration)

	var warnings []string
	warnings = append(warnings, maxOpen.Warnings...)
	warnings = append(warnings, maxIdle.Warnings...)
	warnings = append(warnings, maxLifetime.Warnings...)
	warnings = append(warnings, maxIdleTime.Warnings...)
	for _, w := range warnings {
		slog.Warn("database pool config fallback", slog.String("warning", w))
	}

	return ConnectionConfig{
		MaxOpenConns:    maxOpen.Value,
		MaxIdleConns:    maxIdle.Value,
		ConnMaxLifetime: maxLifetime.Value,
		ConnMaxIdleTime: maxIdleTime.Value,
	}
}
