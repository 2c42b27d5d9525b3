package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds the configuration for the database circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear success/failure counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// ConsecutiveFailures is the number of consecutive failures that trips the circuit
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns configuration tuned for a local Postgres pool:
// short open window because connection problems usually clear quickly, and a
// consecutive-failure rule because a pool that refuses connections fails
// every statement, not a fraction of them.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker wraps a connection pool so draft reads and writes stop hammering a
// database that is already refusing connections.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
	db *sql.DB
}

// NewBreaker creates a database circuit breaker with the default configuration.
func NewBreaker(db *sql.DB) *Breaker {
	return NewBreakerWithConfig(db, DefaultBreakerConfig())
}

// NewBreakerWithConfig creates a database circuit breaker with a custom
// configuration.
func NewBreakerWithConfig(db *sql.DB, cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        "database",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("database circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(settings),
		db: db,
	}
}

// QueryContext executes a query with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting
// the database.
func (b *Breaker) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.db.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.Rows), nil
}

// ExecContext executes a statement with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting
// the database.
func (b *Breaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryRowContext executes a query that returns at most one row.
// sql.Row defers its error until Scan, so the breaker cannot observe the
// outcome here; the call passes through unprotected.
func (b *Breaker) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, query, args...)
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// IsBreakerOpen reports whether err is a circuit breaker rejection rather
// than a database error.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// DB returns the underlying connection pool for operations that must bypass
// the breaker, such as health pings and migrations.
func (b *Breaker) DB() *sql.DB {
	return b.db
}
