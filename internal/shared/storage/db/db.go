// Package db opens the Postgres pool shared by every repository and runs the
// embedded migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"leaselens-backend/internal/shared/telemetry"
)

// Options controls pool sizing and the connectivity check.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var (
	openDB = sql.Open

	singletonMu sync.Mutex
	singletonDB *sql.DB
)

// IsLambdaRuntime reports whether the process runs as an SQS-triggered Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// DefaultServerOptions sizes the API pool. Uploads hold a connection for the
// chunk transaction and chat turns for the context queries.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultWorkerOptions sizes enrichment workers, which hold at most one
// connection per in-flight message.
func DefaultWorkerOptions() Options {
	return Options{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxIdleTime: time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     3 * time.Second,
	}
}

// DefaultMigrateOptions sizes the one-shot migrate command.
func DefaultMigrateOptions() Options {
	return Options{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     10 * time.Second,
	}
}

// OptionsFromEnv overlays DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME, DB_CONN_MAX_IDLE_TIME and DB_PING_TIMEOUT on defaults.
// Unparseable values are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	overrideEnv("DB_MAX_OPEN_CONNS", strconv.Atoi, &opts.MaxOpenConns)
	overrideEnv("DB_MAX_IDLE_CONNS", strconv.Atoi, &opts.MaxIdleConns)
	overrideEnv("DB_CONN_MAX_LIFETIME", time.ParseDuration, &opts.ConnMaxLifetime)
	overrideEnv("DB_CONN_MAX_IDLE_TIME", time.ParseDuration, &opts.ConnMaxIdleTime)
	overrideEnv("DB_PING_TIMEOUT", time.ParseDuration, &opts.PingTimeout)
	return opts
}

func overrideEnv[T any](key string, parse func(string) (T, error), dst *T) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	val, err := parse(raw)
	if err != nil {
		log.Printf("db: ignoring %s=%q: %v", key, raw, err)
		return
	}
	*dst = val
}

// Connect opens a pool for databaseURL and pings it before returning.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(pool, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(pool, "db.connected")
	return pool, nil
}

// GetSingleton returns the process-wide pool, connecting on first use. Warm
// Lambda invocations reuse it; a failed connect is retried on the next call.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singletonDB != nil {
		return singletonDB, nil
	}
	pool, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	singletonDB = pool
	return pool, nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func applyOptions(pool *sql.DB, opts Options) {
	pool.SetMaxOpenConns(positiveOr(opts.MaxOpenConns, 10))
	pool.SetMaxIdleConns(positiveOr(opts.MaxIdleConns, 5))
	pool.SetConnMaxLifetime(positiveOr(opts.ConnMaxLifetime, time.Hour))
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

func logPoolStats(pool *sql.DB, event string) {
	stats := pool.Stats()
	telemetry.Info(event, map[string]any{
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
		"wait":     stats.WaitCount,
		"max_open": stats.MaxOpenConnections,
	})
}
