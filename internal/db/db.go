package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aquanet/apiserver/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"

	defaultPingTimeout = 5 * time.Second
)

// Open connects with the configured driver, sizes the pool and pings.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	const op = "db.Open"

	driver, err := driverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetMaxOpenConns(cfg.MaxOpenConns())

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return db, nil
}

func driverName(name string) (string, error) {
	switch name {
	case "", DriverPostgres:
		return DriverPostgres, nil
	case DriverPgx:
		return DriverPgx, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", name)
	}
}
