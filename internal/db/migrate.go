package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/aquanet/apiserver/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations. It owns a dedicated
// connection pool because closing a golang-migrate driver closes its *sql.DB.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator connects with cfg and wraps the connection with the
// golang-migrate driver matching cfg.Driver.
func NewMigrator(ctx context.Context, cfg config.DatabaseConfig) (*Migrator, error) {
	const op = "db.NewMigrator"

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		instance database.Driver
		dbName   string
	)
	switch cfg.Driver {
	case DriverPgx:
		instance, err = pgxv5.WithInstance(conn, &pgxv5.Config{})
		dbName = "pgx5"
	default:
		instance, err = postgres.WithInstance(conn, &postgres.Config{})
		dbName = "postgres"
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, instance)
	if err != nil {
		_ = instance.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration. No pending migrations is not an error.
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db.Migrator.Up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations.
func (g *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := g.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db.Migrator.Down: %w", err)
	}
	return nil
}

// Version reports the applied version and whether it is dirty.
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and the migrator's connection pool.
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Migrate runs every pending migration with a short-lived migrator.
func Migrate(ctx context.Context, cfg config.DatabaseConfig) error {
	m, err := NewMigrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
