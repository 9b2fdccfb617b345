// Package db wraps the PostGIS-backed persistence layer for aegis-sim:
// platform and installation reference data, active-missile snapshots, and
// terminal outcomes, as described in the data model section of the
// specification. Connection handling follows the teacher's retry-with-
// backoff idiom from pkg/config's database settings, using pgx/v5's
// native pool instead of database/sql.
package db

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  logger.Logger
}

// Connect opens a connection pool against cfg.Database.DSN, retrying with
// backoff up to MaxConnRetries times via go-retry, mirroring the teacher's
// patient startup posture toward external dependencies.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.New()
	}

	backoff := retry.WithMaxRetries(uint64(cfg.MaxConnRetries-1), retry.NewConstant(cfg.RetryBackoff()))

	var pool *pgxpool.Pool
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		poolCfg, parseErr := pgxpool.ParseConfig(cfg.DSN)
		if parseErr != nil {
			return fmt.Errorf("parsing database dsn: %w", parseErr)
		}

		p, connErr := pgxpool.NewWithConfig(ctx, poolCfg)
		if connErr == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			connErr = p.Ping(pingCtx)
			cancel()
			if connErr == nil {
				pool = p
				return nil
			}
			p.Close()
		}

		log.Warnf("database connection attempt %d/%d failed: %v", attempt, cfg.MaxConnRetries, connErr)
		return retry.RetryableError(connErr)
	})

	if err != nil {
		return nil, fmt.Errorf("connecting to database after %d attempts: %w", attempt, err)
	}

	log.Info("database connection established")
	return &DB{Pool: pool, log: log}, nil
}

// Migrate applies all embedded goose migrations.
func (d *DB) Migrate(dsn string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	d.log.Info("database migrations applied")
	return nil
}

// Close releases the pool.
func (d *DB) Close() {
	d.Pool.Close()
}
