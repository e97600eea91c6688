// Package db opens the gorm connection and keeps the schema current.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/models"
)

// ErrNoDatabase is returned by Open when neither a DSN nor a host was configured.
var ErrNoDatabase = errors.New("db: no database configured")

// Retry policy for the initial connection, so the app survives Postgres starting late.
var (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// Options tunes Open.
type Options struct {
	// SQLMigrations runs the embedded golang-migrate files instead of AutoMigrate (postgres only).
	SQLMigrations bool
}

// Open connects using cfg, retrying a few times, then migrates the schema.
func Open(cfg config.DatabaseConfig, opts Options) (*gorm.DB, error) {
	dsn := cfg.ConnString()
	if dsn == "" {
		return nil, ErrNoDatabase
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "":
		dsn = NormalizeDSN(dsn)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	var (
		gdb *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		gdb, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		slog.Warn("database connection failed, retrying", "attempt", i+1, "of", connectAttempts, "error", err)
		time.Sleep(connectDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if err := gdb.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	slog.Info("database connected", "driver", cfg.Driver, "dsn", MaskDSN(dsn))

	if opts.SQLMigrations && cfg.Driver != "sqlite" {
		if err := RunSQLMigrations(ToURLDSN(dsn)); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	if err := checkTables(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// AutoMigrate creates or updates the tables from the gorm models.
func AutoMigrate(gdb *gorm.DB) error {
	for _, m := range []any{&models.User{}, &models.Invoice{}, &models.InvoiceItem{}, &models.Todo{}} {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func checkTables(gdb *gorm.DB) error {
	for _, table := range []string{models.TableUsers, models.TableInvoices, models.TableInvoiceItems, models.TableTodos} {
		if !gdb.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// Ping checks the underlying connection, for health endpoints.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
