package database

import (
	"fmt"

	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/you/walletgate/internal/infrastructure/repositories"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Options selects the SQL backend. Postgres is the production driver;
// sqlite serves local development and integration tests.
type Options struct {
	Driver      string
	DSN         string
	TablePrefix string
	LogLevel    string
}

// Open creates a new database connection with production-ready settings
func Open(opts Options) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: opts.TablePrefix,
		},
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "", "postgres":
		dialector = postgres.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	if opts.Driver == "sqlite" {
		// sqlite allows one writer; serialize through a single connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// AutoMigrate creates the gate tables and the Casbin policy table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(repositories.Models()...); err != nil {
		return fmt.Errorf("failed to migrate gate tables: %w", err)
	}

	// NewAdapterByDB creates casbin_rule if it doesn't exist
	if _, err := gormadapter.NewAdapterByDB(db); err != nil {
		return fmt.Errorf("failed to initialize Casbin GORM adapter: %w", err)
	}

	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
