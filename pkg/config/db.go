package config

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens the configured database and tunes its connection pool.
func NewDB(cfg *Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{TranslateError: true}
	if cfg.Server.Env == "development" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Error)
	}

	retries := cfg.Database.Retries
	if retries < 1 {
		retries = 1
	}

	var db *gorm.DB
	for i := 0; i < retries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			break
		}
		if i < retries-1 {
			fmt.Printf("Failed to connect to database. Retrying in %v...\n", cfg.Database.RetryGap)
			time.Sleep(cfg.Database.RetryGap)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", retries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY on concurrent requests
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

func dialectorFor(cfg *Config) (gorm.Dialector, error) {
	db := cfg.Database
	switch db.Driver {
	case "", "postgres", "postgresql":
		dsn := db.DSN
		if dsn == "" {
			dsn = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode,
			)
		}
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := db.DSN
		if dsn == "" {
			dsn = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				db.User, db.Password, db.Host, db.Port, db.Name,
			)
		}
		return mysql.Open(dsn), nil
	case "sqlite":
		dsn := db.DSN
		if dsn == "" {
			dsn = db.Name + ".db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// TestConnection checks if the database connection is working
func TestConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
