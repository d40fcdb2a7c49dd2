package database

import (
	"fmt"
	"strings"

	"trade-journal-go/internal/config"
	"trade-journal-go/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the journal database and makes sure the trades table exists.
func NewDatabase(cfg config.Database) (*gorm.DB, error) {
	dialector, isSQLite := dialectorFor(cfg.DSN)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite {
		// SQLite allows a single writer, and every ":memory:" connection is a
		// separate database, so the pool is pinned to one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the trades table when it is missing. Existing rows are never touched.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Trade{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dialectorFor picks the gorm driver from the connection string.
// postgres:// and postgresql:// URLs go to PostgreSQL; sqlite:/// URLs and bare
// paths go to SQLite.
func dialectorFor(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), false
	default:
		return sqlite.Open(SQLitePath(dsn)), true
	}
}

// SQLitePath converts a SQLAlchemy-style sqlite URL into a file path the driver accepts.
//
//	sqlite:///./trades.db   -> ./trades.db
//	sqlite:////var/trades.db -> /var/trades.db
//	sqlite://               -> :memory:
func SQLitePath(dsn string) string {
	rest, ok := strings.CutPrefix(dsn, "sqlite://")
	if !ok {
		if dsn == "" {
			return "trades.db"
		}
		return dsn
	}
	if rest == "" {
		return ":memory:"
	}
	return strings.TrimPrefix(rest, "/")
}
