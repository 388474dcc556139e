// Package database opens the stores used by the gradebook: the relational database holding
// rosters, documents and exam dates, the redis evaluation cache and the NATS event bus.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/models"
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Connect opens the database selected by driver ("postgres" or "sqlite"). SQL statements are
// logged through logger; slow ones at warn level.
func Connect(driver, dsn string, logger zerolog.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:  newGormLogger(logger),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql":
		return ConnectPostgres(dsn, cfg)
	case "sqlite", "sqlite3":
		return ConnectSQLite(dsn, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ConnectPostgres opens a pooled PostgreSQL connection.
func ConnectPostgres(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// Migrate creates or updates the gradebook tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Roster{},
		&models.RosterModule{},
		&models.RosterSubject{},
		&models.EvaluationRecord{},
		&models.Document{},
		&models.ExamDate{},
	)
}
