// Package database opens the MySQL connection and keeps the schema current.
package database

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wb-sppmon/internal/models"
)

// Initialize opens the database, tunes the connection pool and migrates the
// schema.
func Initialize(dsn string, log *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get underlying sql.DB")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Infow("database initialized")
	return db, nil
}

// Migrate brings the schema up to date for every persisted model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Product{},
		&models.Category{},
		&models.Subcategory{},
		&models.PriceSlot{},
		&models.IndexEntry{},
		&models.LedgerEntry{},
		&models.AppState{},
		&models.RunSummary{},
	)
	return errors.Wrap(err, "migrate schema")
}
