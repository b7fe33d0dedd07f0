// Package store persists users, wallets, transfer records, batch tasks, and
// generation jobs through gorm, one small store type per entity. SQLite is
// the default backend; Postgres is selected by configuration.
package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/custodia-labs/custodia/core"
)

// Open connects to the configured database: a Postgres URL when databaseURL
// is set, the SQLite file at sqlitePath otherwise.
func Open(databaseURL, sqlitePath string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if databaseURL != "" {
		db, err := gorm.Open(postgres.Open(databaseURL), cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		return db, nil
	}
	db, err := gorm.Open(sqlite.Open(sqlitePath), cfg)
	if err != nil {
		return nil, fmt.Errorf("sqlite open failed: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service needs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&core.User{},
		&core.Wallet{},
		&core.TransferRecord{},
		&core.BatchTask{},
		&core.Job{},
	)
}
