package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/metromate/internal/auth"
	"github.com/MarcoPoloResearchLab/metromate/internal/messaging"
	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/social"
	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by the application.
func Models() []interface{} {
	return []interface{}{
		&users.User{},
		&auth.Session{},
		&profiles.Profile{},
		&trips.Trip{},
		&social.Connection{},
		&social.Wave{},
		&messaging.Message{},
		&migrationRecord{},
	}
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
