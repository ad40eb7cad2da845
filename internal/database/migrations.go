package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/social"
	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationCloseDuplicateActiveTrips = "2026-09-14_close_duplicate_active_trips"
	migrationTripsSingleActiveIndex    = "2026-09-14_trips_single_active_index"
	migrationConnectionPairKeys        = "2026-10-18_connections_length_prefixed_pair_keys"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationCloseDuplicateActiveTrips, apply: closeDuplicateActiveTrips},
		{name: migrationTripsSingleActiveIndex, apply: trips.CreateSingleActiveIndex},
		{name: migrationConnectionPairKeys, apply: social.RekeyPairs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// closeDuplicateActiveTrips keeps only the newest active trip of each user active.
func closeDuplicateActiveTrips(db *gorm.DB) error {
	return db.Exec(`UPDATE trips SET active = ?, end_time = ?
WHERE active = ? AND EXISTS (
	SELECT 1 FROM trips AS newer
	WHERE newer.user_id = trips.user_id
		AND newer.active = ?
		AND (newer.start_time > trips.start_time OR (newer.start_time = trips.start_time AND newer.id > trips.id))
)`, false, time.Now().UTC(), true, true).Error
}
