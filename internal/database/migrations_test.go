package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsClosesDuplicateActiveTrips(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&trips.Trip{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	legacy := []trips.Trip{
		{ID: "older", UserID: "user-1", FromStation: "A", ToStation: "B", Line: "purple", StartTime: start, Active: true},
		{ID: "newer", UserID: "user-1", FromStation: "C", ToStation: "D", Line: "green", StartTime: start.Add(time.Hour), Active: true},
		{ID: "solo", UserID: "user-2", FromStation: "E", ToStation: "F", Line: "yellow", StartTime: start, Active: true},
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert trips: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var active []trips.Trip
	if err := database.Where("active = ?", true).Order("id").Find(&active).Error; err != nil {
		testContext.Fatalf("failed to reload trips: %v", err)
	}
	if len(active) != 2 || active[0].ID != "newer" || active[1].ID != "solo" {
		testContext.Fatalf("expected newer and solo to stay active, got %#v", active)
	}

	var closed trips.Trip
	if err := database.Where("id = ?", "older").Take(&closed).Error; err != nil {
		testContext.Fatalf("failed to reload closed trip: %v", err)
	}
	if closed.EndTime == nil {
		testContext.Fatalf("expected closed trip to get an end time")
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationCloseDuplicateActiveTrips).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	duplicate := trips.Trip{ID: "late", UserID: "user-2", FromStation: "G", ToStation: "H", Line: "purple", StartTime: start, Active: true}
	if err := database.Create(&duplicate).Error; err == nil {
		testContext.Fatalf("expected the single active index to reject a second active trip")
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	database, err := gorm.Open(sqlite.Open(filepath.Join(testContext.TempDir(), "once.db")), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&trips.Trip{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := applyMigrations(database, nil); err != nil {
			testContext.Fatalf("attempt %d failed: %v", attempt, err)
		}
	}
	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		testContext.Fatalf("expected three migration records, got %d", count)
	}
}

func TestOpenSQLiteMigratesEveryModel(testContext *testing.T) {
	database, err := OpenSQLite(filepath.Join(testContext.TempDir(), "app.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, table := range []string{"users", "user_sessions", "user_profiles", "trips", "connections", "waves", "messages", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s", table)
		}
	}
	if !database.Migrator().HasIndex(&trips.Trip{}, trips.SingleActiveIndexName) {
		testContext.Fatalf("expected %s index", trips.SingleActiveIndexName)
	}
}
