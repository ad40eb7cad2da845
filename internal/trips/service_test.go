package trips

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/ids"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type tripFixture struct {
	service *Service
	db      *gorm.DB
	now     time.Time
}

func newTripFixture(testContext *testing.T) *tripFixture {
	testContext.Helper()
	dsn := fmt.Sprintf("file:trips_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Trip{}); err != nil {
		testContext.Fatalf("failed to migrate trip schema: %v", err)
	}
	if err := CreateSingleActiveIndex(db); err != nil {
		testContext.Fatalf("failed to create active index: %v", err)
	}
	fixture := &tripFixture{db: db, now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return fixture.now },
		IDProvider: ids.NewSequence("trip-1", "trip-2", "trip-3", "trip-4", "trip-5"),
	})
	if err != nil {
		testContext.Fatalf("failed to create service: %v", err)
	}
	fixture.service = service
	return fixture
}

func (f *tripFixture) countActive(testContext *testing.T, userID string) int64 {
	testContext.Helper()
	var count int64
	if err := f.db.Model(&Trip{}).Where("user_id = ? AND active = ?", userID, true).Count(&count).Error; err != nil {
		testContext.Fatalf("count failed: %v", err)
	}
	return count
}

func boolPointer(value bool) *bool {
	return &value
}

func stringPointer(value string) *string {
	return &value
}

func TestStartTripEndsPreviousActiveTrip(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	ctx := context.Background()

	purple, err := fixture.service.StartTrip(ctx, "rider", "Majestic", "MG Road", "purple")
	if err != nil {
		testContext.Fatalf("start failed: %v", err)
	}
	if purple.CurrentStation == nil || *purple.CurrentStation != "Majestic" || !purple.Active {
		testContext.Fatalf("unexpected new trip %#v", purple)
	}

	fixture.now = fixture.now.Add(20 * time.Minute)
	green, err := fixture.service.StartTrip(ctx, "rider", "Yeshwanthpur", "Jayanagar", "green")
	if err != nil {
		testContext.Fatalf("second start failed: %v", err)
	}

	trips, err := fixture.service.ListTrips(ctx, "rider")
	if err != nil {
		testContext.Fatalf("list failed: %v", err)
	}
	if len(trips) != 2 {
		testContext.Fatalf("expected two trips, got %d", len(trips))
	}
	if trips[0].ID != green.ID || !trips[0].Active {
		testContext.Fatalf("expected the green trip first and active, got %#v", trips[0])
	}
	if trips[1].ID != purple.ID || trips[1].Active {
		testContext.Fatalf("expected the purple trip ended, got %#v", trips[1])
	}
	if trips[1].EndTime == nil || !trips[1].EndTime.Equal(fixture.now) {
		testContext.Fatalf("expected end time %s, got %v", fixture.now, trips[1].EndTime)
	}
	if fixture.countActive(testContext, "rider") != 1 {
		testContext.Fatalf("expected exactly one active trip")
	}

	active, ok, err := fixture.service.ActiveTrip(ctx, "rider")
	if err != nil || !ok || active.ID != green.ID {
		testContext.Fatalf("expected active green trip, got %#v ok=%v err=%v", active, ok, err)
	}
}

func TestStartTripRequiresStationsAndLine(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	_, err := fixture.service.StartTrip(context.Background(), "rider", "Majestic", " ", "purple")
	if !errors.Is(err, serviceerr.ErrInvalidInput) {
		testContext.Fatalf("expected invalid input, got %v", err)
	}
	if serviceerr.CodeOf(err) != "trips.start.invalid_trip" {
		testContext.Fatalf("unexpected code %q", serviceerr.CodeOf(err))
	}
}

func TestSingleActiveIndexRejectsSecondActiveTrip(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	if _, err := fixture.service.StartTrip(context.Background(), "rider", "A", "B", "purple"); err != nil {
		testContext.Fatalf("start failed: %v", err)
	}
	rogue := Trip{
		ID:          "rogue",
		UserID:      "rider",
		FromStation: "C",
		ToStation:   "D",
		Line:        "green",
		StartTime:   fixture.now,
		Active:      true,
	}
	if err := fixture.db.Create(&rogue).Error; err == nil {
		testContext.Fatalf("expected the store to refuse a second active trip")
	}
}

func TestUpdateTripOwnerOnly(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	trip, err := fixture.service.StartTrip(context.Background(), "owner", "A", "B", "purple")
	if err != nil {
		testContext.Fatalf("start failed: %v", err)
	}

	_, err = fixture.service.UpdateTrip(context.Background(), trip.ID, "intruder", Patch{Active: boolPointer(false)})
	if !errors.Is(err, serviceerr.ErrNotFound) {
		testContext.Fatalf("expected not found for non-owner, got %v", err)
	}
	_, err = fixture.service.UpdateTrip(context.Background(), "missing", "owner", Patch{})
	if !errors.Is(err, serviceerr.ErrNotFound) {
		testContext.Fatalf("expected not found for unknown trip, got %v", err)
	}
	if fixture.countActive(testContext, "owner") != 1 {
		testContext.Fatalf("expected the owner's trip to be untouched")
	}
}

func TestUpdateTripStationAndEnd(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	ctx := context.Background()
	trip, err := fixture.service.StartTrip(ctx, "rider", "A", "D", "purple")
	if err != nil {
		testContext.Fatalf("start failed: %v", err)
	}

	moved, err := fixture.service.UpdateTrip(ctx, trip.ID, "rider", Patch{CurrentStation: stringPointer("B")})
	if err != nil {
		testContext.Fatalf("update failed: %v", err)
	}
	if moved.CurrentStation == nil || *moved.CurrentStation != "B" || !moved.Active {
		testContext.Fatalf("unexpected trip after move %#v", moved)
	}

	ignored, err := fixture.service.UpdateTrip(ctx, trip.ID, "rider", Patch{CurrentStation: stringPointer("")})
	if err != nil {
		testContext.Fatalf("empty patch failed: %v", err)
	}
	if *ignored.CurrentStation != "B" {
		testContext.Fatalf("expected empty station to be ignored, got %s", *ignored.CurrentStation)
	}

	fixture.now = fixture.now.Add(30 * time.Minute)
	ended, err := fixture.service.UpdateTrip(ctx, trip.ID, "rider", Patch{Active: boolPointer(false)})
	if err != nil {
		testContext.Fatalf("end failed: %v", err)
	}
	if ended.Active || ended.EndTime == nil || !ended.EndTime.Equal(fixture.now) {
		testContext.Fatalf("unexpected ended trip %#v", ended)
	}
	if _, ok, _ := fixture.service.ActiveTrip(ctx, "rider"); ok {
		testContext.Fatalf("expected no active trip")
	}
}

func TestReactivatingTripClosesTheOtherActiveTrip(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	ctx := context.Background()
	first, err := fixture.service.StartTrip(ctx, "rider", "A", "B", "purple")
	if err != nil {
		testContext.Fatalf("start failed: %v", err)
	}
	fixture.now = fixture.now.Add(time.Minute)
	second, err := fixture.service.StartTrip(ctx, "rider", "C", "D", "green")
	if err != nil {
		testContext.Fatalf("start failed: %v", err)
	}

	fixture.now = fixture.now.Add(time.Minute)
	reactivated, err := fixture.service.UpdateTrip(ctx, first.ID, "rider", Patch{Active: boolPointer(true)})
	if err != nil {
		testContext.Fatalf("reactivate failed: %v", err)
	}
	if !reactivated.Active || reactivated.EndTime != nil {
		testContext.Fatalf("expected reactivated trip without end time, got %#v", reactivated)
	}
	if fixture.countActive(testContext, "rider") != 1 {
		testContext.Fatalf("expected exactly one active trip after reactivation")
	}

	var stored Trip
	if err := fixture.db.Where("id = ?", first.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("reload failed: %v", err)
	}
	if !stored.Active || stored.EndTime != nil {
		testContext.Fatalf("expected stored trip to be active without end time, got %#v", stored)
	}

	var closed Trip
	if err := fixture.db.Where("id = ?", second.ID).Take(&closed).Error; err != nil {
		testContext.Fatalf("reload failed: %v", err)
	}
	if closed.Active || closed.EndTime == nil {
		testContext.Fatalf("expected the second trip to be closed, got %#v", closed)
	}
}

func TestActiveTripsAndRidersOnLine(testContext *testing.T) {
	fixture := newTripFixture(testContext)
	ctx := context.Background()
	for _, start := range []struct{ user, line string }{
		{"rider-a", "purple"},
		{"rider-b", "green"},
		{"rider-c", "purple"},
	} {
		if _, err := fixture.service.StartTrip(ctx, start.user, "X", "Y", start.line); err != nil {
			testContext.Fatalf("start failed: %v", err)
		}
	}

	all, err := fixture.service.ActiveTrips(ctx, []string{"rider-a", "rider-b", "nobody"}, "")
	if err != nil {
		testContext.Fatalf("active trips failed: %v", err)
	}
	if len(all) != 2 || all["rider-b"].Line != "green" {
		testContext.Fatalf("unexpected active trips %#v", all)
	}

	purpleOnly, err := fixture.service.ActiveTrips(ctx, []string{"rider-a", "rider-b"}, "purple")
	if err != nil {
		testContext.Fatalf("active trips failed: %v", err)
	}
	if len(purpleOnly) != 1 {
		testContext.Fatalf("expected one purple rider, got %#v", purpleOnly)
	}

	riders, err := fixture.service.RidersOnLine(ctx, "purple", "rider-a")
	if err != nil {
		testContext.Fatalf("riders failed: %v", err)
	}
	if len(riders) != 1 || riders[0] != "rider-c" {
		testContext.Fatalf("expected rider-c, got %v", riders)
	}
}
