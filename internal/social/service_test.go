package social

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type socialFixture struct {
	service *Service
	db      *gorm.DB
	now     time.Time
}

func newSocialFixture(testContext *testing.T) *socialFixture {
	testContext.Helper()
	dsn := fmt.Sprintf("file:social_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Connection{}, &Wave{}); err != nil {
		testContext.Fatalf("failed to migrate social schema: %v", err)
	}
	fixture := &socialFixture{db: db, now: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return fixture.now },
	})
	if err != nil {
		testContext.Fatalf("failed to create service: %v", err)
	}
	fixture.service = service
	return fixture
}

func (f *socialFixture) mustRequest(testContext *testing.T, requester, target string) Connection {
	testContext.Helper()
	connection, created, err := f.service.RequestConnection(context.Background(), requester, target)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	if !created {
		testContext.Fatalf("expected a new connection between %s and %s", requester, target)
	}
	return connection
}

func TestParseStatus(testContext *testing.T) {
	for _, raw := range []string{"pending", "accepted", " Rejected "} {
		if _, err := ParseStatus(raw); err != nil {
			testContext.Fatalf("expected %q to parse: %v", raw, err)
		}
	}
	for _, raw := range []string{"", "blocked", "accept"} {
		if _, err := ParseStatus(raw); err == nil {
			testContext.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestRequestConnectionDeduplicatesEitherDirection(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	first := fixture.mustRequest(testContext, "alice", "bob")
	if first.Status != StatusPending || first.UserID != "alice" {
		testContext.Fatalf("unexpected connection %#v", first)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		existing, created, err := fixture.service.RequestConnection(context.Background(), pair[0], pair[1])
		if err != nil {
			testContext.Fatalf("repeat request failed: %v", err)
		}
		if created {
			testContext.Fatalf("expected %s -> %s to reuse the existing connection", pair[0], pair[1])
		}
		if existing.ID != first.ID {
			testContext.Fatalf("expected existing connection %s, got %s", first.ID, existing.ID)
		}
	}

	var count int64
	if err := fixture.db.Model(&Connection{}).Count(&count).Error; err != nil {
		testContext.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected one connection record, got %d", count)
	}
}

func TestRequestConnectionKeepsSeparatorPairsDistinct(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	first := fixture.mustRequest(testContext, "a|b", "c")
	second := fixture.mustRequest(testContext, "a", "b|c")
	if first.ID == second.ID {
		testContext.Fatalf("expected distinct connections, got %s twice", first.ID)
	}
	if pairKey("a|b", "c") == pairKey("a", "b|c") {
		testContext.Fatalf("expected distinct pair keys")
	}
	if pairKey("alice", "bob") != pairKey("bob", "alice") {
		testContext.Fatalf("expected pair key to ignore order")
	}
}

func TestRekeyPairsRewritesLegacyKeys(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	legacy := Connection{
		ID:              "legacy-1",
		UserID:          "bob",
		ConnectedUserID: "alice",
		PairKey:         "alice|bob",
		Status:          StatusAccepted,
		CreatedAt:       fixture.now,
	}
	if err := fixture.db.Create(&legacy).Error; err != nil {
		testContext.Fatalf("insert failed: %v", err)
	}

	if err := RekeyPairs(fixture.db); err != nil {
		testContext.Fatalf("rekey failed: %v", err)
	}

	existing, created, err := fixture.service.RequestConnection(context.Background(), "alice", "bob")
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	if created || existing.ID != "legacy-1" {
		testContext.Fatalf("expected the rekeyed connection to be found, got %#v created=%v", existing, created)
	}
}

func TestRequestConnectionRejectsSelf(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	_, _, err := fixture.service.RequestConnection(context.Background(), "alice", "alice")
	if !errors.Is(err, serviceerr.ErrInvalidInput) {
		testContext.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpdateStatusParticipantsOnly(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	connection := fixture.mustRequest(testContext, "alice", "bob")

	_, err := fixture.service.UpdateStatus(context.Background(), connection.ID, "mallory", StatusAccepted)
	if !errors.Is(err, serviceerr.ErrNotFound) {
		testContext.Fatalf("expected not found for outsider, got %v", err)
	}
	_, err = fixture.service.UpdateStatus(context.Background(), connection.ID, "bob", ConnectionStatus("blocked"))
	if !errors.Is(err, serviceerr.ErrInvalidInput) {
		testContext.Fatalf("expected invalid status, got %v", err)
	}
	if serviceerr.CodeOf(err) != "social.update_status.invalid_status" {
		testContext.Fatalf("unexpected code %q", serviceerr.CodeOf(err))
	}

	accepted, err := fixture.service.UpdateStatus(context.Background(), connection.ID, "bob", StatusAccepted)
	if err != nil {
		testContext.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != StatusAccepted {
		testContext.Fatalf("expected accepted, got %s", accepted.Status)
	}
}

func TestListAcceptedAndPending(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	withBob := fixture.mustRequest(testContext, "alice", "bob")
	fixture.now = fixture.now.Add(time.Minute)
	withCarol := fixture.mustRequest(testContext, "carol", "alice")
	fixture.now = fixture.now.Add(time.Minute)
	fixture.mustRequest(testContext, "dave", "alice")

	if _, err := fixture.service.UpdateStatus(context.Background(), withBob.ID, "bob", StatusAccepted); err != nil {
		testContext.Fatalf("accept failed: %v", err)
	}
	if _, err := fixture.service.UpdateStatus(context.Background(), withCarol.ID, "alice", StatusAccepted); err != nil {
		testContext.Fatalf("accept failed: %v", err)
	}

	accepted, err := fixture.service.ListAccepted(context.Background(), "alice")
	if err != nil {
		testContext.Fatalf("list failed: %v", err)
	}
	if len(accepted) != 2 {
		testContext.Fatalf("expected two accepted connections, got %d", len(accepted))
	}
	counterparts := map[string]bool{}
	for _, connection := range accepted {
		counterparts[connection.Counterpart("alice")] = true
	}
	if !counterparts["bob"] || !counterparts["carol"] {
		testContext.Fatalf("unexpected counterparts %v", counterparts)
	}

	pending, err := fixture.service.ListPendingIncoming(context.Background(), "alice")
	if err != nil {
		testContext.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].UserID != "dave" {
		testContext.Fatalf("expected dave's pending request, got %#v", pending)
	}

	bobPending, err := fixture.service.ListPendingIncoming(context.Background(), "bob")
	if err != nil {
		testContext.Fatalf("pending failed: %v", err)
	}
	if len(bobPending) != 0 {
		testContext.Fatalf("expected no pending requests for bob, got %d", len(bobPending))
	}
}

func TestWavesNewestFirstAndCapped(testContext *testing.T) {
	fixture := newSocialFixture(testContext)
	service := fixture.service

	for index := 0; index < WaveListLimit+5; index++ {
		fixture.now = fixture.now.Add(time.Second)
		if _, err := service.SendWave(context.Background(), fmt.Sprintf("sender-%02d", index), "alice"); err != nil {
			testContext.Fatalf("wave failed: %v", err)
		}
	}
	if _, err := service.SendWave(context.Background(), "alice", "bob"); err != nil {
		testContext.Fatalf("wave failed: %v", err)
	}

	waves, err := service.ListIncomingWaves(context.Background(), "alice")
	if err != nil {
		testContext.Fatalf("list waves failed: %v", err)
	}
	if len(waves) != WaveListLimit {
		testContext.Fatalf("expected %d waves, got %d", WaveListLimit, len(waves))
	}
	expectedNewest := fmt.Sprintf("sender-%02d", WaveListLimit+4)
	if waves[0].FromUserID != expectedNewest {
		testContext.Fatalf("expected newest wave from %s, got %s", expectedNewest, waves[0].FromUserID)
	}
	if _, err := service.SendWave(context.Background(), "alice", " "); !errors.Is(err, serviceerr.ErrInvalidInput) {
		testContext.Fatalf("expected invalid input for missing target, got %v", err)
	}
}
