package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opGet     = "profiles.get"
	opUpsert  = "profiles.upsert"
	opGetMany = "profiles.get_many"
	opSearch  = "profiles.search"
)

// ServiceConfig describes the dependencies required for the profile store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns the one-profile-per-user documents.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("profiles: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// Get returns the profile of userID, or a not-found error when none was saved yet.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, serviceerr.New(opGet, "profile_not_found", serviceerr.ErrNotFound, err)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("user_id", userID))
		return Profile{}, serviceerr.New(opGet, "query_failed", serviceerr.ErrInternal, err)
	}
	return profile, nil
}

// Upsert merges update into the caller's profile, creating it on first save. Fields absent from
// the update keep their stored values; updated_at is refreshed on every call.
func (s *Service) Upsert(ctx context.Context, userID string, update Update) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, serviceerr.New(opUpsert, "missing_user_id", serviceerr.ErrInvalidInput, nil)
	}
	now := s.now().UTC()

	var stored Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := Profile{
			UserID:          userID,
			CommuteTimes:    datatypes.JSONMap{},
			TravelDays:      datatypes.NewJSONSlice([]string{}),
			Interests:       datatypes.NewJSONSlice([]string{}),
			PrivacySettings: datatypes.JSONMap{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
			Create(&base).Error; err != nil {
			return err
		}

		columns := update.columns()
		columns["updated_at"] = now
		if err := tx.Model(&Profile{}).Where("user_id = ?", userID).Updates(columns).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Take(&stored).Error
	})
	if err != nil {
		s.logError(opUpsert, "write_failed", err, zap.String("user_id", userID), zap.Strings("fields", update.Fields()))
		return Profile{}, serviceerr.New(opUpsert, "write_failed", serviceerr.ErrInternal, err)
	}
	return stored, nil
}

// GetMany returns the saved profiles among userIDs keyed by user id.
func (s *Service) GetMany(ctx context.Context, userIDs []string) (map[string]Profile, error) {
	found := make(map[string]Profile, len(userIDs))
	if len(userIDs) == 0 {
		return found, nil
	}
	var loaded []Profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&loaded).Error; err != nil {
		s.logError(opGetMany, "query_failed", err, zap.Int("count", len(userIDs)))
		return nil, serviceerr.New(opGetMany, "query_failed", serviceerr.ErrInternal, err)
	}
	for _, profile := range loaded {
		found[profile.UserID] = profile
	}
	return found, nil
}

// Search lists profiles other than excludeUserID matching the given column filters, most
// recently updated first.
func (s *Service) Search(ctx context.Context, excludeUserID string, filters SearchFilters, limit int) ([]Profile, error) {
	query := s.db.WithContext(ctx).Model(&Profile{}).Where("user_id <> ?", excludeUserID)
	if filters.OrganizationName != "" {
		query = query.Where("organization_name = ?", filters.OrganizationName)
	}
	if filters.WorkStation != "" {
		query = query.Where("work_station = ?", filters.WorkStation)
	}
	if len(filters.UserIDs) > 0 {
		query = query.Where("user_id IN ?", filters.UserIDs)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var profiles []Profile
	if err := query.Order("updated_at DESC").Order("user_id").Find(&profiles).Error; err != nil {
		s.logError(opSearch, "query_failed", err, zap.String("user_id", excludeUserID))
		return nil, serviceerr.New(opSearch, "query_failed", serviceerr.ErrInternal, err)
	}
	return profiles, nil
}

// SearchFilters narrows Search. Zero values disable a filter.
type SearchFilters struct {
	OrganizationName string
	WorkStation      string
	UserIDs          []string
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("profiles service error", append(attrs, fields...)...)
}
