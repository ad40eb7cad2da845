package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opEnsure  = "users.ensure"
	opGet     = "users.get"
	opGetMany = "users.get_many"
)

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns user records. Users are never updated after creation, so resolved records are
// cached for the life of the process.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// EnsureUser returns the user for the registration id, creating it when the id has not been
// seen before. Existing records are returned verbatim; profile fields from the provider are not
// synced on repeat logins.
func (s *Service) EnsureUser(ctx context.Context, registration Registration) (User, error) {
	userID := normalize(registration.ID)
	if userID == "" {
		return User{}, serviceerr.New(opEnsure, "missing_user_id", serviceerr.ErrInvalidInput, nil)
	}
	if cached, ok := s.cached(userID); ok {
		return cached, nil
	}

	candidate := User{
		ID:        userID,
		Email:     normalize(registration.Email),
		Name:      normalize(registration.Name),
		CreatedAt: s.now().UTC(),
	}
	if picture := normalize(registration.Picture); picture != "" {
		candidate.Picture = &picture
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		s.logError(opEnsure, "insert_failed", err, zap.String("user_id", userID))
		return User{}, serviceerr.New(opEnsure, "insert_failed", serviceerr.ErrInternal, err)
	}

	var stored User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&stored).Error; err != nil {
		s.logError(opEnsure, "reload_failed", err, zap.String("user_id", userID))
		return User{}, serviceerr.New(opEnsure, "reload_failed", serviceerr.ErrInternal, err)
	}
	s.cache.Store(userID, stored)
	return stored, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	userID = normalize(userID)
	if cached, ok := s.cached(userID); ok {
		return cached, nil
	}
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, serviceerr.New(opGet, "user_not_found", serviceerr.ErrNotFound, err)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("user_id", userID))
		return User{}, serviceerr.New(opGet, "query_failed", serviceerr.ErrInternal, err)
	}
	s.cache.Store(userID, user)
	return user, nil
}

// GetMany returns the known users among ids keyed by id. Unknown ids are absent from the map.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]User, error) {
	found := make(map[string]User, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if cached, ok := s.cached(id); ok {
			found[id] = cached
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	var loaded []User
	if err := s.db.WithContext(ctx).Where("id IN ?", missing).Find(&loaded).Error; err != nil {
		s.logError(opGetMany, "query_failed", err, zap.Int("count", len(missing)))
		return nil, serviceerr.New(opGetMany, "query_failed", serviceerr.ErrInternal, err)
	}
	for _, user := range loaded {
		s.cache.Store(user.ID, user)
		found[user.ID] = user
	}
	return found, nil
}

func (s *Service) cached(userID string) (User, bool) {
	value, ok := s.cache.Load(userID)
	if !ok {
		return User{}, false
	}
	user, ok := value.(User)
	return user, ok
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("users service error", append(attrs, fields...)...)
}
