package trips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/ids"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opStart      = "trips.start"
	opUpdate     = "trips.update"
	opList       = "trips.list"
	opActive     = "trips.active"
	opActiveMany = "trips.active_many"
	opRiders     = "trips.riders_on_line"

	// ListLimit caps the trip history returned to a rider.
	ListLimit = 100
)

// ServiceConfig describes the dependencies required for trip tracking.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service tracks rider journeys and keeps at most one active trip per rider.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	ids    ids.Provider
	logger *zap.Logger
}

// NewService constructs the trip service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("trips: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, ids: idProvider, logger: logger}, nil
}

// StartTrip ends every active trip of the rider and starts a new one at fromStation.
func (s *Service) StartTrip(ctx context.Context, userID, fromStation, toStation, line string) (Trip, error) {
	fromStation = strings.TrimSpace(fromStation)
	toStation = strings.TrimSpace(toStation)
	line = strings.TrimSpace(line)
	if fromStation == "" || toStation == "" || line == "" {
		return Trip{}, serviceerr.New(opStart, "invalid_trip", serviceerr.ErrInvalidInput, nil)
	}

	tripID, err := s.ids.NewID()
	if err != nil {
		s.logError(opStart, "id_generation_failed", err, zap.String("user_id", userID))
		return Trip{}, serviceerr.New(opStart, "id_generation_failed", serviceerr.ErrInternal, err)
	}
	now := s.now().UTC()
	trip := Trip{
		ID:             tripID,
		UserID:         userID,
		FromStation:    fromStation,
		ToStation:      toStation,
		Line:           line,
		CurrentStation: &fromStation,
		StartTime:      now,
		Active:         true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := closeActiveTrips(tx, userID, "", now); err != nil {
			return err
		}
		return tx.Create(&trip).Error
	})
	if err != nil {
		s.logError(opStart, "write_failed", err, zap.String("user_id", userID), zap.String("line", line))
		return Trip{}, serviceerr.New(opStart, "write_failed", serviceerr.ErrInternal, err)
	}
	return trip, nil
}

// UpdateTrip applies patch to a trip owned by userID. Trips owned by someone else are
// reported as not found. Re-activating an ended trip closes the rider's other active trip.
func (s *Service) UpdateTrip(ctx context.Context, tripID, userID string, patch Patch) (Trip, error) {
	now := s.now().UTC()
	var updated Trip
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", tripID, userID).Take(&updated).Error; err != nil {
			return err
		}
		if patch.Empty() {
			return nil
		}

		changes := map[string]interface{}{}
		if patch.CurrentStation != nil {
			if station := strings.TrimSpace(*patch.CurrentStation); station != "" {
				changes["current_station"] = station
			}
		}
		if patch.Active != nil {
			if *patch.Active {
				if !updated.Active {
					if err := closeActiveTrips(tx, userID, tripID, now); err != nil {
						return err
					}
					changes["active"] = true
					changes["end_time"] = nil
				}
			} else {
				changes["active"] = false
				changes["end_time"] = now
			}
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&Trip{}).Where("id = ?", tripID).Updates(changes).Error; err != nil {
			return err
		}
		var reloaded Trip
		if err := tx.Where("id = ?", tripID).Take(&reloaded).Error; err != nil {
			return err
		}
		updated = reloaded
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Trip{}, serviceerr.New(opUpdate, "trip_not_found", serviceerr.ErrNotFound, err)
	}
	if err != nil {
		s.logError(opUpdate, "write_failed", err, zap.String("trip_id", tripID), zap.String("user_id", userID))
		return Trip{}, serviceerr.New(opUpdate, "write_failed", serviceerr.ErrInternal, err)
	}
	return updated, nil
}

// ListTrips returns the rider's trips, newest first.
func (s *Service) ListTrips(ctx context.Context, userID string) ([]Trip, error) {
	trips := []Trip{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Order("id DESC").
		Limit(ListLimit).
		Find(&trips).Error
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opList, "query_failed", serviceerr.ErrInternal, err)
	}
	return trips, nil
}

// ActiveTrip returns the rider's active trip; ok is false when the rider is not travelling.
func (s *Service) ActiveTrip(ctx context.Context, userID string) (trip Trip, ok bool, err error) {
	err = s.db.WithContext(ctx).Where("user_id = ? AND active = ?", userID, true).Take(&trip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Trip{}, false, nil
	}
	if err != nil {
		s.logError(opActive, "query_failed", err, zap.String("user_id", userID))
		return Trip{}, false, serviceerr.New(opActive, "query_failed", serviceerr.ErrInternal, err)
	}
	return trip, true, nil
}

// ActiveTrips returns the active trips of the given riders keyed by user id. A non-empty line
// restricts the result to trips on that line.
func (s *Service) ActiveTrips(ctx context.Context, userIDs []string, line string) (map[string]Trip, error) {
	found := make(map[string]Trip, len(userIDs))
	if len(userIDs) == 0 {
		return found, nil
	}
	query := s.db.WithContext(ctx).Where("active = ? AND user_id IN ?", true, userIDs)
	if line != "" {
		query = query.Where("line = ?", line)
	}
	var active []Trip
	if err := query.Find(&active).Error; err != nil {
		s.logError(opActiveMany, "query_failed", err, zap.Int("count", len(userIDs)))
		return nil, serviceerr.New(opActiveMany, "query_failed", serviceerr.ErrInternal, err)
	}
	for _, trip := range active {
		found[trip.UserID] = trip
	}
	return found, nil
}

// RidersOnLine lists the users other than excludeUserID with an active trip on line.
func (s *Service) RidersOnLine(ctx context.Context, line, excludeUserID string) ([]string, error) {
	userIDs := []string{}
	err := s.db.WithContext(ctx).Model(&Trip{}).
		Where("active = ? AND line = ? AND user_id <> ?", true, line, excludeUserID).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		s.logError(opRiders, "query_failed", err, zap.String("line", line))
		return nil, serviceerr.New(opRiders, "query_failed", serviceerr.ErrInternal, err)
	}
	return userIDs, nil
}

// closeActiveTrips ends the rider's active trips other than keepTripID.
func closeActiveTrips(tx *gorm.DB, userID, keepTripID string, now time.Time) error {
	query := tx.Model(&Trip{}).Where("user_id = ? AND active = ?", userID, true)
	if keepTripID != "" {
		query = query.Where("id <> ?", keepTripID)
	}
	return query.Updates(map[string]interface{}{"active": false, "end_time": now}).Error
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("trips service error", append(attrs, fields...)...)
}
