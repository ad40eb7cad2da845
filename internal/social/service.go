package social

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
	"gorm.io/gorm/clause"
)

const (
	opRequest      = "social.request_connection"
	opUpdateStatus = "social.update_status"
	opListAccepted = "social.list_connections"
	opListPending  = "social.list_pending"
	opSendWave     = "social.send_wave"
	opListWaves    = "social.list_waves"

	// ConnectionListLimit caps connection listings.
	ConnectionListLimit = 100
	// WaveListLimit caps the incoming wave listing.
	WaveListLimit = 50
)

// ServiceConfig describes the dependencies required for the social graph.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service stores connections and waves.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	ids    ids.Provider
	logger *zap.Logger
}

// NewService constructs the social graph service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("social: database connection required")
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

// RequestConnection records a pending request from requesterID to targetID. created is false
// when a connection between the two already exists in either direction.
func (s *Service) RequestConnection(ctx context.Context, requesterID, targetID string) (connection Connection, created bool, err error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return Connection{}, false, serviceerr.New(opRequest, "missing_target", serviceerr.ErrInvalidInput, nil)
	}
	if targetID == requesterID {
		return Connection{}, false, serviceerr.New(opRequest, "self_connection", serviceerr.ErrInvalidInput, nil)
	}

	connectionID, err := s.ids.NewID()
	if err != nil {
		s.logError(opRequest, "id_generation_failed", err, zap.String("user_id", requesterID))
		return Connection{}, false, serviceerr.New(opRequest, "id_generation_failed", serviceerr.ErrInternal, err)
	}
	candidate := Connection{
		ID:              connectionID,
		UserID:          requesterID,
		ConnectedUserID: targetID,
		PairKey:         pairKey(requesterID, targetID),
		Status:          StatusPending,
		CreatedAt:       s.now().UTC(),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(&candidate)
	if result.Error != nil {
		s.logError(opRequest, "insert_failed", result.Error, zap.String("user_id", requesterID), zap.String("target_id", targetID))
		return Connection{}, false, serviceerr.New(opRequest, "insert_failed", serviceerr.ErrInternal, result.Error)
	}
	if result.RowsAffected == 1 {
		return candidate, true, nil
	}

	var existing Connection
	if err := s.db.WithContext(ctx).Where("pair_key = ?", candidate.PairKey).Take(&existing).Error; err != nil {
		s.logError(opRequest, "reload_failed", err, zap.String("pair_key", candidate.PairKey))
		return Connection{}, false, serviceerr.New(opRequest, "reload_failed", serviceerr.ErrInternal, err)
	}
	return existing, false, nil
}

// UpdateStatus sets the status of a connection the caller participates in. Connections the
// caller is not part of are reported as not found.
func (s *Service) UpdateStatus(ctx context.Context, connectionID, callerID string, status ConnectionStatus) (Connection, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Connection{}, serviceerr.New(opUpdateStatus, "invalid_status", serviceerr.ErrInvalidInput, err)
	}

	var connection Connection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND (user_id = ? OR connected_user_id = ?)", connectionID, callerID, callerID).
			Take(&connection).Error
		if err != nil {
			return err
		}
		if connection.Status == status {
			return nil
		}
		if err := tx.Model(&Connection{}).Where("id = ?", connectionID).Update("status", status).Error; err != nil {
			return err
		}
		connection.Status = status
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Connection{}, serviceerr.New(opUpdateStatus, "connection_not_found", serviceerr.ErrNotFound, err)
	}
	if err != nil {
		s.logError(opUpdateStatus, "write_failed", err, zap.String("connection_id", connectionID))
		return Connection{}, serviceerr.New(opUpdateStatus, "write_failed", serviceerr.ErrInternal, err)
	}
	return connection, nil
}

// ListAccepted returns the accepted connections in which userID is either party.
func (s *Service) ListAccepted(ctx context.Context, userID string) ([]Connection, error) {
	connections := []Connection{}
	err := s.db.WithContext(ctx).
		Where("status = ? AND (user_id = ? OR connected_user_id = ?)", StatusAccepted, userID, userID).
		Order("created_at DESC").
		Limit(ConnectionListLimit).
		Find(&connections).Error
	if err != nil {
		s.logError(opListAccepted, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opListAccepted, "query_failed", serviceerr.ErrInternal, err)
	}
	return connections, nil
}

// ListPendingIncoming returns pending requests addressed to userID.
func (s *Service) ListPendingIncoming(ctx context.Context, userID string) ([]Connection, error) {
	connections := []Connection{}
	err := s.db.WithContext(ctx).
		Where("status = ? AND connected_user_id = ?", StatusPending, userID).
		Order("created_at DESC").
		Limit(ConnectionListLimit).
		Find(&connections).Error
	if err != nil {
		s.logError(opListPending, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opListPending, "query_failed", serviceerr.ErrInternal, err)
	}
	return connections, nil
}

// SendWave records a wave from fromUserID to toUserID.
func (s *Service) SendWave(ctx context.Context, fromUserID, toUserID string) (Wave, error) {
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return Wave{}, serviceerr.New(opSendWave, "missing_target", serviceerr.ErrInvalidInput, nil)
	}
	waveID, err := s.ids.NewID()
	if err != nil {
		s.logError(opSendWave, "id_generation_failed", err, zap.String("user_id", fromUserID))
		return Wave{}, serviceerr.New(opSendWave, "id_generation_failed", serviceerr.ErrInternal, err)
	}
	wave := Wave{
		ID:         waveID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Timestamp:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&wave).Error; err != nil {
		s.logError(opSendWave, "insert_failed", err, zap.String("user_id", fromUserID), zap.String("target_id", toUserID))
		return Wave{}, serviceerr.New(opSendWave, "insert_failed", serviceerr.ErrInternal, err)
	}
	return wave, nil
}

// ListIncomingWaves returns the most recent waves received by userID, newest first.
func (s *Service) ListIncomingWaves(ctx context.Context, userID string) ([]Wave, error) {
	waves := []Wave{}
	err := s.db.WithContext(ctx).
		Where("to_user_id = ?", userID).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(WaveListLimit).
		Find(&waves).Error
	if err != nil {
		s.logError(opListWaves, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opListWaves, "query_failed", serviceerr.ErrInternal, err)
	}
	return waves, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("social service error", append(attrs, fields...)...)
}
