package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/identity"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opCreateSession  = "auth.create_session"
	opResolveSession = "auth.resolve_session"
	opLogout         = "auth.logout"

	// DefaultSessionTTL is the lifetime of a session from creation.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var (
	errMissingDatabase  = errors.New("database handle is required")
	errMissingExchanger = errors.New("identity exchanger is required")
	errMissingUsers     = errors.New("user registry is required")
)

// UserRegistry creates and loads users.
type UserRegistry interface {
	EnsureUser(ctx context.Context, registration users.Registration) (users.User, error)
	Get(ctx context.Context, userID string) (users.User, error)
}

// TokenMinter issues a session token when the identity provider does not supply one.
type TokenMinter interface {
	MintSessionToken(ctx context.Context, userID string) (string, error)
}

// SessionServiceConfig describes the dependencies of the session store.
type SessionServiceConfig struct {
	Database  *gorm.DB
	Exchanger identity.Exchanger
	Users     UserRegistry
	Minter    TokenMinter
	TTL       time.Duration
	Clock     func() time.Time
	Logger    *zap.Logger
}

// SessionService creates, resolves and deletes sessions.
type SessionService struct {
	db        *gorm.DB
	exchanger identity.Exchanger
	users     UserRegistry
	minter    TokenMinter
	ttl       time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

// SessionGrant is the outcome of a successful session exchange.
type SessionGrant struct {
	User      users.User
	Token     string
	ExpiresAt time.Time
}

// NewSessionService constructs the session store.
func NewSessionService(cfg SessionServiceConfig) (*SessionService, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("auth: %w", errMissingDatabase)
	}
	if cfg.Exchanger == nil {
		return nil, fmt.Errorf("auth: %w", errMissingExchanger)
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("auth: %w", errMissingUsers)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		db:        cfg.Database,
		exchanger: cfg.Exchanger,
		users:     cfg.Users,
		minter:    cfg.Minter,
		ttl:       ttl,
		clock:     clock,
		logger:    logger,
	}, nil
}

// TTL returns the lifetime given to new sessions.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// CreateSession exchanges the external session id, ensures the user exists and records a new
// session. Earlier sessions of the same user stay valid.
func (s *SessionService) CreateSession(ctx context.Context, externalSessionID string) (SessionGrant, error) {
	if strings.TrimSpace(externalSessionID) == "" {
		return SessionGrant{}, serviceerr.New(opCreateSession, "missing_session_id", serviceerr.ErrInvalidInput, nil)
	}

	verified, err := s.exchanger.Exchange(ctx, externalSessionID)
	if err != nil {
		if errors.Is(err, identity.ErrExchangeRejected) {
			s.logger.Info("identity exchange rejected", zap.Error(err))
			return SessionGrant{}, serviceerr.New(opCreateSession, "exchange_rejected", serviceerr.ErrUpstreamAuth, err)
		}
		s.logError(opCreateSession, "exchange_failed", err)
		return SessionGrant{}, serviceerr.New(opCreateSession, "exchange_failed", serviceerr.ErrUpstreamAuth, err)
	}

	providerToken := strings.TrimSpace(verified.SessionToken)
	if providerToken == "" && s.minter == nil {
		s.logger.Warn("identity provider returned no session token and minting is disabled", zap.String("user_id", verified.ID))
		return SessionGrant{}, serviceerr.New(opCreateSession, "missing_session_token", serviceerr.ErrUpstreamAuth, nil)
	}

	user, err := s.users.EnsureUser(ctx, users.Registration{
		ID:      verified.ID,
		Email:   verified.Email,
		Name:    verified.Name,
		Picture: verified.Picture,
	})
	if err != nil {
		return SessionGrant{}, err
	}

	token := providerToken
	if token == "" {
		token, err = s.minter.MintSessionToken(ctx, user.ID)
		if err != nil {
			s.logError(opCreateSession, "token_mint_failed", err, zap.String("user_id", user.ID))
			return SessionGrant{}, serviceerr.New(opCreateSession, "token_mint_failed", serviceerr.ErrInternal, err)
		}
	}

	now := s.clock().UTC()
	session := Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "expires_at", "created_at"}),
		}).
		Create(&session).Error
	if err != nil {
		s.logError(opCreateSession, "session_insert_failed", err, zap.String("user_id", user.ID))
		return SessionGrant{}, serviceerr.New(opCreateSession, "session_insert_failed", serviceerr.ErrInternal, err)
	}

	s.logger.Info("session created", zap.String("user_id", user.ID), zap.Time("expires_at", session.ExpiresAt))
	return SessionGrant{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// ResolveSession returns the user owning token. Missing, unknown and expired tokens all yield
// serviceerr.ErrUnauthenticated; expired sessions are left in place.
func (s *SessionService) ResolveSession(ctx context.Context, token string) (users.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return users.User{}, serviceerr.New(opResolveSession, "missing_token", serviceerr.ErrUnauthenticated, nil)
	}

	var session Session
	err := s.db.WithContext(ctx).Where("session_token = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, serviceerr.New(opResolveSession, "unknown_token", serviceerr.ErrUnauthenticated, nil)
	}
	if err != nil {
		s.logError(opResolveSession, "query_failed", err)
		return users.User{}, serviceerr.New(opResolveSession, "query_failed", serviceerr.ErrInternal, err)
	}
	if session.Expired(s.clock().UTC()) {
		return users.User{}, serviceerr.New(opResolveSession, "expired_token", serviceerr.ErrUnauthenticated, nil)
	}

	user, err := s.users.Get(ctx, session.UserID)
	if errors.Is(err, serviceerr.ErrNotFound) {
		return users.User{}, serviceerr.New(opResolveSession, "unknown_user", serviceerr.ErrUnauthenticated, err)
	}
	if err != nil {
		return users.User{}, err
	}
	return user, nil
}

// Logout deletes the session matching token. Unknown tokens are not an error.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("session_token = ?", token).Delete(&Session{}).Error; err != nil {
		s.logError(opLogout, "delete_failed", err)
		return serviceerr.New(opLogout, "delete_failed", serviceerr.ErrInternal, err)
	}
	return nil
}

func (s *SessionService) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("auth service error", append(attrs, fields...)...)
}
