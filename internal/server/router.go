package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/auth"
	"github.com/MarcoPoloResearchLab/metromate/internal/discovery"
	"github.com/MarcoPoloResearchLab/metromate/internal/messaging"
	"github.com/MarcoPoloResearchLab/metromate/internal/metrics"
	"github.com/MarcoPoloResearchLab/metromate/internal/people"
	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/social"
	"github.com/MarcoPoloResearchLab/metromate/internal/tracing"
	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "metromate_user_id"
	userContextKey   = "metromate_user"

	defaultSessionCookieName = "session_token"
)

var (
	errMissingSessions  = errors.New("session manager dependency required")
	errMissingProfiles  = errors.New("profile store dependency required")
	errMissingTrips     = errors.New("trip tracker dependency required")
	errMissingSocial    = errors.New("social graph dependency required")
	errMissingMessages  = errors.New("message store dependency required")
	errMissingDiscovery = errors.New("discovery dependency required")
	errMissingPeople    = errors.New("people directory dependency required")
)

// SessionManager creates, resolves and ends sessions.
type SessionManager interface {
	CreateSession(ctx context.Context, externalSessionID string) (auth.SessionGrant, error)
	ResolveSession(ctx context.Context, token string) (users.User, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

// ProfileStore reads and merges profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (profiles.Profile, error)
	Upsert(ctx context.Context, userID string, update profiles.Update) (profiles.Profile, error)
}

// TripTracker manages rider journeys.
type TripTracker interface {
	StartTrip(ctx context.Context, userID, fromStation, toStation, line string) (trips.Trip, error)
	UpdateTrip(ctx context.Context, tripID, userID string, patch trips.Patch) (trips.Trip, error)
	ListTrips(ctx context.Context, userID string) ([]trips.Trip, error)
}

// SocialGraph manages connections and waves.
type SocialGraph interface {
	RequestConnection(ctx context.Context, requesterID, targetID string) (social.Connection, bool, error)
	UpdateStatus(ctx context.Context, connectionID, callerID string, status social.ConnectionStatus) (social.Connection, error)
	ListAccepted(ctx context.Context, userID string) ([]social.Connection, error)
	ListPendingIncoming(ctx context.Context, userID string) ([]social.Connection, error)
	SendWave(ctx context.Context, fromUserID, toUserID string) (social.Wave, error)
	ListIncomingWaves(ctx context.Context, userID string) ([]social.Wave, error)
}

// MessageStore stores direct messages.
type MessageStore interface {
	Send(ctx context.Context, fromUserID, toUserID, content string) (messaging.Message, error)
	ListConversations(ctx context.Context, userID string) ([]messaging.Conversation, error)
	ListThread(ctx context.Context, userID, otherUserID string) ([]messaging.Message, error)
}

// Discoverer finds other commuters.
type Discoverer interface {
	Discover(ctx context.Context, userID string, filters discovery.Filters) ([]discovery.Match, error)
}

// PeopleDirectory resolves user and profile snapshots in bulk.
type PeopleDirectory interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]people.Snapshot, error)
}

// Dependencies wires the HTTP handler. Metrics, TracerProvider and MetricsHandler are optional.
type Dependencies struct {
	Sessions          SessionManager
	Profiles          ProfileStore
	Trips             TripTracker
	Social            SocialGraph
	Messages          MessageStore
	Discovery         Discoverer
	People            PeopleDirectory
	Metrics           *metrics.Collector
	MetricsHandler    http.Handler
	TracerProvider    trace.TracerProvider
	SessionCookieName string
	AllowedOrigins    []string
	RateLimit         RateLimitConfig
	Logger            *zap.Logger
}

// NewHTTPHandler builds the gin router serving the /api surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessions
	case deps.Profiles == nil:
		return nil, errMissingProfiles
	case deps.Trips == nil:
		return nil, errMissingTrips
	case deps.Social == nil:
		return nil, errMissingSocial
	case deps.Messages == nil:
		return nil, errMissingMessages
	case deps.Discovery == nil:
		return nil, errMissingDiscovery
	case deps.People == nil:
		return nil, errMissingPeople
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieName := deps.SessionCookieName
	if cookieName == "" {
		cookieName = defaultSessionCookieName
	}
	var recorder domainRecorder = nopRecorder{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))
	if deps.TracerProvider != nil {
		router.Use(tracing.Middleware(deps.TracerProvider))
	}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(requestLogger(logger))

	handler := &httpHandler{
		sessions:   deps.Sessions,
		profiles:   deps.Profiles,
		trips:      deps.Trips,
		social:     deps.Social,
		messages:   deps.Messages,
		discovery:  deps.Discovery,
		people:     deps.People,
		metrics:    recorder,
		cookieName: cookieName,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := router.Group("/api")
	api.POST("/auth/session", handler.handleCreateSession)
	api.POST("/auth/logout", handler.handleLogout)
	api.GET("/stations", handler.handleStations)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	if limiter := newUserRateLimiter(deps.RateLimit, logger); limiter != nil {
		protected.Use(limiter.middleware)
	}
	protected.GET("/auth/me", handler.handleMe)
	protected.GET("/profile", handler.handleGetOwnProfile)
	protected.POST("/profile", handler.handleUpsertProfile)
	protected.GET("/profile/:user_id", handler.handleGetProfile)
	protected.GET("/discover", handler.handleDiscover)
	protected.GET("/connections", handler.handleListConnections)
	protected.GET("/connections/pending", handler.handleListPendingConnections)
	protected.POST("/connections", handler.handleRequestConnection)
	protected.PUT("/connections/:id", handler.handleUpdateConnection)
	protected.GET("/waves", handler.handleListWaves)
	protected.POST("/waves", handler.handleSendWave)
	protected.GET("/messages", handler.handleListConversations)
	protected.GET("/messages/:other_user_id", handler.handleListThread)
	protected.POST("/messages", handler.handleSendMessage)
	protected.GET("/trips", handler.handleListTrips)
	protected.POST("/trips", handler.handleStartTrip)
	protected.PUT("/trips/:id", handler.handleUpdateTrip)

	return router, nil
}

type httpHandler struct {
	sessions   SessionManager
	profiles   ProfileStore
	trips      TripTracker
	social     SocialGraph
	messages   MessageStore
	discovery  Discoverer
	people     PeopleDirectory
	metrics    domainRecorder
	cookieName string
	logger     *zap.Logger
}

type domainRecorder interface {
	RecordSessionCreated()
	RecordTripStarted(line string)
	RecordMessageSent()
	RecordWaveSent()
	RecordConnectionRequest(created bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordSessionCreated() {}
func (nopRecorder) RecordTripStarted(string) {}
func (nopRecorder) RecordMessageSent() {}
func (nopRecorder) RecordWaveSent() {}
func (nopRecorder) RecordConnectionRequest(bool) {}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) currentUser(c *gin.Context) (users.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return users.User{}, false
	}
	user, ok := value.(users.User)
	return user, ok
}
