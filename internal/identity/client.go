// Package identity exchanges externally issued session ids for verified user identities.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// SessionIDHeader carries the external session id to the provider.
	SessionIDHeader = "X-Session-ID"

	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

var (
	// ErrExchangeRejected reports that the provider did not accept the session id.
	ErrExchangeRejected = errors.New("identity: exchange rejected")
	// ErrInvalidClientConfig reports a client constructed without an endpoint.
	ErrInvalidClientConfig = errors.New("identity: invalid client config")

	errMissingSessionID = errors.New("external session id must not be empty")
	errMissingEndpoint  = errors.New("session data url required")
	errIncompleteClaims = errors.New("provider response missing id")
)

// Identity is the verified user data returned by the provider.
type Identity struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Picture      string `json:"picture"`
	SessionToken string `json:"session_token"`
}

// Exchanger resolves an external session id into an Identity.
type Exchanger interface {
	Exchange(ctx context.Context, externalSessionID string) (Identity, error)
}

// ClientConfig configures the HTTP exchanger.
type ClientConfig struct {
	SessionDataURL string
	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         *zap.Logger
}

// Client calls the provider's session-data endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.SessionDataURL)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingEndpoint)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Exchange forwards the external session id and decodes the verified identity. Any non-200
// answer is a rejection; transport failures are returned as-is.
func (c *Client) Exchange(ctx context.Context, externalSessionID string) (Identity, error) {
	sessionID := strings.TrimSpace(externalSessionID)
	if sessionID == "" {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchangeRejected, errMissingSessionID)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return Identity{}, err
	}
	request.Header.Set(SessionIDHeader, sessionID)
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("identity exchange request failed", zap.Error(err))
		return Identity{}, fmt.Errorf("identity: exchange request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBytes))
		c.logger.Info("identity exchange rejected", zap.Int("status", response.StatusCode))
		return Identity{}, fmt.Errorf("%w: status %d", ErrExchangeRejected, response.StatusCode)
	}

	var payload Identity
	if err := json.NewDecoder(io.LimitReader(response.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return Identity{}, fmt.Errorf("%w: decode: %v", ErrExchangeRejected, err)
	}
	payload.ID = strings.TrimSpace(payload.ID)
	if payload.ID == "" {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchangeRejected, errIncompleteClaims)
	}
	return payload, nil
}
