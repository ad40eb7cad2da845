package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/ids"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL    = 7 * 24 * time.Hour
	defaultTokenIssuer = "metromate"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
)

// TokenIssuerConfig configures the session token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
	IDProvider    ids.Provider
}

// TokenIssuer mints signed session tokens for identities whose provider did not hand one out.
// Minted tokens are still stored and checked through the session table like any other token.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
	idProvider    ids.Provider
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultTokenIssuer
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
		idProvider:    idProvider,
	}
}

// MintSessionToken produces an HS256 token naming userID as subject. Each token carries a
// fresh jti so two logins never produce the same value.
func (i *TokenIssuer) MintSessionToken(_ context.Context, userID string) (string, error) {
	if len(i.signingSecret) == 0 {
		return "", errMissingSigningSecret
	}
	subject := strings.TrimSpace(userID)
	if subject == "" {
		return "", errMissingSubjectClaim
	}
	tokenID, err := i.idProvider.NewID()
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}

	now := i.clock().UTC()
	claims := jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingSecret)
}
