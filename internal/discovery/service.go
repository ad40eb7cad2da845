// Package discovery finds fellow commuters to connect with.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
)

// ResultLimit caps one discovery page.
const ResultLimit = 50

// ProfileSource searches stored profiles.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (profiles.Profile, error)
	Search(ctx context.Context, excludeUserID string, filters profiles.SearchFilters, limit int) ([]profiles.Profile, error)
}

// TripSource reports who is travelling.
type TripSource interface {
	ActiveTrips(ctx context.Context, userIDs []string, line string) (map[string]trips.Trip, error)
	RidersOnLine(ctx context.Context, line, excludeUserID string) ([]string, error)
}

// UserSource resolves users in bulk.
type UserSource interface {
	GetMany(ctx context.Context, ids []string) (map[string]users.User, error)
}

// Filters narrows discovery. Zero values disable a filter.
type Filters struct {
	Organization    string
	SameDestination bool
	Line            string
}

// Match is one discovered commuter.
type Match struct {
	User        *users.User      `json:"user"`
	Profile     profiles.Profile `json:"profile"`
	CurrentTrip *trips.Trip      `json:"current_trip"`
}

// Service answers discovery queries.
type Service struct {
	profiles ProfileSource
	trips    TripSource
	users    UserSource
}

// NewService constructs the discovery service.
func NewService(profileSource ProfileSource, tripSource TripSource, userSource UserSource) (*Service, error) {
	if profileSource == nil || tripSource == nil || userSource == nil {
		return nil, fmt.Errorf("discovery: profile, trip and user sources required")
	}
	return &Service{profiles: profileSource, trips: tripSource, users: userSource}, nil
}

// Discover lists other users' profiles matching filters, each with their user record and
// current active trip.
func (s *Service) Discover(ctx context.Context, userID string, filters Filters) ([]Match, error) {
	search := profiles.SearchFilters{OrganizationName: strings.TrimSpace(filters.Organization)}

	if filters.SameDestination {
		own, err := s.profiles.Get(ctx, userID)
		switch {
		case errors.Is(err, serviceerr.ErrNotFound):
		case err != nil:
			return nil, err
		case own.WorkStation != nil && *own.WorkStation != "":
			search.WorkStation = *own.WorkStation
		}
	}

	if line := strings.TrimSpace(filters.Line); line != "" {
		riders, err := s.trips.RidersOnLine(ctx, line, userID)
		if err != nil {
			return nil, err
		}
		if len(riders) == 0 {
			return []Match{}, nil
		}
		search.UserIDs = riders
	}

	found, err := s.profiles.Search(ctx, userID, search, ResultLimit)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(found))
	if len(found) == 0 {
		return matches, nil
	}

	userIDs := make([]string, 0, len(found))
	for _, profile := range found {
		userIDs = append(userIDs, profile.UserID)
	}
	knownUsers, err := s.users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	activeTrips, err := s.trips.ActiveTrips(ctx, userIDs, "")
	if err != nil {
		return nil, err
	}

	for _, profile := range found {
		match := Match{Profile: profile}
		if user, ok := knownUsers[profile.UserID]; ok {
			match.User = &user
		}
		if trip, ok := activeTrips[profile.UserID]; ok {
			match.CurrentTrip = &trip
		}
		matches = append(matches, match)
	}
	return matches, nil
}
