// Package people joins user records with their profiles for read-time enrichment.
package people

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
)

// UserSource resolves users in bulk.
type UserSource interface {
	GetMany(ctx context.Context, ids []string) (map[string]users.User, error)
}

// ProfileSource resolves profiles in bulk.
type ProfileSource interface {
	GetMany(ctx context.Context, userIDs []string) (map[string]profiles.Profile, error)
}

// Snapshot is the public view of another user. Either side is nil when no record exists.
type Snapshot struct {
	User    *users.User
	Profile *profiles.Profile
}

// Directory batches user and profile lookups.
type Directory struct {
	users    UserSource
	profiles ProfileSource
}

// NewDirectory constructs a Directory.
func NewDirectory(userSource UserSource, profileSource ProfileSource) (*Directory, error) {
	if userSource == nil || profileSource == nil {
		return nil, fmt.Errorf("people: user and profile sources required")
	}
	return &Directory{users: userSource, profiles: profileSource}, nil
}

// Lookup returns a snapshot for every requested id, present or not.
func (d *Directory) Lookup(ctx context.Context, userIDs []string) (map[string]Snapshot, error) {
	unique := dedupe(userIDs)
	snapshots := make(map[string]Snapshot, len(unique))
	if len(unique) == 0 {
		return snapshots, nil
	}

	knownUsers, err := d.users.GetMany(ctx, unique)
	if err != nil {
		return nil, err
	}
	knownProfiles, err := d.profiles.GetMany(ctx, unique)
	if err != nil {
		return nil, err
	}

	for _, id := range unique {
		var snapshot Snapshot
		if user, ok := knownUsers[id]; ok {
			snapshot.User = &user
		}
		if profile, ok := knownProfiles[id]; ok {
			snapshot.Profile = &profile
		}
		snapshots[id] = snapshot
	}
	return snapshots, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
