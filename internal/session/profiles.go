package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/prospekt/internal/storage"
)

// DefaultProfileTTL is how long a loaded profile is reused.
const DefaultProfileTTL = 5 * time.Minute

// ProfileStore is the subset of storage.Store the profile cache needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (storage.Profile, error)
	UpsertProfile(ctx context.Context, p storage.Profile) error
}

// Profiles serves user profiles through a per-user TTL cache.
type Profiles struct {
	store ProfileStore
	cache *Cache[string, storage.Profile]
}

func NewProfiles(store ProfileStore, ttl time.Duration) *Profiles {
	return NewProfilesWithClock(store, ttl, realClock{})
}

// NewProfilesWithClock creates Profiles with a custom clock (for testing).
func NewProfilesWithClock(store ProfileStore, ttl time.Duration, clock Clock) *Profiles {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &Profiles{store: store, cache: NewCacheWithClock[string, storage.Profile](ttl, clock)}
}

// Lookup returns the profile of the signed-in user. A user seen for the first
// time gets a profile created from the token claims.
func (p *Profiles) Lookup(ctx context.Context, c Claims) (storage.Profile, error) {
	return p.cache.Get(ctx, c.UserID(), func(ctx context.Context) (storage.Profile, error) {
		prof, err := p.store.GetProfile(ctx, c.UserID())
		if err == nil {
			return prof, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return storage.Profile{}, fmt.Errorf("loading profile: %w", err)
		}
		if err := p.store.UpsertProfile(ctx, storage.Profile{ID: c.UserID(), Email: c.Email, Name: c.Name}); err != nil {
			return storage.Profile{}, fmt.Errorf("creating profile: %w", err)
		}
		return p.store.GetProfile(ctx, c.UserID())
	})
}

// SignedIn refreshes the stored email and name and drops the cached copy so
// the next Lookup reads fresh data.
func (p *Profiles) SignedIn(ctx context.Context, c Claims) error {
	p.cache.Invalidate(c.UserID())
	prof, err := p.store.GetProfile(ctx, c.UserID())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		prof = storage.Profile{ID: c.UserID()}
	case err != nil:
		return fmt.Errorf("loading profile: %w", err)
	}
	if c.Email != "" {
		prof.Email = c.Email
	}
	if c.Name != "" {
		prof.Name = c.Name
	}
	if err := p.store.UpsertProfile(ctx, prof); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// SignedOut forgets the cached profile of userID.
func (p *Profiles) SignedOut(userID string) {
	p.cache.Invalidate(userID)
}
