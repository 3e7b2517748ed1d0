package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-oauth-client/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const pendingHandshakesCacheKeyPrefix = "go-oauth-client::pending_handshakes::v1"

// ListingHandshakeStore is a store that also supports purge and listing.
type ListingHandshakeStore interface {
	core.HandshakeStore
	core.HandshakePurger
	core.HandshakeLister
}

// CachedHandshakeStore caches ListPending reads per owner. Create and
// Consume pass straight through to the base store and invalidate the owner's
// entry; PurgeExpired does not invalidate, so purged records may be listed
// until the cache TTL elapses.
type CachedHandshakeStore struct {
	base  ListingHandshakeStore
	cache repositorycache.CacheService
}

func NewCachedHandshakeStore(base ListingHandshakeStore, cacheService repositorycache.CacheService) (*CachedHandshakeStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base handshake store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: handshake cache service is required")
	}
	return &CachedHandshakeStore{base: base, cache: cacheService}, nil
}

// PendingHandshakesCacheKey returns
// go-oauth-client::pending_handshakes::v1::<owner_id>, with the owner
// URL-path escaped. An empty owner maps to the "*" segment.
func PendingHandshakesCacheKey(ownerID string) string {
	segment := "*"
	if ownerID = strings.TrimSpace(ownerID); ownerID != "" {
		segment = url.PathEscape(ownerID)
	}
	return pendingHandshakesCacheKeyPrefix + "::" + segment
}

func (s *CachedHandshakeStore) Create(ctx context.Context, handshake core.Handshake) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached handshake store is not configured")
	}
	if err := s.base.Create(ctx, handshake); err != nil {
		return err
	}
	// The record is stored; failing here would hide it from the caller.
	_ = s.invalidate(ctx, handshake.OwnerID)
	return nil
}

func (s *CachedHandshakeStore) Consume(ctx context.Context, state string) (core.Handshake, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Handshake{}, fmt.Errorf("sqlstore: cached handshake store is not configured")
	}
	handshake, err := s.base.Consume(ctx, state)
	if err != nil {
		return core.Handshake{}, err
	}
	// The record is gone either way; a stale listing is tolerated.
	_ = s.invalidate(ctx, handshake.OwnerID)
	return handshake, nil
}

func (s *CachedHandshakeStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.base == nil {
		return 0, fmt.Errorf("sqlstore: cached handshake store is not configured")
	}
	return s.base.PurgeExpired(ctx, before)
}

func (s *CachedHandshakeStore) ListPending(ctx context.Context, ownerID string) ([]core.Handshake, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached handshake store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	pending, err := repositorycache.GetOrFetch(ctx, s.cache, PendingHandshakesCacheKey(ownerID), func(ctx context.Context) ([]core.Handshake, error) {
		fetched, fetchErr := s.base.ListPending(ctx, ownerID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneHandshakes(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneHandshakes(pending), nil
}

func (s *CachedHandshakeStore) invalidate(ctx context.Context, ownerID string) error {
	if err := s.cache.Delete(ctx, PendingHandshakesCacheKey(ownerID)); err != nil {
		return err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil
	}
	return s.cache.Delete(ctx, PendingHandshakesCacheKey(""))
}

func cloneHandshakes(input []core.Handshake) []core.Handshake {
	if input == nil {
		return nil
	}
	out := make([]core.Handshake, len(input))
	copy(out, input)
	return out
}
