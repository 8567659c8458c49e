// Package registry resolves hardware identifiers to registered pets, with a
// short-lived local cache in front of the durable store. Only registered
// devices enter the presence estimator; everything else stays in the
// unregistered-seen registry.
package registry

import (
	"context"
	"log"
	"sync"
	"time"

	"pet-monitor/tracker/internal/domain"
)

// PetLookup is the slice of the durable store the resolver needs.
type PetLookup interface {
	PetByMAC(ctx context.Context, mac string) (*domain.Pet, error)
	PetByID(ctx context.Context, id string) (*domain.Pet, error)
}

type cacheEntry struct {
	pet       *domain.Pet
	expiresAt time.Time
}

type Resolver struct {
	localCache sync.Map // normalized MAC or ID -> cacheEntry
	db         PetLookup
	ttl        time.Duration
}

func NewResolver(db PetLookup, ttl time.Duration) *Resolver {
	return &Resolver{db: db, ttl: ttl}
}

// ByMAC resolves a pet by canonical MAC. The boolean is false for
// unregistered devices and on store faults (lookup-miss policy: degrade,
// keep consuming).
func (r *Resolver) ByMAC(ctx context.Context, mac string) (*domain.Pet, bool) {
	return r.resolve(ctx, "mac:"+mac, func() (*domain.Pet, error) {
		return r.db.PetByMAC(ctx, mac)
	})
}

func (r *Resolver) ByID(ctx context.Context, id string) (*domain.Pet, bool) {
	return r.resolve(ctx, "id:"+id, func() (*domain.Pet, error) {
		return r.db.PetByID(ctx, id)
	})
}

func (r *Resolver) resolve(ctx context.Context, key string, fetch func() (*domain.Pet, error)) (*domain.Pet, bool) {
	// Level 1: in-memory cache
	if raw, ok := r.localCache.Load(key); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.pet, entry.pet != nil
		}
		r.localCache.Delete(key)
	}

	// Level 2: durable store
	pet, err := fetch()
	if err != nil {
		log.Printf("[registry] pet lookup failed for %s: %v", key, err)
		return nil, false
	}

	// Negative results are cached too: an unregistered scanner hammering an
	// anchor must not hammer the store.
	r.localCache.Store(key, cacheEntry{
		pet:       pet,
		expiresAt: time.Now().Add(r.ttl),
	})

	return pet, pet != nil
}

// Invalidate drops a cached entry, for use after CRUD edits.
func (r *Resolver) Invalidate(mac, id string) {
	if mac != "" {
		r.localCache.Delete("mac:" + mac)
	}
	if id != "" {
		r.localCache.Delete("id:" + id)
	}
}
