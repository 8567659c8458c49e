package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet-monitor/tracker/internal/domain"
)

type fakeLookup struct {
	pets    map[string]*domain.Pet
	calls   int
	failAll bool
}

func (f *fakeLookup) PetByMAC(ctx context.Context, mac string) (*domain.Pet, error) {
	f.calls++
	if f.failAll {
		return nil, errors.New("store down")
	}
	return f.pets[mac], nil
}

func (f *fakeLookup) PetByID(ctx context.Context, id string) (*domain.Pet, error) {
	f.calls++
	if f.failAll {
		return nil, errors.New("store down")
	}
	return f.pets[id], nil
}

func TestResolverCachesHits(t *testing.T) {
	mac := "AA:BB:CC:DD:EE:FF"
	db := &fakeLookup{pets: map[string]*domain.Pet{mac: {ID: "p1", MAC: mac}}}
	r := NewResolver(db, time.Minute)

	for i := 0; i < 3; i++ {
		pet, ok := r.ByMAC(context.Background(), mac)
		if !ok || pet.ID != "p1" {
			t.Fatalf("resolve %d failed: %v %v", i, pet, ok)
		}
	}
	if db.calls != 1 {
		t.Errorf("store hit %d times, want 1 (cache miss only)", db.calls)
	}
}

func TestResolverCachesMisses(t *testing.T) {
	db := &fakeLookup{pets: map[string]*domain.Pet{}}
	r := NewResolver(db, time.Minute)

	for i := 0; i < 3; i++ {
		if _, ok := r.ByMAC(context.Background(), "11:22:33:44:55:66"); ok {
			t.Fatal("unregistered MAC resolved")
		}
	}
	if db.calls != 1 {
		t.Errorf("store hit %d times for repeated miss, want 1", db.calls)
	}
}

func TestResolverStoreFaultDegrades(t *testing.T) {
	db := &fakeLookup{failAll: true}
	r := NewResolver(db, time.Minute)
	if _, ok := r.ByMAC(context.Background(), "AA:BB:CC:DD:EE:FF"); ok {
		t.Fatal("store fault reported as resolved")
	}
	// Faults are not cached: the next call tries the store again.
	r.ByMAC(context.Background(), "AA:BB:CC:DD:EE:FF")
	if db.calls != 2 {
		t.Errorf("store hit %d times after faults, want 2", db.calls)
	}
}

func TestResolverInvalidate(t *testing.T) {
	mac := "AA:BB:CC:DD:EE:FF"
	db := &fakeLookup{pets: map[string]*domain.Pet{mac: {ID: "p1", MAC: mac}}}
	r := NewResolver(db, time.Minute)

	r.ByMAC(context.Background(), mac)
	r.Invalidate(mac, "")
	r.ByMAC(context.Background(), mac)
	if db.calls != 2 {
		t.Errorf("store hit %d times after invalidate, want 2", db.calls)
	}
}
