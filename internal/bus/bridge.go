// Package bus consumes inbound telemetry, fuses it through the geofence and
// presence estimator, and feeds the pipeline. All identifier parsing happens
// here, once, at the boundary.
package bus

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pet-monitor/tracker/internal/domain"
	"pet-monitor/tracker/internal/geo"
	"pet-monitor/tracker/internal/metrics"
	"pet-monitor/tracker/internal/presence"
)

// Store is the durable collaborator the bridge needs.
type Store interface {
	RoomByAnchorMAC(ctx context.Context, mac string) (*domain.Room, error)
	Perimeter(ctx context.Context) (*domain.Perimeter, error)
	InsertEnvReading(ctx context.Context, r *domain.EnvReading) error
}

// HotState is the registry slice of the cache store the bridge writes.
type HotState interface {
	TouchAnchor(ctx context.Context, anchorID, mac string) error
	TouchUnregistered(ctx context.Context, mac, btName, anchorID string, rssi int) error
}

// PetResolver gates samples on registration.
type PetResolver interface {
	ByMAC(ctx context.Context, mac string) (*domain.Pet, bool)
	ByID(ctx context.Context, id string) (*domain.Pet, bool)
}

// Sink is the pipeline the bridge dispatches into.
type Sink interface {
	DispatchRecord(rec *domain.PositionRecord)
	DispatchState(u *domain.StateUpdate)
	DispatchAlert(c *domain.AlertCondition)
}

// Bridge holds the fusion state shared by the bus consumer and the
// websocket sensor path.
type Bridge struct {
	est  *presence.Estimator
	db   Store
	hot  HotState
	pets PetResolver
	sink Sink

	mu     sync.Mutex
	inside map[string]bool // last known inside/outside per entity key

	now func() time.Time
}

func NewBridge(est *presence.Estimator, db Store, hot HotState, pets PetResolver, sink Sink) *Bridge {
	return &Bridge{
		est:    est,
		db:     db,
		hot:    hot,
		pets:   pets,
		sink:   sink,
		inside: make(map[string]bool),
		now:    time.Now,
	}
}

type anchorAnnounce struct {
	MAC      string `json:"mac"`
	AnchorID string `json:"anchor_id"`
}

type bleSample struct {
	RSSI   *int   `json:"rssi"`
	BTName string `json:"bt_name"`
}

type gpsFix struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	PetID string   `json:"pet_id"`
}

type envReading struct {
	Temp      *float64 `json:"temp"`
	Hum       *float64 `json:"hum"`
	Timestamp *int64   `json:"timestamp"`
	PetID     string   `json:"pet_id"`
}

// HandleAnchorAnnounce upserts the anchor liveness registry.
func (b *Bridge) HandleAnchorAnnounce(ctx context.Context, payload []byte) {
	var msg anchorAnnounce
	if err := json.Unmarshal(payload, &msg); err != nil || msg.AnchorID == "" {
		metrics.DecodeFailures.Add(1)
		log.Printf("[bus] bad anchor announce %q: %v", payload, err)
		return
	}
	mac := domain.NormalizeMAC(msg.MAC)
	if err := b.hot.TouchAnchor(ctx, msg.AnchorID, mac); err != nil {
		log.Printf("[bus] anchor touch failed for %s: %v", msg.AnchorID, err)
	}
}

// HandleBLESample processes one RSSI sample for an (anchor, device) pair
// decoded from the topic path. Unregistered devices only touch the
// onboarding registry; registered ones feed the presence estimator and, on
// an emitted transition, the position log and possibly an alert.
func (b *Bridge) HandleBLESample(ctx context.Context, anchorID, deviceID string, payload []byte) {
	var msg bleSample
	if err := json.Unmarshal(payload, &msg); err != nil || msg.RSSI == nil {
		metrics.DecodeFailures.Add(1)
		log.Printf("[bus] bad ble sample on %s/%s: %q", anchorID, deviceID, payload)
		return
	}
	anchorMAC := domain.NormalizeMAC(anchorID)
	deviceMAC := domain.NormalizeMAC(deviceID)
	rssi := *msg.RSSI

	pet, registered := b.pets.ByMAC(ctx, deviceMAC)
	if !registered {
		if err := b.hot.TouchUnregistered(ctx, deviceMAC, msg.BTName, anchorMAC, rssi); err != nil {
			log.Printf("[bus] unregistered touch failed for %s: %v", deviceMAC, err)
		}
		return
	}

	hint := msg.BTName
	if hint == "" {
		hint = pet.Name
	}
	b.est.Observe(anchorMAC, deviceMAC, rssi, hint)

	tr, emitted := b.est.PresenceEvent(anchorMAC, deviceMAC, func(anchor string) (string, bool, bool) {
		room, err := b.db.RoomByAnchorMAC(ctx, anchor)
		if err != nil {
			log.Printf("[bus] room lookup failed for %s: %v", anchor, err)
			return "", true, false
		}
		if room == nil {
			return "", true, false
		}
		return room.Name, room.Allowed, true
	})
	if !emitted {
		return
	}

	r := rssi
	b.sink.DispatchRecord(&domain.PositionRecord{
		PetID:      pet.ID,
		Source:     domain.SourceBLE,
		Class:      tr.Class,
		Room:       tr.Room,
		RSSI:       &r,
		Timestamp:  b.now().UTC(),
		RawPayload: payload,
	})

	if tr.Class == domain.ClassRoomRestricted {
		b.sink.DispatchAlert(&domain.AlertCondition{
			Key:           domain.GroupKey(pet.MAC, pet.Name),
			BLERestricted: true,
			Room:          tr.Room,
			RSSI:          &r,
			PetName:       pet.Name,
			PetMAC:        pet.MAC,
		})
	}
}

// HandleGPSFix evaluates a fix against the perimeter, persists a classified
// record, refreshes the latest-GPS cache, and raises an outside condition
// only on the inside-to-outside transition.
func (b *Bridge) HandleGPSFix(ctx context.Context, payload []byte) {
	var msg gpsFix
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Lat == nil || msg.Lon == nil {
		metrics.DecodeFailures.Add(1)
		log.Printf("[bus] bad gps fix: %q", payload)
		return
	}
	lat, lon := *msg.Lat, *msg.Lon

	var pet *domain.Pet
	if msg.PetID != "" {
		pet, _ = b.pets.ByID(ctx, msg.PetID)
	}
	key := entityKey(pet, msg.PetID)

	inside := true
	perim, err := b.db.Perimeter(ctx)
	if err != nil {
		log.Printf("[bus] perimeter read failed: %v", err)
	}
	if perim != nil {
		inside = geo.IsInside(lat, lon, perim.CenterLat, perim.CenterLon, perim.RadiusMeters)
	}

	class := domain.ClassZoneAllowed
	if !inside {
		class = domain.ClassZoneRestricted
	}

	rec := &domain.PositionRecord{
		Source:     domain.SourceGPS,
		Class:      class,
		Lat:        &lat,
		Lon:        &lon,
		Timestamp:  b.now().UTC(),
		RawPayload: payload,
	}
	if pet != nil {
		rec.PetID = pet.ID
	}
	b.sink.DispatchRecord(rec)

	update := &domain.StateUpdate{
		Type: domain.UpdateGPS,
		Lat:  &lat,
		Lon:  &lon,
		Key:  key,
	}
	if pet != nil {
		update.PetID = pet.ID
		update.PetMAC = pet.MAC
		update.PetName = pet.Name
	} else {
		update.PetID = msg.PetID
	}
	b.sink.DispatchState(update)

	if b.leftPerimeter(key, inside) {
		cond := &domain.AlertCondition{
			Key:     key,
			Outside: true,
			GPS:     &domain.GPSPoint{Lat: lat, Lon: lon},
		}
		if pet != nil {
			cond.PetName = pet.Name
			cond.PetMAC = pet.MAC
			cond.Key = domain.GroupKey(pet.MAC, pet.Name)
		}
		b.sink.DispatchAlert(cond)
	}
}

// leftPerimeter records the new zone state and reports whether this fix is
// an inside-to-outside transition. An entity with no prior state is assumed
// inside, so the first outside fix alerts.
func (b *Bridge) leftPerimeter(key string, inside bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, known := b.inside[key]
	b.inside[key] = inside
	if inside {
		return false
	}
	return !known || prev
}

// HandleEnvReading refreshes the latest-environment cache, persists the
// sample, and raises temperature conditions against the pet's thresholds.
func (b *Bridge) HandleEnvReading(ctx context.Context, payload []byte) {
	var msg envReading
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Temp == nil || msg.Hum == nil {
		metrics.DecodeFailures.Add(1)
		log.Printf("[bus] bad env reading: %q", payload)
		return
	}
	temp, hum := *msg.Temp, *msg.Hum

	ts := b.now().UTC()
	if msg.Timestamp != nil {
		ts = time.Unix(*msg.Timestamp, 0).UTC()
	}

	var pet *domain.Pet
	if msg.PetID != "" {
		pet, _ = b.pets.ByID(ctx, msg.PetID)
	}
	key := entityKey(pet, msg.PetID)

	if err := b.db.InsertEnvReading(ctx, &domain.EnvReading{
		Key:       key,
		Temp:      temp,
		Hum:       hum,
		Timestamp: ts,
	}); err != nil {
		// Storage fault: log and keep going, the caches still update.
		log.Printf("[bus] env persist failed for %s: %v", key, err)
	}

	update := &domain.StateUpdate{
		Type:      domain.UpdateEnv,
		Temp:      &temp,
		Hum:       &hum,
		Key:       key,
		Timestamp: ts,
	}
	if pet != nil {
		update.PetMAC = pet.MAC
	}
	b.sink.DispatchState(update)

	if pet == nil {
		return
	}
	if pet.TempMax != nil && temp > *pet.TempMax {
		b.sink.DispatchAlert(&domain.AlertCondition{
			Key:       domain.GroupKey(pet.MAC, pet.Name),
			TempHigh:  true,
			PetName:   pet.Name,
			PetMAC:    pet.MAC,
			TempValue: &temp,
			TempMax:   pet.TempMax,
			TempMin:   pet.TempMin,
		})
	}
	if pet.TempMin != nil && temp < *pet.TempMin {
		b.sink.DispatchAlert(&domain.AlertCondition{
			Key:       domain.GroupKey(pet.MAC, pet.Name),
			TempLow:   true,
			PetName:   pet.Name,
			PetMAC:    pet.MAC,
			TempValue: &temp,
			TempMax:   pet.TempMax,
			TempMin:   pet.TempMin,
		})
	}
}

// entityKey picks the cache/alert key for an entity: pet MAC when resolved,
// then the raw pet_id from the payload, then the global bucket.
func entityKey(pet *domain.Pet, rawID string) string {
	if pet != nil && pet.MAC != "" {
		return pet.MAC
	}
	if rawID != "" {
		return rawID
	}
	return "global"
}

// SensorData handles a live-subscriber sensor_data message, which carries
// the same GPS/env shapes as the bus topics.
func (b *Bridge) SensorData(ctx context.Context, payload []byte) {
	var msg struct {
		GPS json.RawMessage `json:"gps"`
		Env json.RawMessage `json:"env"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.DecodeFailures.Add(1)
		log.Printf("[bus] bad sensor_data: %q", payload)
		return
	}
	if len(msg.GPS) > 0 {
		b.HandleGPSFix(ctx, msg.GPS)
	}
	if len(msg.Env) > 0 {
		b.HandleEnvReading(ctx, msg.Env)
	}
}
