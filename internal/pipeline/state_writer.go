package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"pet-monitor/tracker/internal/domain"
)

// HotState is the slice of the cache store the writer needs.
type HotState interface {
	SetLatestGPS(ctx context.Context, key string, lat, lon float64) error
	SetLatestEnv(ctx context.Context, key string, temp, hum float64, ts time.Time) error
	PublishState(ctx context.Context, payload []byte) error
}

// Broadcaster delivers a serialized state update to live subscribers.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// StateWriter applies fused state updates to the latest-known caches, then
// fans them out: once to the Redis channel, once to the websocket hub.
// Everything here is best-effort; a failed cache write is logged and the
// next update proceeds.
type StateWriter struct {
	ch  <-chan *domain.StateUpdate
	hot HotState
	hub Broadcaster
}

func NewStateWriter(ch <-chan *domain.StateUpdate, hot HotState, hub Broadcaster) *StateWriter {
	return &StateWriter{ch: ch, hot: hot, hub: hub}
}

func (w *StateWriter) Run(ctx context.Context) {
	for {
		select {
		case u, ok := <-w.ch:
			if !ok {
				return
			}
			w.apply(context.Background(), u)

		case <-ctx.Done():
			return
		}
	}
}

func (w *StateWriter) apply(ctx context.Context, u *domain.StateUpdate) {
	switch u.Type {
	case domain.UpdateGPS:
		if u.Lat != nil && u.Lon != nil {
			if err := w.hot.SetLatestGPS(ctx, u.Key, *u.Lat, *u.Lon); err != nil {
				log.Printf("[pipeline] gps cache update failed for %s: %v", u.Key, err)
			}
		}
	case domain.UpdateEnv:
		if u.Temp != nil && u.Hum != nil {
			if err := w.hot.SetLatestEnv(ctx, u.Key, *u.Temp, *u.Hum, u.Timestamp); err != nil {
				log.Printf("[pipeline] env cache update failed for %s: %v", u.Key, err)
			}
		}
	}

	payload, err := json.Marshal(u)
	if err != nil {
		log.Printf("[pipeline] state marshal failed: %v", err)
		return
	}
	if err := w.hot.PublishState(ctx, payload); err != nil {
		log.Printf("[pipeline] state publish failed: %v", err)
	}
	if w.hub != nil {
		w.hub.Broadcast(payload)
	}
}
