// Package notify collects heterogeneous alert conditions per alert-group
// key, merges bursts raised within a debounce window into one message, and
// rate-limits delivery per key.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"pet-monitor/tracker/internal/domain"
	"pet-monitor/tracker/internal/metrics"
)

// Sender delivers one composed message. Delivery is fire-and-forget from the
// aggregator's perspective: failures are the sender's to log, never retried
// here.
type Sender interface {
	Send(ctx context.Context, message string)
}

type pendingState struct {
	payload domain.AlertCondition
	timer   *time.Timer
	gen     uint64
}

// Aggregator runs the Idle -> Pending -> merge* -> Flushed cycle per key.
// Each raised condition (re)starts the debounce timer; the generation
// counter makes a racing expiry of a replaced timer a no-op, so a flush
// never proceeds on data a newer condition has already superseded.
type Aggregator struct {
	mu       sync.Mutex
	pending  map[string]*pendingState
	lastSent map[string]time.Time

	debounce time.Duration
	cooldown time.Duration
	sender   Sender
	now      func() time.Time
}

func NewAggregator(debounce, cooldown time.Duration, sender Sender) *Aggregator {
	return &Aggregator{
		pending:  make(map[string]*pendingState),
		lastSent: make(map[string]time.Time),
		debounce: debounce,
		cooldown: cooldown,
		sender:   sender,
		now:      time.Now,
	}
}

// Raise merges one condition into the pending payload for its key and
// restarts the debounce timer.
func (a *Aggregator) Raise(cond domain.AlertCondition) {
	key := cond.Key
	if key == "" {
		key = domain.GroupKey(cond.PetMAC, cond.PetName)
	}
	cond = applyRoomPrecedence(cond)

	a.mu.Lock()
	p := a.pending[key]
	if p == nil {
		p = &pendingState{payload: cond}
		a.pending[key] = p
	} else {
		p.payload = mergeConditions(p.payload, cond)
	}
	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(a.debounce, func() { a.flush(key, gen) })
	a.mu.Unlock()
}

func (a *Aggregator) flush(key string, gen uint64) {
	a.mu.Lock()
	p := a.pending[key]
	if p == nil || p.gen != gen {
		// A newer condition restarted the cycle; this expiry is stale.
		a.mu.Unlock()
		return
	}
	payload := p.payload
	delete(a.pending, key)

	msg := BuildMessage(payload)
	if msg == "" {
		a.mu.Unlock()
		log.Printf("[notify] nothing message-worthy for %s, skipping", key)
		return
	}

	now := a.now()
	if last, ok := a.lastSent[key]; ok && now.Sub(last) < a.cooldown {
		a.mu.Unlock()
		metrics.NotificationsSuppressed.Add(1)
		log.Printf("[notify] notification for %s dropped by cooldown", key)
		return
	}
	a.lastSent[key] = now
	a.mu.Unlock()

	// Delivery happens outside the lock.
	metrics.NotificationsSent.Add(1)
	a.sender.Send(context.Background(), msg)
}

// applyRoomPrecedence clears the GPS side of a condition that carries a BLE
// room signal: a pet in a known room is not meaningfully "outside".
func applyRoomPrecedence(c domain.AlertCondition) domain.AlertCondition {
	if c.BLERestricted || c.Room != "" {
		c.Outside = false
		c.GPS = nil
	}
	return c
}

// mergeConditions folds a new condition into an existing pending payload:
// boolean flags OR, scalars take the newest non-null value, then the room
// precedence rule is re-applied to the merged result.
func mergeConditions(existing, incoming domain.AlertCondition) domain.AlertCondition {
	merged := existing

	merged.Outside = existing.Outside || incoming.Outside
	merged.TempHigh = existing.TempHigh || incoming.TempHigh
	merged.TempLow = existing.TempLow || incoming.TempLow
	merged.BLERestricted = existing.BLERestricted || incoming.BLERestricted

	if incoming.Room != "" {
		merged.Room = incoming.Room
	}
	if incoming.RSSI != nil {
		merged.RSSI = incoming.RSSI
	}
	if incoming.PetName != "" {
		merged.PetName = incoming.PetName
	}
	if incoming.PetMAC != "" {
		merged.PetMAC = incoming.PetMAC
	}
	if incoming.GPS != nil {
		merged.GPS = incoming.GPS
	}
	if incoming.TempValue != nil {
		merged.TempValue = incoming.TempValue
	}
	if incoming.TempMin != nil {
		merged.TempMin = incoming.TempMin
	}
	if incoming.TempMax != nil {
		merged.TempMax = incoming.TempMax
	}

	return applyRoomPrecedence(merged)
}
