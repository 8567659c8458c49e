// Package presence turns raw per-anchor RSSI samples into a per-device room
// estimate and coarse room-presence transitions.
package presence

import (
	"sync"
	"time"

	"pet-monitor/tracker/internal/domain"
)

// Window length for RSSI smoothing. Three samples reject single-packet
// spikes without adding noticeable latency.
const windowSize = 3

// Estimate is the current best-room guess for one device: the anchor whose
// completed window produced the highest average signal seen so far.
type Estimate struct {
	AnchorID  string
	Average   float64
	NameHint  string
	UpdatedAt time.Time
}

// Transition is an emitted room-presence event.
type Transition struct {
	Room    string
	Class   domain.Classification
	Average float64
}

// RoomLookup resolves an anchor identifier to its room association.
// found=false means the anchor has no room record; callers treat that as
// permitted (lookup-miss policy).
type RoomLookup func(anchorID string) (room string, allowed bool, found bool)

type windowKey struct {
	anchor string
	device string
}

type eventMark struct {
	room string
	at   time.Time
}

// Estimator holds the rolling windows and per-device estimates. All methods
// are safe for concurrent use.
type Estimator struct {
	mu        sync.Mutex
	windows   map[windowKey][]int
	estimates map[string]Estimate
	lastEvent map[string]eventMark

	threshold float64 // dBm; a full window with mean >= threshold counts as presence
	cooldown  time.Duration
	now       func() time.Time
}

func NewEstimator(thresholdDBm float64, eventCooldown time.Duration) *Estimator {
	return &Estimator{
		windows:   make(map[windowKey][]int),
		estimates: make(map[string]Estimate),
		lastEvent: make(map[string]eventMark),
		threshold: thresholdDBm,
		cooldown:  eventCooldown,
		now:       time.Now,
	}
}

// Observe appends one RSSI sample to the (anchor, device) window and, once
// the window is full, updates the device estimate if the new window average
// strictly exceeds the stored one. The estimate is a running maximum: it
// never degrades when a previously winning anchor fades, only when another
// anchor beats its best recorded average.
//
// Returns the current estimate and whether one exists yet. Fewer than three
// samples for a pair never produce an estimate.
func (e *Estimator) Observe(anchorID, deviceID string, rssi int, nameHint string) (Estimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mean, full := e.pushLocked(anchorID, deviceID, rssi)
	if !full {
		est, ok := e.estimates[deviceID]
		return est, ok
	}

	cur, ok := e.estimates[deviceID]
	if !ok || mean > cur.Average {
		e.estimates[deviceID] = Estimate{
			AnchorID:  anchorID,
			Average:   mean,
			NameHint:  nameHint,
			UpdatedAt: e.now(),
		}
	}
	return e.estimates[deviceID], true
}

// PresenceEvent evaluates the latest completed window for the pair against
// the detection threshold and, when it qualifies, resolves the anchor's room
// and emits a transition. Emission is rate-limited per device to one event
// per cooldown unless the resolved room differs from the last emitted room,
// so a stationary pet does not spam the log while a room change still reacts
// immediately.
func (e *Estimator) PresenceEvent(anchorID, deviceID string, lookup RoomLookup) (Transition, bool) {
	e.mu.Lock()
	k := windowKey{anchor: anchorID, device: deviceID}
	w := e.windows[k]
	if len(w) < windowSize {
		e.mu.Unlock()
		return Transition{}, false
	}
	mean := meanOf(w)
	e.mu.Unlock()

	if mean < e.threshold {
		return Transition{}, false
	}

	// Resolve outside the lock: lookup may hit the durable store.
	room, allowed, found := lookup(anchorID)
	if !found {
		allowed = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	last, seen := e.lastEvent[deviceID]
	if seen && room == last.room && now.Sub(last.at) < e.cooldown {
		return Transition{}, false
	}
	e.lastEvent[deviceID] = eventMark{room: room, at: now}

	class := domain.ClassRoomAllowed
	if !allowed {
		class = domain.ClassRoomRestricted
	}
	return Transition{Room: room, Class: class, Average: mean}, true
}

// EstimateFor returns the current estimate for a device, if any.
func (e *Estimator) EstimateFor(deviceID string) (Estimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	est, ok := e.estimates[deviceID]
	return est, ok
}

// pushLocked appends a sample, evicting the oldest when the window is full,
// and returns the mean when exactly windowSize samples are present.
func (e *Estimator) pushLocked(anchorID, deviceID string, rssi int) (float64, bool) {
	k := windowKey{anchor: anchorID, device: deviceID}
	w := append(e.windows[k], rssi)
	if len(w) > windowSize {
		w = w[len(w)-windowSize:]
	}
	e.windows[k] = w
	if len(w) < windowSize {
		return 0, false
	}
	return meanOf(w), true
}

func meanOf(w []int) float64 {
	sum := 0
	for _, v := range w {
		sum += v
	}
	return float64(sum) / float64(len(w))
}
