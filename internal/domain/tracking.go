package domain

import "time"

// Source tags where a position record came from.
type Source string

const (
	SourceBLE Source = "ble"
	SourceGPS Source = "gps"
)

// Classification describes the permission outcome of a fused position.
type Classification string

const (
	ClassRoomAllowed    Classification = "room-allowed"
	ClassRoomRestricted Classification = "room-restricted"
	ClassZoneAllowed    Classification = "zone-allowed"
	ClassZoneRestricted Classification = "zone-restricted"
)

// Pet is a tracked entity. Created and edited by the web CRUD; the pipeline
// only reads it (MAC for sample gating, thresholds for env evaluation).
type Pet struct {
	ID      string
	Name    string
	MAC     string // canonical colon-delimited uppercase
	BTName  string
	OwnerID string

	// Optional temperature thresholds in Celsius. nil means unset.
	TempMin *float64
	TempMax *float64
}

// Room is the association record for a fixed BLE anchor.
type Room struct {
	ID      string
	Name    string
	MAC     string // anchor hardware identifier
	Allowed bool
}

// PositionRecord is one immutable entry in the position log.
// PetID is empty when the sample could not be resolved to a pet.
type PositionRecord struct {
	PetID     string         `json:"pet_id,omitempty"`
	Source    Source         `json:"source"`
	Class     Classification `json:"classification"`
	Room      string         `json:"room,omitempty"`
	Lat       *float64       `json:"lat,omitempty"`
	Lon       *float64       `json:"lon,omitempty"`
	RSSI      *int           `json:"rssi,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// Original payload, kept for debugging and replay.
	RawPayload []byte `json:"-"`
}

// Perimeter is the single global circular geofence.
type Perimeter struct {
	CenterLat    float64
	CenterLon    float64
	RadiusMeters float64
}

// EnvReading is one ambient temperature/humidity sample.
// Key is the pet MAC, a device identifier, or "global" when unresolved.
type EnvReading struct {
	Key       string
	Temp      float64
	Hum       float64
	Timestamp time.Time
}

// AnchorStatus is a liveness registry entry, used for discovery listings only.
// Room permission lookups go through Room, not this.
type AnchorStatus struct {
	AnchorID string    `json:"anchor_id"`
	MAC      string    `json:"mac"`
	LastSeen time.Time `json:"last_seen"`
}

// SeenDevice is an unregistered device observed by an anchor, kept for the
// onboarding UI. These never enter the presence estimator.
type SeenDevice struct {
	MAC      string    `json:"mac"`
	BTName   string    `json:"bt_name,omitempty"`
	AnchorID string    `json:"anchor_id"`
	RSSI     int       `json:"rssi"`
	LastSeen time.Time `json:"last_seen"`
}

// StateUpdate is a fused state delta broadcast to live subscribers and
// published on the hot-state channel. Key and Timestamp route cache writes
// and are not part of the wire shape.
type StateUpdate struct {
	Type    string   `json:"type"` // gps_update | env_update
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	PetID   string   `json:"pet_id,omitempty"`
	PetMAC  string   `json:"pet_mac,omitempty"`
	PetName string   `json:"pet_name,omitempty"`
	Temp    *float64 `json:"temp,omitempty"`
	Hum     *float64 `json:"hum,omitempty"`

	Key       string    `json:"-"`
	Timestamp time.Time `json:"-"`
}

const (
	UpdateGPS = "gps_update"
	UpdateEnv = "env_update"
)

// GPSPoint is a bare coordinate pair carried inside alert conditions.
type GPSPoint struct {
	Lat float64
	Lon float64
}

// AlertCondition is one raised alert input for the notification aggregator.
// Conditions for the same Key raised within the debounce window are merged
// into a single delivered message.
type AlertCondition struct {
	Key string // device MAC, falling back to pet name, then "global"

	Outside       bool
	TempHigh      bool
	TempLow       bool
	BLERestricted bool

	Room    string
	RSSI    *int
	PetName string
	PetMAC  string
	GPS     *GPSPoint

	TempValue *float64
	TempMin   *float64
	TempMax   *float64
}

// GroupKey picks the alert-group key for a pet: MAC first, then display
// name, then the global bucket.
func GroupKey(mac, name string) string {
	if mac != "" {
		return mac
	}
	if name != "" {
		return name
	}
	return "global"
}
