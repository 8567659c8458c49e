package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pet-monitor/tracker/internal/config"
	"pet-monitor/tracker/internal/domain"
)

// Redis key layout:
//
//	pet:{key}:gps        hash  lat, lon, updated_at
//	pet:{key}:env        hash  temp, hum, timestamp
//	anchors:seen         hash  anchor_id -> JSON AnchorStatus
//	devices:unregistered hash  mac -> JSON SeenDevice
//	notify:recipients    set   chat IDs
//	tracker:state        channel, fused state updates
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// --- Latest GPS / environment caches ---

func (r *RedisStore) SetLatestGPS(ctx context.Context, key string, lat, lon float64) error {
	hkey := fmt.Sprintf("pet:%s:gps", key)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, hkey, map[string]interface{}{
		"lat":        lat,
		"lon":        lon,
		"updated_at": time.Now().UTC().Unix(),
	})
	pipe.Expire(ctx, hkey, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("latest gps update failed: %w", err)
	}
	return nil
}

// LatestGPS returns the most recent fix for a key. ok is false when no fix
// has been cached.
func (r *RedisStore) LatestGPS(ctx context.Context, key string) (lat, lon float64, ok bool, err error) {
	hkey := fmt.Sprintf("pet:%s:gps", key)
	vals, err := r.client.HGetAll(ctx, hkey).Result()
	if err != nil {
		return 0, 0, false, fmt.Errorf("latest gps read failed: %w", err)
	}
	if len(vals) == 0 {
		return 0, 0, false, nil
	}
	if _, e := fmt.Sscanf(vals["lat"], "%f", &lat); e != nil {
		return 0, 0, false, nil
	}
	if _, e := fmt.Sscanf(vals["lon"], "%f", &lon); e != nil {
		return 0, 0, false, nil
	}
	return lat, lon, true, nil
}

func (r *RedisStore) SetLatestEnv(ctx context.Context, key string, temp, hum float64, ts time.Time) error {
	hkey := fmt.Sprintf("pet:%s:env", key)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, hkey, map[string]interface{}{
		"temp":      temp,
		"hum":       hum,
		"timestamp": ts.UTC().Unix(),
	})
	pipe.Expire(ctx, hkey, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("latest env update failed: %w", err)
	}
	return nil
}

func (r *RedisStore) LatestEnv(ctx context.Context, key string) (*domain.EnvReading, error) {
	hkey := fmt.Sprintf("pet:%s:env", key)
	vals, err := r.client.HGetAll(ctx, hkey).Result()
	if err != nil {
		return nil, fmt.Errorf("latest env read failed: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	reading := &domain.EnvReading{Key: key}
	fmt.Sscanf(vals["temp"], "%f", &reading.Temp)
	fmt.Sscanf(vals["hum"], "%f", &reading.Hum)
	var unix int64
	fmt.Sscanf(vals["timestamp"], "%d", &unix)
	reading.Timestamp = time.Unix(unix, 0).UTC()
	return reading, nil
}

// --- Anchor liveness registry ---

// TouchAnchor records that an anchor announced itself. Liveness filtering
// happens lazily at read time, not via background sweep.
func (r *RedisStore) TouchAnchor(ctx context.Context, anchorID, mac string) error {
	status := domain.AnchorStatus{
		AnchorID: anchorID,
		MAC:      mac,
		LastSeen: time.Now().UTC(),
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("anchor status marshal failed: %w", err)
	}
	if err := r.client.HSet(ctx, "anchors:seen", anchorID, raw).Err(); err != nil {
		return fmt.Errorf("anchor touch failed: %w", err)
	}
	return nil
}

// Anchors lists anchors announced within the liveness window.
func (r *RedisStore) Anchors(ctx context.Context, liveWithin time.Duration) ([]domain.AnchorStatus, error) {
	vals, err := r.client.HGetAll(ctx, "anchors:seen").Result()
	if err != nil {
		return nil, fmt.Errorf("anchor listing failed: %w", err)
	}
	cutoff := time.Now().UTC().Add(-liveWithin)
	out := make([]domain.AnchorStatus, 0, len(vals))
	for _, raw := range vals {
		var st domain.AnchorStatus
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue
		}
		if st.LastSeen.Before(cutoff) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// --- Unregistered device registry ---

// TouchUnregistered records a BLE sample from a device no pet is registered
// for. Feeds the onboarding listing only; never the presence estimator.
func (r *RedisStore) TouchUnregistered(ctx context.Context, mac, btName, anchorID string, rssi int) error {
	dev := domain.SeenDevice{
		MAC:      mac,
		BTName:   btName,
		AnchorID: anchorID,
		RSSI:     rssi,
		LastSeen: time.Now().UTC(),
	}
	raw, err := json.Marshal(dev)
	if err != nil {
		return fmt.Errorf("seen device marshal failed: %w", err)
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, "devices:unregistered", mac, raw)
	pipe.Expire(ctx, "devices:unregistered", 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seen device touch failed: %w", err)
	}
	return nil
}

func (r *RedisStore) RecentUnregistered(ctx context.Context, within time.Duration) ([]domain.SeenDevice, error) {
	vals, err := r.client.HGetAll(ctx, "devices:unregistered").Result()
	if err != nil {
		return nil, fmt.Errorf("seen device listing failed: %w", err)
	}
	cutoff := time.Now().UTC().Add(-within)
	out := make([]domain.SeenDevice, 0, len(vals))
	for _, raw := range vals {
		var dev domain.SeenDevice
		if err := json.Unmarshal([]byte(raw), &dev); err != nil {
			continue
		}
		if dev.LastSeen.Before(cutoff) {
			continue
		}
		out = append(out, dev)
	}
	return out, nil
}

// --- Notification recipients ---

func (r *RedisStore) AddRecipient(ctx context.Context, chatID string) error {
	if err := r.client.SAdd(ctx, "notify:recipients", chatID).Err(); err != nil {
		return fmt.Errorf("recipient add failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Recipients(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, "notify:recipients").Result()
	if err != nil {
		return nil, fmt.Errorf("recipient listing failed: %w", err)
	}
	return ids, nil
}

// --- Fused state pub/sub ---

// PublishState broadcasts a fused state update on the tracker:state channel
// for any external dashboard consumers.
func (r *RedisStore) PublishState(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, "tracker:state", payload).Err()
}
