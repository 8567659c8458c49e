package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pet-monitor/tracker/internal/config"
	"pet-monitor/tracker/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreFromURL connects with a full connection string. Used by
// tests and operational scripts.
func NewPostgresStoreFromURL(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Pets ---

const petColumns = "id, name, mac_address, bt_name, owner_id, temp_min, temp_max"

func scanPet(row pgx.Row) (*domain.Pet, error) {
	var p domain.Pet
	err := row.Scan(&p.ID, &p.Name, &p.MAC, &p.BTName, &p.OwnerID, &p.TempMin, &p.TempMax)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pet scan failed: %w", err)
	}
	return &p, nil
}

// PetByMAC looks up a pet by its canonical hardware identifier.
// Returns (nil, nil) when no pet is registered for the MAC.
func (s *PostgresStore) PetByMAC(ctx context.Context, mac string) (*domain.Pet, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+petColumns+" FROM pets WHERE mac_address = $1", mac)
	return scanPet(row)
}

func (s *PostgresStore) PetByID(ctx context.Context, id string) (*domain.Pet, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+petColumns+" FROM pets WHERE id = $1", id)
	return scanPet(row)
}

// --- Rooms ---

// RoomByAnchorMAC resolves the room association for an anchor.
// Returns (nil, nil) when the anchor has no room record.
func (s *PostgresStore) RoomByAnchorMAC(ctx context.Context, mac string) (*domain.Room, error) {
	var r domain.Room
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, mac_address, allowed FROM rooms WHERE mac_address = $1", mac).
		Scan(&r.ID, &r.Name, &r.MAC, &r.Allowed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("room lookup failed: %w", err)
	}
	return &r, nil
}

// --- Perimeter ---

// Perimeter reads the single global geofence record.
// Returns (nil, nil) when no perimeter has been configured yet.
func (s *PostgresStore) Perimeter(ctx context.Context) (*domain.Perimeter, error) {
	var p domain.Perimeter
	err := s.pool.QueryRow(ctx,
		"SELECT center_lat, center_lon, radius_meters FROM perimeter_config WHERE key = 'global'").
		Scan(&p.CenterLat, &p.CenterLon, &p.RadiusMeters)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("perimeter read failed: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SavePerimeter(ctx context.Context, p domain.Perimeter) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO perimeter_config (key, center_lat, center_lon, radius_meters, updated_at)
		VALUES ('global', $1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
			SET center_lat = EXCLUDED.center_lat,
			    center_lon = EXCLUDED.center_lon,
			    radius_meters = EXCLUDED.radius_meters,
			    updated_at = NOW()
	`, p.CenterLat, p.CenterLon, p.RadiusMeters)
	if err != nil {
		return fmt.Errorf("perimeter save failed: %w", err)
	}
	return nil
}

// --- Position log ---

var positionColumns = []string{
	"timestamp",
	"pet_id",
	"source",
	"classification",
	"room",
	"latitude",
	"longitude",
	"rssi",
	"raw_payload",
}

// AppendPositions inserts a batch into the append-only position log.
// Each record is independent; there is no dedup and no cross-record invariant.
func (s *PostgresStore) AppendPositions(ctx context.Context, recs []*domain.PositionRecord) error {
	if len(recs) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(recs))
	for i, r := range recs {
		var petID interface{}
		if r.PetID != "" {
			petID = r.PetID
		}
		var raw interface{}
		if len(r.RawPayload) > 0 {
			raw = string(r.RawPayload)
		}
		rows[i] = []interface{}{
			r.Timestamp,
			petID,
			string(r.Source),
			string(r.Class),
			r.Room,
			r.Lat,
			r.Lon,
			r.RSSI,
			raw,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"pet_positions"},
		positionColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(recs), err)
	}

	return nil
}

// QueryPositions returns the position log for one pet over an inclusive time
// range, ascending by timestamp. No pagination; callers bound the range.
func (s *PostgresStore) QueryPositions(ctx context.Context, petID string, from, to time.Time) ([]domain.PositionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT timestamp, COALESCE(pet_id, ''), source, classification, COALESCE(room, ''), latitude, longitude, rssi
		FROM pet_positions
		WHERE pet_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`, petID, from, to)
	if err != nil {
		return nil, fmt.Errorf("position query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.PositionRecord
	for rows.Next() {
		var r domain.PositionRecord
		var source, class string
		if err := rows.Scan(&r.Timestamp, &r.PetID, &source, &class, &r.Room, &r.Lat, &r.Lon, &r.RSSI); err != nil {
			return nil, fmt.Errorf("position scan failed: %w", err)
		}
		r.Source = domain.Source(source)
		r.Class = domain.Classification(class)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("position rows failed: %w", err)
	}
	return out, nil
}

// --- Environment samples ---

func (s *PostgresStore) InsertEnvReading(ctx context.Context, r *domain.EnvReading) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO env_readings (key, temp, hum, timestamp)
		VALUES ($1, $2, $3, $4)
	`, r.Key, r.Temp, r.Hum, r.Timestamp)
	if err != nil {
		return fmt.Errorf("env insert failed: %w", err)
	}
	return nil
}
