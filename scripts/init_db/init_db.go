package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "tracker_user"),
		dbGetEnv("DB_PASSWORD", "tracker_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "pet_tracker"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_extensions(ctx, conn)
	step2_registry_tables(ctx, conn)
	step3_positions_table(ctx, conn)
	step4_env_table(ctx, conn)
	step5_indexes(ctx, conn)
	step6_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_dev/seed_dev.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for hypertables
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — Registry tables (pets, rooms, perimeter)
// ─────────────────────────────────────────────────────────────
func step2_registry_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Registry tables ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS pets (

			id           TEXT             PRIMARY KEY,
			name         TEXT             NOT NULL,

			-- Normalised to AA:BB:CC:DD:EE:FF before insert
			mac_address  TEXT             NOT NULL UNIQUE,

			-- Advertised Bluetooth name, may differ from display name
			bt_name      TEXT,
			owner_id     TEXT,

			-- Comfort band; NULL means no threshold on that side
			temp_min     DOUBLE PRECISION,
			temp_max     DOUBLE PRECISION
		);
	`, "pets table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS rooms (

			id           TEXT             PRIMARY KEY,
			name         TEXT             NOT NULL,

			-- MAC of the anchor stationed in this room
			mac_address  TEXT             NOT NULL UNIQUE,

			-- false marks a restricted room
			allowed      BOOLEAN          NOT NULL DEFAULT true
		);
	`, "rooms table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS perimeter_config (

			-- Single global fence today; key leaves room for per-pet fences
			key            TEXT             PRIMARY KEY,
			center_lat     DOUBLE PRECISION NOT NULL,
			center_lon     DOUBLE PRECISION NOT NULL,
			radius_meters  DOUBLE PRECISION NOT NULL,
			updated_at     TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`, "perimeter_config table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — pet_positions table
// ─────────────────────────────────────────────────────────────
func step3_positions_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: pet_positions table ─────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS pet_positions (

			-- Time column — TimescaleDB partitions data by this
			timestamp       TIMESTAMPTZ      NOT NULL,

			-- NULL when the device was not resolved to a pet
			pet_id          TEXT,

			-- ble | gps
			source          TEXT             NOT NULL,

			-- room-allowed | room-restricted | zone-allowed | zone-restricted
			classification  TEXT             NOT NULL,

			-- Room name for BLE events, empty otherwise
			room            TEXT,

			-- GPS fix, NULL for BLE events
			latitude        DOUBLE PRECISION,
			longitude       DOUBLE PRECISION,

			-- Window mean for BLE events, NULL for GPS
			rssi            INTEGER,

			-- Original payload — stored for debugging and replay
			raw_payload     JSONB,

			CONSTRAINT chk_source CHECK (
				source IN ('ble', 'gps')
			),
			CONSTRAINT chk_classification CHECK (
				classification IN (
					'room-allowed', 'room-restricted',
					'zone-allowed', 'zone-restricted'
				)
			)
		);
	`, "pet_positions table created")

	// Convert to TimescaleDB hypertable
	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'pet_positions',
			'timestamp',
			if_not_exists => TRUE
		);
	`, "pet_positions converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — env_readings table
// ─────────────────────────────────────────────────────────────
func step4_env_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: env_readings table ──────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS env_readings (

			-- Device clock when provided, server receipt time otherwise
			timestamp  TIMESTAMPTZ      NOT NULL,

			-- Pet MAC, device identifier, or 'global'
			key        TEXT             NOT NULL,

			temp       DOUBLE PRECISION NOT NULL,
			hum        DOUBLE PRECISION NOT NULL
		);
	`, "env_readings table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'env_readings',
			'timestamp',
			if_not_exists => TRUE
		);
	`, "env_readings converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Indexes
// ─────────────────────────────────────────────────────────────
func step5_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_positions_pet_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_positions_pet_time
				  ON pet_positions (pet_id, timestamp DESC);`,
			why: "query: position history for one pet",
		},
		{
			name: "idx_positions_class_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_positions_class_time
				  ON pet_positions (classification, timestamp DESC);`,
			why: "query: recent restricted/outside events",
		},
		{
			name: "idx_env_key_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_env_key_time
				  ON env_readings (key, timestamp DESC);`,
			why: "query: readings for one pet or device",
		},
		{
			name: "idx_pets_mac",
			sql: `CREATE INDEX IF NOT EXISTS idx_pets_mac
				  ON pets (mac_address);`,
			why: "lookup: resolve scanned device to pet",
		},
		{
			name: "idx_rooms_mac",
			sql: `CREATE INDEX IF NOT EXISTS idx_rooms_mac
				  ON rooms (mac_address);`,
			why: "lookup: resolve anchor to room",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step6_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Verification ────────────────────────")

	// Check tables exist
	tables := []string{"pets", "rooms", "perimeter_config", "pet_positions", "env_readings"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	// Check hypertables
	for _, ht := range []string{"pet_positions", "env_readings"} {
		var hypertableName string
		err := conn.QueryRow(ctx, `
			SELECT hypertable_name
			FROM timescaledb_information.hypertables
			WHERE hypertable_name = $1
		`, ht).Scan(&hypertableName)
		if err != nil {
			log.Fatalf("%s is not a hypertable: %v", ht, err)
		}
		fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)
	}

	// Check indexes
	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('pet_positions', 'env_readings', 'pets', 'rooms')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
