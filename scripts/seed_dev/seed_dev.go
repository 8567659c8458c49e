package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	ctx := context.Background()

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		seedGetEnv("DB_USER", "tracker_user"),
		seedGetEnv("DB_PASSWORD", "tracker_password"),
		seedGetEnv("DB_HOST", "localhost"),
		seedGetEnv("DB_PORT", "5432"),
		seedGetEnv("DB_NAME", "pet_tracker"),
	)

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	rdb := redis.NewClient(&redis.Options{
		Addr:     seedGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: seedGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer rdb.Close()

	fmt.Println("Connecting to Redis...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_pets(ctx, conn)
	step2_rooms(ctx, conn)
	step3_perimeter(ctx, conn)
	step4_recipients(ctx, rdb)
	step5_verify(ctx, conn, rdb)

	fmt.Println("\n✅ Dev data seeded successfully")
	fmt.Println("   Run next: go run cmd/trackerd/main.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Demo pets
// ─────────────────────────────────────────────────────────────
func step1_pets(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Seeding pets ────────────────────────")

	pets := []struct {
		id, name, mac, btName, owner string
		tempMin, tempMax             float64
	}{
		{"pet_milo", "Milo", "AA:BB:CC:DD:EE:01", "MiloTag", "owner_demo", 10, 30},
		{"pet_luna", "Luna", "AA:BB:CC:DD:EE:02", "LunaTag", "owner_demo", 12, 28},
	}

	for _, p := range pets {
		_, err := conn.Exec(ctx, `
			INSERT INTO pets (id, name, mac_address, bt_name, owner_id, temp_min, temp_max)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				mac_address = EXCLUDED.mac_address,
				bt_name = EXCLUDED.bt_name,
				temp_min = EXCLUDED.temp_min,
				temp_max = EXCLUDED.temp_max
		`, p.id, p.name, p.mac, p.btName, p.owner, p.tempMin, p.tempMax)
		if err != nil {
			log.Fatalf("Failed to insert pet %s: %v", p.id, err)
		}
		fmt.Printf("  ✓ %-10s %s (%s)\n", p.name, p.mac, p.id)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 2 — Rooms and anchors
// ─────────────────────────────────────────────────────────────
func step2_rooms(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Seeding rooms ───────────────────────")

	rooms := []struct {
		id, name, mac string
		allowed       bool
	}{
		{"room_living", "Living Room", "11:22:33:44:55:01", true},
		{"room_kitchen", "Kitchen", "11:22:33:44:55:02", false},
		{"room_bedroom", "Bedroom", "11:22:33:44:55:03", true},
	}

	for _, r := range rooms {
		_, err := conn.Exec(ctx, `
			INSERT INTO rooms (id, name, mac_address, allowed)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				mac_address = EXCLUDED.mac_address,
				allowed = EXCLUDED.allowed
		`, r.id, r.name, r.mac, r.allowed)
		if err != nil {
			log.Fatalf("Failed to insert room %s: %v", r.id, err)
		}
		status := "allowed"
		if !r.allowed {
			status = "RESTRICTED"
		}
		fmt.Printf("  ✓ %-12s anchor %s (%s)\n", r.name, r.mac, status)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 3 — Allowed perimeter
// ─────────────────────────────────────────────────────────────
func step3_perimeter(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Seeding perimeter ───────────────────")

	_, err := conn.Exec(ctx, `
		INSERT INTO perimeter_config (key, center_lat, center_lon, radius_meters)
		VALUES ('global', 45.4642, 9.1900, 50)
		ON CONFLICT (key) DO UPDATE SET
			center_lat = EXCLUDED.center_lat,
			center_lon = EXCLUDED.center_lon,
			radius_meters = EXCLUDED.radius_meters,
			updated_at = NOW()
	`)
	if err != nil {
		log.Fatalf("Failed to insert perimeter: %v", err)
	}
	fmt.Println("  ✓ global fence: 45.4642, 9.1900 radius 50m")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Notification recipients
// ─────────────────────────────────────────────────────────────
func step4_recipients(ctx context.Context, rdb *redis.Client) {
	fmt.Println("\n── Step 4: Seeding Telegram recipients ─────────")

	chatID := seedGetEnv("DEMO_TELEGRAM_CHAT_ID", "")
	if chatID == "" {
		fmt.Println("  - DEMO_TELEGRAM_CHAT_ID not set, skipping")
		return
	}

	// Key pattern: notify:recipients → set of chat IDs
	// This is what the Telegram sender fans out to
	if err := rdb.SAdd(ctx, "notify:recipients", chatID).Err(); err != nil {
		log.Fatalf("Failed to add recipient: %v", err)
	}
	fmt.Printf("  ✓ recipient %s added\n", chatID)
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verification
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn, rdb *redis.Client) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	counts := []struct {
		table string
		want  int
	}{
		{"pets", 2},
		{"rooms", 3},
		{"perimeter_config", 1},
	}
	for _, c := range counts {
		var n int
		if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(&n); err != nil {
			log.Fatalf("Verification failed for %s: %v", c.table, err)
		}
		if n < c.want {
			log.Fatalf("Expected at least %d rows in %s, found %d", c.want, c.table, n)
		}
		fmt.Printf("  ✓ %-18s %d rows\n", c.table, n)
	}

	n, err := rdb.SCard(ctx, "notify:recipients").Result()
	if err != nil {
		log.Fatalf("Verification failed for recipients: %v", err)
	}
	fmt.Printf("  ✓ %-18s %d members\n", "notify:recipients", n)
}

func seedGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
