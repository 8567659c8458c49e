package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	HTTPPort string

	// MQTT broker
	BrokerURL   string
	TopicPrefix string

	// TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Pipeline channels
	DBChannelSize    int
	StateChannelSize int
	AlertChannelSize int

	// Batch writer tuning
	DBBatchSize       int
	DBFlushIntervalMS int

	// Worker counts
	DBWriterWorkers    int
	StateWriterWorkers int
	AlertWorkers       int

	// Presence tuning
	DetectionRSSIThreshold float64 // dBm; full-window mean at or above counts as presence
	EventCooldownSeconds   int
	AnchorLivenessSeconds  int

	// Notification tuning
	NotifyDebounceSeconds       float64
	NotificationCooldownSeconds int

	// Pet resolver cache
	ResolverCacheTTLSeconds int

	// External collaborators
	TelegramBotToken string
	CameraBaseURL    string
	CameraTimeoutSec int

	// Static API keys guarding config writes
	ValidAPIKeys []string
}

func Load() *Config {
	return &Config{
		HTTPPort:                    getEnv("HTTP_PORT", "8001"),
		BrokerURL:                   getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		TopicPrefix:                 getEnv("MQTT_TOPIC_PREFIX", "pettracker"),
		DBHost:                      getEnv("DB_HOST", "localhost"),
		DBPort:                      getEnv("DB_PORT", "5432"),
		DBUser:                      getEnv("DB_USER", "tracker_user"),
		DBPassword:                  getEnv("DB_PASSWORD", "tracker_password"),
		DBName:                      getEnv("DB_NAME", "pet_tracker"),
		DBMaxConns:                  int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:                   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:               getEnv("REDIS_PASSWORD", ""),
		RedisDB:                     getEnvInt("REDIS_DB", 0),
		DBChannelSize:               getEnvInt("DB_CHANNEL_SIZE", 10000),
		StateChannelSize:            getEnvInt("STATE_CHANNEL_SIZE", 50000),
		AlertChannelSize:            getEnvInt("ALERT_CHANNEL_SIZE", 10000),
		DBBatchSize:                 getEnvInt("DB_BATCH_SIZE", 500),
		DBFlushIntervalMS:           getEnvInt("DB_FLUSH_INTERVAL_MS", 100),
		DBWriterWorkers:             getEnvInt("DB_WRITER_WORKERS", 4),
		StateWriterWorkers:          getEnvInt("STATE_WRITER_WORKERS", 2),
		AlertWorkers:                getEnvInt("ALERT_WORKERS", 2),
		DetectionRSSIThreshold:      getEnvFloat("DETECTION_RSSI_THRESHOLD", -65),
		EventCooldownSeconds:        getEnvInt("EVENT_COOLDOWN_SEC", 5),
		AnchorLivenessSeconds:       getEnvInt("ANCHOR_LIVENESS_SEC", 120),
		NotifyDebounceSeconds:       getEnvFloat("NOTIFY_DEBOUNCE_SEC", 3.0),
		NotificationCooldownSeconds: getEnvInt("NOTIFICATION_COOLDOWN_SEC", 60),
		ResolverCacheTTLSeconds:     getEnvInt("RESOLVER_CACHE_TTL_SECONDS", 300),
		TelegramBotToken:            getEnv("TELEGRAM_BOT_TOKEN", ""),
		CameraBaseURL:               getEnv("CAMERA_BASE_URL", "http://172.20.10.2"),
		CameraTimeoutSec:            getEnvInt("CAMERA_TIMEOUT_SEC", 5),
		ValidAPIKeys:                strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
