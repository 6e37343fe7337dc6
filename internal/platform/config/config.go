package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the flag ledger.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL selects the durable store twins; empty falls back to the
	// in-memory stores (development and tests).
	PostgresURL string

	Redis RedisConfig

	// KafkaBrokers enables the Kafka event sink when non-empty.
	KafkaBrokers []string
	EventTopic   string

	// Submission limits. Defaults follow the larger of the two observed
	// ledger variants; both are deployment-tunable.
	ReviewMaxLen    int
	PayloadMaxBytes int

	// RatingCacheTTL bounds staleness of cached rating snapshots.
	RatingCacheTTL time.Duration

	// SealKey is the 64-char hex key used to seal anonymous sender
	// references. Empty means a process-local ephemeral key is generated.
	SealKey string
}

// RedisConfig carries connection settings for the rating snapshot cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("FLAGLEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("EVENT_TOPIC")
	if topic == "" {
		topic = "flagledger.events"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaBrokers:    brokers,
		EventTopic:      topic,
		ReviewMaxLen:    envInt("REVIEW_MAX_LEN", 200),
		PayloadMaxBytes: envInt("PAYLOAD_MAX_BYTES", 500),
		RatingCacheTTL:  envDuration("RATING_CACHE_TTL", 5*time.Minute),
		SealKey:         os.Getenv("SEAL_KEY"),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
