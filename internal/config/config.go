package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Environment string
	InstanceID  string

	ReqHTTPAddr string
	ObsHTTPAddr string
	GRPCAddr    string

	RepositoryDriver     string
	DatabaseURL          string
	SnapshotCacheEnabled bool
	SnapshotCacheTTL     time.Duration

	BusDriver         string
	BusExchange       string
	BusConnectTimeout time.Duration
	RedisAddr         string
	RedisPoolSize     int
	KafkaBrokers      []string
	DeadLetterTopic   string

	TracingEnabled bool
	JaegerURL      string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads the environment, seeded from a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "collab-editor"),
		Environment: getEnv("ENVIRONMENT", "production"),
		InstanceID:  getEnv("INSTANCE_ID", getEnv("HOSTNAME", "")),

		ReqHTTPAddr: fixPort(getEnv("HTTP_PORT", ":8080")),
		ObsHTTPAddr: fixPort(getEnv("HTTP_ADDR", ":8090")),
		GRPCAddr:    fixPort(getEnv("GRPC_ADDR", ":50060")),

		RepositoryDriver:     getEnv("REPOSITORY_DRIVER", "memory"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SnapshotCacheEnabled: getEnvBool("SNAPSHOT_CACHE_ENABLED", false),
		SnapshotCacheTTL:     getEnvDuration("SNAPSHOT_CACHE_TTL", time.Hour),

		BusDriver:         getEnv("BUS_DRIVER", "redis"),
		BusExchange:       getEnv("BUS_EXCHANGE", "collab-editor-exchange"),
		BusConnectTimeout: getEnvDuration("BUS_CONNECT_TIMEOUT", 5*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		KafkaBrokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		DeadLetterTopic:   getEnv("DEAD_LETTER_TOPIC", ""),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		JaegerURL:      getEnv("JAEGER_URL", "http://localhost:14268/api/traces"),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	if cfg.RepositoryDriver == "postgres" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = mustEnv("DATABASE_URL")
	}
	return cfg
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("invalid %s=%q, using %s", key, v, fallback)
	return fallback
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env: %s", k)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
