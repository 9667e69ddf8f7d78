package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean; zero-value backends (empty DSN/URL) mean
// the in-memory implementations are used instead.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	// AdminEmails receive the Admin role when the permission table is empty.
	AdminEmails []string

	// CacheTTL bounds staleness of configuration reads. Explicit invalidation
	// on mutation is the primary mechanism; the TTL is the safety net.
	CacheTTL time.Duration

	// WriteLockTimeout bounds how long insert/update/delete wait for the
	// table lock before failing busy. Narrowed from the legacy 30s to favor
	// responsiveness.
	WriteLockTimeout time.Duration

	// LockLease is how long a held lock survives a crashed holder before the
	// backend expires it.
	LockLease time.Duration

	BatchSize int
}

const (
	DefaultCacheTTL         = 5 * time.Minute
	DefaultWriteLockTimeout = 10 * time.Second
	DefaultLockLease        = 30 * time.Second
	DefaultBatchSize        = 100
)

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("NCR_ADDR", ":8080"),
		PostgresDSN:      os.Getenv("NCR_POSTGRES_DSN"),
		RedisURL:         os.Getenv("NCR_REDIS_URL"),
		KafkaTopic:       envOr("NCR_KAFKA_TOPIC", "ncr.events"),
		JWTSigningKey:    envOr("NCR_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		CacheTTL:         envDuration("NCR_CACHE_TTL", DefaultCacheTTL),
		WriteLockTimeout: envDuration("NCR_WRITE_LOCK_TIMEOUT", DefaultWriteLockTimeout),
		LockLease:        envDuration("NCR_LOCK_LEASE", DefaultLockLease),
		BatchSize:        envInt("NCR_BATCH_SIZE", DefaultBatchSize),
	}
	if brokers := os.Getenv("NCR_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if admins := os.Getenv("NCR_ADMIN_EMAILS"); admins != "" {
		cfg.AdminEmails = strings.Split(admins, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
