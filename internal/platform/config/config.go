package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultClaimWindow           = 90 * 24 * time.Hour
	DefaultVerificationThreshold = 3
	DefaultMaxVerifiers          = 5
	DefaultAllowedToken          = "USDC"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	TxTimeout     time.Duration

	Database  DatabaseConfig
	Ledger    DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Aid       AidConfig
	Statement StatementConfig
	Directory DirectoryConfig
}

// DatabaseConfig configures a Postgres connection. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the settings cache. An empty URL selects the in-memory provider.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers disables the relay.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
}

// AidConfig holds platform defaults seeded into the settings provider.
type AidConfig struct {
	ClaimWindow           time.Duration
	VerificationThreshold uint8
	MaxVerifiers          uint8
	PlatformFeeBPS        uint16
	AllowedTokens         []string
	MonitorInterval       time.Duration
}

// StatementConfig selects the blob store for pool statements. An empty bucket keeps them in memory.
type StatementConfig struct {
	Bucket   string
	Region   string
	Endpoint string
}

// DirectoryConfig seeds the in-memory directory. FieldAgents entries are
// "<uuid>" or "<uuid>@<disaster>@<disaster>".
type DirectoryConfig struct {
	FieldAgents []string
	Admins      []string
}

// FromEnv loads .env when present, then reads the environment.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	cfg := Server{
		Addr:          getEnv("SAHARA_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TxTimeout:     durationEnv("TX_TIMEOUT", 5*time.Second, &errs),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    intEnv("DB_MAX_OPEN_CONNS", 25, &errs),
			MaxIdleConns:    intEnv("DB_MAX_IDLE_CONNS", 5, &errs),
			ConnMaxLifetime: durationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
		},
		Ledger: DatabaseConfig{
			URL:          os.Getenv("LEDGER_DATABASE_URL"),
			MaxOpenConns: intEnv("LEDGER_MAX_CONNS", 10, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:       listEnv("KAFKA_BROKERS"),
			AuditTopic:    getEnv("AUDIT_TOPIC", "sahara.audit"),
			RelayInterval: durationEnv("OUTBOX_RELAY_INTERVAL", time.Second, &errs),
		},
		Aid: AidConfig{
			ClaimWindow:           durationEnv("CLAIM_WINDOW", DefaultClaimWindow, &errs),
			VerificationThreshold: uint8(intEnv("VERIFICATION_THRESHOLD", DefaultVerificationThreshold, &errs)),
			MaxVerifiers:          uint8(intEnv("MAX_VERIFIERS", DefaultMaxVerifiers, &errs)),
			PlatformFeeBPS:        uint16(intEnv("PLATFORM_FEE_BPS", 0, &errs)),
			AllowedTokens:         listEnv("ALLOWED_TOKENS"),
			MonitorInterval:       durationEnv("RECLAIM_MONITOR_INTERVAL", time.Hour, &errs),
		},
		Statement: StatementConfig{
			Bucket:   os.Getenv("STATEMENT_BUCKET"),
			Region:   getEnv("AWS_REGION", "us-east-1"),
			Endpoint: os.Getenv("S3_ENDPOINT"),
		},
		Directory: DirectoryConfig{
			FieldAgents: listEnv("FIELD_AGENTS"),
			Admins:      listEnv("PLATFORM_ADMINS"),
		},
	}
	if len(cfg.Aid.AllowedTokens) == 0 {
		cfg.Aid.AllowedTokens = []string{DefaultAllowedToken}
	}

	if cfg.Aid.VerificationThreshold == 0 || cfg.Aid.VerificationThreshold > cfg.Aid.MaxVerifiers {
		errs = append(errs, fmt.Errorf("VERIFICATION_THRESHOLD must be between 1 and MAX_VERIFIERS"))
	}
	if cfg.Aid.PlatformFeeBPS > 10000 {
		errs = append(errs, fmt.Errorf("PLATFORM_FEE_BPS must be at most 10000"))
	}
	if cfg.Aid.ClaimWindow <= 0 {
		errs = append(errs, fmt.Errorf("CLAIM_WINDOW must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 65535 {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
