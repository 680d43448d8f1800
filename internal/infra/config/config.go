package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Persistence backends.
const (
	PersistenceMemory   = "memory"
	PersistenceMongo    = "mongo"
	PersistencePostgres = "postgres"
)

// Pricing modes.
const (
	PricingMemory = "memory"
	PricingHTTP   = "http"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	LogLevel           string
	Persistence        string
	MongoURI           string
	MongoDB            string
	DatabaseURL        string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	PricingMode        string
	PricingURL         string
	PricingTimeout     time.Duration
	FixturesDir        string
	DefaultPageSize    int
	MaxPageSize        int
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Persistence:        strings.ToLower(getEnv("PERSISTENCE", PersistenceMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "rentacar"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "rentacar-notifications"),
		PricingMode:        strings.ToLower(getEnv("PRICING_MODE", PricingMemory)),
		PricingURL:         os.Getenv("PRICING_URL"),
		FixturesDir:        getEnv("FIXTURES_DIR", "data"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.PricingTimeout, err = parseDurationEnv("PRICING_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.DefaultPageSize, err = parseIntEnv("DEFAULT_PAGE_SIZE", 20); err != nil {
		return Config{}, err
	}
	if cfg.MaxPageSize, err = parseIntEnv("MAX_PAGE_SIZE", 100); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Persistence {
	case PersistenceMemory:
	case PersistenceMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when PERSISTENCE=%s", c.Persistence)
		}
	case PersistencePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when PERSISTENCE=%s", c.Persistence)
		}
	default:
		return fmt.Errorf("unknown PERSISTENCE %q", c.Persistence)
	}
	switch c.PricingMode {
	case PricingMemory:
	case PricingHTTP:
		if c.PricingURL == "" {
			return fmt.Errorf("PRICING_URL is required when PRICING_MODE=%s", c.PricingMode)
		}
	default:
		return fmt.Errorf("unknown PRICING_MODE %q", c.PricingMode)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("page sizes must satisfy 0 < DEFAULT_PAGE_SIZE <= MAX_PAGE_SIZE")
	}
	return nil
}

// KafkaEnabled reports whether a broker list was configured.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
