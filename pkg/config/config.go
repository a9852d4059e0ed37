// Package config loads and validates service configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Discovery, etc.).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds connection parameters for the forum record store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds connection and caching parameters for the trending cache.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"poolSize"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	OpTimeout   time.Duration `yaml:"opTimeout"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	// BreakerThreshold is the number of consecutive cache failures that
	// open the cache circuit breaker.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ForumEvents     string `yaml:"forumEvents"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// TrendingWeights are the coefficients of the trending score.
type TrendingWeights struct {
	RecentComments float64 `yaml:"recentComments"`
	TotalComments  float64 `yaml:"totalComments"`
	Recency        float64 `yaml:"recency"`
}

// DiscoveryConfig controls search and trending behaviour.
type DiscoveryConfig struct {
	DefaultWindowDays  int             `yaml:"defaultWindowDays"`
	DefaultMaxTopics   int             `yaml:"defaultMaxTopics"`
	MaxTopicsLimit     int             `yaml:"maxTopicsLimit"`
	MaxWindowDays      int             `yaml:"maxWindowDays"`
	Weights            TrendingWeights `yaml:"weights"`
	InvalidateOnEvents bool            `yaml:"invalidateOnEvents"`
	AnalyticsEnabled   bool            `yaml:"analyticsEnabled"`
	AnalyticsBuffer    int             `yaml:"analyticsBuffer"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults. The result is validated before it is
// returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "forum",
			User:            "forum",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			PoolSize:         10,
			DialTimeout:      2 * time.Second,
			OpTimeout:        500 * time.Millisecond,
			CacheTTL:         time.Hour,
			KeyPrefix:        "discovery:",
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "topic-discovery",
			Topics: KafkaTopics{
				ForumEvents:     "forum.events",
				AnalyticsEvents: "discovery.analytics",
			},
		},
		Discovery: DiscoveryConfig{
			DefaultWindowDays: 7,
			DefaultMaxTopics:  10,
			MaxTopicsLimit:    100,
			MaxWindowDays:     3650,
			Weights: TrendingWeights{
				RecentComments: 2,
				TotalComments:  1,
				Recency:        3,
			},
			AnalyticsBuffer: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// maxWindowDays is the longest window whose duration fits in a time.Duration.
const maxWindowDays = int(math.MaxInt64 / int64(24*time.Hour))

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	d := c.Discovery
	if d.DefaultWindowDays <= 0 {
		return fmt.Errorf("discovery.defaultWindowDays must be positive, got %d", d.DefaultWindowDays)
	}
	if d.MaxWindowDays < d.DefaultWindowDays || d.MaxWindowDays > maxWindowDays {
		return fmt.Errorf("discovery.maxWindowDays must be in [%d, %d], got %d", d.DefaultWindowDays, maxWindowDays, d.MaxWindowDays)
	}
	if d.MaxTopicsLimit <= 0 {
		return fmt.Errorf("discovery.maxTopicsLimit must be positive, got %d", d.MaxTopicsLimit)
	}
	if d.DefaultMaxTopics <= 0 || d.DefaultMaxTopics > d.MaxTopicsLimit {
		return fmt.Errorf("discovery.defaultMaxTopics must be in [1, %d], got %d", d.MaxTopicsLimit, d.DefaultMaxTopics)
	}
	w := d.Weights
	if w.RecentComments < 0 || w.TotalComments < 0 || w.Recency < 0 {
		return fmt.Errorf("discovery.weights must be non-negative, got %+v", w)
	}
	if c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("redis.cacheTTL must be positive, got %s", c.Redis.CacheTTL)
	}
	return nil
}

// applyEnvOverrides reads TD_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TD_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TD_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TD_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TD_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TD_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TD_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TD_REDIS_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Redis.CacheTTL = ttl
		}
	}
	if v := os.Getenv("TD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TD_DISCOVERY_INVALIDATE_ON_EVENTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Discovery.InvalidateOnEvents = b
		}
	}
	if v := os.Getenv("TD_DISCOVERY_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Discovery.AnalyticsEnabled = b
		}
	}
	if v := os.Getenv("TD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TD_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
