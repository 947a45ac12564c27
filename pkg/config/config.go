// Package config loads and validates docsearch configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Search, Redis, Kafka, Database, Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Database  DatabaseConfig  `yaml:"database"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig locates the search index and controls how it is built and
// which schema versions the reader accepts.
type IndexConfig struct {
	Path       string         `yaml:"path"`
	Stemmer    string         `yaml:"stemmer"`
	EnvVersion map[string]int `yaml:"envVersion"`
	SourceDir  string         `yaml:"sourceDir"`
	Excludes   []string       `yaml:"excludes"`
	Workers    int            `yaml:"workers"`
	Wrap       bool           `yaml:"wrap"`
}

// SearchConfig controls query limits and scoring weights.
type SearchConfig struct {
	DefaultLimit int          `yaml:"defaultLimit"`
	MaxLimit     int          `yaml:"maxLimit"`
	Scorer       ScorerConfig `yaml:"scorer"`
}

// ScorerConfig mirrors the weights applied per matching table.
type ScorerConfig struct {
	Title           float64 `yaml:"title"`
	PartialTitle    float64 `yaml:"partialTitle"`
	Term            float64 `yaml:"term"`
	PartialTerm     float64 `yaml:"partialTerm"`
	ObjNameMatch    float64 `yaml:"objNameMatch"`
	ObjPartialMatch float64 `yaml:"objPartialMatch"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings. No brokers disables
// event publishing and hot reload.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	IndexEvents     string `yaml:"indexEvents"`
}

// DatabaseConfig selects the analytics snapshot store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns the data source name for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	TopQueries       int           `yaml:"topQueries"`
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

// RateLimitConfig bounds requests per client IP. Zero RequestsPerSecond
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
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
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration, without file or environment
// input.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			Path:       "searchindex.js",
			Stemmer:    "porter",
			EnvVersion: map[string]int{"sphinx": 56},
			Excludes:   []string{"_build", ".git", ".ipynb_checkpoints"},
			Workers:    4,
			Wrap:       true,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			Scorer: ScorerConfig{
				Title:           15,
				PartialTitle:    7,
				Term:            5,
				PartialTerm:     2,
				ObjNameMatch:    11,
				ObjPartialMatch: 6,
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "docsearch",
			Topics: KafkaTopics{
				AnalyticsEvents: "search-analytics",
				IndexEvents:     "index-events",
			},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "docsearch-analytics.db",
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Port:             8081,
			BufferSize:       1024,
			SnapshotInterval: time.Minute,
			TopQueries:       10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path is required")
	}
	switch c.Index.Stemmer {
	case "porter", "english", "none":
	default:
		return fmt.Errorf("index.stemmer %q: want porter, english or none", c.Index.Stemmer)
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxLimit %d below defaultLimit %d", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
	default:
		return fmt.Errorf("database.driver %q: want postgres or sqlite", c.Database.Driver)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rateLimit.requestsPerSecond must not be negative")
	}
	return nil
}

// RedisEnabled reports whether a result cache is configured.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

// KafkaEnabled reports whether event streaming is configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DS_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("DS_INDEX_STEMMER"); v != "" {
		cfg.Index.Stemmer = v
	}
	if v := os.Getenv("DS_INDEX_SOURCE_DIR"); v != "" {
		cfg.Index.SourceDir = v
	}
	if v := os.Getenv("DS_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Workers = n
		}
	}
	if v := os.Getenv("DS_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("DS_SEARCH_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxLimit = n
		}
	}
	if v := os.Getenv("DS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DS_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DS_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DS_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DS_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DS_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("DS_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("DS_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = strings.Split(v, ",")
	}
}
