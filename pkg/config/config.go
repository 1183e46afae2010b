// Package config loads and validates the lyrics search configuration from a
// YAML file with environment-variable overrides. Every subsystem (corpus
// loading, retrieval, cache, analytics, metadata store) gets its own typed
// section.
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
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. RateLimit is the number of
// requests each client may make per RateWindow; zero disables limiting.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	RateWindow      time.Duration `yaml:"rateWindow"`
}

// CorpusConfig points at the preprocessed data files loaded at startup.
type CorpusConfig struct {
	CorpusPath   string `yaml:"corpusPath"`
	WeightsPath  string `yaml:"weightsPath"`
	MetadataPath string `yaml:"metadataPath"`
	BuildWorkers int    `yaml:"buildWorkers"`
}

// SearchConfig controls candidate selection and ranking.
type SearchConfig struct {
	TopK              int           `yaml:"topK"`
	StopWordThreshold float64       `yaml:"stopWordThreshold"`
	ParallelThreshold int           `yaml:"parallelThreshold"`
	ScoreWorkers      int           `yaml:"scoreWorkers"`
	QueryTimeout      time.Duration `yaml:"queryTimeout"`
	RequireMetadata   bool          `yaml:"requireMetadata"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for search analytics.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters for the track
// metadata store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// AnalyticsConfig tunes the search event pipeline: the collector in the
// search service and the aggregator in the analytics service.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
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

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
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
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Corpus.CorpusPath == "":
		return fmt.Errorf("config: corpus.corpusPath is required")
	case c.Corpus.WeightsPath == "":
		return fmt.Errorf("config: corpus.weightsPath is required")
	case c.Search.TopK < 1:
		return fmt.Errorf("config: search.topK must be positive, got %d", c.Search.TopK)
	case c.Search.StopWordThreshold < 0:
		return fmt.Errorf("config: search.stopWordThreshold must not be negative")
	case c.Search.RequireMetadata && c.Corpus.MetadataPath == "":
		return fmt.Errorf("config: search.requireMetadata needs corpus.metadataPath")
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.Server.RateLimit < 0:
		return fmt.Errorf("config: server.rateLimit must not be negative")
	case c.Server.RateLimit > 0 && c.Server.RateWindow <= 0:
		return fmt.Errorf("config: server.rateWindow must be positive when rateLimit is set")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateWindow:      time.Minute,
		},
		Corpus: CorpusConfig{
			CorpusPath:   "data/mxm_dataset_train.txt",
			WeightsPath:  "data/idf.txt",
			MetadataPath: "data/id_to_metadata.txt",
			BuildWorkers: 4,
		},
		Search: SearchConfig{
			TopK:              10,
			StopWordThreshold: 0.2,
			ParallelThreshold: 2048,
			ScoreWorkers:      4,
			QueryTimeout:      2 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "lyrics-analytics",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
			},
		},
		Postgres: PostgresConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "lyricsearch",
			User:            "lyricsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    2 * time.Second,
			SnapshotInterval: time.Minute,
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

// applyEnvOverrides reads LS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LS_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("LS_CORPUS_PATH"); v != "" {
		cfg.Corpus.CorpusPath = v
	}
	if v := os.Getenv("LS_WEIGHTS_PATH"); v != "" {
		cfg.Corpus.WeightsPath = v
	}
	if v := os.Getenv("LS_METADATA_PATH"); v != "" {
		cfg.Corpus.MetadataPath = v
	}
	if v := os.Getenv("LS_SEARCH_TOPK"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Search.TopK = k
		}
	}
	if v := os.Getenv("LS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("LS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("LS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LS_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("LS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("LS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("LS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
