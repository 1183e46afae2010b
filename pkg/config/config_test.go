package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.TopK)
	assert.InDelta(t, 0.2, cfg.Search.StopWordThreshold, 1e-12)
	assert.Equal(t, "search-events", cfg.Kafka.Topics.SearchEvents)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: 9000
corpus:
  corpusPath: /data/train.txt
  weightsPath: /data/idf.txt
search:
  topK: 5
  queryTimeout: 500ms
redis:
  enabled: true
  cacheTTL: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("LS_REDIS_ADDR", "cache:6379")
	t.Setenv("LS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/data/train.txt", cfg.Corpus.CorpusPath)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.QueryTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	// untouched sections keep their defaults
	assert.InDelta(t, 0.2, cfg.Search.StopWordThreshold, 1e-12)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no corpus", func(c *Config) { c.Corpus.CorpusPath = "" }},
		{"no weights", func(c *Config) { c.Corpus.WeightsPath = "" }},
		{"zero topK", func(c *Config) { c.Search.TopK = 0 }},
		{"negative threshold", func(c *Config) { c.Search.StopWordThreshold = -1 }},
		{"metadata required without path", func(c *Config) {
			c.Search.RequireMetadata = true
			c.Corpus.MetadataPath = ""
		}},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
		{"rate limit without window", func(c *Config) {
			c.Server.RateLimit = 100
			c.Server.RateWindow = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}
