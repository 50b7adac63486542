package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Empty(t, cfg.Dictionary.Path)
	assert.Equal(t, 100, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "solve-events", cfg.Kafka.Topics.SolveEvents)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  mode: development
dictionary:
  path: /data/words_alpha.txt
  dedupe: true
search:
  defaultLimit: 10
  maxResults: 50
  parallelScan: true
redis:
  enabled: true
  cacheTTL: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "/data/words_alpha.txt", cfg.Dictionary.Path)
	assert.True(t, cfg.Dictionary.Dedupe)
	assert.True(t, cfg.Search.ParallelScan)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	// untouched sections keep defaults
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APPLICATION_HOST", "localhost")
	t.Setenv("APPLICATION_PORT", "8181")
	t.Setenv("WP_SERVER_MODE", "development")
	t.Setenv("WP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WP_REDIS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8181", cfg.Server.Addr())
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
}

func TestWPPrefixBeatsApplicationAlias(t *testing.T) {
	t.Setenv("APPLICATION_PORT", "8181")
	t.Setenv("WP_SERVER_PORT", "8282")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8282, cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "search:\n  defaultLimit: 500\n  maxResults: 10\n"))
	assert.ErrorContains(t, err, "maxResults")
}
