package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
recognition:
  entity_ratio: 0.4
  capacity:
    min_primary: 40
corpus:
  entities: ./testdata/cards.txt
  entities_format: lines
  languages: [English, German]
  extra_keywords: [Display, Land]
redis:
  enabled: true
  addr: redis:6379
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  group_id: scanners
log:
  level: debug
  format: console
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 0.4, cfg.Recognition.EntityRatio)
	assert.Equal(t, 0.2, cfg.Recognition.KeywordRatio)
	assert.Equal(t, 40, cfg.Recognition.Capacity.MinPrimary)
	assert.Equal(t, 15, cfg.Recognition.Capacity.OverflowAllowance)
	assert.Equal(t, "./testdata/cards.txt", cfg.Corpus.Entities)
	assert.Equal(t, []string{"English", "German"}, cfg.Corpus.Languages)
	assert.Equal(t, []string{"Display", "Land"}, cfg.Corpus.ExtraKeywords)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "scanners", cfg.Kafka.GroupID)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server: [port"))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_EnvOverride(t *testing.T) {
	setEnvVars(t, map[string]string{
		"DECKSCAN_SERVER_PORT":                      "9999",
		"DECKSCAN_RECOGNITION_CAPACITY_MIN_PRIMARY": "100",
	})

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Recognition.Capacity.MinPrimary)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	setEnvVars(t, map[string]string{
		"DECKSCAN_CORPUS_ENTITIES":          "s3://cards/atomic.json",
		"DECKSCAN_KAFKA_BROKERS":            "a:9092,b:9092",
		"DECKSCAN_REDIS_ADDR":               "cache:6380",
		"DECKSCAN_CORPUS_CACHE_TTL":         "30m",
		"DECKSCAN_WORKER_MAX_BATCH":         "16",
		"DECKSCAN_RECOGNITION_ENTITY_RATIO": "0.35",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3://cards/atomic.json", cfg.Corpus.Entities)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Corpus.CacheTTL)
	assert.Equal(t, 16, cfg.Worker.MaxBatch)
	assert.Equal(t, 0.35, cfg.Recognition.EntityRatio)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoadOrEnv(t *testing.T) {
	cfg, err := LoadOrEnv("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEntitiesURL, cfg.Corpus.Entities)

	cfg, err = LoadOrEnv(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestMustLoad_Success(t *testing.T) {
	cfg := MustLoad(createTempConfigFile(t, validConfigYAML))
	assert.NotNil(t, cfg)
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	var port atomic.Int64
	require.NoError(t, Watch(path, func(c *Config) { port.Store(int64(c.Server.Port)) }, nil))

	updated := validConfigYAML + "\nmetrics:\n  enabled: true\n"
	updated = strings.Replace(updated, "port: 8081", "port: 8082", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool { return port.Load() == 8082 }, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}
