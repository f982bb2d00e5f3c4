// Package config defines the configuration of every deckscan binary. The
// types here are plain data with validation; loading lives in loader.go and
// defaults in defaults.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CorpusConfig says where the entity and keyword lists come from. A location
// is a local path, an http(s) URL or an s3://bucket/key object.
type CorpusConfig struct {
	Entities          string        `mapstructure:"entities"`
	EntitiesFormat    string        `mapstructure:"entities_format"` // "auto" | "lines" | "mtgjson-atomic"
	Keywords          string        `mapstructure:"keywords"`
	KeywordsFormat    string        `mapstructure:"keywords_format"` // "auto" | "lines" | "mtgjson-keywords"
	Languages         []string      `mapstructure:"languages"`
	ExtraKeywords     []string      `mapstructure:"extra_keywords"`
	ExtraEntities     []string      `mapstructure:"extra_entities"`
	ExtraEntitiesFile string        `mapstructure:"extra_entities_file"`
	DataDir           string        `mapstructure:"data_dir"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	Watch             bool          `mapstructure:"watch"`
}

// RedisConfig holds the Redis connection used to cache downloaded corpora.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the scan worker's broker settings.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	RequestTopic    string        `mapstructure:"request_topic"`
	ResultTopic     string        `mapstructure:"result_topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	StartOffset     string        `mapstructure:"start_offset"` // "earliest" | "latest"
}

// MinIOConfig holds object storage credentials for s3:// corpus locations.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// WorkerConfig bounds concurrency of batch scans and the Kafka worker.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxBatch    int `mapstructure:"max_batch"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Recognition recognizer.Config `mapstructure:"recognition"`
	Corpus      CorpusConfig      `mapstructure:"corpus"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         logging.LogConfig `mapstructure:"log"`
}

// Validate checks the whole configuration and returns the first problem.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: configuration is nil")
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("config: server.max_body_size must be > 0, got %d", c.Server.MaxBodySize)
	}

	// Recognition
	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("config: recognition: %w", err)
	}

	// Corpus
	if strings.TrimSpace(c.Corpus.Entities) == "" && len(c.Corpus.ExtraEntities) == 0 && c.Corpus.ExtraEntitiesFile == "" {
		return fmt.Errorf("config: corpus.entities, corpus.extra_entities or corpus.extra_entities_file is required")
	}
	switch c.Corpus.EntitiesFormat {
	case "auto", "lines", "mtgjson-atomic":
	default:
		return fmt.Errorf("config: corpus.entities_format %q is invalid; expected auto|lines|mtgjson-atomic", c.Corpus.EntitiesFormat)
	}
	switch c.Corpus.KeywordsFormat {
	case "auto", "lines", "mtgjson-keywords":
	default:
		return fmt.Errorf("config: corpus.keywords_format %q is invalid; expected auto|lines|mtgjson-keywords", c.Corpus.KeywordsFormat)
	}
	if len(c.Corpus.Languages) == 0 {
		return fmt.Errorf("config: corpus.languages must contain at least one language")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}
	switch c.Kafka.StartOffset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("config: kafka.start_offset %q is invalid; expected earliest|latest", c.Kafka.StartOffset)
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.MaxBatch < 1 {
		return fmt.Errorf("config: worker.max_batch must be ≥ 1, got %d", c.Worker.MaxBatch)
	}

	// Log
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
