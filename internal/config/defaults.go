package config

import (
	"time"

	"github.com/spf13/viper"

	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default values
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerMaxBodySize     = 8 << 20
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultEntitiesURL      = "https://mtgjson.com/api/v5/VintageAtomic.json"
	DefaultKeywordsURL      = "https://mtgjson.com/api/v5/Keywords.json"
	DefaultCorpusFormat     = "auto"
	DefaultCorpusLanguage   = "English"
	DefaultCorpusDataDir    = "./data"
	DefaultCorpusHTTPTimout = 2 * time.Minute
	DefaultCorpusCacheTTL   = 24 * time.Hour

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisTimeout   = 3 * time.Second
	DefaultRedisKeyPrefix = "deckscan:"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "deckscan-worker"
	DefaultKafkaRequestTopic = "scan.requested"
	DefaultKafkaResultTopic  = "scan.completed"
	DefaultKafkaDLQTopic     = "dead_letter.scan"
	DefaultKafkaMaxRetries   = 3
	DefaultKafkaRetryBackoff = time.Second
	DefaultKafkaStartOffset  = "latest"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIORegion   = "us-east-1"

	DefaultWorkerConcurrency = 8
	DefaultWorkerMaxBatch    = 64

	DefaultMetricsNamespace = "deckscan"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultExtraKeywords are interface labels that show up in deck-builder
// screenshots and resemble card names.
var DefaultExtraKeywords = []string{"Display", "Land", "Search", "Profile"}

// ApplyDefaults fills zero-value fields of cfg. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// ── Recognition ───────────────────────────────────────────────────────────
	applyRecognitionDefaults(&cfg.Recognition)

	// ── Corpus ────────────────────────────────────────────────────────────────
	if cfg.Corpus.Entities == "" && len(cfg.Corpus.ExtraEntities) == 0 && cfg.Corpus.ExtraEntitiesFile == "" {
		cfg.Corpus.Entities = DefaultEntitiesURL
	}
	if cfg.Corpus.EntitiesFormat == "" {
		cfg.Corpus.EntitiesFormat = DefaultCorpusFormat
	}
	if cfg.Corpus.KeywordsFormat == "" {
		cfg.Corpus.KeywordsFormat = DefaultCorpusFormat
	}
	if len(cfg.Corpus.Languages) == 0 {
		cfg.Corpus.Languages = []string{DefaultCorpusLanguage}
	}
	if cfg.Corpus.ExtraKeywords == nil {
		cfg.Corpus.ExtraKeywords = append([]string(nil), DefaultExtraKeywords...)
	}
	if cfg.Corpus.DataDir == "" {
		cfg.Corpus.DataDir = DefaultCorpusDataDir
	}
	if cfg.Corpus.HTTPTimeout == 0 {
		cfg.Corpus.HTTPTimeout = DefaultCorpusHTTPTimout
	}
	if cfg.Corpus.CacheTTL == 0 {
		cfg.Corpus.CacheTTL = DefaultCorpusCacheTTL
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultKafkaResultTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = DefaultKafkaRetryBackoff
	}
	if cfg.Kafka.StartOffset == "" {
		cfg.Kafka.StartOffset = DefaultKafkaStartOffset
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = DefaultMinIORegion
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxBatch == 0 {
		cfg.Worker.MaxBatch = DefaultWorkerMaxBatch
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func applyRecognitionDefaults(rc *recognizer.Config) {
	def := recognizer.DefaultConfig()
	if rc.EntityRatio == 0 {
		rc.EntityRatio = def.EntityRatio
	}
	if rc.KeywordRatio == 0 {
		rc.KeywordRatio = def.KeywordRatio
	}
	if rc.MaxEntityDistance == 0 {
		rc.MaxEntityDistance = def.MaxEntityDistance
	}
	if rc.MaxKeywordDistance == 0 {
		rc.MaxKeywordDistance = def.MaxKeywordDistance
	}
	if rc.MinTextLength == 0 {
		rc.MinTextLength = def.MinTextLength
	}
	if rc.MaxTextLength == 0 {
		rc.MaxTextLength = def.MaxTextLength
	}
	if rc.LengthSlack == 0 {
		rc.LengthSlack = def.LengthSlack
	}
	if rc.PrefixLength == 0 {
		rc.PrefixLength = def.PrefixLength
	}
	if rc.Capacity.MinPrimary == 0 {
		rc.Capacity.MinPrimary = def.Capacity.MinPrimary
	}
	if rc.Capacity.OverflowAllowance == 0 {
		rc.Capacity.OverflowAllowance = def.Capacity.OverflowAllowance
	}
}

// registerKeys declares every key on v so that AutomaticEnv can resolve
// DECKSCAN_* variables even when no config file mentions the key.
func registerKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
		"server.max_body_size", "server.shutdown_timeout",

		"recognition.entity_ratio", "recognition.keyword_ratio",
		"recognition.max_entity_distance", "recognition.max_keyword_distance",
		"recognition.min_text_length", "recognition.max_text_length",
		"recognition.length_slack", "recognition.prefix_length",
		"recognition.capacity.min_primary", "recognition.capacity.overflow_allowance",

		"corpus.entities", "corpus.entities_format", "corpus.keywords", "corpus.keywords_format",
		"corpus.languages", "corpus.extra_keywords", "corpus.extra_entities",
		"corpus.extra_entities_file", "corpus.data_dir", "corpus.http_timeout",
		"corpus.cache_ttl", "corpus.watch",

		"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.pool_size",
		"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout", "redis.key_prefix",

		"kafka.brokers", "kafka.group_id", "kafka.request_topic", "kafka.result_topic",
		"kafka.dead_letter_topic", "kafka.max_retries", "kafka.retry_backoff", "kafka.start_offset",

		"minio.endpoint", "minio.access_key_id", "minio.secret_access_key", "minio.use_ssl", "minio.region",

		"worker.concurrency", "worker.max_batch",

		"metrics.enabled", "metrics.namespace", "metrics.path",

		"log.level", "log.format", "log.output_paths", "log.error_output_paths",
	} {
		_ = v.BindEnv(key)
	}
}
