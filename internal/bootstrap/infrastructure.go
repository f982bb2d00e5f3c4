// Package bootstrap wires configuration into the infrastructure clients, the
// corpus loader and the recognition engine shared by every deckscan binary.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/deckscan/internal/config"
	"github.com/turtacn/deckscan/internal/corpus"
	redisclient "github.com/turtacn/deckscan/internal/infrastructure/database/redis"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	minioclient "github.com/turtacn/deckscan/internal/infrastructure/storage/minio"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
)

// NewLogger builds the process logger from the log section.
func NewLogger(cfg logging.LogConfig) (logging.Logger, error) {
	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger.Named("deckscan"), nil
}

// Infrastructure holds the clients a process needs. Redis is nil unless
// enabled; MinIO is always built since constructing it does no I/O.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.ScanMetrics

	Redis   *redisclient.Client
	Cache   redisclient.Cache
	MinIO   *minioclient.MinIOClient
	Objects minioclient.ObjectRepository
}

// NewInfrastructure connects the clients configured in cfg.
func NewInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Infrastructure, error) {
	logger = logging.OrNop(logger)
	infra := &Infrastructure{Config: cfg, Logger: logger}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		infra.Collector = collector
	} else {
		infra.Collector = prometheus.NewNoopCollector()
	}
	infra.Metrics = prometheus.NewScanMetrics(infra.Collector)

	if cfg.Redis.Enabled {
		rc, err := redisclient.NewClient(ctx, &redisclient.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		infra.Redis = rc
		infra.Cache = redisclient.NewRedisCache(rc, logger,
			redisclient.WithPrefix(cfg.Redis.KeyPrefix),
			redisclient.WithDefaultTTL(cfg.Corpus.CacheTTL),
			redisclient.WithJitter(0.1))
	}

	mc, err := minioclient.NewMinIOClient(&minioclient.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKeyID,
		SecretAccessKey: cfg.MinIO.SecretAccessKey,
		UseSSL:          cfg.MinIO.UseSSL,
		Region:          cfg.MinIO.Region,
	}, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("minio: %w", err)
	}
	infra.MinIO = mc
	infra.Objects = minioclient.NewObjectRepository(mc, logger)

	logger.Info("infrastructure initialized",
		logging.Bool("redis", infra.Redis != nil),
		logging.Bool("metrics", cfg.Metrics.Enabled))
	return infra, nil
}

func (i *Infrastructure) Close() {
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.MinIO != nil {
		_ = i.MinIO.Close()
	}
}

// CorpusSource routes corpus locations to local files, HTTP or MinIO.
func (i *Infrastructure) CorpusSource(httpTimeout time.Duration) corpus.Source {
	return &corpus.Router{
		File:   corpus.FileSource{},
		HTTP:   corpus.NewHTTPSource(httpTimeout, i.Logger),
		Object: corpus.NewObjectSource(i.Objects),
	}
}

// CorpusLoader builds a loader for the configured corpus.
func (i *Infrastructure) CorpusLoader() *corpus.Loader {
	return i.CorpusLoaderFor(i.Config.Corpus)
}

// CorpusLoaderFor builds a loader over CorpusSource, caching remote lists in
// Redis when it is enabled.
func (i *Infrastructure) CorpusLoaderFor(cfg config.CorpusConfig) *corpus.Loader {
	opts := []corpus.LoaderOption{corpus.WithMetrics(i.Metrics)}
	if i.Cache != nil {
		opts = append(opts, corpus.WithCache(i.Cache, corpus.RedisLocks(i.Redis)))
	}
	return corpus.NewLoader(cfg, i.CorpusSource(cfg.HTTPTimeout), i.Logger, opts...)
}

// LoadRecognizer loads the configured corpus and builds an engine from it.
func (i *Infrastructure) LoadRecognizer(ctx context.Context) (*recognizer.Recognizer, error) {
	return i.BuildRecognizer(ctx, i.Config)
}

// BuildRecognizer builds an engine from the corpus and recognition sections
// of cfg, which may differ from the configuration the clients were built with.
func (i *Infrastructure) BuildRecognizer(ctx context.Context, cfg *config.Config) (*recognizer.Recognizer, error) {
	start := time.Now()
	c, err := i.CorpusLoaderFor(cfg.Corpus).Load(ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.Build(cfg.Recognition, i.Logger)
	if err != nil {
		return nil, err
	}
	st := r.Stats()
	i.Logger.Info("recognizer built",
		logging.Int("entities", st.Entities),
		logging.Int("keywords", st.Keywords),
		logging.Duration("elapsed", time.Since(start)))
	return r, nil
}

// NewCorpusWatcher returns a watcher that rebuilds the engine whenever a
// local corpus file changes and hands it to install. It returns nil when no
// corpus list is a local file.
func (i *Infrastructure) NewCorpusWatcher(install func(*recognizer.Recognizer)) (*corpus.Watcher, error) {
	loader := i.CorpusLoader()
	if len(loader.LocalPaths()) == 0 {
		return nil, nil
	}
	recCfg := i.Config.Recognition
	return corpus.NewWatcher(loader, func(c *corpus.Corpus) error {
		r, err := c.Build(recCfg, i.Logger)
		if err != nil {
			return err
		}
		install(r)
		return nil
	}, i.Logger, corpus.WithWatcherMetrics(i.Metrics))
}
