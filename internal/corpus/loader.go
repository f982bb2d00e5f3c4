// Package corpus acquires the entity and keyword lists the recognizer is built
// from: it fetches them from files, URLs or object storage, parses plain lists
// and mtgjson documents, and optionally caches the parsed lists in Redis.
package corpus

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/turtacn/deckscan/internal/config"
	"github.com/turtacn/deckscan/internal/infrastructure/database/redis"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
)

// Kind names one of the lists making up a corpus.
type Kind string

const (
	KindEntities Kind = "entities"
	KindKeywords Kind = "keywords"
	KindExtra    Kind = "extra"
)

// Corpus is a loaded set of name lists.
type Corpus struct {
	Entities []string  `json:"entities"`
	Keywords []string  `json:"keywords"`
	Extra    []string  `json:"extra"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Build constructs a recognizer over the corpus.
func (c *Corpus) Build(cfg recognizer.Config, logger logging.Logger) (*recognizer.Recognizer, error) {
	return recognizer.NewRecognizer(c.Entities, c.Keywords, c.Extra, cfg, logger)
}

// Locker serializes the download of one list across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LockFactory returns a Locker for a cache key.
type LockFactory func(name string) Locker

// RedisLocks builds download locks on client.
func RedisLocks(client *redis.Client) LockFactory {
	return func(name string) Locker {
		return redis.NewMutex(client, name,
			redis.WithLockTTL(time.Minute),
			redis.WithRetryDelay(500*time.Millisecond),
			redis.WithRetryCount(600),
			redis.WithWatchdog(true))
	}
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache stores parsed remote lists in cache. locks may be nil.
func WithCache(cache redis.Cache, locks LockFactory) LoaderOption {
	return func(l *Loader) {
		l.cache = cache
		l.locks = locks
	}
}

// WithMetrics records corpus sizes, load durations and cache hits on m.
func WithMetrics(m *prometheus.ScanMetrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// Loader reads a corpus as described by config.CorpusConfig.
type Loader struct {
	cfg     config.CorpusConfig
	source  Source
	cache   redis.Cache
	locks   LockFactory
	metrics *prometheus.ScanMetrics
	logger  logging.Logger
}

// NewLoader creates a Loader that reads files through source. A nil logger
// is replaced with a no-op logger.
func NewLoader(cfg config.CorpusConfig, source Source, logger logging.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		cfg:    cfg,
		source: source,
		logger: logging.OrNop(logger).Named("corpus"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the corpus configuration the loader was built with.
func (l *Loader) Config() config.CorpusConfig { return l.cfg }

// Load fetches and parses every configured list. Extra keywords and extra
// entity names from the configuration are merged in.
func (l *Loader) Load(ctx context.Context) (*Corpus, error) {
	c := &Corpus{}

	if l.cfg.Entities != "" {
		names, err := l.loadList(ctx, KindEntities, l.cfg.Entities, l.cfg.EntitiesFormat)
		if err != nil {
			return nil, err
		}
		c.Entities = names
	}

	if l.cfg.Keywords != "" {
		names, err := l.loadList(ctx, KindKeywords, l.cfg.Keywords, l.cfg.KeywordsFormat)
		if err != nil {
			return nil, err
		}
		c.Keywords = names
	}
	c.Keywords = Clean(append(c.Keywords, l.cfg.ExtraKeywords...))

	extra := append([]string(nil), l.cfg.ExtraEntities...)
	if l.cfg.ExtraEntitiesFile != "" {
		names, err := l.loadList(ctx, KindExtra, l.cfg.ExtraEntitiesFile, FormatLines)
		if err != nil {
			return nil, err
		}
		extra = append(extra, names...)
	}
	c.Extra = Clean(extra)
	c.LoadedAt = time.Now().UTC()

	prometheus.RecordCorpus(l.metrics, len(c.Entities)+len(c.Extra), len(c.Keywords))
	l.logger.Info("corpus loaded",
		logging.Int("entities", len(c.Entities)),
		logging.Int("keywords", len(c.Keywords)),
		logging.Int("extra", len(c.Extra)))
	return c, nil
}

func (l *Loader) loadList(ctx context.Context, kind Kind, location, format string) ([]string, error) {
	start := time.Now()
	defer func() { prometheus.RecordCorpusLoad(l.metrics, string(kind), time.Since(start)) }()

	load := func(ctx context.Context) ([]string, error) {
		data, err := l.source.Fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		names, err := Parse(data, format, kind, l.cfg.Languages)
		if err != nil {
			return nil, err
		}
		return Clean(names), nil
	}

	// Local files are cheap to read and are what the watcher reloads.
	if l.cache == nil || IsLocal(location) {
		return load(ctx)
	}

	key := l.cacheKey(kind, location, format)
	var names []string
	hit := true
	err := l.cache.GetOrSet(ctx, key, &names, l.cfg.CacheTTL, func(ctx context.Context) (interface{}, error) {
		hit = false
		if l.locks != nil {
			lock := l.locks(key)
			if err := lock.Lock(ctx); err != nil {
				l.logger.Warn("corpus lock not acquired, downloading anyway", logging.String(logging.FieldCorpus, location), logging.Err(err))
			} else {
				defer func() {
					if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
						l.logger.Warn("corpus lock release failed", logging.Err(err))
					}
				}()
			}
		}
		return load(ctx)
	})
	prometheus.RecordCacheAccess(l.metrics, "corpus", hit)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("corpus list resolved",
		logging.String(logging.FieldCorpus, location),
		logging.String("kind", string(kind)),
		logging.Bool("cache_hit", hit))
	return names, nil
}

// cacheKey identifies a parsed list by everything that affects its content.
func (l *Loader) cacheKey(kind Kind, location, format string) string {
	h := sha1.New()
	h.Write([]byte(location))
	h.Write([]byte{0})
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(l.cfg.Languages, ",")))
	return "corpus:" + string(kind) + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// LocalPaths returns the configured locations that live on the local
// filesystem.
func (l *Loader) LocalPaths() []string {
	var out []string
	for _, p := range []string{l.cfg.Entities, l.cfg.Keywords, l.cfg.ExtraEntitiesFile} {
		if IsLocal(p) {
			out = append(out, p)
		}
	}
	return out
}
