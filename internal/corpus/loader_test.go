package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/internal/config"
	"github.com/turtacn/deckscan/internal/infrastructure/database/redis"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
	"github.com/turtacn/deckscan/internal/testutil"
	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// countingSource serves fixed documents and counts fetches per location.
type countingSource struct {
	mu    sync.Mutex
	data  map[string]string
	calls map[string]int
}

func (s *countingSource) Fetch(_ context.Context, location string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[location]++
	d, ok := s.data[location]
	if !ok {
		return nil, errors.New(errors.ErrCodeCorpusNotFound, "missing").WithDetail(location)
	}
	return []byte(d), nil
}

func (s *countingSource) count(location string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[location]
}

const (
	entitiesURL = "https://mtgjson.test/VintageAtomic.json"
	keywordsURL = "https://mtgjson.test/Keywords.json"
)

func testCorpusConfig() config.CorpusConfig {
	return config.CorpusConfig{
		Entities:       entitiesURL,
		EntitiesFormat: FormatAuto,
		Keywords:       keywordsURL,
		KeywordsFormat: FormatAuto,
		Languages:      []string{"English"},
		ExtraKeywords:  []string{"Display", "Land", "Search", "Profile"},
		ExtraEntities:  []string{"Giver of Runes"},
	}
}

func testSource() *countingSource {
	return &countingSource{data: map[string]string{
		entitiesURL: atomicDoc,
		keywordsURL: `{"data":{"keywordAbilities":["Flying","Land"]}}`,
	}}
}

func TestLoader_Load(t *testing.T) {
	logger := testutil.NewMockLogger()
	l := NewLoader(testCorpusConfig(), testSource(), logger)

	c, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Empty", "Fire", "Island", "Lightning Bolt"}, c.Entities)
	assert.Equal(t, []string{"Flying", "Land", "Display", "Search", "Profile"}, c.Keywords)
	assert.Equal(t, []string{"Giver of Runes"}, c.Extra)
	assert.False(t, c.LoadedAt.IsZero())
	assert.True(t, logger.HasMessage("info", "corpus loaded"))
}

func TestLoader_ExtraEntitiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.txt")
	require.NoError(t, os.WriteFile(path, []byte("Black Lotus$1\nMox Pearl\n"), 0o644))

	cfg := testCorpusConfig()
	cfg.Entities = ""
	cfg.Keywords = ""
	cfg.ExtraEntities = nil
	cfg.ExtraEntitiesFile = path

	c, err := NewLoader(cfg, &Router{File: FileSource{}}, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Entities)
	assert.Equal(t, []string{"Black Lotus", "Mox Pearl"}, c.Extra)
	assert.Equal(t, []string{path}, NewLoader(cfg, nil, nil).LocalPaths())
}

func TestLoader_SourceError(t *testing.T) {
	cfg := testCorpusConfig()
	cfg.Keywords = "https://mtgjson.test/missing.json"

	_, err := NewLoader(cfg, testSource(), nil).Load(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusNotFound))
}

func TestCorpus_Build(t *testing.T) {
	c, err := NewLoader(testCorpusConfig(), testSource(), nil).Load(context.Background())
	require.NoError(t, err)

	r, err := c.Build(recognizer.DefaultConfig(), nil)
	require.NoError(t, err)

	deck, err := r.Scan([]scan.Fragment{
		{Box: scan.BoundingBox{0, 0}, Text: "Lightnin Bolt"},
		{Box: scan.BoundingBox{0, 50}, Text: "Land"},
		{Box: scan.BoundingBox{0, 100}, Text: "Giver of Rune"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1 Lightning Bolt\n1 Giver of Runes\n\n", deck.String())

	_, err = (&Corpus{}).Build(recognizer.DefaultConfig(), nil)
	assert.True(t, errors.IsConfigurationError(err))
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClientFromUniversal(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), nil)
}

func TestLoader_CachesRemoteLists(t *testing.T) {
	client := newTestRedis(t)
	cache := redis.NewRedisCache(client, nil)
	src := testSource()
	cfg := testCorpusConfig()

	first, err := NewLoader(cfg, src, nil, WithCache(cache, RedisLocks(client))).Load(context.Background())
	require.NoError(t, err)

	second, err := NewLoader(cfg, src, nil, WithCache(cache, RedisLocks(client))).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Keywords, second.Keywords)
	assert.Equal(t, 1, src.count(entitiesURL))
	assert.Equal(t, 1, src.count(keywordsURL))
}

func TestLoader_CacheKeyDependsOnLanguages(t *testing.T) {
	en := testCorpusConfig()
	fr := testCorpusConfig()
	fr.Languages = []string{"French"}

	a := NewLoader(en, nil, nil).cacheKey(KindEntities, entitiesURL, FormatAuto)
	b := NewLoader(fr, nil, nil).cacheKey(KindEntities, entitiesURL, FormatAuto)
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "corpus:entities:")
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	paths, err := Export(&Corpus{Entities: []string{"Island", "Forest"}, Keywords: []string{"Land"}}, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	data, err := os.ReadFile(paths[KindEntities])
	require.NoError(t, err)
	assert.Equal(t, "Island\nForest\n", string(data))

	names, err := ParseLines(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Island", "Forest"}, names)
}
