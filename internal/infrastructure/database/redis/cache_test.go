package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/deckscan/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := NewClientFromUniversal(db, logging.NewNopLogger())
	s.cache = NewRedisCache(client, nil, WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type corpusEntry struct {
	Names []string `json:"names"`
	Kind  string   `json:"kind"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := corpusEntry{Names: []string{"Island", "Forest"}, Kind: "entities"}
	data, _ := json.Marshal(val)
	s.mock.ExpectGet("test:key1").SetVal(string(data))

	var dest corpusEntry
	s.Require().NoError(s.cache.Get(context.Background(), "key1", &dest))
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest corpusEntry
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_RedisError() {
	s.mock.ExpectGet("test:key1").SetErr(errors.New("connection reset"))

	var dest corpusEntry
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptPayload() {
	s.mock.ExpectGet("test:key1").SetVal("{not json")

	var dest corpusEntry
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_UsesExactTTLWithoutJitter() {
	data, _ := json.Marshal([]string{"Island"})
	s.mock.ExpectSet("test:k", data, time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k", []string{"Island"}, time.Minute))
}

func (s *CacheTestSuite) TestSet_Unserializable() {
	err := s.cache.Set(context.Background(), "k", make(chan int), time.Minute)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestExists() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	ok, err := s.cache.Exists(context.Background(), "k1")
	s.NoError(err)
	s.True(ok)
}

func (s *CacheTestSuite) TestGetOrSet_HitSkipsLoader() {
	data, _ := json.Marshal([]string{"Island"})
	s.mock.ExpectGet("test:key1").SetVal(string(data))

	var dest []string
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, func(context.Context) (interface{}, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	})
	s.NoError(err)
	s.Equal([]string{"Island"}, dest)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func newMiniCache(t *testing.T, opts ...CacheOption) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), &Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, nil, opts...), mr
}

func TestGetOrSet_LoadsOnceAndStores(t *testing.T) {
	cache, mr := newMiniCache(t, WithPrefix("c:"))
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (interface{}, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []string{"Black Lotus", "Mox Pearl"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var names []string
			assert.NoError(t, cache.GetOrSet(ctx, "vintage", &names, time.Hour, loader))
			assert.Equal(t, []string{"Black Lotus", "Mox Pearl"}, names)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, mr.Exists("c:vintage"))

	var again []string
	require.NoError(t, cache.GetOrSet(ctx, "vintage", &again, time.Hour, loader))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrSet_LoaderErrorNotCached(t *testing.T) {
	cache, mr := newMiniCache(t)
	boom := errors.New("mtgjson unavailable")

	var names []string
	err := cache.GetOrSet(context.Background(), "k", &names, time.Hour, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("deckscan:k"))
}

func TestSet_JitterStaysWithinBounds(t *testing.T) {
	cache, mr := newMiniCache(t, WithJitter(0.1))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, cache.Set(ctx, "k", 1, 100*time.Second))
		ttl := mr.TTL("deckscan:k")
		assert.GreaterOrEqual(t, ttl, 90*time.Second)
		assert.LessOrEqual(t, ttl, 110*time.Second)
	}
}

func TestSet_DefaultTTL(t *testing.T) {
	cache, mr := newMiniCache(t, WithDefaultTTL(time.Minute), WithJitter(0))
	require.NoError(t, cache.Set(context.Background(), "k", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("deckscan:k"))
}
