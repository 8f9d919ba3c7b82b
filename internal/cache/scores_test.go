package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory RedisClient with TTL support and optional
// error injection.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]fakeEntry
	failGet bool
	failSet bool
	failDel bool
}

type fakeEntry struct {
	value     []byte
	expiresAt time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]fakeEntry)}
}

func (f *fakeRedis) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errors.New("redis: connection refused")
	}
	e, ok := f.data[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(f.data, key)
		return nil, nil
	}
	return e.value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("redis: connection refused")
	}
	f.data[key] = fakeEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDel {
		return errors.New("redis: connection refused")
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Keys(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func sampleProviders() []ScoredProvider {
	return []ScoredProvider{
		{ID: "p1", Name: "alpha", Category: "search", TrustScore: 4.5, CompositeScore: 4.5},
		{ID: "p2", Name: "beta", Category: "search", TrustScore: 3.1, CompositeScore: 3.1},
	}
}

func TestScoreCachePutGet(t *testing.T) {
	rc := newFakeRedis()
	sc := NewScoreCache(rc, "", time.Minute, nil)
	ctx := context.Background()

	_, ok := sc.Get(ctx, "search")
	assert.False(t, ok)

	sc.Put(ctx, "search", sampleProviders())

	got, ok := sc.Get(ctx, "search")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, 4.5, got[0].CompositeScore)
}

func TestScoreCacheTTLExpiry(t *testing.T) {
	rc := newFakeRedis()
	sc := NewScoreCache(rc, "", 20*time.Millisecond, nil)
	ctx := context.Background()

	sc.Put(ctx, "search", sampleProviders())

	_, ok := sc.Get(ctx, "search")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = sc.Get(ctx, "search")
	assert.False(t, ok)
}

func TestScoreCacheInvalidate(t *testing.T) {
	rc := newFakeRedis()
	sc := NewScoreCache(rc, "", time.Minute, nil)
	ctx := context.Background()

	sc.Put(ctx, "search", sampleProviders())
	sc.Invalidate(ctx, "search")

	// miss immediately, well before the TTL elapses
	_, ok := sc.Get(ctx, "search")
	assert.False(t, ok)
}

func TestScoreCacheInvalidateAll(t *testing.T) {
	rc := newFakeRedis()
	sc := NewScoreCache(rc, "", time.Minute, nil)
	ctx := context.Background()

	sc.Put(ctx, "search", sampleProviders())
	sc.Put(ctx, "compute", sampleProviders())
	sc.InvalidateAll(ctx)

	_, ok := sc.Get(ctx, "search")
	assert.False(t, ok)
	_, ok = sc.Get(ctx, "compute")
	assert.False(t, ok)
}

func TestScoreCacheErrorsAreSwallowed(t *testing.T) {
	rc := newFakeRedis()
	sc := NewScoreCache(rc, "", time.Minute, nil)
	ctx := context.Background()

	rc.failSet = true
	sc.Put(ctx, "search", sampleProviders()) // no panic, no error surfaced
	rc.failSet = false

	rc.failGet = true
	_, ok := sc.Get(ctx, "search")
	assert.False(t, ok) // store error reads as a miss
	rc.failGet = false

	rc.failDel = true
	sc.Invalidate(ctx, "search") // no-op, no error surfaced
}

func TestScoreCacheCorruptEntryIsMiss(t *testing.T) {
	rc := newFakeRedis()
	sc := NewScoreCache(rc, "trust:score:", time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "trust:score:search", []byte("{not json"), time.Minute))

	_, ok := sc.Get(ctx, "search")
	assert.False(t, ok)
}
