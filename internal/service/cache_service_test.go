package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCache(), metrics, 0, zap.NewNop(), true)

	var out map[string]int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	svc.Set(context.Background(), "k", map[string]int{"a": 1}, 0)
	assert.True(t, svc.Get(context.Background(), "k", &out))
	assert.Equal(t, 1, out["a"])

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	svc.Set(context.Background(), "k", 1, 0)
	assert.False(t, repo.has("k"))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.Invalidate(context.Background(), "k")
}

func TestCacheServiceInvalidateBilling(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()
	svc.Set(ctx, adminDashboardKey("adm"), 1, 0)
	svc.Set(ctx, studentDashboardKey("s1"), 1, 0)
	svc.Set(ctx, studentDashboardKey("s2"), 1, 0)

	svc.InvalidateBilling(ctx, "adm", "s1")

	assert.False(t, repo.has(adminDashboardKey("adm")))
	assert.False(t, repo.has(studentDashboardKey("s1")))
	assert.True(t, repo.has(studentDashboardKey("s2")))

	svc.InvalidatePattern(ctx, "dashboard:student:*")
	assert.False(t, repo.has(studentDashboardKey("s2")))
}
