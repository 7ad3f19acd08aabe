package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAccessor struct {
	calls int
	body  []byte
}

func (a *countingAccessor) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	a.calls++
	return Response{StatusCode: 200, Data: a.body}, nil
}

func (a *countingAccessor) Tick() {}

// TestFetchEndpointCachesAcrossCalls covers §3's "lifetime = process"
// endpoint cache: a second FetchEndpoint for the same URL must not re-fetch.
func TestFetchEndpointCachesAcrossCalls(t *testing.T) {
	accessor := &countingAccessor{body: []byte(`{"type":"3DTILES","url":"https://example.com/tileset.json"}`)}
	cache := NewEndpointCache(16)

	ep1, err := FetchEndpoint(context.Background(), accessor, cache, "https://assets.example.com/1")
	require.NoError(t, err)
	ep2, err := FetchEndpoint(context.Background(), accessor, cache, "https://assets.example.com/1")
	require.NoError(t, err)

	assert.Equal(t, 1, accessor.calls)
	assert.Equal(t, ep1, ep2)
	assert.Equal(t, Endpoint3DTiles, ep1.Type)
}

// TestEndpointCacheEvictsOldestBeyondCapacity exercises the LRU eviction
// groupcache/lru.Cache backs this cache with (§8): once more entries than
// maxEntries are inserted, the least-recently-used one is gone.
func TestEndpointCacheEvictsOldestBeyondCapacity(t *testing.T) {
	cache := NewEndpointCache(2)

	cache.Put("a", Endpoint{URL: "a"})
	cache.Put("b", Endpoint{URL: "b"})
	cache.Put("c", Endpoint{URL: "c"}) // evicts "a", the least-recently-used

	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	b, ok := cache.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "b", b.URL)

	c, ok := cache.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "c", c.URL)
}
