package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/scene"
)

// blockingAccessor counts calls and blocks until release is closed, so a
// test can force concurrent OnLoadFailed calls to overlap inside doRefresh.
type blockingAccessor struct {
	calls   atomic.Int32
	release chan struct{}
	body    []byte
}

func (a *blockingAccessor) Get(ctx context.Context, url string, headers map[string]string) (fetch.Response, error) {
	a.calls.Add(1)
	<-a.release
	return fetch.Response{StatusCode: 200, Data: a.body}, nil
}

func (a *blockingAccessor) Tick() {}

// TestOnLoadFailedSingleFlightCollapsesConcurrentRefreshes covers §4.5's
// "suppresses concurrent refresh attempts": several overlapping 401 bursts
// against the same service URL must result in exactly one underlying fetch.
func TestOnLoadFailedSingleFlightCollapsesConcurrentRefreshes(t *testing.T) {
	accessor := &blockingAccessor{
		release: make(chan struct{}),
		body:    []byte(`{"type":"3DTILES","url":"https://example.com","accessToken":"tok"}`),
	}
	controller := NewController(accessor, fetch.NewEndpointCache(4), "https://assets.example.com/ep", nil)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tile := &scene.Tile{LoadState: scene.FailedTemporarily}
			controller.OnLoadFailed(context.Background(), 401, []*scene.Tile{tile})
		}()
	}

	// Give every goroutine a chance to enter doRefresh before releasing them
	// together; otherwise a fast one could finish before a slow one starts
	// and singleflight would legitimately run twice.
	time.Sleep(30 * time.Millisecond)
	close(accessor.release)
	wg.Wait()

	assert.EqualValues(t, 1, accessor.calls.Load(), "concurrent refreshes should collapse into one fetch")
	assert.Equal(t, "Bearer tok", controller.Headers()["Authorization"])
}

// TestOnLoadFailedIgnoresNon401 confirms only status 401 triggers a refresh.
func TestOnLoadFailedIgnoresNon401(t *testing.T) {
	accessor := &blockingAccessor{release: make(chan struct{})}
	close(accessor.release)
	controller := NewController(accessor, fetch.NewEndpointCache(4), "https://assets.example.com/ep", nil)

	tile := &scene.Tile{LoadState: scene.FailedTemporarily}
	controller.OnLoadFailed(context.Background(), 500, []*scene.Tile{tile})

	assert.EqualValues(t, 0, accessor.calls.Load())
	assert.Equal(t, scene.FailedTemporarily, tile.LoadState, "non-401 failures are left for the caller's own retry policy")
}

// TestOnLoadFailedRequeuesAffectedTilesOnSuccess covers the re-queue half of
// §4.5: a successful refresh moves FailedTemporarily tiles back to Unloaded
// so the next traversal pass retries them.
func TestOnLoadFailedRequeuesAffectedTilesOnSuccess(t *testing.T) {
	accessor := &blockingAccessor{
		release: make(chan struct{}),
		body:    []byte(`{"type":"3DTILES","url":"https://example.com","accessToken":"tok"}`),
	}
	close(accessor.release)
	controller := NewController(accessor, fetch.NewEndpointCache(4), "https://assets.example.com/ep", nil)

	failed := &scene.Tile{LoadState: scene.FailedTemporarily}
	untouched := &scene.Tile{LoadState: scene.Done}
	controller.OnLoadFailed(context.Background(), 401, []*scene.Tile{failed, untouched})

	assert.Equal(t, scene.Unloaded, failed.LoadState)
	assert.Equal(t, scene.Done, untouched.LoadState, "tiles not in FailedTemporarily are left alone")
}

func TestTokenExpiryReadsExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": float64(1893456000),
	})
	signed, err := token.SignedString([]byte("any-secret-this-client-never-verifies"))
	require.NoError(t, err)

	exp, ok := TokenExpiry(signed)
	assert.True(t, ok)
	assert.Equal(t, int64(1893456000), exp)
}

func TestTokenExpiryRejectsMalformedToken(t *testing.T) {
	_, ok := TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
