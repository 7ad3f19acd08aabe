// Package auth implements the token refresh / retry controller of §4.5:
// detecting 401-class failures, refreshing credentials via the asset
// service, and re-queuing affected tiles.
package auth

import (
	"context"
	"sync"

	jwt "github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/singleflight"

	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/scene"
)

// Controller drives the refresh cycle described in §4.5. One Controller is
// shared by every tile belonging to the same asset-service context.
type Controller struct {
	accessor   fetch.Accessor
	cache      *fetch.EndpointCache
	serviceURL string

	sf singleflight.Group // "suppresses concurrent refresh attempts" (§4.5)

	mu      sync.Mutex
	headers map[string]string // tileset's default header list; Authorization is mutated in place
}

func NewController(accessor fetch.Accessor, cache *fetch.EndpointCache, serviceURL string, headers map[string]string) *Controller {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Controller{accessor: accessor, cache: cache, serviceURL: serviceURL, headers: headers}
}

// Headers returns the tileset's current default header list, safe to read
// concurrently with a refresh (the Authorization value is swapped
// atomically under the controller's lock).
func (c *Controller) Headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// OnLoadFailed is the tileset-level failure callback of §4.5. If status is
// 401 and this controller was constructed against an asset-service asset,
// it drives exactly one refresh per overlapping failure burst and
// re-queues every FailedTemporarily-with-401 tile in affectedTiles.
func (c *Controller) OnLoadFailed(ctx context.Context, status int, affectedTiles []*scene.Tile) {
	if status != 401 {
		return
	}
	if c.serviceURL == "" {
		return // not an asset-service tileset; nothing to refresh against
	}

	v, err, _ := c.sf.Do(c.serviceURL, func() (interface{}, error) {
		return c.doRefresh(ctx)
	})

	success := err == nil
	if success {
		ep := v.(fetch.Endpoint)
		c.mu.Lock()
		c.headers["Authorization"] = ep.AuthorizationHeader()
		c.mu.Unlock()
	} else {
		engine.Errorf("auth: endpoint refresh failed: %v", err)
	}

	for _, tile := range affectedTiles {
		if tile.LoadState != scene.FailedTemporarily {
			continue
		}
		if success {
			tile.LoadState = scene.Unloaded
		} else {
			tile.LoadState = scene.Failed
		}
	}
}

// doRefresh re-fetches the asset-service endpoint, bypassing the cache so a
// stale descriptor can't be returned after a 401.
func (c *Controller) doRefresh(ctx context.Context) (fetch.Endpoint, error) {
	freshCache := fetch.NewEndpointCache(1)
	ep, err := fetch.FetchEndpoint(ctx, c.accessor, freshCache, c.serviceURL)
	if err != nil {
		return fetch.Endpoint{}, err
	}
	c.cache.Put(c.serviceURL, ep)
	return ep, nil
}

// TokenExpiry extracts the "exp" claim from a JWT access token without
// verifying its signature (the asset service, not this client, is the
// verifier). Controller itself does not call it: its refreshes are
// triggered only by a 401 reaching OnLoadFailed.
func TokenExpiry(tokenString string) (int64, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return 0, false
	}
	expVal, ok := claims["exp"]
	if !ok {
		return 0, false
	}
	switch v := expVal.(type) {
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
