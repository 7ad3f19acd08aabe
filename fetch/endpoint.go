package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/golang/groupcache/lru"
)

// EndpointType names the asset-service resource kind (§6.5).
type EndpointType string

const (
	Endpoint3DTiles EndpointType = "3DTILES"
	EndpointTerrain EndpointType = "TERRAIN"
	EndpointImagery EndpointType = "IMAGERY"
)

// EndpointOptions carries the provider-specific options bag (§6.5), e.g.
// Bing Maps imagery.
type EndpointOptions struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	MapStyle  string `json:"mapStyle"`
	Culture   string `json:"culture"`
}

// Attribution is one credit entry (§6.5).
type Attribution struct {
	HTML        string `json:"html"`
	Collapsible bool   `json:"collapsible"`
}

// Endpoint is the parsed asset-service descriptor (§6.5).
type Endpoint struct {
	Type         EndpointType  `json:"type"`
	URL          string        `json:"url"`
	AccessToken  string        `json:"accessToken"`
	ExternalType string        `json:"externalType"`
	Options      EndpointOptions `json:"options"`
	Attributions []Attribution `json:"attributions"`
}

// ResolvedURL returns the endpoint's content URL, appending "layer.json"
// for TERRAIN endpoints per §6.5.
func (e Endpoint) ResolvedURL() string {
	if e.Type == EndpointTerrain {
		if len(e.URL) > 0 && e.URL[len(e.URL)-1] != '/' {
			return e.URL + "/layer.json"
		}
		return e.URL + "layer.json"
	}
	return e.URL
}

// AuthorizationHeader formats the Bearer header per §6.5.
func (e Endpoint) AuthorizationHeader() string {
	return "Bearer " + e.AccessToken
}

// EndpointCache maps an asset-service URL to its parsed descriptor,
// lifetime = process (§3). Backed by groupcache's lru.Cache, the same
// bounded-map-with-eviction primitive the pack already depends on,
// instead of a bare map that would grow without bound across many
// short-lived tilesets in one process.
type EndpointCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewEndpointCache creates a cache holding up to maxEntries descriptors.
func NewEndpointCache(maxEntries int) *EndpointCache {
	return &EndpointCache{cache: lru.New(maxEntries)}
}

func (c *EndpointCache) Get(url string) (Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(url)
	if !ok {
		return Endpoint{}, false
	}
	return v.(Endpoint), true
}

func (c *EndpointCache) Put(url string, ep Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(url, ep)
}

// FetchEndpoint retrieves and parses an asset-service endpoint descriptor,
// consulting the cache first (§9: "mutated on the main thread only" — the
// caller is expected to be the main thread, matching the endpoint cache's
// documented ownership).
func FetchEndpoint(ctx context.Context, accessor Accessor, cache *EndpointCache, serviceURL string) (Endpoint, error) {
	if ep, ok := cache.Get(serviceURL); ok {
		return ep, nil
	}
	resp, err := accessor.Get(ctx, serviceURL, nil)
	if err != nil {
		return Endpoint{}, fmt.Errorf("fetching endpoint %s: %w", serviceURL, err)
	}
	if !resp.IsSuccess() {
		return Endpoint{}, fmt.Errorf("endpoint %s returned status %d", serviceURL, resp.StatusCode)
	}
	var ep Endpoint
	if err := json.Unmarshal(resp.Data, &ep); err != nil {
		return Endpoint{}, fmt.Errorf("parsing endpoint %s: %w", serviceURL, err)
	}
	cache.Put(serviceURL, ep)
	return ep, nil
}
