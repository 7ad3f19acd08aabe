// Package manager implements the tileset content manager of §4.2: the load
// state machine driver, byte accounting, and LRU-budget eviction. The
// traversal engine (package traversal) only enqueues tiles for load;
// Manager is what actually moves a tile through Unloaded -> ContentLoading
// -> ContentLoaded -> Done (or a failure branch) and evicts content when
// the byte budget is exceeded.
package manager

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	humanize "github.com/dustin/go-humanize"
	sizeof "github.com/DmitriyVTitov/size"

	"github.com/cesium3d/tileengine/content"
	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/implicit"
	"github.com/cesium3d/tileengine/scene"
	"github.com/cesium3d/tileengine/scheduler"
)

// FailureObserver is notified whenever a tile's load finishes with an
// error, so the token-refresh controller (package auth) can react to 401s
// without Manager importing it directly (auth already imports scene and
// fetch; Manager importing auth too would create a needless coupling for a
// single callback — observer inversion here mirrors the teacher's
// CommandFunc registry pattern in package message).
type FailureObserver func(ctx context.Context, status int, tile *scene.Tile)

// ExternalTilesetResolver parses an external tileset JSON document (§3:
// "a tile with ExternalTileset content is 'logically refined' — its
// children are the external root(s)") into a scene.Tile tree. Manager takes
// this as a callback rather than importing package tileset directly: tileset
// already imports manager (to build a SubtreeFetcher for implicit-tiling
// extensions), so the reverse import would cycle. The caller (typically
// cmd/tileengine's wiring) supplies tileset.Parse bound to the same
// accessor/options/manager.
type ExternalTilesetResolver func(data []byte, baseURL string) (*scene.Tile, error)

// Manager owns the LRU list and byte counter described in §3: "A global
// doubly-linked list threads every tile whose content is not Unloaded...
// A byte counter tracks the sum of decoded payload sizes across live
// tiles." container/list is used directly here rather than
// golang/groupcache/lru's Cache type because eviction must stop
// conditionally (root tile, or a tile referenced by the current frame)
// instead of strictly by count — a predicate lru.Cache.RemoveOldest does
// not support (see DESIGN.md).
type Manager struct {
	registry  *content.Registry
	accessor  fetch.Accessor
	scheduler *scheduler.Scheduler

	tileThrottle    *scheduler.Throttle
	subtreeThrottle *scheduler.Throttle

	mu          sync.Mutex
	lru         *list.List // front = eviction candidate, back = most-recently-visited
	totalBytes  int64
	maxBytes    int64

	onFailure        FailureObserver
	externalResolver ExternalTilesetResolver

	root *scene.Tile
}

func New(registry *content.Registry, accessor fetch.Accessor, sched *scheduler.Scheduler, opts scene.Options, root *scene.Tile) *Manager {
	return &Manager{
		registry:        registry,
		accessor:        accessor,
		scheduler:       sched,
		tileThrottle:    scheduler.NewThrottle(opts.MaximumSimultaneousTileLoads),
		subtreeThrottle: scheduler.NewThrottle(opts.MaximumSimultaneousSubtreeLoads),
		lru:             list.New(),
		maxBytes:        opts.MaximumCachedBytes,
		root:            root,
	}
}

func (m *Manager) SetFailureObserver(f FailureObserver) { m.onFailure = f }

func (m *Manager) SetExternalTilesetResolver(r ExternalTilesetResolver) { m.externalResolver = r }

// DrainMain runs up to max queued main-thread continuations (max<=0 drains
// everything currently queued). Per §5, "the frame function drains a
// bounded number of queued main-thread continuations before running the
// traversal" — completeLoad only ever runs as one of these continuations
// (it is posted via scheduler.ThenInMain/CatchInMain in LoadTileContent),
// so callers must invoke DrainMain once per frame or no load ever finishes.
func (m *Manager) DrainMain(max int) int { return m.scheduler.DrainMain(max) }

// GetNumOfTilesLoading reports tiles mid ContentLoading, the throttling
// gate of §4.2.
func (m *Manager) GetNumOfTilesLoading() int64 { return m.tileThrottle.InFlight() }

func (m *Manager) GetNumOfSubtreesLoading() int64 { return m.subtreeThrottle.InFlight() }

// LoadTileContent drives Unloaded -> ContentLoading and, asynchronously,
// -> ContentLoaded (§4.2): the fetch and decode run on a worker thread, and
// the ContentLoaded transition itself is made by a main-thread continuation
// that DrainMain runs. Idempotent while
// ContentLoading: a second call during that state is a no-op.
func (m *Manager) LoadTileContent(ctx context.Context, tile *scene.Tile) {
	if tile.LoadState != scene.Unloaded {
		return
	}
	if !scene.CanTransition(scene.ActorTraversal, tile.LoadState, scene.ContentLoading) {
		engine.Errorf("manager: illegal transition to ContentLoading for tile %+v", tile.Identity)
		return
	}
	if !m.tileThrottle.TryAcquire() {
		return // caller should retry next frame; see §5 throttling
	}
	tile.LoadState = scene.ContentLoading

	url := resolveTileURL(tile)
	headers := map[string]string{}

	future := scheduler.InWorker(m.scheduler, func() (scene.Content, error) {
		resp, err := m.accessor.Get(ctx, url, headers)
		if err != nil {
			return scene.Content{}, engine.NewError("LoadTileContent", engine.ErrNetwork, 0, err)
		}
		if resp.IsUnauthorized() {
			return scene.Content{}, engine.NewError("LoadTileContent", engine.ErrAuth, 401, fmt.Errorf("unauthorized"))
		}
		if !resp.IsSuccess() {
			return scene.Content{}, engine.NewError("LoadTileContent", engine.ErrNetwork, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
		}
		return m.registry.Dispatch(content.Request{
			URL: url, StatusCode: resp.StatusCode, ContentType: resp.ContentType, Headers: resp.Headers, Data: resp.Data,
		})
	})

	done := scheduler.ThenInMain(m.scheduler, future, func(c scene.Content) (struct{}, error) {
		m.tileThrottle.Release()
		m.completeLoad(ctx, tile, c, nil)
		return struct{}{}, nil
	})
	scheduler.CatchInMain(m.scheduler, done, func(err error) {
		m.tileThrottle.Release()
		m.completeLoad(ctx, tile, scene.Content{}, err)
	})
}

// completeLoad runs on the main thread (it is only ever invoked from a
// ThenInMain/CatchInMain continuation): it performs the ContentLoading ->
// ContentLoaded or -> Failed/FailedTemporarily transition and, on success,
// links the tile into the LRU list and accounts its bytes.
func (m *Manager) completeLoad(ctx context.Context, tile *scene.Tile, c scene.Content, err error) {
	if err != nil {
		var status int
		kind := engine.ErrNetwork
		if e, ok := err.(*engine.Error); ok {
			kind = e.Kind
			status = e.Status
		}
		if kind.Retryable() {
			tile.LoadState = scene.FailedTemporarily
		} else {
			tile.LoadState = scene.Failed
		}
		engine.Warningf("manager: load failed for %+v: %v", tile.Identity, err)
		if m.onFailure != nil {
			m.onFailure(ctx, status, tile)
		}
		return
	}

	tile.Content = c
	tile.LoadState = scene.ContentLoaded
	m.linkLRU(tile)
	m.accountBytes(tile, c.ByteSize())
}

// UpdateTileContent drives ContentLoaded -> Done (§4.2): any pending
// main-thread work (raster mapping, renderer-resource finalization — both
// out-of-scope external concerns per §1) runs here, then the implicit
// children are materialized if this tile belongs to an implicit context.
func (m *Manager) UpdateTileContent(implicitCtx *implicit.Context, tile *scene.Tile) {
	if tile.LoadState != scene.ContentLoaded {
		return
	}
	if !scene.CanTransition(scene.ActorMain, tile.LoadState, scene.Done) {
		engine.Errorf("manager: illegal transition to Done for tile %+v", tile.Identity)
		return
	}
	tile.LoadState = scene.Done

	if implicitCtx != nil && !tile.ChildrenMaterialized() {
		id := tile.Identity
		implicit.MaterializeChildren(implicitCtx, tile, id.Level, id.X, id.Y, id.Z)
	}

	if tile.Content.IsExternalTileset() && len(tile.Children) == 0 && m.externalResolver != nil {
		root, err := m.externalResolver(tile.Content.ExternalTilesetData, tile.Content.RootURL)
		if err != nil {
			engine.Warningf("manager: external tileset %q failed to parse: %v", tile.Content.RootURL, err)
			return
		}
		root.Parent = tile
		tile.Children = []*scene.Tile{root}
	}
}

// UnloadTileContent releases a tile's content, per §4.2: only legal if the
// tile is not part of the current frame's render/load set, signaled by
// referenced. Returns false (refusing to unload) if the tile still carries
// in-flight references.
func (m *Manager) UnloadTileContent(tile *scene.Tile, referenced bool) bool {
	if referenced {
		return false
	}
	if tile.LoadState == scene.ContentLoading {
		return false // still has an in-flight reference
	}
	if tile.LoadState == scene.Unloaded {
		return true
	}
	tile.LoadState = scene.Unloading
	m.unlinkLRU(tile)
	m.accountBytes(tile, -tile.Content.ByteSize())
	tile.Content = scene.Content{}
	tile.LoadState = scene.Unloaded
	return true
}

func (m *Manager) linkLRU(tile *scene.Tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tile.LRUElement() != nil {
		m.lru.MoveToBack(tile.LRUElement())
		return
	}
	tile.SetLRUElement(m.lru.PushBack(tile))
}

func (m *Manager) unlinkLRU(tile *scene.Tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := tile.LRUElement(); e != nil {
		m.lru.Remove(e)
		tile.SetLRUElement(nil)
	}
}

// Touch moves tile to the tail of the LRU list: "traversal appends visited
// tiles to the tail" (§3).
func (m *Manager) Touch(tile *scene.Tile) {
	if tile.LRUElement() == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.MoveToBack(tile.LRUElement())
}

func (m *Manager) accountBytes(tile *scene.Tile, declared int64) {
	actual := declared
	if declared != 0 {
		// Prefer a measured footprint over a self-reported ByteSize so the
		// budget reflects actual in-memory cost (§3's byte counter),
		// falling back to the declared size if measurement fails. Loads add
		// and unloads subtract the same measured amount.
		if measured := int64(sizeof.Of(tile.Content.Gltf.Raw)); measured > 0 {
			actual = measured
			if declared < 0 {
				actual = -measured
			}
		}
	}
	m.mu.Lock()
	m.totalBytes += actual
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
	m.mu.Unlock()
}

// TotalBytes reports current accounted usage, formatted callers typically
// render via humanize.Bytes for logs/debug endpoints.
func (m *Manager) TotalBytes() int64 { return m.totalBytes }
func (m *Manager) MaxBytes() int64   { return m.maxBytes }

func (m *Manager) usageString() string {
	return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(m.totalBytes)), humanize.Bytes(uint64(m.maxBytes)))
}

// UsageString reports current byte usage against budget, human-readable.
func (m *Manager) UsageString() string { return m.usageString() }

// EvictUntilWithinBudget walks the LRU list from the head, releasing
// content of tiles not referenced this frame until total bytes <= budget,
// stopping at the first tile that is the root or is referenced (§4.2, §8).
// referencedThisFrame reports whether a tile is in the current frame's
// render/load set and therefore may not be evicted.
func (m *Manager) EvictUntilWithinBudget(referencedThisFrame func(*scene.Tile) bool) int {
	evicted := 0
	for {
		m.mu.Lock()
		over := m.totalBytes > m.maxBytes
		front := m.lru.Front()
		m.mu.Unlock()
		if !over || front == nil {
			break
		}
		tile := front.Value.(*scene.Tile)
		if tile == m.root || referencedThisFrame(tile) {
			break
		}
		if m.UnloadTileContent(tile, false) {
			evicted++
		} else {
			break
		}
	}
	if evicted > 0 {
		engine.Debugf("manager: evicted %d tiles, usage now %s", evicted, m.usageString())
	}
	return evicted
}

// resolveTileURL substitutes template parameters per §6.2 for a tile's
// identity; URL-identity tiles are returned unmodified.
func resolveTileURL(tile *scene.Tile) string {
	id := tile.Identity
	switch id.Kind {
	case scene.IdentityURL:
		return id.URL
	case scene.IdentityQuadtreeCoord:
		return fetch.SubstituteTemplateParameters(tile.Context.BaseURL, fetch.QuadtreeLookup(id.Level, id.X, id.Y))
	case scene.IdentityOctreeCoord:
		return fetch.SubstituteTemplateParameters(tile.Context.BaseURL, fetch.OctreeLookup(id.Level, id.X, id.Y, id.Z))
	default:
		return tile.Context.BaseURL
	}
}
