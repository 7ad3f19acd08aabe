// Package overlay implements the raster-overlay tile provider of §4.4: a
// throttled image loader that maps a projected rectangle and target screen
// resolution to a decoded raster tile. Pixel decoding itself (and any
// renderer-resource preparation over the decoded pixels) is an out-of-scope
// external collaborator per §1 and is represented only by the Decoder
// interface boundary, mirroring package content's Loader boundary for mesh
// payloads.
package overlay

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/scene"
	"github.com/cesium3d/tileengine/scheduler"
)

// Rectangle is the projected region a raster tile covers, in the overlay's
// own projection (not necessarily geographic).
type Rectangle struct {
	West, South, East, North float64
}

// Tile is one decoded raster-overlay image (§3: "a list of raster-overlay
// mappings" on scene.Tile references these by name).
type Tile struct {
	Rectangle   Rectangle
	Pixels      []byte
	Width, Height int
	ByteSize    int64

	// Placeholder marks a sentinel tile handed back while the provider is
	// still bootstrapping (§4.4: "ref-counted; never reclaimed").
	Placeholder bool

	refCount atomic.Int32
}

func (t *Tile) AddRef() int32     { return t.refCount.Add(1) }
func (t *Tile) ReleaseRef() int32 { return t.refCount.Add(-1) }

// Decoder turns a fetched response body into pixels, and optionally prepares
// a renderer-side resource from them. Both steps run on a worker task
// (§4.4: "decode pixels on a worker task -> optional renderer-resource
// preparation on a worker task").
type Decoder interface {
	Decode(data []byte) (pixels []byte, width, height int, err error)
	PrepareRendererResource(pixels []byte, width, height int) (interface{}, error)
}

// Provider owns its own throttled loader with two counters (§4.4: "total
// in-flight, throttled in-flight") independent of the content manager's
// tile/subtree throttles (§5: "Three independent counters").
type Provider struct {
	accessor fetch.Accessor
	sched    *scheduler.Scheduler
	decoder  Decoder

	total     *scheduler.Throttle
	throttled *scheduler.Throttle

	placeholder *Tile
}

// NewProvider builds a provider bootstrapped with a sentinel placeholder
// tile, returned to callers while throttled past maximumSimultaneousTileLoads.
func NewProvider(accessor fetch.Accessor, sched *scheduler.Scheduler, decoder Decoder, maximumSimultaneousTileLoads int) *Provider {
	return &Provider{
		accessor:    accessor,
		sched:       sched,
		decoder:     decoder,
		total:       scheduler.NewThrottle(maximumSimultaneousTileLoads * 4),
		throttled:   scheduler.NewThrottle(maximumSimultaneousTileLoads),
		placeholder: &Tile{Placeholder: true},
	}
}

// Placeholder returns the provider's ref-counted bootstrap sentinel.
func (p *Provider) Placeholder() *Tile { return p.placeholder }

// RequestTile fetches, validates, and decodes the raster tile at url,
// refusing new throttled loads once the throttled counter reaches its
// limit by immediately resolving to the placeholder (§4.4).
func (p *Provider) RequestTile(ctx context.Context, url string, rect Rectangle) *scheduler.Future[*Tile] {
	if !p.throttled.TryAcquire() {
		p.placeholder.AddRef()
		return scheduler.Resolved(p.placeholder, nil)
	}
	if !p.total.TryAcquire() {
		p.throttled.Release()
		p.placeholder.AddRef()
		return scheduler.Resolved(p.placeholder, nil)
	}

	return scheduler.InWorker(p.sched, func() (*Tile, error) {
		defer p.throttled.Release()
		defer p.total.Release()

		resp, err := p.accessor.Get(ctx, url, nil)
		if err != nil {
			return nil, engine.NewError("overlay.RequestTile", engine.ErrNetwork, 0, err)
		}
		if !resp.IsSuccess() {
			return nil, engine.NewError("overlay.RequestTile", engine.ErrNetwork, resp.StatusCode, fmt.Errorf("status %d fetching %s", resp.StatusCode, url))
		}

		pixels, w, h, err := p.decoder.Decode(resp.Data)
		if err != nil {
			engine.Errorf("overlay: decode failed for %s: %v", url, err)
			return nil, engine.NewError("overlay.RequestTile", engine.ErrDecode, 0, err)
		}

		tile := &Tile{Rectangle: rect, Pixels: pixels, Width: w, Height: h, ByteSize: int64(len(pixels))}
		if _, err := p.decoder.PrepareRendererResource(pixels, w, h); err != nil {
			engine.Errorf("overlay: renderer resource preparation failed for %s: %v", url, err)
		}
		return tile, nil
	})
}

// TilesInFlight reports the throttled-counter occupancy, exposed through
// the debug/stats server (§4.8).
func (p *Provider) TilesInFlight() int64 { return p.throttled.InFlight() }

// MapToTile associates overlay tile t with a scene tile under the given
// texture-coordinate set, recording the mapping scene.Tile carries (§3).
func MapToTile(overlayName string, texCoordIndex int, tile *scene.Tile) {
	tile.Overlays = append(tile.Overlays, scene.OverlayMapping{
		OverlayName:            overlayName,
		TextureCoordinateIndex: texCoordIndex,
	})
}
