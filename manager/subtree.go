package manager

import (
	"context"
	"fmt"

	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/implicit"
	"github.com/cesium3d/tileengine/scene"
)

// SubtreeFetcher bridges implicit.Context's SubtreeLoader contract to the
// Manager's accessor and subtree-load throttle (§4.2, §5: "subtree loads in
// flight vs. maximumSimultaneousSubtreeLoads").
type SubtreeFetcher struct {
	manager     *Manager
	accessor    fetch.Accessor
	urlTemplate string
	scheme      scene.SubdivisionScheme
	levels      int
	ctx         context.Context
}

func NewSubtreeFetcher(m *Manager, accessor fetch.Accessor, urlTemplate string, scheme scene.SubdivisionScheme, levels int) *SubtreeFetcher {
	return &SubtreeFetcher{manager: m, accessor: accessor, urlTemplate: urlTemplate, scheme: scheme, levels: levels, ctx: context.Background()}
}

// LoadSubtree implements implicit.SubtreeLoader. Subtree fetches are
// throttled independently from tile-content fetches (§5's three
// independent counters); AcquireBlocking is acceptable here because the
// traversal is the only caller and subtree availability must be known
// before it can decide whether descendants exist.
func (f *SubtreeFetcher) LoadSubtree(level int, morton uint64) (implicit.Subtree, error) {
	if err := f.manager.subtreeThrottle.AcquireBlocking(f.ctx); err != nil {
		return implicit.Subtree{}, err
	}
	defer f.manager.subtreeThrottle.Release()

	var lookup fetch.Lookup
	if f.scheme == scene.Octree {
		x, y, z := implicit.DecodeOct(morton)
		lookup = fetch.OctreeLookup(level, int(x), int(y), int(z))
	} else {
		x, y := implicit.DecodeQuad(morton)
		lookup = fetch.QuadtreeLookup(level, int(x), int(y))
	}
	url := fetch.SubstituteTemplateParameters(f.urlTemplate, lookup)

	resp, err := f.accessor.Get(f.ctx, url, nil)
	if err != nil {
		return implicit.Subtree{}, fmt.Errorf("fetching subtree %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return implicit.Subtree{}, fmt.Errorf("subtree %s returned status %d", url, resp.StatusCode)
	}
	wire, err := implicit.DecodeSubtree(resp.Data)
	if err != nil {
		return implicit.Subtree{}, fmt.Errorf("decoding subtree %s: %w", url, err)
	}

	mk := func(raw []byte, constant *bool) implicit.Bitfield {
		if raw != nil {
			return implicit.NewBitfield(raw)
		}
		if constant != nil {
			return implicit.ConstantBitfield(*constant)
		}
		return implicit.ConstantBitfield(false)
	}

	return implicit.Subtree{
		BaseLevel:        level,
		NumLevels:        f.levels,
		Scheme:           f.scheme,
		TileAvailable:    mk(wire.TileAvailability, wire.TileConstant),
		ContentAvailable: mk(wire.ContentAvailable, wire.ContentConstant),
		SubtreeAvailable: mk(wire.ChildSubtrees, wire.ChildConstant),
	}, nil
}
