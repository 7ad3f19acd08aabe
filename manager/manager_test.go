package manager

import (
	"context"
	"testing"
	"time"

	sizeof "github.com/DmitriyVTitov/size"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium3d/tileengine/content"
	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/scene"
	"github.com/cesium3d/tileengine/scheduler"
)

type fakeAccessor struct {
	status int
	data   []byte
}

func (a fakeAccessor) Get(ctx context.Context, url string, headers map[string]string) (fetch.Response, error) {
	return fetch.Response{StatusCode: a.status, Data: a.data}, nil
}

func (a fakeAccessor) Tick() {}

type fixedSizeLoader struct{ size int64 }

func (l fixedSizeLoader) Load(req content.Request) (scene.Content, error) {
	return scene.Content{Kind: scene.ContentMesh, Gltf: scene.GltfModel{Raw: req.Data, ByteSize: l.size}}, nil
}

func newTestManager(maxBytes int64) *Manager {
	registry := content.NewRegistry()
	registry.RegisterExtension("bin", fixedSizeLoader{size: 100})
	sched := scheduler.NewScheduler(4, 32)
	opts := scene.Options{MaximumSimultaneousTileLoads: 8, MaximumSimultaneousSubtreeLoads: 8, MaximumCachedBytes: maxBytes}
	return New(registry, fakeAccessor{status: 200, data: []byte("payload")}, sched, opts, nil)
}

// TestLoadTileContentCompletesThroughDrainMain is the regression test for
// the maintainer-flagged broken pipeline: LoadTileContent's completion only
// ever runs as a ThenInMain/CatchInMain continuation, so the only way a load
// actually reaches ContentLoaded is for something to call Manager.DrainMain.
func TestLoadTileContentCompletesThroughDrainMain(t *testing.T) {
	mgr := newTestManager(1 << 20)
	tile := &scene.Tile{Identity: scene.URLIdentity("tile.bin"), Context: &scene.Context{}}

	mgr.LoadTileContent(context.Background(), tile)
	assert.Equal(t, scene.ContentLoading, tile.LoadState)

	require.Eventually(t, func() bool {
		mgr.DrainMain(-1)
		return tile.LoadState == scene.ContentLoaded
	}, time.Second, time.Millisecond)

	assert.Equal(t, scene.ContentMesh, tile.Content.Kind)
	// The byte counter measures the loaded payload rather than trusting the
	// loader's self-reported ByteSize (100).
	assert.EqualValues(t, sizeof.Of(tile.Content.Gltf.Raw), mgr.TotalBytes())
}

// TestEvictUntilWithinBudgetSkipsReferencedTile covers §8's eviction
// invariant: eviction walks from the LRU head and stops at the first tile
// the caller reports as referenced this frame, never evicting it.
func TestEvictUntilWithinBudgetSkipsReferencedTile(t *testing.T) {
	mgr := newTestManager(50)

	a := &scene.Tile{Identity: scene.URLIdentity("a.bin"), LoadState: scene.Done,
		Content: scene.Content{Kind: scene.ContentMesh, Gltf: scene.GltfModel{ByteSize: 40}}}
	b := &scene.Tile{Identity: scene.URLIdentity("b.bin"), LoadState: scene.Done,
		Content: scene.Content{Kind: scene.ContentMesh, Gltf: scene.GltfModel{ByteSize: 40}}}

	mgr.linkLRU(a)
	mgr.linkLRU(b)
	mgr.totalBytes = 120 // exceeds the 50-byte budget

	referenced := map[*scene.Tile]bool{b: true}
	evicted := mgr.EvictUntilWithinBudget(func(t *scene.Tile) bool { return referenced[t] })

	assert.Equal(t, 1, evicted)
	assert.Equal(t, scene.Unloaded, a.LoadState)
	assert.Equal(t, scene.Done, b.LoadState, "referenced tile must survive eviction")
}

// TestEvictUntilWithinBudgetNeverEvictsRoot covers the other half of the
// same invariant: the tileset root is never evicted even when it is the
// oldest entry in the LRU list.
func TestEvictUntilWithinBudgetNeverEvictsRoot(t *testing.T) {
	mgr := newTestManager(10)
	root := &scene.Tile{Identity: scene.URLIdentity("root.bin"), LoadState: scene.Done,
		Content: scene.Content{Kind: scene.ContentMesh, Gltf: scene.GltfModel{ByteSize: 1000}}}
	mgr.root = root
	mgr.linkLRU(root)
	mgr.totalBytes = 1000

	evicted := mgr.EvictUntilWithinBudget(func(*scene.Tile) bool { return false })

	assert.Equal(t, 0, evicted)
	assert.Equal(t, scene.Done, root.LoadState)
}

// TestUpdateTileContentSplicesExternalTileset covers the external-tileset
// integration the maintainer review required: a tile whose content is
// ExternalTileset gets the resolver's returned root spliced in as its only
// child, exactly once.
func TestUpdateTileContentSplicesExternalTileset(t *testing.T) {
	mgr := newTestManager(1 << 20)
	var resolveCalls int
	mgr.SetExternalTilesetResolver(func(data []byte, baseURL string) (*scene.Tile, error) {
		resolveCalls++
		return &scene.Tile{Identity: scene.URLIdentity(baseURL)}, nil
	})

	tile := &scene.Tile{
		LoadState: scene.ContentLoaded,
		Content: scene.Content{
			Kind:                scene.ContentExternalTileset,
			RootURL:             "https://example.com/sub/tileset.json",
			ExternalTilesetData: []byte(`{"asset":{"version":"1.0"}}`),
		},
	}

	mgr.UpdateTileContent(nil, tile)

	require.Len(t, tile.Children, 1)
	assert.Equal(t, "https://example.com/sub/tileset.json", tile.Children[0].Identity.URL)
	assert.Equal(t, tile, tile.Children[0].Parent)
	assert.Equal(t, scene.Done, tile.LoadState)
	assert.Equal(t, 1, resolveCalls)

	// A second UpdateTileContent call (e.g. a stray re-entry) must not
	// re-resolve or duplicate the spliced child.
	tile.LoadState = scene.ContentLoaded
	mgr.UpdateTileContent(nil, tile)
	assert.Equal(t, 1, resolveCalls)
	assert.Len(t, tile.Children, 1)
}
