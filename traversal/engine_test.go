package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium3d/tileengine/content"
	"github.com/cesium3d/tileengine/manager"
	"github.com/cesium3d/tileengine/scene"
)

// fakeFrustum is a minimal, deterministic stand-in for the external
// projection/culling collaborator (§4.1.1): always visible, SSE scales
// linearly with geometricError/distance.
type fakeFrustum struct {
	pos, dir scene.Vec3
	sseScale float64
}

func (f fakeFrustum) Position() scene.Vec3  { return f.pos }
func (f fakeFrustum) Direction() scene.Vec3 { return f.dir }
func (f fakeFrustum) IsBoundingVolumeVisible(scene.BoundingVolume) bool { return true }
func (f fakeFrustum) ScreenSpaceError(geometricError, distance float64) float64 {
	if distance == 0 {
		distance = 1
	}
	return f.sseScale * geometricError / distance
}
func (f fakeFrustum) CartographicHeight() (float64, bool) { return 0, false }
func (f fakeFrustum) HorizontalPositionWithinGlobeRectangle(scene.BoundingVolume) bool {
	return false
}

func testManager() *manager.Manager {
	return manager.New(content.NewStandardRegistry(), nil, nil, scene.DefaultOptions(), nil)
}

func leafTile(ge float64, refine scene.RefineRule) *scene.Tile {
	return &scene.Tile{
		BoundingVolume: scene.Sphere{C: scene.Vec3{}, R: 1},
		GeometricError: ge,
		Refine:         refine,
		Transform:      scene.Identity4(),
		Content:        scene.Content{Kind: scene.ContentMesh},
	}
}

func TestSingleTileRenders(t *testing.T) {
	root := leafTile(100, scene.Replace)
	opts := scene.DefaultOptions()
	opts.MaximumScreenSpaceError = 100

	eng := New(testManager(), nil, nil, opts)
	frustum := fakeFrustum{pos: scene.Vec3{X: 0, Y: 0, Z: 10}, dir: scene.Vec3{X: 0, Y: 0, Z: -1}, sseScale: 5}

	result := eng.Update(1, []scene.Frustum{frustum}, root)

	require.Len(t, result.TilesToRender, 1)
	assert.Same(t, root, result.TilesToRender[0])
	assert.Equal(t, scene.ResultRendered, root.Selection.ForFrame(1))
	assert.Empty(t, result.TilesToNoLongerRender)
}

func TestRefineKicksThenSettles(t *testing.T) {
	root := &scene.Tile{
		BoundingVolume: scene.Sphere{C: scene.Vec3{}, R: 10},
		GeometricError: 10000,
		Refine:         scene.Replace,
		Transform:      scene.Identity4(),
		Content:        scene.Content{Kind: scene.ContentMesh},
	}
	child1 := leafTile(1, scene.Replace)
	child2 := leafTile(1, scene.Replace)
	child1.Parent, child2.Parent = root, root
	root.Children = []*scene.Tile{child1, child2}

	opts := scene.DefaultOptions()
	opts.MaximumScreenSpaceError = 16
	opts.ForbidHoles = false

	eng := New(testManager(), nil, nil, opts)
	frustum := fakeFrustum{pos: scene.Vec3{X: 0, Y: 0, Z: 10}, dir: scene.Vec3{X: 0, Y: 0, Z: -1}, sseScale: 1000}

	frame1 := eng.Update(1, []scene.Frustum{frustum}, root)
	require.Len(t, frame1.TilesToRender, 1, "children not yet renderable: root should be kicked in")
	assert.Same(t, root, frame1.TilesToRender[0])
	assert.True(t, child1.Selection.Kicked)
	assert.True(t, child2.Selection.Kicked)

	// Simulate both children finishing their loads between frames.
	child1.LoadState = scene.Done
	child2.LoadState = scene.Done

	frame2 := eng.Update(2, []scene.Frustum{frustum}, root)
	require.Len(t, frame2.TilesToRender, 2)
	assert.ElementsMatch(t, []*scene.Tile{child1, child2}, frame2.TilesToRender)
}

func TestCulledTileStopsTraversal(t *testing.T) {
	root := leafTile(10, scene.Replace)
	opts := scene.DefaultOptions()
	opts.EnableFrustumCulling = true

	eng := New(testManager(), nil, []ExcludePredicate{
		func(tile *scene.Tile) bool { return true },
	}, opts)

	result := eng.Update(1, []scene.Frustum{fakeFrustum{pos: scene.Vec3{Z: 10}, dir: scene.Vec3{Z: -1}}}, root)
	assert.Empty(t, result.TilesToRender)
	assert.Equal(t, 1, result.Culled)
	assert.Equal(t, scene.ResultCulled, root.Selection.ForFrame(1))
}

func TestQueueSortAscendingByPriority(t *testing.T) {
	var q Queues
	q.push(Medium, QueueItem{Priority: 5})
	q.push(Medium, QueueItem{Priority: 1})
	q.push(Medium, QueueItem{Priority: 3})
	q.SortAscending()
	require.Len(t, q.Medium, 3)
	assert.Equal(t, []float64{1, 3, 5}, []float64{q.Medium[0].Priority, q.Medium[1].Priority, q.Medium[2].Priority})
}
