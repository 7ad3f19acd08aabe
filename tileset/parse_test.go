package tileset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium3d/tileengine/content"
	"github.com/cesium3d/tileengine/manager"
	"github.com/cesium3d/tileengine/scene"
)

func testManager() *manager.Manager {
	opts := scene.DefaultOptions()
	return manager.New(content.NewStandardRegistry(), nil, nil, opts, nil)
}

func TestParseExplicitTreeWithRegion(t *testing.T) {
	doc := []byte(`{
		"asset": {"version": "1.0"},
		"root": {
			"boundingVolume": {"region": [-1.2, 0.1, -1.1, 0.2, 0, 100]},
			"geometricError": 500,
			"refine": "REPLACE",
			"content": {"uri": "parent.b3dm"},
			"children": [
				{
					"boundingVolume": {"region": [-1.2, 0.1, -1.15, 0.15, 0, 100]},
					"geometricError": 100,
					"content": {"uri": "child0.b3dm"}
				}
			]
		}
	}`)

	result, err := Parse(doc, "https://example.com/tileset.json", nil, nil, testManager())
	require.NoError(t, err)
	require.NotNil(t, result.Root)
	assert.Nil(t, result.Implicit)

	root := result.Root
	assert.Equal(t, scene.Replace, root.Refine)
	assert.Equal(t, 500.0, root.GeometricError)
	region, ok := root.BoundingVolume.(scene.Region)
	require.True(t, ok)
	assert.Equal(t, -1.2, region.West)
	assert.Equal(t, scene.IdentityURL, root.Identity.Kind)
	assert.Equal(t, "https://example.com/parent.b3dm", root.Identity.URL)

	require.Len(t, root.Children, 1)
	child := root.Children[0]
	assert.Equal(t, scene.Replace, child.Refine, "refine inherited from parent when absent")
	assert.Same(t, root, child.Parent)
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	doc := []byte(`{"asset": {"version": "42.0"}, "root": {"boundingVolume": {"sphere": [0,0,0,1]}, "geometricError": 1}}`)
	_, err := Parse(doc, "", nil, nil, testManager())
	require.Error(t, err)
}

func TestParseRejectsMissingAsset(t *testing.T) {
	doc := []byte(`{"root": {"boundingVolume": {"sphere": [0,0,0,1]}, "geometricError": 1}}`)
	_, err := Parse(doc, "", nil, nil, testManager())
	require.Error(t, err)
}

func TestParseImplicitTilingAttachesContext(t *testing.T) {
	doc := []byte(`{
		"asset": {"version": "1.1"},
		"root": {
			"boundingVolume": {"region": [-1, -1, 1, 1, 0, 100]},
			"geometricError": 500,
			"refine": "ADD",
			"extensions": {
				"3DTILES_implicit_tiling": {
					"subdivisionScheme": "QUADTREE",
					"subtreeLevels": 4,
					"maximumLevel": 10,
					"subtrees": {"uri": "subtrees/{level}.{x}.{y}.json"}
				}
			}
		}
	}`)

	result, err := Parse(doc, "https://example.com/", nil, nil, testManager())
	require.NoError(t, err)
	require.NotNil(t, result.Implicit)
	assert.True(t, result.Root.UnconditionallyRefine)
	assert.Equal(t, result.Implicit, result.Root.Context.Implicit)
}

func TestParseBoxAndSphereBoundingVolumes(t *testing.T) {
	box, err := parseBoundingVolume(rawBV(t, `{"box": [0,0,0, 1,0,0, 0,1,0, 0,0,1]}`))
	require.NoError(t, err)
	ob, ok := box.(scene.OrientedBox)
	require.True(t, ok)
	assert.Equal(t, 1.0, ob.HalfAxisX.X)

	sph, err := parseBoundingVolume(rawBV(t, `{"sphere": [1,2,3,4]}`))
	require.NoError(t, err)
	s, ok := sph.(scene.Sphere)
	require.True(t, ok)
	assert.Equal(t, 4.0, s.R)
}

func rawBV(t *testing.T, s string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}
