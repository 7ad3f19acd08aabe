package implicit

import "github.com/cesium3d/tileengine/scene"

// childCount is 4 for quadtree, 8 for octree.
func childCount(scheme scene.SubdivisionScheme) int {
	if scheme == scene.Octree {
		return 8
	}
	return 4
}

func childCoordBits(scheme scene.SubdivisionScheme, childIndex int) (x, y, z int) {
	x = childIndex & 1
	y = (childIndex >> 1) & 1
	if scheme == scene.Octree {
		z = (childIndex >> 2) & 1
	}
	return
}

// childBoundingVolume halves the parent's bounding volume along each axis
// per §4.3.2, selecting halves by the child's (x,y[,z]) bits.
func childBoundingVolume(parent scene.BoundingVolume, scheme scene.SubdivisionScheme, x, y, z int) scene.BoundingVolume {
	switch bv := parent.(type) {
	case scene.Region:
		if scheme == scene.Octree {
			return bv.Octant(x, y, z)
		}
		return bv.Quarter(x, y)
	case scene.OrientedBox:
		return bv.Halve(x, y, z)
	default:
		// Spheres and S2 cells have no well-defined axis-aligned halving in
		// this design; children inherit the parent's volume, which is
		// conservative (never under-bounds).
		return parent
	}
}

// MaterializeChildren populates tile.Children for an implicit tile at
// (level, x, y, z) per §4.3.2: for each child slot, check subtree-boundary
// availability or (tile-available && content-available) to decide between a
// content-bearing tile and an explicitly-empty tile; slots with neither
// tile-available nor subtree-available produce no child at all (a hole).
//
// This is called by the content manager (§4.2: "materialize child tiles")
// when a tile's content transitions ContentLoaded->Done, never by the
// traversal directly (§4.1.6: "the traversal never mutates a tile's content").
func MaterializeChildren(ctx *Context, parent *scene.Tile, level, x, y, z int) {
	if parent.ChildrenMaterialized() {
		return
	}
	parent.SetChildrenMaterialized(true)

	childLevel := level + 1
	n := childCount(ctx.Scheme())
	atSubtreeBoundary := childLevel%ctx.SubtreeLevels() == 0 && childLevel != level

	for i := 0; i < n; i++ {
		cx, cy, cz := childCoordBits(ctx.Scheme(), i)
		gx, gy, gz := x*2+cx, y*2+cy, z*2+cz

		var available bool
		var hasContent bool
		if atSubtreeBoundary {
			available = ctx.IsSubtreeAvailable(childLevel, gx, gy, gz)
			// A tile at a subtree boundary is itself addressed by the next
			// subtree; whether IT has content is deferred until that
			// subtree is fetched, which happens lazily the next time this
			// child is visited and its own children are materialized.
			hasContent = available
		} else {
			available = ctx.IsTileAvailable(childLevel, gx, gy, gz)
			if available {
				hasContent = ctx.IsContentAvailable(childLevel, gx, gy, gz)
			}
		}
		if !available {
			continue // a hole: no child tile at all
		}

		child := &scene.Tile{
			Identity:       quadOrOctIdentity(ctx.Scheme(), childLevel, gx, gy, gz),
			GeometricError: parent.GeometricError / 2,
			Refine:         parent.Refine,
			Transform:      scene.Identity4(),
			Parent:         parent,
			Context:        parent.Context,
		}
		child.BoundingVolume = childBoundingVolume(parent.BoundingVolume, ctx.Scheme(), cx, cy, cz)
		if hasContent {
			child.Content = scene.Content{Kind: scene.ContentUnknown} // resolved on load (magic/mime/ext dispatch)
		} else {
			child.Content = scene.Content{Kind: scene.ContentEmpty}
			child.LoadState = scene.Done
		}
		parent.Children = append(parent.Children, child)
	}
}

func quadOrOctIdentity(scheme scene.SubdivisionScheme, level, x, y, z int) scene.Identity {
	if scheme == scene.Octree {
		return scene.OctreeIdentity(level, x, y, z)
	}
	return scene.QuadtreeIdentity(level, x, y)
}
