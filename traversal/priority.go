package traversal

import (
	"math"

	"github.com/cesium3d/tileengine/scene"
)

// minDistanceForPriority is epsilon (ε) of §4.1.5: frustums whose camera sits
// (almost) exactly at the bounding volume's center contribute no direction
// term and are skipped.
const minDistanceForPriority = 1e-6

// computePriority implements §4.1.5: lower values are more urgent.
// `(1 − dot(unit(centerOfBV − camPos), camDir)) · distance`, minimized over
// every frustum whose camera is not coincident with the tile's center.
func computePriority(center scene.Vec3, frustums []scene.Frustum) float64 {
	best := math.Inf(1)
	for _, f := range frustums {
		diff := center.Sub(f.Position())
		dist := diff.Length()
		if dist < minDistanceForPriority {
			continue
		}
		unit := diff.Scale(1 / dist)
		p := (1 - unit.Dot(f.Direction())) * dist
		if p < best {
			best = p
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

// byDistanceToCamera orders tiles nearest-camera-first. §4.1 leaves child
// traversal order as an Open Question the engine does not need to settle by
// default (front-to-back only matters for a renderer doing early-Z or
// transparency sorting, neither of which this package performs); callers
// that do care about that ordering can sort a child slice with this
// comparator before queuing loads.
func byDistanceToCamera(camera scene.Vec3) func(a, b *scene.Tile) int {
	return func(a, b *scene.Tile) int {
		da := a.BoundingVolume.Center().Sub(camera).Length()
		db := b.BoundingVolume.Center().Sub(camera).Length()
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	}
}
