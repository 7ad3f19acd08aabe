// Package frame implements the frame result assembler of §4.6: it owns the
// monotonic frame counter and the previous frame's render set, and
// reconciles traversal's own best-effort tilesToNoLongerRender list against
// the authoritative symmetric difference previous \ current.
package frame

import (
	"github.com/cesium3d/tileengine/scene"
	"github.com/cesium3d/tileengine/traversal"
)

// Assembler drives one traversal.Engine across frames. One Assembler per
// tileset-per-view, matching the teacher's convention of a thin stateful
// wrapper around an otherwise stateless per-call engine.
type Assembler struct {
	engine      *traversal.Engine
	frameNumber int64
	previous    map[*scene.Tile]bool
}

func NewAssembler(engine *traversal.Engine) *Assembler {
	return &Assembler{engine: engine}
}

// FrameNumber reports the number of the most recently completed frame, 0
// before the first Update call.
func (a *Assembler) FrameNumber() int64 { return a.frameNumber }

// Update advances the frame counter, runs the traversal, and extends the
// result's TilesToNoLongerRender with every tile of the previous frame's
// render set that is missing from this frame's (§4.6). Traversal's own
// inline markings (subtree culls, non-refine children, refine-to-nothing)
// already cover most cases; this pass only adds tiles traversal's local
// per-node reasoning could not see, such as an ancestor that stops being
// rendered because refinement below it newly succeeded.
func (a *Assembler) Update(frustums []scene.Frustum, root *scene.Tile) traversal.ViewUpdateResult {
	a.frameNumber++
	result := a.engine.Update(a.frameNumber, frustums, root)

	current := make(map[*scene.Tile]bool, len(result.TilesToRender))
	for _, t := range result.TilesToRender {
		current[t] = true
	}

	seen := make(map[*scene.Tile]bool, len(result.TilesToNoLongerRender))
	noLonger := result.TilesToNoLongerRender
	for _, t := range noLonger {
		seen[t] = true
	}
	for t := range a.previous {
		if current[t] || seen[t] {
			continue
		}
		noLonger = append(noLonger, t)
		seen[t] = true
	}

	result.TilesToNoLongerRender = noLonger
	a.previous = current
	return result
}
