package traversal

import (
	"math"

	uuid "github.com/twinj/uuid"

	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/implicit"
	"github.com/cesium3d/tileengine/manager"
	"github.com/cesium3d/tileengine/scene"
)

// Engine runs the per-frame selection pass of §4.1 against one tileset's
// tile tree. Grounded on the teacher's dispatch-loop shape (a single object
// that owns no per-call state and is driven once per tick) but replacing the
// block-index walk with the tile depth-first visit contract.
type Engine struct {
	Manager   *manager.Manager
	Implicit  *implicit.Context // nil for non-implicit tilesets
	Excluders []ExcludePredicate
	Options   scene.Options
}

func New(mgr *manager.Manager, implicitCtx *implicit.Context, excluders []ExcludePredicate, opts scene.Options) *Engine {
	return &Engine{Manager: mgr, Implicit: implicitCtx, Excluders: excluders, Options: opts}
}

// frameState carries the mutable, single-frame bookkeeping threaded through
// the recursive visit; it is never retained past one Update call.
type frameState struct {
	engine   *Engine
	frame    int64
	frustums []scene.Frustum
	opts     scene.Options

	result   *ViewUpdateResult
	queues   Queues
	enqueued map[*scene.Tile]bool
}

// Update runs one traversal pass (§4.1.1) and returns the frame's selection
// result. root may be nil (tileset root not yet loaded, §7: "Catastrophic
// tileset-root load failure ... every subsequent frame returns an empty
// update").
func (e *Engine) Update(frameNumber int64, frustums []scene.Frustum, root *scene.Tile) ViewUpdateResult {
	tlog := engine.NewTimeLog().WithCorrelationID(uuid.NewV4().String())

	st := &frameState{
		engine:   e,
		frame:    frameNumber,
		frustums: frustums,
		opts:     e.Options,
		result:   &ViewUpdateResult{},
		enqueued: make(map[*scene.Tile]bool),
	}

	if root != nil {
		st.visit(root, false)
	}

	st.queues.SortAscending()
	st.result.Queues = st.queues
	st.result.LoadingHigh = len(st.queues.High)
	st.result.LoadingMedium = len(st.queues.Medium)
	st.result.LoadingLow = len(st.queues.Low)

	for _, tile := range st.result.TilesToRender {
		e.Manager.Touch(tile)
	}

	tlog.Debugf("traversal frame %d: visited=%d culled=%d rendered=%d", frameNumber, st.result.Visited, st.result.Culled, len(st.result.TilesToRender))
	return *st.result
}

// visit is the per-tile contract of §4.1.2. ancestorMeetsSse is true once
// some ancestor already satisfies its screen-space-error threshold, either
// naturally or because an unrenderable ancestor is standing in for it
// (§4.1.3's "set ancestorMeetsSse = true ... fall through").
func (s *frameState) visit(tile *scene.Tile, ancestorMeetsSse bool) TraversalDetails {
	// 1. Content progression.
	if tile.LoadState == scene.ContentLoaded {
		s.engine.Manager.UpdateTileContent(s.engine.Implicit, tile)
	}

	lastFrame := tile.Selection.ForFrame(s.frame - 1)
	culled := false
	shouldVisit := true

	// 2. Exclusion.
	for _, pred := range s.engine.Excluders {
		if pred(tile) {
			culled = true
			shouldVisit = false
			break
		}
	}

	wbv := tile.WorldBoundingVolume()

	// 3. Frustum culling.
	visible := false
	for _, f := range s.frustums {
		if f.IsBoundingVolumeVisible(wbv) {
			visible = true
			break
		}
	}
	if !visible && s.opts.RenderTilesUnderCamera {
		for _, f := range s.frustums {
			if f.HorizontalPositionWithinGlobeRectangle(wbv) {
				visible = true
				break
			}
		}
	}
	if !visible {
		culled = true
		if s.opts.EnableFrustumCulling {
			shouldVisit = false
		}
	}

	// 4. Distances.
	distances := make([]float64, len(s.frustums))
	for i, f := range s.frustums {
		distances[i] = math.Sqrt(math.Max(0, wbv.DistanceSquaredTo(f.Position())))
	}

	// 5. Fog culling.
	if len(distances) > 0 {
		allFogged := true
		for _, d := range distances {
			v := d * s.opts.FogDensity
			if math.Exp(-(v * v)) != 0 {
				allFogged = false
				break
			}
		}
		if allFogged {
			culled = true
			if s.opts.EnableFogCulling {
				shouldVisit = false
			}
		}
	}

	if culled {
		s.result.Culled++
	}

	// 6.
	if !shouldVisit {
		s.markSubtreeNoLongerRendered(tile)
		tile.Selection.Record(s.frame, scene.ResultCulled)
		if s.opts.PreloadSiblings {
			s.enqueueLoad(Low, tile)
		}
		return TraversalDetails{AllAreRenderable: true, AnyWereRenderedLastFrame: lastFrame == scene.ResultRendered}
	}

	s.result.Visited++
	if culled {
		s.result.CulledVisited++
	}
	if d := tileDepth(tile); d > s.result.MaxDepth {
		s.result.MaxDepth = d
	}

	// 7. SSE.
	var largestSSE float64
	for i, f := range s.frustums {
		if sse := f.ScreenSpaceError(tile.ScaledGeometricError(), distances[i]); sse > largestSSE {
			largestSSE = sse
		}
	}
	var meetsSse bool
	switch {
	case culled && !s.opts.EnforceCulledScreenSpaceError:
		meetsSse = true
	case culled:
		meetsSse = largestSSE < s.opts.CulledScreenSpaceError
	default:
		meetsSse = largestSSE < s.opts.MaximumScreenSpaceError
	}

	return s.decideRefineOrRender(tile, lastFrame, meetsSse, ancestorMeetsSse)
}

// decideRefineOrRender implements §4.1.3 and §4.1.4.
func (s *frameState) decideRefineOrRender(tile *scene.Tile, lastFrame scene.OriginalResult, meetsSse, ancestorMeetsSse bool) TraversalDetails {
	wantToRefine := tile.UnconditionallyRefine || (!meetsSse && !ancestorMeetsSse)

	if wantToRefine && s.opts.ForbidHoles && !tile.IsLeaf() {
		allChildrenRenderable := true
		for _, c := range tile.Children {
			if c.Content.IsExternalTileset() {
				continue
			}
			if !c.IsRenderable() {
				allChildrenRenderable = false
				s.enqueueLoad(Medium, c)
			}
		}
		if !allChildrenRenderable {
			wantToRefine = false
		}
	}

	if tile.IsLeaf() {
		return s.renderTile(tile, lastFrame, meetsSse, true)
	}

	refiningBecauseCantRender := false
	if !wantToRefine {
		renderThisTile := lastFrame == scene.ResultRendered || lastFrame == scene.ResultCulled || lastFrame == scene.ResultNone || tile.IsRenderable()
		if renderThisTile {
			details := s.renderTile(tile, lastFrame, meetsSse, false)
			for _, c := range tile.Children {
				s.markSubtreeNoLongerRendered(c)
			}
			return details
		}
		refiningBecauseCantRender = true
		s.enqueueLoad(High, tile)
	}

	childAncestorMeetsSse := ancestorMeetsSse || refiningBecauseCantRender

	if tile.Refine == scene.Add {
		s.result.TilesToRender = append(s.result.TilesToRender, tile)
		s.enqueueLoad(Medium, tile)
	}

	firstRenderedDescendantIndex := len(s.result.TilesToRender)
	rewind := s.queues.sizes()

	var agg TraversalDetails
	for i, child := range tile.Children {
		cd := s.visit(child, childAncestorMeetsSse)
		if i == 0 {
			agg = cd
			continue
		}
		agg.AllAreRenderable = agg.AllAreRenderable && cd.AllAreRenderable
		agg.AnyWereRenderedLastFrame = agg.AnyWereRenderedLastFrame || cd.AnyWereRenderedLastFrame
		agg.NotYetRenderableCount += cd.NotYetRenderableCount
	}

	refineToNothing := len(s.result.TilesToRender) == firstRenderedDescendantIndex
	if refineToNothing {
		if tile.Refine == scene.Add {
			tile.Selection.Record(s.frame, scene.ResultRefined)
		} else if lastFrame == scene.ResultRendered {
			s.result.TilesToNoLongerRender = append(s.result.TilesToNoLongerRender, tile)
		}
		return agg
	}

	if !agg.AllAreRenderable && !agg.AnyWereRenderedLastFrame {
		s.kickDescendants(tile, firstRenderedDescendantIndex)
		s.result.TilesToRender = s.result.TilesToRender[:firstRenderedDescendantIndex]
		if tile.Refine == scene.Replace {
			s.result.TilesToRender = append(s.result.TilesToRender, tile)
		}
		tile.Selection.Record(s.frame, scene.ResultRendered)

		if agg.NotYetRenderableCount > s.opts.LoadingDescendantLimit && !tile.Content.IsExternalTileset() && !tile.UnconditionallyRefine {
			s.queues.rewindTo(rewind)
			s.enqueueLoad(Medium, tile)
		}
	} else {
		tile.Selection.Record(s.frame, scene.ResultRefined)
		if s.opts.PreloadAncestors {
			s.enqueueLoad(Low, tile)
		}
	}

	return agg
}

// renderTile appends tile to the render list and records OriginalResult ==
// Rendered, used by both the leaf case and the "render this tile instead of
// refining" case of §4.1.3. enqueueUnconditionally is true for leaves, which
// always enqueue on Medium; the non-leaf caller only enqueues when the tile
// itself (not merely an ancestor) meets its SSE threshold.
func (s *frameState) renderTile(tile *scene.Tile, lastFrame scene.OriginalResult, meetsSse, enqueueUnconditionally bool) TraversalDetails {
	if enqueueUnconditionally || meetsSse {
		s.enqueueLoad(Medium, tile)
	}
	tile.Selection.Record(s.frame, scene.ResultRendered)
	s.result.TilesToRender = append(s.result.TilesToRender, tile)

	notYetRenderable := 0
	if !tile.IsRenderable() {
		notYetRenderable = 1
	}
	return TraversalDetails{
		AllAreRenderable:         tile.IsRenderable(),
		AnyWereRenderedLastFrame: lastFrame == scene.ResultRendered,
		NotYetRenderableCount:    notYetRenderable,
	}
}

// markSubtreeNoLongerRendered walks tile and its full descendant subtree,
// emitting every tile whose last-frame selection was Rendered into
// TilesToNoLongerRender (§4.1.2 step 6, §4.1.3 "mark children as no longer
// rendered"). Only called on tiles the traversal will not itself visit this
// frame — a visited tile always performs its own bookkeeping.
func (s *frameState) markSubtreeNoLongerRendered(tile *scene.Tile) {
	if tile.Selection.ForFrame(s.frame-1) == scene.ResultRendered {
		s.result.TilesToNoLongerRender = append(s.result.TilesToNoLongerRender, tile)
	}
	for _, c := range tile.Children {
		s.markSubtreeNoLongerRendered(c)
	}
}

// kickDescendants marks every tile added to the render list since
// firstRenderedDescendantIndex, and each one's ancestors up to (but
// excluding) tile, as kicked (§3, §8 invariant).
func (s *frameState) kickDescendants(tile *scene.Tile, firstRenderedDescendantIndex int) {
	for _, rendered := range s.result.TilesToRender[firstRenderedDescendantIndex:] {
		rendered.Selection.SetKicked()
		for anc := rendered.Parent; anc != nil && anc != tile; anc = anc.Parent {
			anc.Selection.SetKicked()
		}
	}
}

// enqueueLoad pushes tile onto the named queue, gated by §4.1.6: a tile may
// only be enqueued while Unloaded, and at most once per frame.
func (s *frameState) enqueueLoad(kind QueueKind, tile *scene.Tile) {
	if tile.LoadState != scene.Unloaded {
		return
	}
	if s.enqueued[tile] {
		return
	}
	s.enqueued[tile] = true
	priority := computePriority(tile.WorldBoundingVolume().Center(), s.frustums)
	s.queues.push(kind, QueueItem{Tile: tile, Priority: priority})
}

func tileDepth(tile *scene.Tile) int {
	d := 0
	for p := tile.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}
