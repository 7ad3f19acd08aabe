// Package traversal implements the per-frame tile selection engine of §4.1:
// the depth-first pass that produces the render set, three priority-ordered
// load queues, and the no-longer-rendered set.
package traversal

import "github.com/cesium3d/tileengine/scene"

// QueueKind names one of the three tile-load priority queues plus the
// subtree queue (§2, §5).
type QueueKind int

const (
	High QueueKind = iota
	Medium
	Low
	SubtreeQueue
)

// QueueItem pairs a tile with its load priority (§4.1.5: lower = more urgent).
type QueueItem struct {
	Tile     *scene.Tile
	Priority float64
}

// Queues holds the four load queues accumulated during one traversal pass.
type Queues struct {
	High, Medium, Low, Subtree []QueueItem
}

func (q *Queues) push(kind QueueKind, item QueueItem) {
	switch kind {
	case High:
		q.High = append(q.High, item)
	case Medium:
		q.Medium = append(q.Medium, item)
	case Low:
		q.Low = append(q.Low, item)
	case SubtreeQueue:
		q.Subtree = append(q.Subtree, item)
	}
}

// sizes captures the current length of all four queues, used as the
// "rewind point" of §4.1.3.
type sizes struct{ h, m, l, s int }

func (q *Queues) sizes() sizes {
	return sizes{len(q.High), len(q.Medium), len(q.Low), len(q.Subtree)}
}

func (q *Queues) rewindTo(s sizes) {
	q.High = q.High[:s.h]
	q.Medium = q.Medium[:s.m]
	q.Low = q.Low[:s.l]
	q.Subtree = q.Subtree[:s.s]
}

// SortAscending orders each queue by ascending priority (§4.1.5: "Queues
// are sorted ascending each frame before dispatch").
func (q *Queues) SortAscending() {
	sortByPriority(q.High)
	sortByPriority(q.Medium)
	sortByPriority(q.Low)
	sortByPriority(q.Subtree)
}

func sortByPriority(items []QueueItem) {
	// Small slices, insertion sort keeps this dependency-free and stable;
	// queue sizes per frame are bounded by visited-tile count, not dataset
	// size, so O(n^2) worst case is a non-issue in practice.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Priority < items[j-1].Priority; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// ViewUpdateResult is the per-frame output of §4.1.1.
type ViewUpdateResult struct {
	TilesToRender         []*scene.Tile
	TilesToNoLongerRender []*scene.Tile

	Visited       int
	CulledVisited int
	Culled        int
	MaxDepth      int

	LoadingHigh, LoadingMedium, LoadingLow int

	Queues Queues
}

// TraversalDetails is the child-aggregation result of §4.1.4.
type TraversalDetails struct {
	AllAreRenderable         bool
	AnyWereRenderedLastFrame bool
	NotYetRenderableCount    int
}

// ExcludePredicate is a user exclusion check (§4.1.2 step 2), e.g. a
// rasterized-polygon exclusion zone. Grounded on
// original_source's RasterizedPolygonsTileExcluder: the concrete polygon
// test is an external geometry concern, this engine only calls the
// predicate.
type ExcludePredicate func(tile *scene.Tile) bool
