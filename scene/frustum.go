package scene

// Frustum is one view's culling/SSE contract (§4.1.1: "an ordered list of
// view frustums (each carrying position, direction, projection,
// screen-size-at-distance helper, and an optional cartographic height)").
//
// Concrete projection math (perspective vs. orthographic, actual frustum
// plane tests) is an external collaborator by the same reasoning as the
// renderer-prep interfaces in §6: this engine only needs the queries
// below to run the selection algorithm.
type Frustum interface {
	// Position is the camera's world-space position.
	Position() Vec3

	// Direction is the camera's unit look vector.
	Direction() Vec3

	// IsBoundingVolumeVisible reports whether bv intersects this frustum.
	IsBoundingVolumeVisible(bv BoundingVolume) bool

	// ScreenSpaceError projects geometricError to screen pixels at the given
	// distance, using this frustum's projection parameters.
	ScreenSpaceError(geometricError, distance float64) float64

	// CartographicHeight returns the camera's height above the ellipsoid
	// and whether one is defined (some frustums, e.g. orthographic map
	// views, may not have one).
	CartographicHeight() (height float64, ok bool)

	// HorizontalPositionWithinGlobeRectangle supports
	// renderTilesUnderCamera: true if the camera's horizontal position
	// falls within the tile's estimated globe rectangle.
	HorizontalPositionWithinGlobeRectangle(bv BoundingVolume) bool
}
