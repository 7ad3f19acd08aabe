package scene

// Options bundles the per-tileset behavior flags and thresholds read by the
// traversal engine (§4.1.1).
type Options struct {
	MaximumScreenSpaceError float64
	CulledScreenSpaceError  float64

	EnableFrustumCulling bool
	EnableFogCulling     bool
	FogDensity           float64

	ForbidHoles                bool
	PreloadAncestors           bool
	PreloadSiblings            bool
	RenderTilesUnderCamera     bool
	EnforceCulledScreenSpaceError bool
	LoadingDescendantLimit     int

	MaximumSimultaneousTileLoads    int
	MaximumSimultaneousSubtreeLoads int
	MaximumCachedBytes              int64
}

// DefaultOptions mirrors the teacher's convention of a documented default
// constructor (e.g. multiscale2d's default TileSize) rather than leaving
// zero values to be misread as "off" for thresholds that need a sane floor.
func DefaultOptions() Options {
	return Options{
		MaximumScreenSpaceError:        16,
		CulledScreenSpaceError:         64,
		EnableFrustumCulling:           true,
		EnableFogCulling:               true,
		FogDensity:                     0.00002,
		ForbidHoles:                    false,
		PreloadAncestors:               true,
		PreloadSiblings:                true,
		RenderTilesUnderCamera:         false,
		EnforceCulledScreenSpaceError:  true,
		LoadingDescendantLimit:         20,
		MaximumSimultaneousTileLoads:    20,
		MaximumSimultaneousSubtreeLoads: 10,
		MaximumCachedBytes:              512 * 1024 * 1024,
	}
}
