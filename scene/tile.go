package scene

import "container/list"

// RefineRule is §6.4's "refine" field: REPLACE or ADD, inherited from the
// parent when absent.
type RefineRule int

const (
	Replace RefineRule = iota
	Add
)

// SubdivisionScheme names the implicit-tiling scheme (§4.3.2, §6.4).
type SubdivisionScheme int

const (
	SchemeNone SubdivisionScheme = iota
	Quadtree
	Octree
)

// IdentityKind tags the discriminated union of §3.
type IdentityKind int

const (
	IdentityURL IdentityKind = iota
	IdentityQuadtreeCoord
	IdentityOctreeCoord
	IdentityUpsampled
)

// Identity is the tile's discriminated-union identity: a content URL, a
// quadtree (level,x,y), an octree (level,x,y,z), or "upsampled from parent".
type Identity struct {
	Kind  IdentityKind
	URL   string
	Level int
	X, Y, Z int
}

func URLIdentity(url string) Identity { return Identity{Kind: IdentityURL, URL: url} }
func QuadtreeIdentity(level, x, y int) Identity {
	return Identity{Kind: IdentityQuadtreeCoord, Level: level, X: x, Y: y}
}
func OctreeIdentity(level, x, y, z int) Identity {
	return Identity{Kind: IdentityOctreeCoord, Level: level, X: x, Y: y, Z: z}
}
func UpsampledIdentity() Identity { return Identity{Kind: IdentityUpsampled} }

// OverlayMapping associates a tile with the raster-overlay tile(s) draped on
// it (§3: "a list of raster-overlay mappings").
type OverlayMapping struct {
	OverlayName string
	// TextureCoordinateIndex selects which of the tile's UV sets the
	// overlay image is mapped through.
	TextureCoordinateIndex int
}

// Context is the back-reference to the owning tileset's shared state: a
// tile never owns its options or implicit-tiling context, it only points at
// them, alongside the base URL its content is resolved against (§3: "context (back-reference to the owning tileset sub-tree
// metadata)").
type Context struct {
	Options        *Options
	Implicit       ImplicitContext // nil for explicit (non-implicit) subtrees
	BaseURL        string
}

// ImplicitContext is a forward declaration filled in by package implicit
// via an interface to avoid an import cycle: this module only needs to ask
// "does this coordinate have content/children", which implicit.Context
// satisfies.
type ImplicitContext interface {
	IsTileAvailable(level int, x, y, z int) bool
	IsContentAvailable(level int, x, y, z int) bool
	SubtreeLevels() int
	Scheme() SubdivisionScheme
}

// Tile is a node in the hierarchical spatial index (§3).
type Tile struct {
	Identity Identity

	BoundingVolume        BoundingVolume
	ContentBoundingVolume BoundingVolume // optional, nil if unset
	ViewerRequestVolume   BoundingVolume // optional, nil if unset

	GeometricError float64
	Refine         RefineRule
	Transform      Mat4

	Children []*Tile
	Parent   *Tile // non-owning
	Context  *Context // non-owning

	Content Content

	LoadState       LoadState
	Selection       SelectionState
	UnconditionallyRefine bool

	Overlays []OverlayMapping

	// lruElem links this tile into the content manager's global LRU list
	// once its content is not Unloaded. nil while Unloaded. Only the
	// manager package touches this field.
	lruElem *list.Element

	// childrenMaterialized is set once an implicit tile's children have
	// been instantiated from the subtree availability bitfields (§4.3.2),
	// so repeated ContentLoaded->Done progression doesn't redo the work.
	childrenMaterialized bool
}

// LRUElement returns the tile's position in the content manager's LRU list,
// or nil if the tile currently holds no loaded content.
func (t *Tile) LRUElement() *list.Element { return t.lruElem }

// SetLRUElement is called only by package manager.
func (t *Tile) SetLRUElement(e *list.Element) { t.lruElem = e }

func (t *Tile) ChildrenMaterialized() bool     { return t.childrenMaterialized }
func (t *Tile) SetChildrenMaterialized(v bool) { t.childrenMaterialized = v }

// IsLeaf reports whether the tile has no children (§4.1.3: "Leaf tile: always render this tile").
func (t *Tile) IsLeaf() bool { return len(t.Children) == 0 }

// IsRenderable is true once a tile's content has finished loading (or the
// tile has no content to wait on).
func (t *Tile) IsRenderable() bool {
	switch t.Content.Kind {
	case ContentNone, ContentEmpty:
		return true
	default:
		return t.LoadState == Done
	}
}

// AccumulateTransform composes the parent's transform with this tile's
// local transform, per the invariant in §3.
func (t *Tile) AccumulateTransform() Mat4 {
	if t.Parent == nil {
		return t.Transform
	}
	return t.Parent.AccumulateTransform().Mul(t.Transform)
}

// WorldBoundingVolume returns the bounding volume transformed into world
// space by the accumulated transform.
func (t *Tile) WorldBoundingVolume() BoundingVolume {
	return t.BoundingVolume.Transform(t.AccumulateTransform())
}

// ScaledGeometricError returns GeometricError scaled by the accumulated
// transform's max axis scale, per §6.4 / §9 numerics note.
func (t *Tile) ScaledGeometricError() float64 {
	return t.GeometricError * t.AccumulateTransform().MaxScaleComponent()
}
