package implicit

import (
	"fmt"

	"github.com/cesium3d/tileengine/scene"
)

// Subtree holds one decoded subtree's three availability bitfields plus the
// coordinate block it covers, per §3.
type Subtree struct {
	BaseLevel        int
	NumLevels        int
	Scheme           scene.SubdivisionScheme
	TileAvailable    Bitfield
	ContentAvailable Bitfield
	SubtreeAvailable Bitfield
}

// relativeMorton returns the Morton code of (x,y[,z]) relative to this
// subtree, at relLevel levels below its base: each coordinate is reduced to
// its low relLevel bits, i.e. within [0, 2^relLevel).
func (s Subtree) relativeMorton(relLevel, x, y, z int) uint64 {
	mask := uint64(1)<<uint(relLevel) - 1
	if s.Scheme == scene.Octree {
		return EncodeOct(uint64(x)&mask, uint64(y)&mask, uint64(z)&mask)
	}
	return EncodeQuad(uint64(x)&mask, uint64(y)&mask)
}

func (s Subtree) IsTileAvailable(relLevel, x, y, z int) bool {
	return s.TileAvailable.Get(levelOffset(relLevel, s.Scheme) + s.relativeMorton(relLevel, x, y, z))
}

func (s Subtree) IsContentAvailable(relLevel, x, y, z int) bool {
	return s.ContentAvailable.Get(levelOffset(relLevel, s.Scheme) + s.relativeMorton(relLevel, x, y, z))
}

func (s Subtree) IsSubtreeAvailableAt(x, y, z int) bool {
	return s.SubtreeAvailable.Get(s.relativeMorton(s.NumLevels, x, y, z))
}

// levelOffset returns the Morton-space offset of relLevel within a subtree:
// levels are stored back to back, each one 4^relLevel (quad) or 8^relLevel
// (oct) entries.
func levelOffset(relLevel int, scheme scene.SubdivisionScheme) uint64 {
	base := uint64(4)
	if scheme == scene.Octree {
		base = 8
	}
	var offset uint64
	count := uint64(1)
	for l := 0; l < relLevel; l++ {
		offset += count
		count *= base
	}
	return offset
}

// Context addresses a sequence of implicitly-tiled subtree blocks for a
// tileset, lazily fetching and caching sibling subtrees as the traversal
// descends into them. Subtree fetch is an external concern (the asset
// accessor, §6.1); Context only asks a SubtreeLoader for bytes and decodes
// them via package implicit's wire decoder.
type Context struct {
	scheme        scene.SubdivisionScheme
	subtreeLevels int
	maximumLevel  int
	subtreesURL   string // template, substituted per subtree (§6.2)

	loader SubtreeLoader
	cache  map[uint64]*Subtree // keyed by subtreeKey(baseLevel, morton)
}

// SubtreeLoader fetches and decodes the subtree covering (level, morton).
// Implemented by package content's JSON/subtree dispatch in production;
// tests supply an in-memory stub.
type SubtreeLoader interface {
	LoadSubtree(level int, morton uint64) (Subtree, error)
}

func NewContext(scheme scene.SubdivisionScheme, subtreeLevels, maximumLevel int, subtreesURL string, loader SubtreeLoader) *Context {
	return &Context{
		scheme:        scheme,
		subtreeLevels: subtreeLevels,
		maximumLevel:  maximumLevel,
		subtreesURL:   subtreesURL,
		loader:        loader,
		cache:         make(map[uint64]*Subtree),
	}
}

func subtreeKey(level int, morton uint64) uint64 {
	return (uint64(level) << 40) ^ morton
}

// subtreeFor returns the (possibly cached) subtree whose base level and
// relative root morton contains (level, x, y, z), fetching it via the
// loader on first access.
func (c *Context) subtreeFor(level int, x, y, z int) (*Subtree, error) {
	subtreeIndex := level / c.subtreeLevels
	baseLevel := subtreeIndex * c.subtreeLevels
	rx, ry, rz := x, y, z
	for l := level; l > baseLevel; l-- {
		rx >>= 1
		ry >>= 1
		rz >>= 1
	}
	morton := quadOrOctMorton(c.scheme, rx, ry, rz)
	key := subtreeKey(baseLevel, morton)
	if s, ok := c.cache[key]; ok {
		return s, nil
	}
	s, err := c.loader.LoadSubtree(baseLevel, morton)
	if err != nil {
		return nil, fmt.Errorf("loading subtree at level %d morton %d: %w", baseLevel, morton, err)
	}
	c.cache[key] = &s
	return &s, nil
}

func quadOrOctMorton(scheme scene.SubdivisionScheme, x, y, z int) uint64 {
	if scheme == scene.Octree {
		return EncodeOct(uint64(x), uint64(y), uint64(z))
	}
	return EncodeQuad(uint64(x), uint64(y))
}

// IsTileAvailable implements scene.ImplicitContext.
func (c *Context) IsTileAvailable(level int, x, y, z int) bool {
	s, err := c.subtreeFor(level, x, y, z)
	if err != nil {
		return false
	}
	return s.IsTileAvailable(level-s.BaseLevel, x, y, z)
}

// IsContentAvailable implements scene.ImplicitContext.
func (c *Context) IsContentAvailable(level int, x, y, z int) bool {
	s, err := c.subtreeFor(level, x, y, z)
	if err != nil {
		return false
	}
	return s.IsContentAvailable(level-s.BaseLevel, x, y, z)
}

// IsSubtreeAvailable reports whether the child subtree block attaching at
// (level, x, y, z) — which must fall exactly on a subtree boundary — exists.
func (c *Context) IsSubtreeAvailable(level int, x, y, z int) bool {
	s, err := c.subtreeFor(level-1, x>>1, y>>1, z>>1)
	if err != nil {
		return false
	}
	// relative coordinate of the child slot within the parent subtree block
	rx, ry, rz := x, y, z
	for l := level; l > s.BaseLevel+s.NumLevels; l-- {
		rx >>= 1
		ry >>= 1
		rz >>= 1
	}
	return s.IsSubtreeAvailableAt(rx, ry, rz)
}

// SubtreeLevels implements scene.ImplicitContext.
func (c *Context) SubtreeLevels() int { return c.subtreeLevels }

// Scheme implements scene.ImplicitContext.
func (c *Context) Scheme() scene.SubdivisionScheme { return c.scheme }

// MaximumLevel returns the implicit tileset's maximumLevel (§6.4).
func (c *Context) MaximumLevel() int { return c.maximumLevel }
