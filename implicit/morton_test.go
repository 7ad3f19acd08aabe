package implicit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMortonQuadRoundTrip covers §8's Morton round-trip property: decoding
// an encoded (x,y) pair must reproduce the original coordinates, across the
// full range a subtree's coordinate bits can take.
func TestMortonQuadRoundTrip(t *testing.T) {
	for x := uint64(0); x < 16; x++ {
		for y := uint64(0); y < 16; y++ {
			morton := EncodeQuad(x, y)
			gotX, gotY := DecodeQuad(morton)
			assert.Equal(t, x, gotX, "x round-trip at (%d,%d)", x, y)
			assert.Equal(t, y, gotY, "y round-trip at (%d,%d)", x, y)
		}
	}
}

func TestMortonOctRoundTrip(t *testing.T) {
	for x := uint64(0); x < 8; x++ {
		for y := uint64(0); y < 8; y++ {
			for z := uint64(0); z < 8; z++ {
				morton := EncodeOct(x, y, z)
				gotX, gotY, gotZ := DecodeOct(morton)
				assert.Equal(t, x, gotX, "x round-trip at (%d,%d,%d)", x, y, z)
				assert.Equal(t, y, gotY, "y round-trip at (%d,%d,%d)", x, y, z)
				assert.Equal(t, z, gotZ, "z round-trip at (%d,%d,%d)", x, y, z)
			}
		}
	}
}

// TestMortonQuadChildOrdering asserts the adjacency §4.3.2 relies on: the
// four children of (x,y) occupy consecutive Morton codes when addressed as
// (2x+cx, 2y+cy) for cx,cy in {0,1}, in bit-interleaved child-index order.
func TestMortonQuadChildOrdering(t *testing.T) {
	const x, y = uint64(3), uint64(5)
	base := EncodeQuad(2*x, 2*y)
	for childIndex := uint64(0); childIndex < 4; childIndex++ {
		cx := childIndex & 1
		cy := (childIndex >> 1) & 1
		got := EncodeQuad(2*x+cx, 2*y+cy)
		assert.Equal(t, base+childIndex, got, "child %d should be base+%d", childIndex, childIndex)
	}
}
