package content

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium3d/tileengine/scene"
)

// buildCmpt assembles a well-formed cmpt container around the given inner
// tiles, each of which already carries its own 12-byte inner header (as
// b3dmPayload builds them), per §6.3's bit-exact header layout.
func buildCmpt(t *testing.T, inner ...[]byte) []byte {
	t.Helper()
	var buf []byte
	for _, payload := range inner {
		buf = append(buf, payload...)
	}
	header := make([]byte, compositeHeaderSize)
	copy(header[0:4], "cmpt")
	binary.LittleEndian.PutUint32(header[4:8], 1)
	binary.LittleEndian.PutUint32(header[8:12], uint32(compositeHeaderSize+len(buf)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(inner)))
	return append(header, buf...)
}

func b3dmPayload(body string) []byte {
	h := make([]byte, 12)
	copy(h[0:4], "b3dm")
	binary.LittleEndian.PutUint32(h[4:8], 1)
	binary.LittleEndian.PutUint32(h[8:12], uint32(12+len(body)))
	return append(h, []byte(body)...)
}

// TestCompositeSingleInnerTileUnmodified is §8's composite scenario 3: a
// cmpt wrapping exactly one inner tile returns that tile's content
// unmodified, not a one-element merged mesh.
func TestCompositeSingleInnerTileUnmodified(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterMagic("b3dm", B3dmLoader{})
	loader := CompositeLoader{Registry: registry}

	inner := b3dmPayload("hello")
	data := buildCmpt(t, inner)

	content, err := loader.Load(Request{URL: "tile.cmpt", Data: data})
	require.NoError(t, err)
	assert.Equal(t, scene.ContentMesh, content.Kind)
	assert.Equal(t, int64(len(inner)), content.Gltf.ByteSize)
}

// TestCompositeMultipleInnerTilesMerge covers the sum(inner.byteLength) +
// headerSize <= cmpt.byteLength invariant of §8 across more than one inner
// tile, and that the merged result concatenates byte sizes.
func TestCompositeMultipleInnerTilesMerge(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterMagic("b3dm", B3dmLoader{})
	loader := CompositeLoader{Registry: registry}

	a := b3dmPayload("aaaa")
	b := b3dmPayload("bb")
	data := buildCmpt(t, a, b)

	content, err := loader.Load(Request{URL: "tile.cmpt", Data: data})
	require.NoError(t, err)
	assert.Equal(t, scene.ContentMesh, content.Kind)
	assert.Equal(t, int64(len(a)+len(b)), content.Gltf.ByteSize)
}

// TestCompositeRejectsOverrunInnerTile covers §8's "inner byteLength exceeds
// remaining buffer" edge case: a cmpt whose declared outer byteLength is
// shorter than an inner tile claims must not panic or silently truncate, it
// degrades to unknown content.
func TestCompositeRejectsOverrunInnerTile(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterMagic("b3dm", B3dmLoader{})
	loader := CompositeLoader{Registry: registry}

	header := make([]byte, compositeHeaderSize)
	copy(header[0:4], "cmpt")
	binary.LittleEndian.PutUint32(header[4:8], 1)
	binary.LittleEndian.PutUint32(header[8:12], uint32(compositeHeaderSize+innerHeaderSize))
	binary.LittleEndian.PutUint32(header[12:16], 1)

	innerHeader := make([]byte, innerHeaderSize)
	copy(innerHeader[0:4], "b3dm")
	binary.LittleEndian.PutUint32(innerHeader[4:8], 1)
	binary.LittleEndian.PutUint32(innerHeader[8:12], uint32(innerHeaderSize+100)) // claims far more than present

	data := append(header, innerHeader...)

	content, err := loader.Load(Request{URL: "tile.cmpt", Data: data})
	require.NoError(t, err)
	assert.Equal(t, scene.ContentUnknown, content.Kind)
}
