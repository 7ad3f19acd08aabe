package content

import (
	"encoding/binary"
	"fmt"

	"github.com/cesium3d/tileengine/engine"
)

// CompositeHeader is the bit-exact `cmpt` header of §6.3.
type CompositeHeader struct {
	Magic       [4]byte
	Version     uint32
	ByteLength  uint32
	TilesLength uint32
}

const compositeHeaderSize = 16

func parseCompositeHeader(data []byte) (CompositeHeader, error) {
	var h CompositeHeader
	if len(data) < compositeHeaderSize {
		return h, engine.NewError("parseCompositeHeader", engine.ErrValidation, 0,
			fmt.Errorf("composite header needs %d bytes, got %d", compositeHeaderSize, len(data)))
	}
	copy(h.Magic[:], data[0:4])
	if string(h.Magic[:]) != "cmpt" {
		return h, engine.NewError("parseCompositeHeader", engine.ErrParse, 0,
			fmt.Errorf("wrong magic %q", h.Magic))
	}
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	if h.Version != 1 {
		return h, engine.NewError("parseCompositeHeader", engine.ErrParse, 0,
			fmt.Errorf("unsupported composite version %d", h.Version))
	}
	h.ByteLength = binary.LittleEndian.Uint32(data[8:12])
	h.TilesLength = binary.LittleEndian.Uint32(data[12:16])
	if int(h.ByteLength) > len(data) {
		return h, engine.NewError("parseCompositeHeader", engine.ErrValidation, 0,
			fmt.Errorf("byteLength %d exceeds buffer of %d", h.ByteLength, len(data)))
	}
	return h, nil
}

// InnerHeader is the per-tile header inside a composite (§6.3).
type InnerHeader struct {
	Magic      [4]byte
	Version    uint32
	ByteLength uint32
}

const innerHeaderSize = 12

func parseInnerHeader(data []byte) (InnerHeader, error) {
	var h InnerHeader
	if len(data) < innerHeaderSize {
		return h, engine.NewError("parseInnerHeader", engine.ErrValidation, 0,
			fmt.Errorf("inner header needs %d bytes, got %d", innerHeaderSize, len(data)))
	}
	copy(h.Magic[:], data[0:4])
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	h.ByteLength = binary.LittleEndian.Uint32(data[8:12])
	if int(h.ByteLength) > len(data) {
		return h, engine.NewError("parseInnerHeader", engine.ErrValidation, 0,
			fmt.Errorf("inner byteLength %d exceeds remaining buffer of %d", h.ByteLength, len(data)))
	}
	return h, nil
}

// SimpleTileHeader validates the common b3dm/i3dm/pnts envelope: 4-byte
// magic, little-endian uint32 version==1, little-endian uint32 byteLength
// bounding the buffer (§6.3).
type SimpleTileHeader struct {
	Magic      [4]byte
	Version    uint32
	ByteLength uint32
}

func parseSimpleTileHeader(expectMagic string, data []byte) (SimpleTileHeader, error) {
	var h SimpleTileHeader
	if len(data) < 12 {
		return h, engine.NewError("parseSimpleTileHeader", engine.ErrValidation, 0,
			fmt.Errorf("%s header needs 12 bytes, got %d", expectMagic, len(data)))
	}
	copy(h.Magic[:], data[0:4])
	if string(h.Magic[:]) != expectMagic {
		return h, engine.NewError("parseSimpleTileHeader", engine.ErrParse, 0,
			fmt.Errorf("wrong magic %q, expected %q", h.Magic, expectMagic))
	}
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	if h.Version != 1 {
		return h, engine.NewError("parseSimpleTileHeader", engine.ErrParse, 0,
			fmt.Errorf("unsupported %s version %d", expectMagic, h.Version))
	}
	h.ByteLength = binary.LittleEndian.Uint32(data[8:12])
	if int(h.ByteLength) > len(data) {
		return h, engine.NewError("parseSimpleTileHeader", engine.ErrValidation, 0,
			fmt.Errorf("%s byteLength %d exceeds buffer of %d", expectMagic, h.ByteLength, len(data)))
	}
	return h, nil
}

// GlbHeader is the glTF-binary header of §6.3.
type GlbHeader struct {
	Magic   uint32 // 0x46546C67
	Version uint32 // 2
	Length  uint32
}

const (
	glbMagic       uint32 = 0x46546C67
	glbJSONChunk   uint32 = 0x4E4F534A
	glbBinChunk    uint32 = 0x004E4942
	glbHeaderSize         = 12
)

func parseGlbHeader(data []byte) (GlbHeader, error) {
	var h GlbHeader
	if len(data) < glbHeaderSize {
		return h, engine.NewError("parseGlbHeader", engine.ErrValidation, 0,
			fmt.Errorf("glb header needs %d bytes, got %d", glbHeaderSize, len(data)))
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:4])
	if h.Magic != glbMagic {
		return h, engine.NewError("parseGlbHeader", engine.ErrParse, 0, fmt.Errorf("wrong glb magic 0x%x", h.Magic))
	}
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	if h.Version != 2 {
		return h, engine.NewError("parseGlbHeader", engine.ErrParse, 0, fmt.Errorf("unsupported glb version %d", h.Version))
	}
	h.Length = binary.LittleEndian.Uint32(data[8:12])
	if int(h.Length) > len(data) {
		return h, engine.NewError("parseGlbHeader", engine.ErrValidation, 0,
			fmt.Errorf("glb length %d exceeds buffer of %d", h.Length, len(data)))
	}
	return h, nil
}

// GlbChunk is one JSON or BIN chunk within a glb.
type GlbChunk struct {
	Length  uint32
	Type    uint32
	Payload []byte
}

func parseGlbChunks(data []byte) ([]GlbChunk, error) {
	var chunks []GlbChunk
	offset := glbHeaderSize
	for offset+8 <= len(data) {
		length := binary.LittleEndian.Uint32(data[offset : offset+4])
		typ := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		start := offset + 8
		end := start + int(length)
		if end > len(data) {
			return chunks, engine.NewError("parseGlbChunks", engine.ErrValidation, 0,
				fmt.Errorf("chunk of length %d at offset %d exceeds buffer", length, offset))
		}
		chunks = append(chunks, GlbChunk{Length: length, Type: typ, Payload: data[start:end]})
		offset = end
	}
	return chunks, nil
}
