package implicit

import (
	"github.com/golang/snappy"
	"github.com/tinylib/msgp/msgp"
)

// SubtreeWire is the decoded shape of a subtree's availability buffers
// before being wrapped into Bitfields. Implementing msgp.Marshaler /
// msgp.Unmarshaler by hand (rather than via msgp codegen, which this module
// cannot run) keeps the wire decode allocation-light the way the teacher's
// generated msgp readers do for labelmap indices.
type SubtreeWire struct {
	TileAvailability  []byte
	ContentAvailable  []byte
	ChildSubtrees     []byte
	TileConstant      *bool
	ContentConstant   *bool
	ChildConstant     *bool
}

// DecodeSubtree decodes a worker-thread subtree payload (§4.3.2: "three
// availability bitfields are decoded on a worker task"). raw may optionally
// be snappy-compressed; compression is detected by attempting a decode and
// falling back to the uncompressed bytes on failure, mirroring the
// teacher's tolerant use of snappy for block payloads that may or may not
// be compressed depending on the writer's settings.
func DecodeSubtree(raw []byte) (SubtreeWire, error) {
	if decoded, err := snappy.Decode(nil, raw); err == nil {
		raw = decoded
	}
	var w SubtreeWire
	_, err := w.UnmarshalMsg(raw)
	return w, err
}

func (w *SubtreeWire) UnmarshalMsg(bts []byte) ([]byte, error) {
	var sz uint32
	var err error
	sz, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field string
		field, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch field {
		case "tileAvailability":
			w.TileAvailability, bts, err = readOptionalBytes(bts)
		case "contentAvailable":
			w.ContentAvailable, bts, err = readOptionalBytes(bts)
		case "childSubtrees":
			w.ChildSubtrees, bts, err = readOptionalBytes(bts)
		case "tileConstant":
			w.TileConstant, bts, err = readOptionalBool(bts)
		case "contentConstant":
			w.ContentConstant, bts, err = readOptionalBool(bts)
		case "childConstant":
			w.ChildConstant, bts, err = readOptionalBool(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func readOptionalBytes(bts []byte) ([]byte, []byte, error) {
	if msgp.IsNil(bts) {
		return nil, bts[1:], nil
	}
	return msgp.ReadBytesBytes(bts, nil)
}

func readOptionalBool(bts []byte) (*bool, []byte, error) {
	if msgp.IsNil(bts) {
		return nil, bts[1:], nil
	}
	v, rest, err := msgp.ReadBoolBytes(bts)
	if err != nil {
		return nil, rest, err
	}
	return &v, rest, nil
}

// MarshalMsg is provided so tests can round-trip encode fixtures without a
// separate hand-written encoder.
func (w *SubtreeWire) MarshalMsg(b []byte) ([]byte, error) {
	fields := 0
	for _, present := range []bool{w.TileAvailability != nil || w.TileConstant != nil,
		w.ContentAvailable != nil || w.ContentConstant != nil,
		w.ChildSubtrees != nil || w.ChildConstant != nil} {
		if present {
			fields++
		}
	}
	b = msgp.AppendMapHeader(b, uint32(fields))
	appendBuf := func(name string, raw []byte, constant *bool) []byte {
		b = msgp.AppendString(b, name)
		if raw != nil {
			return msgp.AppendBytes(b, raw)
		}
		if constant != nil {
			return msgp.AppendBool(b, *constant)
		}
		return msgp.AppendNil(b)
	}
	if w.TileAvailability != nil || w.TileConstant != nil {
		b = appendBuf("tileAvailability", w.TileAvailability, w.TileConstant)
	}
	if w.ContentAvailable != nil || w.ContentConstant != nil {
		b = appendBuf("contentAvailable", w.ContentAvailable, w.ContentConstant)
	}
	if w.ChildSubtrees != nil || w.ChildConstant != nil {
		b = appendBuf("childSubtrees", w.ChildSubtrees, w.ChildConstant)
	}
	return b, nil
}

// EncodeSubtree is the test-fixture inverse of DecodeSubtree (no compression).
func EncodeSubtree(w SubtreeWire) ([]byte, error) {
	return w.MarshalMsg(nil)
}
