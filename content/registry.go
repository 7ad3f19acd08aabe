// Package content dispatches a raw byte blob to the right parser by magic,
// MIME type, or URL extension (§4.3), and implements the bit-exact binary
// tile headers of §6.3 (composite unpacking, composite/b3dm/i3dm/pnts/glb
// header validation). The parsers for the payloads embedded inside those
// containers (mesh decoding, image decoding, glTF post-processing) are
// out-of-scope external collaborators per §1 and are represented here only
// by the Loader interface boundary.
package content

import (
	"strings"

	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/scene"
)

// Request is the sub-request shape threaded through dispatch and, for
// composite tiles, derived per inner tile (§4.3.1: "sharing headers,
// status, URL, but substituting the inner byte slice and clearing the
// content-type").
type Request struct {
	URL         string
	StatusCode  int
	ContentType string
	Headers     map[string]string
	Data        []byte
}

// Loader parses a Request's Data into scene.Content. Implementations that
// need worker-thread CPU work (mesh/image decode) are expected to do it
// synchronously here; the caller is responsible for running Load on a
// worker task per §5.
type Loader interface {
	Load(req Request) (scene.Content, error)
}

// Registry is a process-wide, read-mostly dispatcher (§5: "read-mostly;
// registration is at process init"). An implementation may scope a
// Registry per-tileset instead; tests must re-register if they rely on
// isolation (§9 "Global state").
type Registry struct {
	byMagic map[string]Loader
	byMime  map[string]Loader
	byExt   map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{
		byMagic: make(map[string]Loader),
		byMime:  make(map[string]Loader),
		byExt:   make(map[string]Loader),
	}
}

func (r *Registry) RegisterMagic(magic string, l Loader) { r.byMagic[magic] = l }
func (r *Registry) RegisterMime(mimePrefix string, l Loader) {
	r.byMime[strings.ToLower(mimePrefix)] = l
}
func (r *Registry) RegisterExtension(ext string, l Loader) {
	r.byExt[strings.ToLower(ext)] = l
}

// Dispatch selects a loader in the fixed resolution order of §4.3: magic,
// then MIME prefix, then URL extension, then (if the first non-whitespace
// byte is '{') the JSON external-tileset loader, else a null "not
// understood" content logged as a warning.
func (r *Registry) Dispatch(req Request) (scene.Content, error) {
	if len(req.Data) >= 4 {
		magic := string(req.Data[:4])
		if l, ok := r.byMagic[magic]; ok {
			return l.Load(req)
		}
	}
	if req.ContentType != "" {
		mime := req.ContentType
		if idx := strings.IndexByte(mime, ';'); idx >= 0 {
			mime = mime[:idx]
		}
		mime = strings.ToLower(strings.TrimSpace(mime))
		if l, ok := r.byMime[mime]; ok {
			return l.Load(req)
		}
	}
	if ext := extensionOf(req.URL); ext != "" {
		if l, ok := r.byExt[strings.ToLower(ext)]; ok {
			return l.Load(req)
		}
	}
	if firstNonWhitespaceIs(req.Data, '{') {
		if l, ok := r.byMagic["__json__"]; ok {
			return l.Load(req)
		}
	}
	engine.Warningf("content: no loader understood request for %q", req.URL)
	return scene.Content{Kind: scene.ContentUnknown}, nil
}

func extensionOf(url string) string {
	path := url
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		return path[idx+1:]
	}
	return ""
}

func firstNonWhitespaceIs(data []byte, b byte) bool {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c == b
		}
	}
	return false
}

// NewStandardRegistry builds a Registry with the standard loaders of §4.3:
// b3dm, i3dm, cmpt, pnts, gltf/glb, json (external tileset), and
// quantized-mesh-1.0.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	r.RegisterMagic("b3dm", B3dmLoader{})
	r.RegisterMagic("i3dm", I3dmLoader{})
	r.RegisterMagic("pnts", PntsLoader{})
	r.RegisterMagic("cmpt", CompositeLoader{Registry: r})
	r.RegisterMagic("glTF", GltfLoader{})
	r.RegisterExtension("glb", GltfLoader{})
	r.RegisterExtension("gltf", GltfLoader{})
	r.RegisterExtension("json", JSONLoader{})
	r.RegisterMagic("__json__", JSONLoader{})
	r.RegisterMime("application/json", JSONLoader{})
	r.RegisterExtension("terrain", QuantizedMeshLoader{})
	return r
}
