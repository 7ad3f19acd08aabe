package content

import (
	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/scene"
)

// CompositeLoader unpacks a `cmpt` container per §4.3.1: it derives a
// sub-request per inner tile (same headers/status/URL, substituted byte
// slice, cleared content-type), dispatches each through the Registry, and
// merges the non-empty results into a single mesh content.
type CompositeLoader struct {
	Registry *Registry
}

func (c CompositeLoader) Load(req Request) (scene.Content, error) {
	header, err := parseCompositeHeader(req.Data)
	if err != nil {
		engine.Warningf("content: composite header invalid for %q: %v", req.URL, err)
		return scene.Content{Kind: scene.ContentUnknown}, nil
	}

	buf := req.Data[:header.ByteLength]
	offset := compositeHeaderSize
	var results []scene.Content

	for i := uint32(0); i < header.TilesLength; i++ {
		if offset+innerHeaderSize > len(buf) {
			engine.Warningf("content: composite %q truncated before inner tile %d", req.URL, i)
			return scene.Content{Kind: scene.ContentUnknown}, nil
		}
		inner, err := parseInnerHeader(buf[offset:])
		if err != nil {
			engine.Warningf("content: composite %q inner tile %d: %v", req.URL, i, err)
			return scene.Content{Kind: scene.ContentUnknown}, nil
		}
		end := offset + int(inner.ByteLength)
		if end > len(buf) {
			engine.Warningf("content: composite %q inner tile %d overruns byteLength", req.URL, i)
			return scene.Content{Kind: scene.ContentUnknown}, nil
		}

		innerReq := Request{
			URL:         req.URL,
			StatusCode:  req.StatusCode,
			Headers:     req.Headers,
			ContentType: "", // cleared per §4.3.1
			Data:        buf[offset:end],
		}
		result, err := c.Registry.Dispatch(innerReq)
		if err == nil && result.Kind != scene.ContentUnknown && result.Kind != scene.ContentNone {
			results = append(results, result)
		}
		offset = end
	}

	if len(results) == 1 {
		return results[0], nil // "returns that tile's content unmodified" (§8 scenario 3)
	}
	if len(results) == 0 {
		return scene.Content{Kind: scene.ContentEmpty}, nil
	}
	return mergeMeshes(results), nil
}

// mergeMeshes concatenates multiple inner mesh contents into one (§4.3.1:
// "whose mesh is the concatenation of inner meshes"). Actual vertex-buffer
// concatenation is a mesh-processing concern out of scope (§1); this keeps
// the raw payload list and sums byte sizes so the byte-budget accounting
// (§3, §4.2) stays correct.
func mergeMeshes(results []scene.Content) scene.Content {
	var parts []interface{}
	var total int64
	var credits []scene.Credit
	for _, r := range results {
		parts = append(parts, r.Gltf.Raw)
		total += r.Gltf.ByteSize
		credits = append(credits, r.CreditList...)
	}
	return scene.Content{
		Kind:       scene.ContentMesh,
		Gltf:       scene.GltfModel{Raw: parts, ByteSize: total},
		CreditList: credits,
	}
}
