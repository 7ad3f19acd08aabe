package content

import "github.com/cesium3d/tileengine/scene"

// JSONLoader marks a request as an external-tileset pointer (§3:
// "ExternalTileset{rootUrl}"). The actual tileset JSON parse into the scene
// data model is done by package tileset, not here: this loader only tags
// the content so the traversal knows the tile is "logically refined".
type JSONLoader struct{}

func (JSONLoader) Load(req Request) (scene.Content, error) {
	return scene.Content{Kind: scene.ContentExternalTileset, RootURL: req.URL, ExternalTilesetData: req.Data}, nil
}
