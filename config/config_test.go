package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDecodesAllSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tileengine.toml")
	doc := `
[tileset]
maximum_screen_space_error = 8
forbid_holes = true

[cache]
maximum_cached_bytes = 1073741824
maximum_simultaneous_tile_loads = 12

[auth]
service_url = "https://assets.example.com/endpoint"

[kafka]
brokers = ["kafka1:9092", "kafka2:9092"]
topic = "tile-events"

[server]
debug_address = ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8.0, cfg.Tileset.MaximumScreenSpaceError)
	assert.True(t, cfg.Tileset.ForbidHoles)
	assert.EqualValues(t, 1073741824, cfg.Cache.MaximumCachedBytes)
	assert.Equal(t, "https://assets.example.com/endpoint", cfg.Auth.ServiceURL)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, ":9090", cfg.Server.DebugAddress)

	opts := cfg.SceneOptions()
	assert.Equal(t, 8.0, opts.MaximumScreenSpaceError)
	assert.True(t, opts.ForbidHoles)
	assert.Equal(t, 12, opts.MaximumSimultaneousTileLoads)
}
