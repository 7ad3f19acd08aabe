// Package config loads the process-wide TOML configuration document
// (§5, §6), mirroring server/config.go's tomlConfig/tc pattern: a single
// struct-of-structs decoded with github.com/BurntSushi/toml, covering the
// cache byte budget, concurrency limits, SSE thresholds, and the asset
// service endpoint.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/cesium3d/tileengine/scene"
)

// TilesetConfig mirrors scene.Options' thresholds as TOML-settable fields.
type TilesetConfig struct {
	MaximumScreenSpaceError float64 `toml:"maximum_screen_space_error"`
	CulledScreenSpaceError  float64 `toml:"culled_screen_space_error"`
	ForbidHoles             bool    `toml:"forbid_holes"`
	PreloadAncestors        bool    `toml:"preload_ancestors"`
	PreloadSiblings         bool    `toml:"preload_siblings"`
	LoadingDescendantLimit  int     `toml:"loading_descendant_limit"`
}

// CacheConfig bounds the content manager's throttles and byte budget (§4.2, §5).
type CacheConfig struct {
	MaximumCachedBytes              int64 `toml:"maximum_cached_bytes"`
	MaximumSimultaneousTileLoads    int   `toml:"maximum_simultaneous_tile_loads"`
	MaximumSimultaneousSubtreeLoads int   `toml:"maximum_simultaneous_subtree_loads"`
}

// AuthConfig names the asset-service endpoint the token-refresh controller
// (package auth) refreshes against (§4.5, §6.5).
type AuthConfig struct {
	ServiceURL string `toml:"service_url"`
}

// KafkaConfig names the broker list and topic the message package publishes
// load-lifecycle events to (§4.8's wiring of the monitoring surface).
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// ServerConfig is the debug/stats HTTP surface's bind address (§4.8).
type ServerConfig struct {
	DebugAddress string `toml:"debug_address"`
}

// Config is the top-level `[tileset]`/`[cache]`/`[auth]` TOML document.
type Config struct {
	Tileset TilesetConfig `toml:"tileset"`
	Cache   CacheConfig   `toml:"cache"`
	Auth    AuthConfig    `toml:"auth"`
	Kafka   KafkaConfig   `toml:"kafka"`
	Server  ServerConfig  `toml:"server"`
}

// Load decodes the TOML document at path, same entry point shape as
// server/config.go's toml.DecodeFile(filename, &tc) call.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	return c, nil
}

// SceneOptions builds scene.Options from the config, falling back to
// scene.DefaultOptions() for any threshold left at its TOML zero value.
func (c Config) SceneOptions() scene.Options {
	opts := scene.DefaultOptions()
	if c.Tileset.MaximumScreenSpaceError != 0 {
		opts.MaximumScreenSpaceError = c.Tileset.MaximumScreenSpaceError
	}
	if c.Tileset.CulledScreenSpaceError != 0 {
		opts.CulledScreenSpaceError = c.Tileset.CulledScreenSpaceError
	}
	opts.ForbidHoles = c.Tileset.ForbidHoles
	opts.PreloadAncestors = c.Tileset.PreloadAncestors
	opts.PreloadSiblings = c.Tileset.PreloadSiblings
	if c.Tileset.LoadingDescendantLimit != 0 {
		opts.LoadingDescendantLimit = c.Tileset.LoadingDescendantLimit
	}
	if c.Cache.MaximumCachedBytes != 0 {
		opts.MaximumCachedBytes = c.Cache.MaximumCachedBytes
	}
	if c.Cache.MaximumSimultaneousTileLoads != 0 {
		opts.MaximumSimultaneousTileLoads = c.Cache.MaximumSimultaneousTileLoads
	}
	if c.Cache.MaximumSimultaneousSubtreeLoads != 0 {
		opts.MaximumSimultaneousSubtreeLoads = c.Cache.MaximumSimultaneousSubtreeLoads
	}
	return opts
}
