// Command tileengine drives one tileset's traversal/load loop against a
// simple camera path, wiring together every package in this module the way
// cmd/dvid/main.go wired the teacher's datastore/server/service packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cesium3d/tileengine/auth"
	"github.com/cesium3d/tileengine/config"
	"github.com/cesium3d/tileengine/content"
	"github.com/cesium3d/tileengine/engine"
	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/frame"
	"github.com/cesium3d/tileengine/manager"
	"github.com/cesium3d/tileengine/message"
	"github.com/cesium3d/tileengine/scene"
	"github.com/cesium3d/tileengine/scheduler"
	"github.com/cesium3d/tileengine/server"
	"github.com/cesium3d/tileengine/tileset"
	"github.com/cesium3d/tileengine/traversal"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration document")
	tilesetPath := flag.String("tileset", "", "path to a tileset.json file")
	debugAddr := flag.String("debug-addr", "", "debug/stats HTTP bind address, overrides config")
	flag.Parse()

	if *tilesetPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tileengine -tileset tileset.json [-config tileengine.toml]")
		os.Exit(2)
	}

	var cfg config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			engine.Errorf("main: %v", err)
			os.Exit(1)
		}
	}
	opts := cfg.SceneOptions()

	data, err := os.ReadFile(*tilesetPath)
	if err != nil {
		engine.Errorf("main: reading tileset: %v", err)
		os.Exit(1)
	}

	accessor := fetch.NewHTTPAccessor()
	sched := scheduler.NewScheduler(8, 256)
	registry := content.NewStandardRegistry()

	mgr := manager.New(registry, accessor, sched, opts, nil)
	mgr.SetExternalTilesetResolver(func(data []byte, baseURL string) (*scene.Tile, error) {
		result, err := tileset.Parse(data, baseURL, accessor, &opts, mgr)
		if err != nil {
			return nil, err
		}
		return result.Root, nil
	})

	var publisher *message.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = message.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			engine.Errorf("main: kafka publisher disabled: %v", err)
		}
	}

	var controller *auth.Controller
	if cfg.Auth.ServiceURL != "" {
		controller = auth.NewController(accessor, fetch.NewEndpointCache(16), cfg.Auth.ServiceURL, nil)
		mgr.SetFailureObserver(func(ctx context.Context, status int, tile *scene.Tile) {
			controller.OnLoadFailed(ctx, status, []*scene.Tile{tile})
			if publisher != nil {
				publisher.Publish(message.Event{Type: message.Failed, TileKey: tile.Identity.URL, Status: status})
			}
		})
	}

	result, err := tileset.Parse(data, *tilesetPath, accessor, &opts, mgr)
	if err != nil {
		engine.Errorf("main: parsing tileset: %v", err)
		os.Exit(1)
	}

	eng := traversal.New(mgr, result.Implicit, nil, opts)
	assembler := frame.NewAssembler(eng)

	addr := cfg.Server.DebugAddress
	if *debugAddr != "" {
		addr = *debugAddr
	}
	if addr != "" {
		stats := server.StatsSource{Assembler: assembler, Manager: mgr}
		go func() {
			if err := server.ListenAndServeDebug(addr, stats); err != nil {
				engine.Errorf("main: debug server stopped: %v", err)
			}
		}()
	}

	runLoop(context.Background(), assembler, mgr, result.Root, accessor)
}

// maxMainContinuationsPerFrame bounds how many queued completeLoad (and
// token-refresh, publisher) continuations runLoop drains before traversal,
// so one slow frame can't be starved by an unbounded backlog.
const maxMainContinuationsPerFrame = 256

// runLoop drives the frame function described in §5: drain queued
// main-thread continuations, run the traversal, dispatch newly-queued
// loads, then sleep until the next frame.
func runLoop(ctx context.Context, assembler *frame.Assembler, mgr *manager.Manager, root *scene.Tile, accessor fetch.Accessor) {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	camera := scene.Vec3{X: 0, Y: 0, Z: 1000}
	frustum := orbitingFrustum{radius: 1000}

	for range ticker.C {
		accessor.Tick()

		mgr.DrainMain(maxMainContinuationsPerFrame)

		result := assembler.Update([]scene.Frustum{frustum.at(camera)}, root)

		for _, item := range result.Queues.High {
			mgr.LoadTileContent(ctx, item.Tile)
		}
		for _, item := range result.Queues.Medium {
			mgr.LoadTileContent(ctx, item.Tile)
		}
		for _, item := range result.Queues.Low {
			mgr.LoadTileContent(ctx, item.Tile)
		}

		rendering := make(map[*scene.Tile]bool, len(result.TilesToRender))
		for _, t := range result.TilesToRender {
			rendering[t] = true
		}
		mgr.EvictUntilWithinBudget(func(t *scene.Tile) bool { return rendering[t] })
	}
}

// orbitingFrustum is a minimal scene.Frustum stand-in so this binary runs
// without a real renderer; production embedders supply their own.
type orbitingFrustum struct {
	radius float64
}

func (o orbitingFrustum) at(pos scene.Vec3) frameFrustum {
	return frameFrustum{pos: pos, dir: scene.Vec3{X: 0, Y: 0, Z: -1}}
}

type frameFrustum struct {
	pos, dir scene.Vec3
}

func (f frameFrustum) Position() scene.Vec3  { return f.pos }
func (f frameFrustum) Direction() scene.Vec3 { return f.dir }
func (f frameFrustum) IsBoundingVolumeVisible(scene.BoundingVolume) bool { return true }
func (f frameFrustum) ScreenSpaceError(geometricError, distance float64) float64 {
	if distance == 0 {
		distance = 1
	}
	return (geometricError * 1080) / (distance * 0.5)
}
func (f frameFrustum) CartographicHeight() (float64, bool) { return 0, false }
func (f frameFrustum) HorizontalPositionWithinGlobeRectangle(scene.BoundingVolume) bool {
	return false
}
