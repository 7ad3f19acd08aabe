package server

import (
	"encoding/json"
	"net/http"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/rs/cors"
	"github.com/zenazn/goji/web"

	"github.com/cesium3d/tileengine/frame"
	"github.com/cesium3d/tileengine/manager"
)

// StatsSource is read once per request to build the /stats payload; the
// caller wires it to the live frame.Assembler and manager.Manager for the
// tileset(s) it is observing.
type StatsSource struct {
	Assembler *frame.Assembler
	Manager   *manager.Manager
}

type statsPayload struct {
	FrameNumber         int64  `json:"frameNumber"`
	TilesLoading        int64  `json:"tilesLoading"`
	SubtreesLoading     int64  `json:"subtreesLoading"`
	CacheUsage          string `json:"cacheUsage"`
	CacheUsageBytes     int64  `json:"cacheUsageBytes"`
	CacheBudgetBytes    int64  `json:"cacheBudgetBytes"`
}

func (s StatsSource) handleStats(c web.C, w http.ResponseWriter, r *http.Request) {
	payload := statsPayload{
		FrameNumber:      s.Assembler.FrameNumber(),
		TilesLoading:     s.Manager.GetNumOfTilesLoading(),
		SubtreesLoading:  s.Manager.GetNumOfSubtreesLoading(),
		CacheUsage:       humanize.Bytes(uint64(s.Manager.TotalBytes())),
		CacheUsageBytes:  s.Manager.TotalBytes(),
		CacheBudgetBytes: s.Manager.MaxBytes(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func handleHealthz(c web.C, w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// NewDebugMux builds the goji mux for the debug/stats server (§4.8): not
// part of the rendering path, purely observability, wrapped in permissive
// CORS the way the teacher's corsDomains config intends but never itself
// wired to a middleware (see DESIGN.md).
func NewDebugMux(stats StatsSource) http.Handler {
	mux := web.New()
	mux.Get("/stats", stats.handleStats)
	mux.Get("/healthz", handleHealthz)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(mux)
}

// ListenAndServeDebug starts the debug/stats HTTP surface at address,
// mirroring the teacher's ServeHttp convention of a bounded ReadTimeout on
// a dedicated *http.Server rather than the http.DefaultServeMux.
func ListenAndServeDebug(address string, stats StatsSource) error {
	srv := &http.Server{
		Addr:        address,
		Handler:     NewDebugMux(stats),
		ReadTimeout: 1 * time.Hour,
	}
	return srv.ListenAndServe()
}
