package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kwv/floormesh/floormap"
	"go.uber.org/zap"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(a *App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		a.Logger.Debug("health request", zap.String("remote", r.RemoteAddr))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.status()); err != nil {
			a.Logger.Warn("encoding health status", zap.Error(err))
		}
	})

	// Raster floor map. ?scale=N enlarges each cell to N×N pixels.
	mux.HandleFunc("/floor.png", func(w http.ResponseWriter, r *http.Request) {
		if !a.hasFloor() {
			http.Error(w, "No floor mapped yet", http.StatusServiceUnavailable)
			return
		}
		opts := floormap.DefaultRenderOptions()
		if s := r.URL.Query().Get("scale"); s != "" {
			scale, err := strconv.Atoi(s)
			if err != nil || scale < 1 || scale > 16 {
				http.Error(w, "scale must be an integer from 1 to 16", http.StatusBadRequest)
				return
			}
			opts.Scale = scale
		}
		if r.URL.Query().Get("legend") == "false" {
			opts.Legend = false
		}

		var buf bytes.Buffer
		a.mu.Lock()
		err := floormap.WriteFloorPNG(&buf, a.Grid, a.pose, opts)
		a.mu.Unlock()
		if err != nil {
			a.Logger.Error("rendering floor PNG", zap.Error(err))
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			a.Logger.Debug("writing floor PNG", zap.Error(err))
		}
	})

	mux.HandleFunc("/floor.svg", func(w http.ResponseWriter, r *http.Request) {
		if !a.hasFloor() {
			http.Error(w, "No floor mapped yet", http.StatusServiceUnavailable)
			return
		}
		var buf bytes.Buffer
		if err := a.writeFloor(&buf, "vector", "floor.svg"); err != nil {
			a.Logger.Error("rendering floor SVG", zap.Error(err))
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			a.Logger.Debug("writing floor SVG", zap.Error(err))
		}
	})

	return mux
}
