package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/woostream/internal/metrics"
	"github.com/rickgao/woostream/internal/stream"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

type channelHealth struct {
	State      string `json:"state"`
	Session    string `json:"session,omitempty"`
	Reconnects int    `json:"reconnects"`
	Queued     int    `json:"queued"`
	Dropped    int64  `json:"dropped"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Channels map[string]channelHealth `json:"channels"`
	Database string                   `json:"database,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// newHTTPHandler serves /health and the Prometheus endpoint. db may be nil.
func newHTTPHandler(metricsPath string, mgr *stream.Manager, db pinger, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:   "healthy",
			Channels: make(map[string]channelHealth),
		}

		var registry *stream.Registry
		if mgr != nil {
			registry = mgr.Registry()
			for _, name := range mgr.Channels() {
				var h channelHealth
				if registry != nil {
					if conn, ok := registry.Lookup(name); ok {
						h = channelHealth{
							State:      conn.State().String(),
							Session:    conn.Session(),
							Reconnects: conn.Reconnects(),
							Queued:     conn.Queue().Len(),
							Dropped:    conn.Queue().Dropped(),
						}
					}
				}
				if h.State != stream.StateStreaming.String() {
					resp.Status = "degraded"
				}
				resp.Channels[name] = h
			}
		}
		if registry == nil {
			resp.Status = "starting"
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				resp.Status = "unhealthy"
				resp.Database = "disconnected"
				resp.Error = err.Error()
			} else {
				resp.Database = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	return mux
}
