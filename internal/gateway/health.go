package gateway

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store,omitempty"`
	Jobs   int    `json:"jobs"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the store answers, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.jobs != nil {
			resp.Jobs = len(g.jobs.All())
		}

		if g.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			resp.Store = "ok"
			if err := g.store.Ping(ctx); err != nil {
				g.logger.Warn("store health check failed", "error", err)
				resp.Store = "unavailable"
				resp.Status = "degraded"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
