package gateway

import (
	"net/http"

	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/metrics"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64             `json:"uptime_seconds"`
	Jobs          int               `json:"jobs"`
	ActiveJobs    int               `json:"active_jobs"`
	Channels      []string          `json:"channels"`
	Metrics       *metrics.Snapshot `json:"metrics,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(g.uptime().Seconds()),
			Channels:      []string{},
		}

		if g.jobs != nil {
			for _, j := range g.jobs.All() {
				resp.Jobs++
				if j.Active {
					resp.ActiveJobs++
				}
			}
		}
		if g.channels != nil {
			resp.Channels = g.channels.Channels()
		}
		if g.collector != nil {
			snap := g.collector.Snapshot()
			resp.Metrics = &snap
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
