package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies of the job API.
const maxBodyBytes = 64 << 10

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil && !g.config.MetricsAuth {
		r.Handle("/metrics", g.metricsHandler())
	}

	// Admin endpoints, auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
			if g.gatherer != nil && g.config.MetricsAuth {
				r.Handle("/metrics", g.metricsHandler())
			}
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/modules", g.handleGetAllModules())
				r.Route("/jobs", func(r chi.Router) {
					r.Get("/", g.handleListJobs())
					r.Post("/", g.handleCreateJob())
					r.Get("/{guild}/{name}", g.handleGetJob())
					r.Put("/{guild}/{name}/active", g.handleSetActive())
				})
			})
		})
	}

	return r
}

func (g *Gateway) metricsHandler() http.Handler {
	return promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{
		ErrorLog: promErrorLog{g},
	})
}

// promErrorLog adapts the gateway logger to promhttp.Logger.
type promErrorLog struct{ g *Gateway }

func (l promErrorLog) Println(v ...any) {
	l.g.logger.Error("metrics handler error", "detail", v)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
