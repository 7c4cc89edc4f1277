package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/sitewatch/internal/watch"
)

// activeRequest is the body of PUT /api/jobs/{guild}/{name}/active.
type activeRequest struct {
	Active *bool `json:"active"`
}

// handleListJobs returns every job, optionally filtered by ?guild=.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job registry not available")
			return
		}
		guild := r.URL.Query().Get("guild")
		out := []watch.Job{}
		for _, j := range g.jobs.All() {
			if guild == "" || j.GuildID == guild {
				out = append(out, j)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetJob returns one job by identity.
func (g *Gateway) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job registry not available")
			return
		}
		job, ok := g.jobs.Get(chi.URLParam(r, "guild"), chi.URLParam(r, "name"))
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// handleCreateJob registers a new job from a JSON definition.
func (g *Gateway) handleCreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job registry not available")
			return
		}

		var def watch.Definition
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		job, err := g.jobs.Create(r.Context(), def)
		if err != nil {
			g.writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

// handleSetActive enables or disables a job. Re-enabling is the only way
// back for a job disabled after a resource failure.
func (g *Gateway) handleSetActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job registry not available")
			return
		}

		var req activeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Active == nil {
			writeError(w, http.StatusBadRequest, `body must be {"active": true|false}`)
			return
		}

		guild, name := chi.URLParam(r, "guild"), chi.URLParam(r, "name")
		if err := g.jobs.SetActive(r.Context(), guild, name, *req.Active); err != nil {
			g.writeRegistryError(w, err)
			return
		}
		job, _ := g.jobs.Get(guild, name)
		writeJSON(w, http.StatusOK, job)
	}
}

// writeRegistryError maps registry errors to HTTP status codes.
func (g *Gateway) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watch.ErrInvalidDefinition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, watch.ErrDuplicateJob):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, watch.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, watch.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		g.logger.Error("job registry operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
