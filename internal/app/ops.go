package app

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/authgraph/authgraph/internal/platform/httpx"
	"github.com/authgraph/authgraph/jobs"
)

// OpsHandler exposes manual triggers for the background jobs, so operators
// can run a sweep or warmup without waiting for the cron schedule.
type OpsHandler struct {
	Client *jobs.Client
	Logger *slog.Logger
}

// MountRoutes registers the trigger endpoints. The router places these
// behind the same guard as the mutation surface.
func (h *OpsHandler) MountRoutes(r chi.Router) {
	r.Post("/ops/sweep", h.enqueueSweep)
	r.Post("/ops/warmup", h.enqueueWarmup)
}

func (h *OpsHandler) enqueueSweep(w http.ResponseWriter, r *http.Request) {
	var payload jobs.GraphSweepPayload
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}
	info, err := h.Client.EnqueueGraphSweep(r.Context(), payload)
	if err != nil {
		h.Logger.Error("enqueue sweep", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not enqueue task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
}

func (h *OpsHandler) enqueueWarmup(w http.ResponseWriter, r *http.Request) {
	var payload jobs.CacheWarmupPayload
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}
	info, err := h.Client.EnqueueCacheWarmup(r.Context(), payload)
	if err != nil {
		h.Logger.Error("enqueue warmup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not enqueue task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
}
