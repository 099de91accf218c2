package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler expone los probes de liveness y readiness.
type HealthHandler struct {
	// Ready chequea las dependencias (storage). nil = siempre listo.
	Ready func(r *http.Request) error
}

func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/healthz", h.Live)
	r.Get("/readyz", h.Readyz)
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
