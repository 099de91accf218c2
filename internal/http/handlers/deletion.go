package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/multipass/internal/account"
	"github.com/dropDatabas3/multipass/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/multipass/internal/http/errors"
	"github.com/dropDatabas3/multipass/internal/http/middlewares"
	"github.com/dropDatabas3/multipass/internal/metrics"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/token"
)

// DeletionHandler atiende el ciclo de borrado de cuenta del principal
// autenticado. Todas las rutas asumen RequireAuth.
type DeletionHandler struct {
	Accounts account.Service
}

func (h *DeletionHandler) Register(r chi.Router) {
	r.Post("/account/deletion", h.Request)
	r.Post("/account/deletion/confirm", h.Confirm)
	r.Post("/account/deletion/cancel", h.Cancel)
}

func (h *DeletionHandler) Request(w http.ResponseWriter, r *http.Request) {
	principalID, ok := authenticatedPrincipal(w, r)
	if !ok {
		return
	}

	var req auth.DeletionRequest
	if !readJSON(w, r, &req) {
		return
	}

	if err := h.Accounts.RequestDeletion(r.Context(), principalID, req.Reason); err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	metrics.DeletionTransitionsTotal.WithLabelValues("requested").Inc()
	writeJSON(w, http.StatusAccepted, auth.DeletionResponse{State: string(core.DeletionRequested)})
}

func (h *DeletionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	principalID, ok := authenticatedPrincipal(w, r)
	if !ok {
		return
	}

	var req auth.DeletionConfirmRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	scheduledAt, err := h.Accounts.ConfirmDeletion(r.Context(), principalID, req.Code)
	if err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	metrics.DeletionTransitionsTotal.WithLabelValues("confirmed").Inc()
	writeJSON(w, http.StatusOK, auth.DeletionResponse{
		State:       string(core.DeletionConfirmed),
		ScheduledAt: scheduledAt,
	})
}

func (h *DeletionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principalID, ok := authenticatedPrincipal(w, r)
	if !ok {
		return
	}

	if err := h.Accounts.CancelDeletion(r.Context(), principalID); err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	metrics.DeletionTransitionsTotal.WithLabelValues("cancelled").Inc()
	writeJSON(w, http.StatusOK, auth.DeletionResponse{State: string(core.DeletionNone)})
}

// authenticatedPrincipal extrae el userId de las claims verificadas.
func authenticatedPrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := middlewares.GetClaims(r.Context())
	if c == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return "", false
	}
	id, _ := c.Claims[token.ClaimUserID].(string)
	if id == "" {
		httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithDetail("token sin userId"))
		return "", false
	}
	return id, true
}
